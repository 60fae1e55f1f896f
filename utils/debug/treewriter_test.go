package debug

import (
	"testing"
)

func TestTreeWriter_ZeroValue(t *testing.T) {
	var tw TreeWriter
	if tw.String() != "" {
		t.Errorf("zero value String() = %q, want empty", tw.String())
	}
	tw.Line(0, "usable")
	if tw.String() != "usable\n" {
		t.Errorf("zero value not usable: %q", tw.String())
	}
}

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		depth  int
		format string
		args   []any
		want   string
	}{
		{
			name:   "no depth",
			depth:  0,
			format: "test",
			args:   nil,
			want:   "test\n",
		},
		{
			name:   "depth 1",
			depth:  1,
			format: "indented",
			args:   nil,
			want:   "  indented\n",
		},
		{
			name:   "depth 2",
			depth:  2,
			format: "double indent",
			args:   nil,
			want:   "    double indent\n",
		},
		{
			name:   "with formatting",
			depth:  1,
			format: "group %d type=%s",
			args:   []any{42, "note"},
			want:   "  group 42 type=note\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tw TreeWriter
			tw.Line(tt.depth, tt.format, tt.args...)
			got := tw.String()
			if got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_TextBlock(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		label string
		value string
		want  string
	}{
		{
			name:  "empty value stays unquoted",
			depth: 0,
			label: "text",
			value: "",
			want:  "text: \n",
		},
		{
			name:  "plain value",
			depth: 1,
			label: "text",
			value: "hello world",
			want:  "  text: \"hello world\"\n",
		},
		{
			name:  "value with quotes",
			depth: 0,
			label: "text",
			value: "he said \"hello\"",
			want:  "text: \"he said \\\"hello\\\"\"\n",
		},
		{
			name:  "value with newline",
			depth: 0,
			label: "text",
			value: "line1\nline2",
			want:  "text: \"line1\\nline2\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tw TreeWriter
			tw.TextBlock(tt.depth, tt.label, tt.value)
			got := tw.String()
			if got != tt.want {
				t.Errorf("TextBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_MixedOperations(t *testing.T) {
	var tw TreeWriter
	tw.Line(0, "group %d type=%s", 0, "note")
	tw.Line(1, "@%s = %v", "score", 3.5)
	tw.Line(1, "-> %d (%s)", 2, "implies")
	tw.TextBlock(1, "text", "body")
	tw.Line(1, "group %d type=%s", 1, "note")
	tw.TextBlock(2, "text", "")

	want := "group 0 type=note\n" +
		"  @score = 3.5\n" +
		"  -> 2 (implies)\n" +
		"  text: \"body\"\n" +
		"  group 1 type=note\n" +
		"    text: \n"
	if got := tw.String(); got != want {
		t.Errorf("mixed operations:\ngot:\n%s\nwant:\n%s", got, want)
	}
}
