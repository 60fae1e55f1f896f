package render

import "testing"

func TestParseStyle(t *testing.T) {
	s := ParseStyle("stroke: #806; stroke-width: 2.5px; fill: rgba(20,20,20,0.5); opacity: 0.8")
	if s.Stroke != "#806" {
		t.Fatalf("Stroke = %q", s.Stroke)
	}
	if s.StrokeWidth != 2.5 {
		t.Fatalf("StrokeWidth = %v", s.StrokeWidth)
	}
	if s.Fill != "rgba(20,20,20,0.5)" {
		t.Fatalf("Fill = %q", s.Fill)
	}
	if s.Opacity != 0.8 {
		t.Fatalf("Opacity = %v", s.Opacity)
	}
}

func TestParseStyleDefaults(t *testing.T) {
	s := ParseStyle("")
	if s.StrokeWidth != 1 || s.Opacity != 1 || s.Stroke != "" || s.Fill != "" {
		t.Fatalf("zero-input style = %+v", s)
	}
}

func TestParseStyleIgnoresJunk(t *testing.T) {
	s := ParseStyle("unknown-prop: 7; stroke-width: -3; opacity: 9; stroke: red")
	if s.Stroke != "red" {
		t.Fatalf("Stroke = %q", s.Stroke)
	}
	// negative widths and out-of-range opacity keep the defaults
	if s.StrokeWidth != 1 {
		t.Fatalf("StrokeWidth = %v", s.StrokeWidth)
	}
	if s.Opacity != 1 {
		t.Fatalf("Opacity = %v", s.Opacity)
	}
}

func TestParseStyleBorderAliases(t *testing.T) {
	s := ParseStyle("border-color: blue; border-width: 4px; background-color: #eee")
	if s.Stroke != "blue" || s.StrokeWidth != 4 || s.Fill != "#eee" {
		t.Fatalf("alias style = %+v", s)
	}
}
