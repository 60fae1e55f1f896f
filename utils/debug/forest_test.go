package debug

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"lwp/document"
	"lwp/group"
)

func TestDumpForest(t *testing.T) {
	body := `<p>` +
		`<img id="open0" class="grouper test" src="" alt="open test"/>` +
		`outer ` +
		`<img id="open1" class="grouper test" src="" alt="open test" data-note="[&quot;keep&quot;]"/>` +
		`inner` +
		`<img id="close1" class="grouper test" src="" alt="close test"/>` +
		`<img id="close0" class="grouper test" src="" alt="close test"/>` +
		`</p>`
	d, err := document.ReadString(body, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	reg := group.NewRegistry(d, zaptest.NewLogger(t))
	reg.AddType(&group.TypeDef{Name: "test"})
	reg.GroupByID(0).Connect(reg.GroupByID(1), "refines")

	dump := DumpForest(reg)

	lines := strings.Split(strings.TrimRight(dump, "\n"), "\n")
	if lines[0] != "group 0 type=test" {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(dump, "  -> 1 (refines)") {
		t.Errorf("connection missing from dump:\n%s", dump)
	}
	if !strings.Contains(dump, "  group 1 type=test") {
		t.Errorf("nested group not indented:\n%s", dump)
	}
	if !strings.Contains(dump, `@note = keep`) {
		t.Errorf("attribute missing from dump:\n%s", dump)
	}
	if !strings.Contains(dump, `text: "inner"`) {
		t.Errorf("group text missing from dump:\n%s", dump)
	}
}

func TestDumpForestEmptyRegistry(t *testing.T) {
	d, err := document.ReadString("<p>nothing here</p>", zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	reg := group.NewRegistry(d, zaptest.NewLogger(t))

	if dump := DumpForest(reg); dump != "" {
		t.Errorf("DumpForest() = %q, want empty", dump)
	}
}
