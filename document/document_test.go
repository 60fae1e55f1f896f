package document

import (
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap/zaptest"
)

func readDoc(t *testing.T, body string) *Document {
	t.Helper()
	d, err := ReadString(body, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	return d
}

func TestReadPermissive(t *testing.T) {
	// undeclared entity, typical host editor output
	d := readDoc(t, "<body><p>one&nbsp;two</p></body>")
	if d.Body() == nil {
		t.Fatal("no body")
	}
	if d.Modified() {
		t.Error("freshly read document reports modified")
	}
}

func TestReadRejectsEmptyInput(t *testing.T) {
	if _, err := ReadString("", zaptest.NewLogger(t)); err == nil {
		t.Fatal("empty input accepted")
	}
}

func TestNewDocument(t *testing.T) {
	d := New(zaptest.NewLogger(t))
	if d.Body() == nil || len(d.Body().Child) != 0 {
		t.Fatal("fresh document body not empty")
	}
	if !d.Selection().Collapsed() {
		t.Error("fresh document selection not collapsed")
	}
}

func TestTransactionCoalescesChanges(t *testing.T) {
	d := readDoc(t, "<p>ab</p>")

	var events int
	d.OnChange(func(Change) { events++ })

	err := d.Transaction(func() error {
		if err := d.InsertAt(Position{Container: d.Body(), Offset: 0}, etree.NewText("x")); err != nil {
			return err
		}
		return d.InsertAt(Position{Container: d.Body(), Offset: 0}, etree.NewText("y"))
	})
	if err != nil {
		t.Fatal(err)
	}
	if events != 1 {
		t.Errorf("nested transaction fired %d change events, want 1", events)
	}
	if !d.Modified() {
		t.Error("transaction did not mark document modified")
	}
}

func TestUndoRedo(t *testing.T) {
	d := readDoc(t, "<p>keep</p>")
	before := d.String()

	if err := d.InsertAt(Position{Container: d.Body(), Offset: 0}, etree.NewText("extra")); err != nil {
		t.Fatal(err)
	}
	after := d.String()
	if after == before {
		t.Fatal("insert had no effect")
	}

	var history int
	d.OnChange(func(c Change) {
		if c.FromHistory {
			history++
		}
	})

	if !d.Undo() {
		t.Fatal("Undo() = false with history present")
	}
	if d.String() != before {
		t.Errorf("undo result = %s, want %s", d.String(), before)
	}
	if !d.Redo() {
		t.Fatal("Redo() = false after undo")
	}
	if d.String() != after {
		t.Errorf("redo result = %s, want %s", d.String(), after)
	}
	if history != 2 {
		t.Errorf("history change events = %d, want 2", history)
	}
	if d.Redo() {
		t.Error("Redo() = true with empty redo stack")
	}
}

func TestUndoKeepsBodyPointerStable(t *testing.T) {
	d := readDoc(t, "<p>x</p>")
	body := d.Body()
	if err := d.RemoveNode(d.Body().Child[0]); err != nil {
		t.Fatal(err)
	}
	d.Undo()
	if d.Body() != body {
		t.Error("body element identity changed across undo")
	}
	if len(d.Body().Child) != 1 {
		t.Error("undo did not restore content")
	}
}

func TestRemoveNodeQuietStaysOutOfHistory(t *testing.T) {
	d := readDoc(t, "<p>a</p><p>b</p>")

	var events int
	d.OnChange(func(Change) { events++ })

	d.RemoveNodeQuiet(d.Body().Child[0])
	if events != 0 {
		t.Error("quiet removal fired change event")
	}
	if d.CanUndo() {
		t.Error("quiet removal journaled an undo step")
	}
	if !d.Modified() {
		t.Error("quiet removal did not mark document modified")
	}
}

func TestSetAttrStaysOutOfHistory(t *testing.T) {
	d := readDoc(t, "<p>a</p>")
	p := d.Body().Child[0].(*etree.Element)

	d.SetAttr(p, "data-note", "x")
	if d.CanUndo() {
		t.Error("attribute write journaled an undo step")
	}
	if p.SelectAttrValue("data-note", "") != "x" {
		t.Error("attribute not written")
	}
	d.RemoveAttr(p, "data-note")
	if p.SelectAttr("data-note") != nil {
		t.Error("attribute not removed")
	}
}

func TestReplaceRange(t *testing.T) {
	d := readDoc(t, "<p>a<b>x</b>c</p>")
	p := d.Body().Child[0].(*etree.Element)

	r := Range{
		Start: Position{Container: p, Offset: 1},
		End:   Position{Container: p, Offset: 2},
	}
	if err := d.ReplaceRange(r, []etree.Token{etree.NewText("B")}); err != nil {
		t.Fatal(err)
	}
	if got := TokenText(p); got != "aBc" {
		t.Errorf("text after replace = %q, want aBc", got)
	}

	bad := Range{
		Start: Position{Container: p, Offset: 0},
		End:   Position{Container: d.Body(), Offset: 1},
	}
	if err := d.ReplaceRange(bad, nil); err == nil {
		t.Error("cross-container replace accepted")
	}
}

func TestDeleteRangeAcrossContainers(t *testing.T) {
	d := readDoc(t, "<body><p>one</p><p>two</p><p>three</p></body>")
	first := d.Body().Child[0].(*etree.Element)

	// from inside the first paragraph to just past the second one: the text
	// of the first and the whole second paragraph start inside the range
	r := Range{
		Start: Position{Container: first, Offset: 0},
		End:   Position{Container: d.Body(), Offset: 2},
	}
	if err := d.DeleteRange(r); err != nil {
		t.Fatal(err)
	}
	if got := TokenText(d.Body()); got != "three" {
		t.Errorf("text after delete = %q, want three", got)
	}
	if len(d.Body().Child) != 2 {
		t.Errorf("%d children left, want emptied first paragraph plus third", len(d.Body().Child))
	}
}

func TestComparePositions(t *testing.T) {
	d := readDoc(t, "<body><p>a<b>x</b></p><p>c</p></body>")
	first := d.Body().Child[0].(*etree.Element)
	second := d.Body().Child[1].(*etree.Element)
	bold := first.Child[1].(*etree.Element)

	cases := []struct {
		name string
		a, b Position
		want int
	}{
		{"same", Position{first, 0}, Position{first, 0}, 0},
		{"offsets", Position{first, 0}, Position{first, 1}, -1},
		{"siblings", Position{second, 0}, Position{first, 0}, 1},
		{"inside follows before", Position{bold, 0}, Position{first, 1}, 1},
		{"inside precedes after", Position{bold, 0}, Position{first, 2}, -1},
	}
	for _, tt := range cases {
		if got := d.ComparePositions(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: ComparePositions() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestNodesBetween(t *testing.T) {
	d := readDoc(t, "<body><p>a<b>x</b>c</p><p>d</p></body>")
	first := d.Body().Child[0].(*etree.Element)

	r := Range{
		Start: Position{Container: first, Offset: 1},
		End:   Position{Container: first, Offset: 3},
	}
	nodes := d.NodesBetween(r)
	if len(nodes) != 2 {
		t.Fatalf("NodesBetween() returned %d tokens, want 2", len(nodes))
	}
	// descendants of the collected <b> are not collected again
	if _, ok := nodes[0].(*etree.Element); !ok {
		t.Errorf("first collected token is %T, want element", nodes[0])
	}
	if TokenText(nodes[1]) != "c" {
		t.Errorf("second collected token text = %q, want c", TokenText(nodes[1]))
	}
}

func TestNextNode(t *testing.T) {
	d := readDoc(t, "<body><p>a<b>x</b></p><p>c</p></body>")
	first := d.Body().Child[0].(*etree.Element)

	var visited []string
	for tok := etree.Token(first); tok != nil; tok = NextNode(tok) {
		if el, ok := tok.(*etree.Element); ok {
			visited = append(visited, el.Tag)
		} else {
			visited = append(visited, TokenText(tok))
		}
	}
	want := []string{"p", "a", "b", "x", "p", "c"}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited %v, want %v", visited, want)
		}
	}
}

func TestKeyUpFiltersPassiveKeys(t *testing.T) {
	d := readDoc(t, "<p>a</p>")

	var got []string
	d.OnKeyUp(func(k Key) { got = append(got, k.Name) })

	d.KeyUp(Key{Name: "ArrowLeft"})
	d.KeyUp(Key{Name: "Shift"})
	d.KeyUp(Key{Name: "a"})
	d.KeyUp(Key{Name: "Backspace"})

	if len(got) != 2 || got[0] != "a" || got[1] != "Backspace" {
		t.Errorf("delivered keys = %v, want [a Backspace]", got)
	}
}

func TestSelectionNotifications(t *testing.T) {
	d := readDoc(t, "<p>a</p>")
	p := d.Body().Child[0].(*etree.Element)

	var notified int
	d.OnSelectionChange(func(Range) { notified++ })

	d.Collapse(Position{Container: p, Offset: 1})
	if notified != 1 {
		t.Errorf("selection change events = %d, want 1", notified)
	}
	if d.Selection().Start.Container != p || !d.Selection().Collapsed() {
		t.Errorf("selection = %+v", d.Selection())
	}
}

func TestSerializeTokens(t *testing.T) {
	d := readDoc(t, "<p>a<b>x</b></p>")
	p := d.Body().Child[0].(*etree.Element)

	if got := SerializeTokens(p.Child); got != "a<b>x</b>" {
		t.Errorf("SerializeTokens() = %q", got)
	}
	if got := SerializeTokens(nil); got != "" {
		t.Errorf("SerializeTokens(nil) = %q, want empty", got)
	}
	if got := SerializeElement(p.Child[1].(*etree.Element)); got != "<b>x</b>" {
		t.Errorf("SerializeElement() = %q", got)
	}
}

func TestCopyTokensDetached(t *testing.T) {
	d := readDoc(t, "<p>a<b>x</b></p>")
	p := d.Body().Child[0].(*etree.Element)

	copies := CopyTokens(p.Child)
	if len(copies) != 2 {
		t.Fatalf("copied %d tokens, want 2", len(copies))
	}
	for i, c := range copies {
		if c.Parent() != nil {
			t.Errorf("copy %d still attached", i)
		}
	}
	// mutating the copy leaves the document alone
	copies[1].(*etree.Element).CreateAttr("class", "changed")
	if p.Child[1].(*etree.Element).SelectAttr("class") != nil {
		t.Error("copy mutation leaked into the document")
	}
}

func TestAttached(t *testing.T) {
	d := readDoc(t, "<p>a</p>")
	p := d.Body().Child[0].(*etree.Element)

	if !d.Attached(p) || !d.Attached(d.Body()) {
		t.Error("attached content reported detached")
	}
	if err := d.RemoveNode(p); err != nil {
		t.Fatal(err)
	}
	if d.Attached(p) {
		t.Error("removed content reported attached")
	}
	if d.Attached(nil) {
		t.Error("nil token reported attached")
	}
}
