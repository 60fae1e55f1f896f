package render

import (
	"errors"
	"testing"

	"lwp/document"
	"lwp/group"
)

func TestDrawOutlinesAncestorChain(t *testing.T) {
	_, r, m := setup(t, "<body><p>"+pair(0, "test", pair(1, "test", "x"))+"</p></body>")
	inner := r.GroupByID(1)
	o := NewOverlay(r, m)
	c := &RecordingCanvas{}
	if err := o.Draw(c, inner); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	var strokes []document.Rect
	for _, op := range c.Ops {
		if op.Kind == "stroke" {
			strokes = append(strokes, op.Rect)
		}
	}
	if len(strokes) != 2 {
		t.Fatalf("stroked rects = %d, want 2 (inner and outer)", len(strokes))
	}
	// the ancestor's outline pads further out than the inner one
	if !(strokes[1].X < strokes[0].X && strokes[1].Right() > strokes[0].Right()) {
		t.Fatalf("outer outline %+v does not enclose inner %+v", strokes[1], strokes[0])
	}
}

func TestDrawTagLabelsDodgeEachOther(t *testing.T) {
	_, r, m := setup(t, "<body><p>"+pair(0, "outer", pair(1, "inner", "x"))+"</p></body>")
	r.AddType(&group.TypeDef{Name: "outer", TagContents: func(g *group.Group) string { return "OUTER" }})
	r.AddType(&group.TypeDef{Name: "inner", TagContents: func(g *group.Group) string { return "INNER" }})
	o := NewOverlay(r, m)
	c := &RecordingCanvas{}
	if err := o.Draw(c, r.GroupByID(1)); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	var labelY []float64
	for _, op := range c.Ops {
		if op.Kind == "text" && (op.Text == "OUTER" || op.Text == "INNER") {
			labelY = append(labelY, op.Points[0].Y)
		}
	}
	if len(labelY) != 2 {
		t.Fatalf("tag labels drawn = %d, want 2", len(labelY))
	}
	if labelY[0] == labelY[1] {
		t.Fatalf("labels collided at y = %v", labelY[0])
	}
}

func TestDrawUsesTypeStyles(t *testing.T) {
	_, r, m := setup(t, "<body><p>"+pair(0, "styled", "x")+"</p></body>")
	r.AddType(&group.TypeDef{
		Name:         "styled",
		OutlineStyle: "stroke: #0a0; stroke-width: 3",
		FillStyle:    "fill: #dfd",
	})
	o := NewOverlay(r, m)
	c := &RecordingCanvas{}
	if err := o.Draw(c, r.GroupByID(0)); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	sawFill, sawStroke := false, false
	for _, op := range c.Ops {
		switch op.Kind {
		case "fill":
			if op.Style.Fill == "#dfd" {
				sawFill = true
			}
		case "stroke":
			if op.Style.Stroke == "#0a0" && op.Style.StrokeWidth == 3 {
				sawStroke = true
			}
		}
	}
	if !sawFill || !sawStroke {
		t.Fatalf("type styles not applied: fill=%v stroke=%v ops=%v", sawFill, sawStroke, c.Kinds())
	}
}

func TestDrawStyleHookOverridesDeclarations(t *testing.T) {
	_, r, m := setup(t, "<body><p>"+pair(0, "hooked", "x")+"</p></body>")
	r.AddType(&group.TypeDef{
		Name:         "hooked",
		OutlineStyle: "stroke: #0a0",
		SetOutlineStyle: func(g *group.Group, ctx group.StyleContext) {
			ctx.SetStroke("#f00")
			ctx.SetStrokeWidth(5)
		},
	})
	o := NewOverlay(r, m)
	c := &RecordingCanvas{}
	if err := o.Draw(c, r.GroupByID(0)); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	for _, op := range c.Ops {
		if op.Kind == "stroke" {
			if op.Style.Stroke != "#f00" || op.Style.StrokeWidth != 5 {
				t.Fatalf("hook style not applied: %+v", op.Style)
			}
			return
		}
	}
	t.Fatal("no stroke op recorded")
}

func TestDrawConnectionArrow(t *testing.T) {
	_, r, m := setup(t, "<body><p>"+pair(0, "test", "a")+pair(1, "test", "b")+"</p></body>")
	a, b := r.GroupByID(0), r.GroupByID(1)
	a.Connect(b, "implies")
	o := NewOverlay(r, m)
	c := &RecordingCanvas{}
	if err := o.Draw(c, a); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	var polylines int
	var sawTag bool
	for _, op := range c.Ops {
		switch op.Kind {
		case "polyline":
			polylines++
		case "text":
			if op.Text == "implies" {
				sawTag = true
			}
		}
	}
	// the curve and the arrowhead
	if polylines != 2 {
		t.Fatalf("polylines = %d, want 2", polylines)
	}
	if !sawTag {
		t.Fatal("connection tag not drawn")
	}
	// the arrow arcs above both markers
	for _, op := range c.Ops {
		if op.Kind == "polyline" && len(op.Points) > 3 {
			mid := op.Points[len(op.Points)/2]
			if mid.Y >= 0 {
				t.Fatalf("curve apex y = %v, want above the line", mid.Y)
			}
		}
	}
}

func TestDrawAlsoVisibleConnections(t *testing.T) {
	_, r, m := setup(t, "<body><p>"+pair(0, "test", "a")+pair(1, "test", "b")+pair(2, "test", "c")+"</p></body>")
	a, b, c3 := r.GroupByID(0), r.GroupByID(1), r.GroupByID(2)
	b.Connect(c3, "supports")
	o := NewOverlay(r, m)

	// active group has no connections of its own
	c := &RecordingCanvas{}
	if err := o.Draw(c, a); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	for _, op := range c.Ops {
		if op.Kind == "polyline" {
			t.Fatal("arrow drawn without visible groups")
		}
	}

	// the pinned group's arrows show up alongside the active decoration
	c = &RecordingCanvas{}
	if err := o.Draw(c, a, b); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	var polylines int
	var sawTag bool
	for _, op := range c.Ops {
		switch op.Kind {
		case "polyline":
			polylines++
		case "text":
			if op.Text == "supports" {
				sawTag = true
			}
		}
	}
	if polylines != 2 {
		t.Fatalf("polylines = %d, want curve and arrowhead for the pinned group", polylines)
	}
	if !sawTag {
		t.Fatal("pinned group's connection tag not drawn")
	}

	// nil and repeated entries are tolerated, active is not drawn twice
	c = &RecordingCanvas{}
	if err := o.Draw(c, b, nil, b); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	polylines = 0
	for _, op := range c.Ops {
		if op.Kind == "polyline" {
			polylines++
		}
	}
	if polylines != 2 {
		t.Fatalf("polylines = %d, want 2 (connection drawn once)", polylines)
	}
}

func TestDrawSkipsDanglingConnection(t *testing.T) {
	_, r, m := setup(t, "<body><p>"+pair(0, "test", "a")+"</p></body>")
	a := r.GroupByID(0)
	// endpoint 9 does not exist; stored triples may outlive their peers
	a.SetQuiet("connections", []any{[]any{0, 9, "ghost"}})
	o := NewOverlay(r, m)
	c := &RecordingCanvas{}
	if err := o.Draw(c, a); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	for _, op := range c.Ops {
		if op.Kind == "polyline" {
			t.Fatal("arrow drawn for dangling connection")
		}
	}
}

func TestDrawNotReadyPropagates(t *testing.T) {
	_, r, m := setup(t, "<body><p>"+pair(0, "test", "x")+"</p></body>")
	g := r.GroupByID(0)
	m.SetReady(g.CloseMarker(), false)
	o := NewOverlay(r, m)
	if err := o.Draw(&RecordingCanvas{}, g); !errors.Is(err, document.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestDrawNilAndDeletedGroups(t *testing.T) {
	_, r, m := setup(t, "<body><p>"+pair(0, "test", "x")+"</p></body>")
	g := r.GroupByID(0)
	o := NewOverlay(r, m)
	c := &RecordingCanvas{}
	if err := o.Draw(c, nil); err != nil || len(c.Ops) != 0 {
		t.Fatalf("nil draw: err=%v ops=%d", err, len(c.Ops))
	}
	if err := g.Remove(); err != nil {
		t.Fatal(err)
	}
	if err := o.Draw(c, g); err != nil || len(c.Ops) != 0 {
		t.Fatalf("deleted draw: err=%v ops=%d", err, len(c.Ops))
	}
}

func TestGroupAtPoint(t *testing.T) {
	_, r, m := setup(t, "<body><p>"+pair(0, "test", "x")+"</p>out</body>")
	o := NewOverlay(r, m)
	// over the open marker, the first 16px of line 0
	if g := o.GroupAtPoint(8, 10); g != r.GroupByID(0) {
		t.Fatalf("GroupAtPoint over marker = %v", g)
	}
	// over plain text on line 1: no group
	if g := o.GroupAtPoint(8, 30); g != nil {
		t.Fatalf("GroupAtPoint outside = %v", g)
	}
}
