package render

import (
	"math"

	"go.uber.org/zap"

	"lwp/document"
	"lwp/group"
)

// Point is a canvas coordinate.
type Point struct {
	X, Y float64
}

// Canvas receives drawing primitives. The browser host backs it with its 2D
// context; tests use RecordingCanvas.
type Canvas interface {
	StrokeRect(r document.Rect, s Style)
	FillRect(r document.Rect, s Style)
	Polyline(pts []Point, s Style)
	Text(at Point, text string, s Style)
}

// Op is one recorded drawing call.
type Op struct {
	Kind   string // "stroke", "fill", "polyline", "text"
	Rect   document.Rect
	Points []Point
	Text   string
	Style  Style
}

// RecordingCanvas captures drawing calls for inspection.
type RecordingCanvas struct {
	Ops []Op
}

func (c *RecordingCanvas) StrokeRect(r document.Rect, s Style) {
	c.Ops = append(c.Ops, Op{Kind: "stroke", Rect: r, Style: s})
}

func (c *RecordingCanvas) FillRect(r document.Rect, s Style) {
	c.Ops = append(c.Ops, Op{Kind: "fill", Rect: r, Style: s})
}

func (c *RecordingCanvas) Polyline(pts []Point, s Style) {
	c.Ops = append(c.Ops, Op{Kind: "polyline", Points: pts, Style: s})
}

func (c *RecordingCanvas) Text(at Point, text string, s Style) {
	c.Ops = append(c.Ops, Op{Kind: "text", Points: []Point{at}, Text: text, Style: s})
}

// Kinds returns the recorded op kinds in order, a cheap shape check.
func (c *RecordingCanvas) Kinds() []string {
	out := make([]string, 0, len(c.Ops))
	for _, op := range c.Ops {
		out = append(out, op.Kind)
	}
	return out
}

// Overlay draws the decoration for the group under the cursor: nested
// region outlines for its ancestor chain, tag labels that dodge each other
// upward, and the group's connection arrows.
type Overlay struct {
	reg *group.Registry
	m   document.Measurer
	log *zap.Logger

	// geometry knobs, CSS pixels
	OutlinePad     float64
	LabelHeight    float64
	LabelCharWidth float64
	ArrowLift      float64
}

// NewOverlay wires an overlay to a registry and a measurer.
func NewOverlay(reg *group.Registry, m document.Measurer) *Overlay {
	return &Overlay{
		reg:            reg,
		m:              m,
		log:            reg.Log(),
		OutlinePad:     2,
		LabelHeight:    12,
		LabelCharWidth: 6,
		ArrowLift:      10,
	}
}

// GroupAtPoint hit-tests a client coordinate to the innermost group.
func (o *Overlay) GroupAtPoint(x, y float64) *group.Group {
	el := o.m.ElementAtPoint(x, y)
	if el == nil {
		return nil
	}
	return o.reg.GroupForNode(el)
}

// Draw renders the decoration for the active group: its ancestor-chain
// outlines, tag labels and connection arrows. Groups passed as alsoVisible
// contribute their connection arrows too even though they are not under the
// cursor (the host keeps pinned or hovered groups visible this way). Returns
// ErrNotReady while marker images are still loading; the caller schedules a
// retry and keeps the previous frame.
func (o *Overlay) Draw(c Canvas, active *group.Group, alsoVisible ...*group.Group) error {
	if active != nil && !active.Deleted() {
		chain := active.Ancestors()
		var labels []document.Rect
		// innermost first: its outline hugs the content, ancestors pad outward
		for depth, g := range chain {
			zone, err := GroupZone(o.m, g)
			if err != nil {
				return err
			}
			pad := o.OutlinePad * float64(depth+1)
			outline := o.outlineStyle(g)
			fill := o.fillStyle(g)
			for _, r := range zone.Rects {
				rr := r.Expand(pad)
				if fill.Fill != "" {
					c.FillRect(rr, fill)
				}
				c.StrokeRect(rr, outline)
			}
			if text := tagText(g); text != "" {
				o.drawLabel(c, zone.Rects[0].Expand(pad), text, outline, &labels)
			}
		}
		for _, conn := range active.VisibleConnections() {
			if err := o.drawConnection(c, conn); err != nil {
				return err
			}
		}
	}
	for _, g := range alsoVisible {
		if g == nil || g.Deleted() || g == active {
			continue
		}
		for _, conn := range g.VisibleConnections() {
			if err := o.drawConnection(c, conn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Overlay) outlineStyle(g *group.Group) Style {
	st := DefaultOutline
	t := g.Type()
	if t == nil {
		return st
	}
	if t.SetOutlineStyle != nil {
		t.SetOutlineStyle(g, &st)
		return st
	}
	if t.OutlineStyle != "" {
		return ParseStyle(t.OutlineStyle)
	}
	return st
}

func (o *Overlay) fillStyle(g *group.Group) Style {
	var st Style
	t := g.Type()
	if t == nil {
		return st
	}
	if t.SetFillStyle != nil {
		t.SetFillStyle(g, &st)
		return st
	}
	if t.FillStyle != "" {
		return ParseStyle(t.FillStyle)
	}
	return st
}

func tagText(g *group.Group) string {
	if t := g.Type(); t != nil && t.TagContents != nil {
		return t.TagContents(g)
	}
	return ""
}

// drawLabel places a tag just above its region, sliding up one label height
// at a time until it stops overlapping labels placed before it.
func (o *Overlay) drawLabel(c Canvas, above document.Rect, text string, st Style, placed *[]document.Rect) {
	lr := document.Rect{
		X: above.X,
		Y: above.Y - o.LabelHeight,
		W: float64(len([]rune(text)))*o.LabelCharWidth + 4,
		H: o.LabelHeight,
	}
	for overlapsAny(lr, *placed) {
		lr.Y -= o.LabelHeight
	}
	*placed = append(*placed, lr)
	bg := Style{Fill: "#fff", Opacity: 0.9}
	c.FillRect(lr, bg)
	c.StrokeRect(lr, st)
	c.Text(Point{X: lr.X + 2, Y: lr.Bottom() - 3}, text, st)
}

func overlapsAny(r document.Rect, placed []document.Rect) bool {
	for _, p := range placed {
		if r.Overlaps(p) {
			return true
		}
	}
	return false
}

// drawConnection renders one curved arrow between the open markers of the
// two endpoints. Dangling endpoints are tolerated silently; the scan that
// rewrites or retires them is already on its way.
func (o *Overlay) drawConnection(c Canvas, conn group.Connection) error {
	from := o.reg.GroupByID(conn.From)
	to := o.reg.GroupByID(conn.To)
	if from == nil || to == nil {
		o.log.Debug("skipping connection with dangling endpoint",
			zap.Int("from", conn.From), zap.Int("to", conn.To))
		return nil
	}
	fr, err := o.m.TokenRect(from.OpenMarker())
	if err != nil {
		return err
	}
	tr, err := o.m.TokenRect(to.OpenMarker())
	if err != nil {
		return err
	}
	start := Point{X: fr.X + fr.W/2, Y: fr.Y}
	end := Point{X: tr.X + tr.W/2, Y: tr.Y}
	lift := math.Max(o.ArrowLift, math.Abs(end.X-start.X)/4)
	ctrl := Point{X: (start.X + end.X) / 2, Y: math.Min(start.Y, end.Y) - lift}

	st := o.outlineStyle(from)
	pts := make([]Point, 0, 17)
	for i := 0; i <= 16; i++ {
		t := float64(i) / 16
		u := 1 - t
		pts = append(pts, Point{
			X: u*u*start.X + 2*u*t*ctrl.X + t*t*end.X,
			Y: u*u*start.Y + 2*u*t*ctrl.Y + t*t*end.Y,
		})
	}
	c.Polyline(pts, st)
	c.Polyline(arrowHead(pts[len(pts)-2], end), st)
	if conn.Tag != "" {
		c.Text(Point{X: ctrl.X, Y: ctrl.Y - 2}, conn.Tag, st)
	}
	return nil
}

// arrowHead builds the two barbs of an arrow tip pointing from prev to tip.
func arrowHead(prev, tip Point) []Point {
	angle := math.Atan2(tip.Y-prev.Y, tip.X-prev.X)
	const barb = 6.0
	const spread = math.Pi / 6
	left := Point{
		X: tip.X - barb*math.Cos(angle-spread),
		Y: tip.Y - barb*math.Sin(angle-spread),
	}
	right := Point{
		X: tip.X - barb*math.Cos(angle+spread),
		Y: tip.Y - barb*math.Sin(angle+spread),
	}
	return []Point{left, tip, right}
}
