package document

import (
	"errors"

	"github.com/beevik/etree"
)

// ErrNotReady signals that on-screen geometry is not computable yet (marker
// images still loading). Transient by contract: retry after a short delay.
var ErrNotReady = errors.New("geometry not ready")

// Rect is an on-screen rectangle in CSS pixel coordinates.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) Right() float64 {
	return r.X + r.W
}

func (r Rect) Bottom() float64 {
	return r.Y + r.H
}

// Union returns the smallest rectangle covering both.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x := min(r.X, o.X)
	y := min(r.Y, o.Y)
	return Rect{
		X: x,
		Y: y,
		W: max(r.Right(), o.Right()) - x,
		H: max(r.Bottom(), o.Bottom()) - y,
	}
}

// Overlaps reports whether two rectangles intersect.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Expand grows the rectangle by pad on every side.
func (r Rect) Expand(pad float64) Rect {
	return Rect{X: r.X - pad, Y: r.Y - pad, W: r.W + 2*pad, H: r.H + 2*pad}
}

// Measurer answers on-screen geometry questions for document content. The
// real host delegates to the browser; tests and the CLI use TextMeasurer.
type Measurer interface {
	// TokenRect returns the bounding rectangle of a rendered token. It
	// returns ErrNotReady while the token's visual is still loading and
	// ErrDetached for content outside the document.
	TokenRect(t etree.Token) (Rect, error)
	// ElementAtPoint resolves a client coordinate to the innermost element.
	ElementAtPoint(x, y float64) *etree.Element
}

// TextMeasurer is a deterministic character-cell layout: every direct child
// of the body is one display line, inline content advances left to right.
// Good enough to exercise single-line versus multi-line zone geometry
// without a browser.
type TextMeasurer struct {
	doc        *Document
	CharWidth  float64
	LineHeight float64
	TokenWidth float64 // width of a childless element (marker image slot)

	notReady map[*etree.Element]bool
}

func NewTextMeasurer(doc *Document) *TextMeasurer {
	return &TextMeasurer{
		doc:        doc,
		CharWidth:  8,
		LineHeight: 20,
		TokenWidth: 16,
		notReady:   make(map[*etree.Element]bool),
	}
}

// SetReady toggles the loading state of an element's visual.
func (m *TextMeasurer) SetReady(el *etree.Element, ready bool) {
	if ready {
		delete(m.notReady, el)
	} else {
		m.notReady[el] = true
	}
}

func (m *TextMeasurer) TokenRect(t etree.Token) (Rect, error) {
	if el, ok := t.(*etree.Element); ok && m.notReady[el] {
		return Rect{}, ErrNotReady
	}
	if !m.doc.Attached(t) {
		return Rect{}, ErrDetached
	}
	var (
		found Rect
		ok    bool
	)
	m.layout(func(tok etree.Token, r Rect) bool {
		if tok == t {
			found, ok = r, true
			return false
		}
		return true
	})
	if !ok {
		return Rect{}, ErrDetached
	}
	return found, nil
}

func (m *TextMeasurer) ElementAtPoint(x, y float64) *etree.Element {
	var found *etree.Element
	m.layout(func(tok etree.Token, r Rect) bool {
		el, ok := tok.(*etree.Element)
		if !ok || x < r.X || x >= r.Right() || y < r.Y || y >= r.Bottom() {
			return true
		}
		// children are visited before their parent; keep the innermost hit
		if found == nil || !isAncestor(el, found) {
			found = el
		}
		return true
	})
	return found
}

// layout walks the body assigning a rectangle to every token. fn returning
// false stops the walk.
func (m *TextMeasurer) layout(fn func(etree.Token, Rect) bool) {
	y := 0.0
	for _, line := range m.doc.body.Child {
		x := 0.0
		if !m.layoutInline(line, &x, y, fn) {
			return
		}
		y += m.LineHeight
	}
}

func (m *TextMeasurer) layoutInline(t etree.Token, x *float64, y float64, fn func(etree.Token, Rect) bool) bool {
	start := *x
	switch v := t.(type) {
	case *etree.CharData:
		*x += float64(len(v.Data)) * m.CharWidth
	case *etree.Element:
		if len(v.Child) == 0 {
			*x += m.TokenWidth
		} else {
			for _, child := range v.Child {
				if !m.layoutInline(child, x, y, fn) {
					return false
				}
			}
		}
	}
	return fn(t, Rect{X: start, Y: y, W: *x - start, H: m.LineHeight})
}
