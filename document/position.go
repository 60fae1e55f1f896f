package document

import (
	"github.com/beevik/etree"
)

// Position addresses a point between child tokens of a container element:
// offset 0 is before the first child, len(Child) is after the last one.
type Position struct {
	Container *etree.Element
	Offset    int
}

// Before returns the position immediately preceding t inside its parent.
func Before(t etree.Token) Position {
	return Position{Container: t.Parent(), Offset: t.Index()}
}

// After returns the position immediately following t inside its parent.
func After(t etree.Token) Position {
	return Position{Container: t.Parent(), Offset: t.Index() + 1}
}

// Range is a pair of positions; Start must not follow End in document order.
type Range struct {
	Start, End Position
}

// Collapsed reports whether the range is a cursor.
func (r Range) Collapsed() bool {
	return r.Start == r.End
}

// pathTo builds child-index steps from the body down to el. Returns nil if
// el is not attached under body.
func pathTo(body, el *etree.Element) []int {
	if el == body {
		return []int{}
	}
	var rev []int
	for e := el; e != nil && e != body; e = e.Parent() {
		if e.Parent() == nil {
			return nil
		}
		rev = append(rev, e.Index())
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// ComparePositions orders two positions in document order: -1, 0 or 1.
// Detached positions compare as equal to everything; callers are expected
// to check attachment first.
func (d *Document) ComparePositions(a, b Position) int {
	pa := pathTo(d.body, a.Container)
	pb := pathTo(d.body, b.Container)
	if pa == nil || pb == nil {
		return 0
	}
	pa = append(pa, a.Offset)
	pb = append(pb, b.Offset)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		switch {
		case pa[i] < pb[i]:
			return -1
		case pa[i] > pb[i]:
			return 1
		}
	}
	// A shorter path is a position in an ancestor container pointing at (or
	// past) the subtree holding the longer one; the longer path is inside.
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	}
	return 0
}

// CompareNodeOrder orders two tokens in document order.
func (d *Document) CompareNodeOrder(a, b etree.Token) int {
	if a == b {
		return 0
	}
	return d.ComparePositions(Before(a), Before(b))
}

// NextNode returns the token following t in document order, descending into
// element children first.
func NextNode(t etree.Token) etree.Token {
	if el, ok := t.(*etree.Element); ok && len(el.Child) > 0 {
		return el.Child[0]
	}
	for t != nil {
		p := t.Parent()
		if p == nil {
			return nil
		}
		if i := t.Index(); i+1 < len(p.Child) {
			return p.Child[i+1]
		}
		t = p
	}
	return nil
}

// NodeAt returns the token a position points at, or nil when the position
// is at the end of its container.
func NodeAt(pos Position) etree.Token {
	if pos.Container == nil || pos.Offset < 0 || pos.Offset >= len(pos.Container.Child) {
		return nil
	}
	return pos.Container.Child[pos.Offset]
}

// NodesBetween collects, in document order, every token that starts
// strictly between the two positions. Descendants of collected elements are
// not collected again.
func (d *Document) NodesBetween(r Range) []etree.Token {
	var out []etree.Token
	d.Walk(func(t etree.Token) bool {
		start := Before(t)
		if d.ComparePositions(start, r.Start) < 0 {
			return true
		}
		if d.ComparePositions(start, r.End) >= 0 {
			return false
		}
		// skip tokens nested in an already collected element
		for _, seen := range out {
			if el, ok := seen.(*etree.Element); ok && isAncestor(el, t) {
				return true
			}
		}
		out = append(out, t)
		return true
	})
	return out
}

func isAncestor(el *etree.Element, t etree.Token) bool {
	for p := t.Parent(); p != nil; p = p.Parent() {
		if p == el {
			return true
		}
	}
	return false
}
