package group

import (
	"github.com/beevik/etree"
	"go.uber.org/zap"

	"lwp/document"
	"lwp/marker"
)

// scanOnce re-derives the group forest from the document in a single pass
// over the marker elements. Broken structure is repaired destructively and
// silently: malformed grouper elements, orphaned closes, crossed pairs and
// dangling opens are deleted outside the undo journal. Duplicated ids (the
// copy/paste case) are renumbered from the free pool before it is finally
// recomputed as the exact complement of the ids left in use.
func (r *Registry) scanOnce() {
	d := r.doc

	for _, g := range r.groups {
		g.stale = true
	}

	// snapshot the grouper-styled elements and the ids present, probing the
	// document directly rather than trusting pre-scan bookkeeping
	var els []*etree.Element
	used := make(map[int]bool)
	for _, el := range d.Elements() {
		if dec := marker.Decode(el); dec != nil {
			used[dec.ID] = true
			els = append(els, el)
		} else if marker.LooksLikeMarker(el) {
			els = append(els, el)
		}
	}
	probe := 0
	nextUnused := func() int {
		for used[probe] {
			probe++
		}
		used[probe] = true
		return probe
	}

	type frame struct {
		id   int
		el   *etree.Element
		kids []*Group
	}
	var (
		stack       []frame
		forest      []*Group
		created     []*Group
		displaced   []*Group
		translation = make(map[int]int)
		repaired    = false
	)

	bind := func(f frame, closeEl *etree.Element) *Group {
		existing := r.groups[f.id]
		if existing != nil && existing.open == f.el {
			existing.stale = false
			existing.deleted = false
			existing.close = closeEl
			if dec := marker.Decode(f.el); dec != nil {
				existing.typeName = dec.Type
			}
			existing.parent = nil
			existing.children = f.kids
			for _, k := range f.kids {
				k.parent = existing
			}
			return existing
		}
		id := f.id
		switch {
		case existing == nil:
		case !existing.stale || d.Attached(existing.open):
			// the id's owner was already rebound this pass, or its own open
			// marker still sits elsewhere in the document: this pair is a
			// duplicate and gets a fresh id
			id = nextUnused()
			marker.SetID(f.el, marker.Open, id)
			marker.SetID(closeEl, marker.Close, id)
			translation[f.id] = id
			d.MarkModified()
			r.log.Debug("renumbered duplicated group",
				zap.Int("from", f.id), zap.Int("to", id))
		default:
			// owner's markers are gone; this pair inherits the id and the
			// old object retires
			displaced = append(displaced, existing)
		}
		g := &Group{reg: r, open: f.el, close: closeEl, children: f.kids}
		if dec := marker.Decode(f.el); dec != nil {
			g.typeName = dec.Type
		}
		for _, k := range f.kids {
			k.parent = g
		}
		r.groups[id] = g
		created = append(created, g)
		return g
	}

	for _, el := range els {
		if !d.Attached(el) {
			continue // removed by an earlier repair this pass
		}
		dec := marker.Decode(el)
		if dec == nil {
			r.log.Debug("removing malformed grouper element",
				zap.String("element", document.SerializeElement(el)))
			d.RemoveNodeQuiet(el)
			repaired = true
			continue
		}
		if dec.Orientation == marker.Open {
			stack = append(stack, frame{id: dec.ID, el: el})
			continue
		}
		at := -1
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].id == dec.ID {
				at = i
				break
			}
		}
		if at < 0 {
			r.log.Debug("removing orphaned close marker", zap.Int("id", dec.ID))
			d.RemoveNodeQuiet(el)
			repaired = true
			continue
		}
		// crossed pairs: opens above the match have their close outside this
		// pair's extent; drop their markers, their children climb one level
		f := stack[at]
		for i := at + 1; i < len(stack); i++ {
			r.log.Debug("removing crossed open marker", zap.Int("id", stack[i].id))
			d.RemoveNodeQuiet(stack[i].el)
			f.kids = append(f.kids, stack[i].kids...)
			repaired = true
		}
		stack = stack[:at]

		g := bind(f, el)
		if len(stack) > 0 {
			stack[len(stack)-1].kids = append(stack[len(stack)-1].kids, g)
		} else {
			forest = append(forest, g)
		}
	}

	// dangling opens never found their close; the markers go, the children
	// climb to the enclosing level
	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		r.log.Debug("removing dangling open marker", zap.Int("id", f.id))
		d.RemoveNodeQuiet(f.el)
		repaired = true
		if i > 0 {
			stack[i-1].kids = append(stack[i-1].kids, f.kids...)
		} else {
			forest = append(forest, f.kids...)
		}
	}

	// retire every group whose markers were not found again
	for id, g := range r.groups {
		if g.stale {
			delete(r.groups, id)
			displaced = append(displaced, g)
		}
	}
	r.topLevel = forest

	for _, g := range displaced {
		g.deleted = true
		g.parent = nil
		if t := g.Type(); t != nil && t.Deleted != nil {
			t.Deleted(g)
		}
	}

	// renumbered groups carry stored connection triples naming their old id
	for oldID, newID := range translation {
		if g := r.groups[newID]; g != nil {
			g.rewriteConnectionIDs(oldID, newID)
		}
	}

	ids := make([]int, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	r.pool.recompute(ids)

	for _, g := range created {
		g.ContentsChanged(false)
	}

	if repaired && r.phase == phaseScanning {
		// the repaired document deserves a clean pass; hierarchy spliced
		// around deleted markers settles into canonical order there
		r.phase = phasePending
	}
}
