package document

import (
	"errors"

	"github.com/beevik/etree"
)

// ErrDetached is returned when an edit targets content no longer reachable
// from the document body.
var ErrDetached = errors.New("node is not attached to the document")

// Transaction groups edits into one undoable step. Nested calls join the
// outermost transaction. A single Change event fires when the outermost
// transaction completes, journaling the previous state for Undo.
func (d *Document) Transaction(fn func() error) error {
	if d.txnDepth == 0 {
		d.undo = append(d.undo, d.body.Copy())
		d.redo = nil
		d.txnDirty = nil
	}
	d.txnDepth++
	err := fn()
	d.txnDepth--
	if d.txnDepth == 0 {
		d.modified = true
		affected := d.WholeRange()
		if d.txnDirty != nil {
			affected = *d.txnDirty
		}
		d.txnDirty = nil
		d.emitChange(Change{Affected: affected})
	}
	return err
}

// touch widens the current transaction's affected range to include pos.
func (d *Document) touch(pos Position) {
	if !d.Attached(pos.Container) && pos.Container != d.body {
		return
	}
	if d.txnDirty == nil {
		d.txnDirty = &Range{Start: pos, End: pos}
		return
	}
	if d.ComparePositions(pos, d.txnDirty.Start) < 0 {
		d.txnDirty.Start = pos
	}
	if d.ComparePositions(pos, d.txnDirty.End) > 0 {
		d.txnDirty.End = pos
	}
}

// InsertAt places a token at pos. Wraps itself in a transaction when called
// outside one.
func (d *Document) InsertAt(pos Position, t etree.Token) error {
	return d.Transaction(func() error {
		if pos.Container != d.body && !d.Attached(pos.Container) {
			return ErrDetached
		}
		off := pos.Offset
		if off < 0 {
			off = 0
		}
		if off > len(pos.Container.Child) {
			off = len(pos.Container.Child)
		}
		pos.Container.InsertChildAt(off, t)
		d.touch(pos)
		return nil
	})
}

// RemoveNode deletes a token (and its subtree) as an undoable edit.
func (d *Document) RemoveNode(t etree.Token) error {
	return d.Transaction(func() error {
		p := t.Parent()
		if p == nil || (p != d.body && !d.Attached(p)) {
			return ErrDetached
		}
		pos := Before(t)
		p.RemoveChild(t)
		d.touch(pos)
		return nil
	})
}

// RemoveNodeQuiet deletes a token without journaling or notification. The
// scanner uses it for structural repair, which is deliberately silent and
// not part of the user's undo history.
func (d *Document) RemoveNodeQuiet(t etree.Token) {
	if p := t.Parent(); p != nil {
		p.RemoveChild(t)
		d.modified = true
	}
}

// ReplaceRange substitutes the tokens between r.Start and r.End (which must
// share a container) with the given tokens, as one undoable edit.
func (d *Document) ReplaceRange(r Range, tokens []etree.Token) error {
	return d.Transaction(func() error {
		c := r.Start.Container
		if c != r.End.Container {
			return errors.New("replace range must stay within one container")
		}
		if c != d.body && !d.Attached(c) {
			return ErrDetached
		}
		lo, hi := r.Start.Offset, r.End.Offset
		if lo < 0 {
			lo = 0
		}
		if hi > len(c.Child) {
			hi = len(c.Child)
		}
		for i := hi - 1; i >= lo; i-- {
			c.RemoveChildAt(i)
		}
		for i, t := range tokens {
			c.InsertChildAt(lo+i, t)
		}
		d.touch(r.Start)
		return nil
	})
}

// DeleteRange removes all tokens starting inside the range, in one undoable
// edit. Containers may differ.
func (d *Document) DeleteRange(r Range) error {
	return d.Transaction(func() error {
		victims := d.NodesBetween(r)
		for _, t := range victims {
			if p := t.Parent(); p != nil {
				p.RemoveChild(t)
			}
		}
		d.touch(r.Start)
		return nil
	})
}

// SetAttr writes an attribute directly, outside the undo journal. Attribute
// bags ride on markers and must not pollute the user's undo history; a
// caller that wants undo integration wraps the call in Transaction itself.
func (d *Document) SetAttr(el *etree.Element, key, value string) {
	el.CreateAttr(key, value)
	d.modified = true
}

// RemoveAttr clears an attribute directly, outside the undo journal.
func (d *Document) RemoveAttr(el *etree.Element, key string) {
	el.RemoveAttr(key)
	d.modified = true
}

// CanUndo reports whether an undo step exists.
func (d *Document) CanUndo() bool {
	return len(d.undo) > 0
}

// CanRedo reports whether a redo step exists.
func (d *Document) CanRedo() bool {
	return len(d.redo) > 0
}

// Undo restores the state before the most recent transaction. The change
// notification is flagged FromHistory and spans the whole document.
func (d *Document) Undo() bool {
	if len(d.undo) == 0 {
		return false
	}
	snap := d.undo[len(d.undo)-1]
	d.undo = d.undo[:len(d.undo)-1]
	d.redo = append(d.redo, d.body.Copy())
	d.restore(snap)
	d.modified = true
	d.emitChange(Change{Affected: d.WholeRange(), FromHistory: true})
	return true
}

// Redo reapplies the most recently undone transaction.
func (d *Document) Redo() bool {
	if len(d.redo) == 0 {
		return false
	}
	snap := d.redo[len(d.redo)-1]
	d.redo = d.redo[:len(d.redo)-1]
	d.undo = append(d.undo, d.body.Copy())
	d.restore(snap)
	d.modified = true
	d.emitChange(Change{Affected: d.WholeRange(), FromHistory: true})
	return true
}

// restore swaps body content for the snapshot's children, keeping the body
// element itself (and everything holding a pointer to it) stable.
func (d *Document) restore(snap *etree.Element) {
	for len(d.body.Child) > 0 {
		d.body.RemoveChildAt(len(d.body.Child) - 1)
	}
	for len(snap.Child) > 0 {
		t := snap.Child[0]
		snap.RemoveChildAt(0)
		d.body.AddChild(t)
	}
	d.selection = Range{Start: Position{Container: d.body}, End: Position{Container: d.body}}
}
