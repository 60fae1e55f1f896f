// Package document models the host editor surface the group engine is
// allowed to see: an etree-backed content tree, cursor/selection state,
// undoable edit transactions and the mutation/key/selection notifications
// the engine subscribes to. It is deliberately small - everything the host
// does beyond this contract (WYSIWYG rendering, storage, real undo UI) is
// out of scope.
package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// Change describes one completed edit transaction.
type Change struct {
	Affected Range
	// FromHistory marks undo/redo replays; the affected range is then the
	// whole document and the engine must not trust finer bookkeeping.
	FromHistory bool
}

// Document is the single shared content tree. All mutations go through its
// edit API so every observer sees a consistent tree at each callback
// boundary. Not safe for concurrent use - the model is a single event loop.
type Document struct {
	doc  *etree.Document
	body *etree.Element
	log  *zap.Logger

	selection Range
	modified  bool

	undo []*etree.Element
	redo []*etree.Element

	txnDepth int
	txnDirty *Range

	changeHandlers    []func(Change)
	keyHandlers       []func(Key)
	selectionHandlers []func(Range)
}

// New creates an empty document with a single body container.
func New(log *zap.Logger) *Document {
	doc := etree.NewDocument()
	doc.WriteSettings = etree.WriteSettings{
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	body := doc.CreateElement("body")
	d := &Document{doc: doc, body: body, log: log}
	d.selection = Range{Start: Position{Container: body}, End: Position{Container: body}}
	return d
}

// Read parses document content from r. Permissive settings: host editors
// routinely hand us markup that is not strictly valid XML.
func Read(r io.Reader, log *zap.Logger) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		ValidateInput: false,
		Permissive:    true,
	}
	doc.WriteSettings = etree.WriteSettings{
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("unable to read document: %w", err)
	}
	body := doc.Root()
	if body == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	d := &Document{doc: doc, body: body, log: log}
	d.selection = Range{Start: Position{Container: body}, End: Position{Container: body}}
	return d, nil
}

// ReadString parses document content from a string.
func ReadString(s string, log *zap.Logger) (*Document, error) {
	return Read(strings.NewReader(s), log)
}

// Body returns the root content container.
func (d *Document) Body() *etree.Element {
	return d.body
}

// Modified reports whether the document changed since creation or the last
// ClearModified call.
func (d *Document) Modified() bool {
	return d.modified
}

func (d *Document) ClearModified() {
	d.modified = false
}

// MarkModified flags the document dirty without journaling anything. Used
// for attribute-bag writes that stay out of the undo history.
func (d *Document) MarkModified() {
	d.modified = true
}

// Attached reports whether t is still reachable from the document body.
func (d *Document) Attached(t etree.Token) bool {
	if t == nil {
		return false
	}
	if el, ok := t.(*etree.Element); ok && el == d.body {
		return true
	}
	for p := t.Parent(); p != nil; p = p.Parent() {
		if p == d.body {
			return true
		}
	}
	return false
}

// Walk visits every token under the body in document order. Returning false
// from fn stops the walk.
func (d *Document) Walk(fn func(etree.Token) bool) {
	var walk func(el *etree.Element) bool
	walk = func(el *etree.Element) bool {
		for _, child := range el.Child {
			if !fn(child) {
				return false
			}
			if sub, ok := child.(*etree.Element); ok {
				if !walk(sub) {
					return false
				}
			}
		}
		return true
	}
	walk(d.body)
}

// Elements returns all elements under the body in document order.
func (d *Document) Elements() []*etree.Element {
	var out []*etree.Element
	d.Walk(func(t etree.Token) bool {
		if el, ok := t.(*etree.Element); ok {
			out = append(out, el)
		}
		return true
	})
	return out
}

// WholeRange spans the entire body content.
func (d *Document) WholeRange() Range {
	return Range{
		Start: Position{Container: d.body, Offset: 0},
		End:   Position{Container: d.body, Offset: len(d.body.Child)},
	}
}

// String serializes the whole document.
func (d *Document) String() string {
	s, err := d.doc.WriteToString()
	if err != nil {
		// WriteToString only fails on writer errors and strings.Builder has none
		return ""
	}
	return s
}

// OnChange subscribes to completed edit transactions.
func (d *Document) OnChange(fn func(Change)) {
	d.changeHandlers = append(d.changeHandlers, fn)
}

// OnKeyUp subscribes to content-affecting key releases. Pure navigation and
// modifier keys are filtered out before delivery.
func (d *Document) OnKeyUp(fn func(Key)) {
	d.keyHandlers = append(d.keyHandlers, fn)
}

// OnSelectionChange subscribes to cursor/selection movement.
func (d *Document) OnSelectionChange(fn func(Range)) {
	d.selectionHandlers = append(d.selectionHandlers, fn)
}

// Selection returns the current selection. A collapsed selection has equal
// start and end.
func (d *Document) Selection() Range {
	return d.selection
}

// SetSelection moves the cursor/selection and notifies subscribers.
func (d *Document) SetSelection(r Range) {
	d.selection = r
	for _, fn := range d.selectionHandlers {
		fn(r)
	}
}

// Collapse places a collapsed cursor at pos.
func (d *Document) Collapse(pos Position) {
	d.SetSelection(Range{Start: pos, End: pos})
}

func (d *Document) emitChange(c Change) {
	for _, fn := range d.changeHandlers {
		fn(c)
	}
}

// SerializeTokens writes tokens out the way the document itself would.
func SerializeTokens(tokens []etree.Token) string {
	frag := etree.NewElement("frag")
	for _, t := range tokens {
		frag.AddChild(copyToken(t))
	}
	scratch := etree.NewDocument()
	scratch.WriteSettings = etree.WriteSettings{
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	scratch.SetRoot(frag)
	s, err := scratch.WriteToString()
	if err != nil {
		return ""
	}
	s = strings.TrimPrefix(s, "<frag>")
	s = strings.TrimSuffix(s, "</frag>")
	if s == "<frag/>" {
		return ""
	}
	return s
}

// SerializeElement writes a single element, markup included.
func SerializeElement(el *etree.Element) string {
	return SerializeTokens([]etree.Token{el})
}

func copyToken(t etree.Token) etree.Token {
	switch v := t.(type) {
	case *etree.Element:
		return v.Copy()
	case *etree.CharData:
		return etree.NewText(v.Data)
	case *etree.Comment:
		return etree.NewComment(v.Data)
	default:
		// remaining token kinds (directives, proc insts) never appear in
		// editable content; keep them as opaque text
		return etree.NewText("")
	}
}

// CopyTokens deep-copies a token list, detached from any parent.
func CopyTokens(tokens []etree.Token) []etree.Token {
	out := make([]etree.Token, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, copyToken(t))
	}
	return out
}

// TokenText extracts the plain text of a token and its descendants.
func TokenText(t etree.Token) string {
	switch v := t.(type) {
	case *etree.CharData:
		return v.Data
	case *etree.Element:
		var b strings.Builder
		for _, child := range v.Child {
			b.WriteString(TokenText(child))
		}
		return b.String()
	default:
		return ""
	}
}
