package group

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"lwp/document"
	"lwp/marker"
)

// Reserved attribute keys. Writing them re-renders the corresponding marker
// visual on top of the normal attribute semantics.
const (
	KeyOpenDecoration  = "openDecoration"
	KeyCloseDecoration = "closeDecoration"
	KeyOpenHoverText   = "openHoverText"
	KeyCloseHoverText  = "closeHoverText"
)

var decorationKeys = map[string]marker.Orientation{
	KeyOpenDecoration:  marker.Open,
	KeyOpenHoverText:   marker.Open,
	KeyCloseDecoration: marker.Close,
	KeyCloseHoverText:  marker.Close,
}

const dataPrefix = "data-"

var attrKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Group is one region of document content delimited by an open/close marker
// pair. The object survives rescans as long as the same open marker element
// is found again; it is retired (Deleted() becomes true) when its markers
// vanish from the document.
type Group struct {
	reg      *Registry
	typeName string
	open     *etree.Element
	close    *etree.Element

	parent   *Group
	children []*Group

	deleted  bool
	stale    bool // set at scan start, cleared when the scanner rebinds
	notified bool // a contents-changed notification went out at least once
}

// ID returns the group's numeric identifier, or -1 after retirement.
func (g *Group) ID() int {
	if dec := marker.Decode(g.open); dec != nil {
		return dec.ID
	}
	return -1
}

// TypeName returns the group's type class. May name an unregistered type;
// such groups still participate in the hierarchy, they just have no hooks.
func (g *Group) TypeName() string {
	return g.typeName
}

// Type resolves the registered type definition, nil when the type class is
// unknown to the registry.
func (g *Group) Type() *TypeDef {
	return g.reg.types[g.typeName]
}

// OpenMarker returns the element delimiting the start of the region.
func (g *Group) OpenMarker() *etree.Element {
	return g.open
}

// CloseMarker returns the element delimiting the end of the region.
func (g *Group) CloseMarker() *etree.Element {
	return g.close
}

// Parent returns the enclosing group, nil for top-level groups.
func (g *Group) Parent() *Group {
	return g.parent
}

// Children returns the directly nested groups in document order.
func (g *Group) Children() []*Group {
	return g.children
}

// Ancestors returns the chain from this group up to its top-level ancestor,
// self first.
func (g *Group) Ancestors() []*Group {
	var out []*Group
	for p := g; p != nil; p = p.parent {
		out = append(out, p)
	}
	return out
}

// Depth returns the nesting level, 0 for top-level groups.
func (g *Group) Depth() int {
	n := 0
	for p := g.parent; p != nil; p = p.parent {
		n++
	}
	return n
}

// Registry returns the owning registry.
func (g *Group) Registry() *Registry {
	return g.reg
}

// Deleted reports whether the group was retired by a scan.
func (g *Group) Deleted() bool {
	return g.deleted
}

// Attached reports whether both markers are still in the document. A group
// can be detached mid-edit and come back before the next scan runs.
func (g *Group) Attached() bool {
	return !g.deleted && g.reg.doc.Attached(g.open) && g.reg.doc.Attached(g.close)
}

// Hidden reports whether the group's markers are visually suppressed.
func (g *Group) Hidden() bool {
	return marker.Hidden(g.open)
}

// SetHidden flips marker visibility on both ends. Like attribute writes this
// stays out of the undo journal.
func (g *Group) SetHidden(hidden bool) {
	marker.SetHidden(g.open, hidden)
	marker.SetHidden(g.close, hidden)
	g.reg.doc.MarkModified()
}

// siblings returns the list this group belongs to: the parent's children or
// the registry's top level.
func (g *Group) siblings() []*Group {
	if g.parent != nil {
		return g.parent.children
	}
	return g.reg.topLevel
}

// PreviousSibling returns the group immediately before this one on the same
// nesting level, nil when first.
func (g *Group) PreviousSibling() *Group {
	sibs := g.siblings()
	for i, s := range sibs {
		if s == g && i > 0 {
			return sibs[i-1]
		}
	}
	return nil
}

// NextSibling returns the group immediately after this one on the same
// nesting level, nil when last.
func (g *Group) NextSibling() *Group {
	sibs := g.siblings()
	for i, s := range sibs {
		if s == g && i+1 < len(sibs) {
			return sibs[i+1]
		}
	}
	return nil
}

// ContentsChanged notifies the group's type hook that region content (or an
// attribute) changed, propagating to ancestors when asked. The hook learns
// whether this is the group's first notification ever, so types can
// distinguish initialization from later edits.
func (g *Group) ContentsChanged(propagate bool) {
	first := !g.notified
	g.notified = true
	if t := g.Type(); t != nil && t.ContentsChanged != nil {
		t.ContentsChanged(g, first)
	}
	if propagate && g.parent != nil {
		g.parent.ContentsChanged(true)
	}
}

// Get reads an attribute from the group's bag. The second return is false
// when the key is absent or unreadable.
func (g *Group) Get(key string) (any, bool) {
	if !attrKeyPattern.MatchString(key) {
		return nil, false
	}
	raw := g.open.SelectAttrValue(dataPrefix+key, "")
	if raw == "" {
		return nil, false
	}
	var wrapper []any
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil || len(wrapper) != 1 {
		g.reg.log.Debug("unreadable group attribute",
			zap.Int("group", g.ID()), zap.String("key", key))
		return nil, false
	}
	return wrapper[0], true
}

// GetString reads a string-valued attribute, "" when absent or not a string.
func (g *Group) GetString(key string) string {
	v, ok := g.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Set writes an attribute and notifies this group and its ancestors. Invalid
// keys and unencodable values are silently dropped. Attribute writes do not
// enter the undo journal; the host can wrap calls in a document transaction
// when it wants them journaled.
func (g *Group) Set(key string, value any) {
	if g.set(key, value) {
		g.ContentsChanged(true)
	}
}

// SetQuiet writes an attribute without any contents-changed notification.
func (g *Group) SetQuiet(key string, value any) {
	g.set(key, value)
}

func (g *Group) set(key string, value any) bool {
	if g.deleted {
		g.reg.log.Debug("ignoring attribute write on retired group",
			zap.Int("group", g.ID()), zap.String("key", key))
		return false
	}
	if !attrKeyPattern.MatchString(key) {
		g.reg.log.Debug("ignoring invalid attribute key",
			zap.Int("group", g.ID()), zap.String("key", key))
		return false
	}
	// single-element array wrapping keeps every JSON value, scalars
	// included, a valid attribute payload
	raw, err := json.Marshal([]any{value})
	if err != nil {
		g.reg.log.Debug("ignoring unencodable attribute value",
			zap.Int("group", g.ID()), zap.String("key", key), zap.Error(err))
		return false
	}
	g.reg.doc.SetAttr(g.open, dataPrefix+key, string(raw))
	if o, ok := decorationKeys[key]; ok && g.reg.renderer != nil {
		g.reg.renderer.UpdateMarker(g, o)
	}
	return true
}

// Clear removes an attribute and notifies this group and its ancestors.
func (g *Group) Clear(key string) {
	if g.deleted || !attrKeyPattern.MatchString(key) {
		return
	}
	if g.open.SelectAttr(dataPrefix+key) == nil {
		return
	}
	g.reg.doc.RemoveAttr(g.open, dataPrefix+key)
	if o, ok := decorationKeys[key]; ok && g.reg.renderer != nil {
		g.reg.renderer.UpdateMarker(g, o)
	}
	g.ContentsChanged(true)
}

// Keys lists the attribute keys present in the bag, sorted.
func (g *Group) Keys() []string {
	var out []string
	for _, a := range g.open.Attr {
		key := strings.TrimPrefix(a.Key, dataPrefix)
		if key != a.Key && attrKeyPattern.MatchString(key) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Attributes returns the whole bag as a map.
func (g *Group) Attributes() map[string]any {
	out := make(map[string]any)
	for _, key := range g.Keys() {
		if v, ok := g.Get(key); ok {
			out[key] = v
		}
	}
	return out
}

// InteriorRange spans the content strictly between the markers. ok is false
// when the group is retired or its markers are detached mid-edit.
func (g *Group) InteriorRange() (document.Range, bool) {
	if !g.Attached() {
		return document.Range{}, false
	}
	return document.Range{
		Start: document.After(g.open),
		End:   document.Before(g.close),
	}, true
}

// OuterRange spans the region including both markers.
func (g *Group) OuterRange() (document.Range, bool) {
	if !g.Attached() {
		return document.Range{}, false
	}
	return document.Range{
		Start: document.Before(g.open),
		End:   document.After(g.close),
	}, true
}

// RangeBefore spans the gap between this group and whatever precedes it:
// the previous sibling's close marker, the parent's open marker or the
// document start.
func (g *Group) RangeBefore() (document.Range, bool) {
	if !g.Attached() {
		return document.Range{}, false
	}
	start := document.Position{Container: g.reg.doc.Body()}
	if prev := g.PreviousSibling(); prev != nil && prev.Attached() {
		start = document.After(prev.close)
	} else if g.parent != nil && g.parent.Attached() {
		start = document.After(g.parent.open)
	}
	return document.Range{Start: start, End: document.Before(g.open)}, true
}

// RangeAfter spans the gap between this group and whatever follows it: the
// next sibling's open marker, the parent's close marker or the document end.
func (g *Group) RangeAfter() (document.Range, bool) {
	if !g.Attached() {
		return document.Range{}, false
	}
	body := g.reg.doc.Body()
	end := document.Position{Container: body, Offset: len(body.Child)}
	if next := g.NextSibling(); next != nil && next.Attached() {
		end = document.Before(next.open)
	} else if g.parent != nil && g.parent.Attached() {
		end = document.Before(g.parent.close)
	}
	return document.Range{Start: document.After(g.close), End: end}, true
}

// ContentNodes returns the top-level tokens between the markers, stepping
// around nested structure rather than into it.
func (g *Group) ContentNodes() []etree.Token {
	r, ok := g.InteriorRange()
	if !ok {
		return nil
	}
	return g.reg.doc.NodesBetween(r)
}

// Fragment returns a detached deep copy of the region's content.
func (g *Group) Fragment() []etree.Token {
	return document.CopyTokens(g.ContentNodes())
}

// Text returns the region's plain text.
func (g *Group) Text() string {
	var b strings.Builder
	for _, t := range g.ContentNodes() {
		b.WriteString(document.TokenText(t))
	}
	return b.String()
}

// InnerHTML serializes the region's content, markers excluded.
func (g *Group) InnerHTML() string {
	return document.SerializeTokens(g.ContentNodes())
}

// OuterHTML serializes the region including both markers.
func (g *Group) OuterHTML() string {
	r, ok := g.OuterRange()
	if !ok {
		return ""
	}
	return document.SerializeTokens(g.reg.doc.NodesBetween(r))
}

// ReplaceContents substitutes the region's content in one undoable edit.
func (g *Group) ReplaceContents(tokens []etree.Token) error {
	r, ok := g.InteriorRange()
	if !ok {
		return document.ErrDetached
	}
	return g.reg.doc.Transaction(func() error {
		if err := g.reg.doc.DeleteRange(r); err != nil {
			return err
		}
		for i, t := range tokens {
			at := document.Position{Container: g.open.Parent(), Offset: g.open.Index() + 1 + i}
			if err := g.reg.doc.InsertAt(at, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetText replaces the region's content with plain text.
func (g *Group) SetText(s string) error {
	return g.ReplaceContents([]etree.Token{etree.NewText(s)})
}

// Remove deletes the region, markers and content, as one undoable edit.
// Connections are severed first so counterparties do not keep dangling
// references; the scan triggered by the edit retires the group object.
func (g *Group) Remove() error {
	r, ok := g.OuterRange()
	if !ok {
		return document.ErrDetached
	}
	g.DisconnectAll()
	return g.reg.doc.DeleteRange(r)
}

// Ungroup deletes just the two markers, leaving the content in place, as one
// undoable edit.
func (g *Group) Ungroup() error {
	if !g.Attached() {
		return document.ErrDetached
	}
	g.DisconnectAll()
	return g.reg.doc.Transaction(func() error {
		if err := g.reg.doc.RemoveNode(g.close); err != nil {
			return err
		}
		return g.reg.doc.RemoveNode(g.open)
	})
}

// Snapshot is a JSON-friendly description of a group for debugging and
// external inspection.
type Snapshot struct {
	ID         int            `json:"id"`
	Type       string         `json:"type"`
	Deleted    bool           `json:"deleted"`
	Text       string         `json:"text,omitempty"`
	HTML       string         `json:"html,omitempty"`
	Parent     int            `json:"parent"`
	Children   []int          `json:"children"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Snapshot captures the group's current state. Parent is -1 for top-level
// and retired groups.
func (g *Group) Snapshot() Snapshot {
	s := Snapshot{
		ID:      g.ID(),
		Type:    g.typeName,
		Deleted: g.deleted,
		Parent:  -1,
	}
	if g.parent != nil {
		s.Parent = g.parent.ID()
	}
	s.Children = make([]int, 0, len(g.children))
	for _, c := range g.children {
		s.Children = append(s.Children, c.ID())
	}
	if !g.deleted {
		s.Text = g.Text()
		s.HTML = g.InnerHTML()
		if attrs := g.Attributes(); len(attrs) > 0 {
			s.Attributes = attrs
		}
	}
	return s
}
