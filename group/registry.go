package group

import (
	"errors"
	"fmt"
	"sort"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"lwp/document"
	"lwp/marker"
)

// ErrBoundary is returned when a wrap request would cross an existing group
// boundary; honoring it would create a crossed pair the scanner repairs by
// deletion.
var ErrBoundary = errors.New("selection crosses a group boundary")

// MarkerRenderer supplies marker visuals. Implemented by the render package;
// nil is tolerated everywhere for headless use.
type MarkerRenderer interface {
	// UpdateMarker re-renders one end of a group after its decoration or
	// hover text changed.
	UpdateMarker(g *Group, which marker.Orientation)
	// MarkerImageRef returns the image reference to embed in a freshly
	// encoded marker of the given type.
	MarkerImageRef(typeName string, which marker.Orientation) string
}

type scanPhase int

const (
	phaseIdle scanPhase = iota
	phaseScanning
	phasePending
)

// Registry owns every group of one editor instance: the registered types,
// the id-to-group table, the top-level forest, the free-id pool and the scan
// state machine that keeps all of it consistent with the document.
//
// Like the document it serves, a Registry belongs to a single event loop and
// is not safe for concurrent use.
type Registry struct {
	doc      *document.Document
	log      *zap.Logger
	instance uuid.UUID

	types    map[string]*TypeDef
	groups   map[int]*Group
	topLevel []*Group
	pool     freeIDs

	renderer MarkerRenderer

	phase scanPhase
	locks int

	eligibility []func(bool)
}

// NewRegistry creates a registry bound to a document and subscribes it to
// the document's change, key and selection notifications.
func NewRegistry(doc *document.Document, log *zap.Logger) *Registry {
	r := &Registry{
		doc:    doc,
		log:    log,
		types:  make(map[string]*TypeDef),
		groups: make(map[int]*Group),
	}
	if id, err := uuid.NewV7(); err == nil {
		r.instance = id
	} else {
		r.instance = uuid.New()
	}
	doc.OnChange(func(c document.Change) {
		r.ScanRequested()
		r.RangeChanged(c.Affected)
	})
	doc.OnKeyUp(func(document.Key) {
		r.ScanRequested()
	})
	doc.OnSelectionChange(func(sel document.Range) {
		ok := r.CanWrap()
		for _, fn := range r.eligibility {
			fn(ok)
		}
	})
	// bind whatever groups the document already contains
	r.scan()
	return r
}

// Doc returns the document this registry scans.
func (r *Registry) Doc() *document.Document {
	return r.doc
}

// Log returns the registry's logger, for collaborating packages.
func (r *Registry) Log() *zap.Logger {
	return r.log
}

// InstanceID identifies this registry instance, for cache partitioning and
// debug output.
func (r *Registry) InstanceID() uuid.UUID {
	return r.instance
}

// SetRenderer attaches the marker visual provider.
func (r *Registry) SetRenderer(mr MarkerRenderer) {
	r.renderer = mr
}

// AddType registers a group type. The name is sanitized; a name that
// sanitizes to nothing is silently ignored (nil return). Re-registering a
// name replaces the earlier definition.
func (r *Registry) AddType(def *TypeDef) *TypeDef {
	name := marker.SanitizeTypeName(def.Name)
	if name == "" {
		r.log.Warn("ignoring group type with unusable name", zap.String("name", def.Name))
		return nil
	}
	if name != def.Name {
		r.log.Debug("sanitized group type name",
			zap.String("from", def.Name), zap.String("to", name))
	}
	def.Name = name
	if _, dup := r.types[name]; dup {
		r.log.Warn("replacing group type", zap.String("name", name))
	}
	r.types[name] = def
	return def
}

// TypeByName resolves a registered type, nil when unknown.
func (r *Registry) TypeByName(name string) *TypeDef {
	return r.types[marker.SanitizeTypeName(name)]
}

// Types lists registered types in natural name order, so "type2" sorts
// before "type10" in host menus.
func (r *Registry) Types() []*TypeDef {
	out := make([]*TypeDef, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return natural.Less(out[i].Name, out[j].Name) })
	return out
}

// InsertionCommands derives the host UI affordances for wrapping the current
// selection, one per type that asked for a surface.
func (r *Registry) InsertionCommands() []Command {
	var out []Command
	for _, t := range r.Types() {
		if !t.AddMenuItem && !t.AddToolbarButton {
			continue
		}
		label := t.DisplayName
		if label == "" {
			label = t.Name
		}
		out = append(out, Command{Type: t.Name, Label: label, Toolbar: t.AddToolbarButton})
	}
	return out
}

// OnWrapEligibility subscribes to changes in whether the current selection
// can be wrapped; hosts use it to enable and disable insertion commands.
func (r *Registry) OnWrapEligibility(fn func(bool)) {
	r.eligibility = append(r.eligibility, fn)
}

// CanWrap reports whether the current selection can be wrapped in a new
// group: both endpoints must sit inside the same (possibly absent) group.
func (r *Registry) CanWrap() bool {
	sel := r.doc.Selection()
	if !r.doc.Attached(sel.Start.Container) || !r.doc.Attached(sel.End.Container) {
		return false
	}
	return r.GroupAtCursor(sel.Start) == r.GroupAtCursor(sel.End)
}

// WrapSelection wraps the current selection in a new group of the given
// type, allocating the smallest free id. New markers match the visibility of
// markers already in the document. Returns the group bound by the scan that
// the insertion triggers.
func (r *Registry) WrapSelection(typeName string) (*Group, error) {
	def := r.TypeByName(typeName)
	if def == nil {
		return nil, fmt.Errorf("unknown group type %q", typeName)
	}
	if !r.CanWrap() {
		return nil, ErrBoundary
	}
	sel := r.doc.Selection()
	id := r.pool.next()
	hidden := r.prevailingHidden()
	openEl := marker.Encode(def.Name, marker.Open, id, hidden, r.imageRef(def, marker.Open))
	closeEl := marker.Encode(def.Name, marker.Close, id, hidden, r.imageRef(def, marker.Close))

	if sel.Start.Container == sel.End.Container {
		c := sel.Start.Container
		lo, hi := sel.Start.Offset, sel.End.Offset
		if lo < 0 {
			lo = 0
		}
		if hi > len(c.Child) {
			hi = len(c.Child)
		}
		inner := make([]etree.Token, hi-lo)
		copy(inner, c.Child[lo:hi])
		tokens := append([]etree.Token{openEl}, inner...)
		tokens = append(tokens, closeEl)
		if err := r.doc.ReplaceRange(sel, tokens); err != nil {
			return nil, err
		}
	} else {
		// two separate insertions must read as one: hold the scan lock so
		// the close-before-open intermediate state is never scanned
		r.Lock()
		err := r.doc.InsertAt(sel.End, closeEl)
		if err == nil {
			err = r.doc.InsertAt(sel.Start, openEl)
		}
		r.Unlock()
		if err != nil {
			return nil, err
		}
	}
	g := r.GroupForMarker(openEl)
	if g == nil {
		return nil, errors.New("wrapped group did not survive scanning")
	}
	return g, nil
}

// prevailingHidden reports the visibility new markers should adopt: whatever
// the first marker already in the document uses.
func (r *Registry) prevailingHidden() bool {
	for _, el := range r.doc.Elements() {
		if marker.Decode(el) != nil {
			return marker.Hidden(el)
		}
	}
	return false
}

func (r *Registry) imageRef(def *TypeDef, o marker.Orientation) string {
	if o == marker.Open && def.OpenImageRef != "" {
		return def.OpenImageRef
	}
	if o == marker.Close && def.CloseImageRef != "" {
		return def.CloseImageRef
	}
	if r.renderer != nil {
		return r.renderer.MarkerImageRef(def.Name, o)
	}
	return ""
}

// NextFreeID removes and returns the smallest free identifier.
func (r *Registry) NextFreeID() int {
	return r.pool.next()
}

// AddFreeID returns an identifier to the pool.
func (r *Registry) AddFreeID(id int) {
	r.pool.free(id)
}

// SetUsedID forces an identifier out of the pool.
func (r *Registry) SetUsedID(id int) {
	r.pool.markUsed(id)
}

// GroupByID resolves a live group by identifier.
func (r *Registry) GroupByID(id int) *Group {
	return r.groups[id]
}

// TopLevel returns the top-level groups in document order.
func (r *Registry) TopLevel() []*Group {
	return r.topLevel
}

// Groups returns every live group, in document order of their open markers.
func (r *Registry) Groups() []*Group {
	var out []*Group
	var walk func(gs []*Group)
	walk = func(gs []*Group) {
		for _, g := range gs {
			out = append(out, g)
			walk(g.children)
		}
	}
	walk(r.topLevel)
	return out
}

// orderedMarkers returns every decodable marker element in document order.
func (r *Registry) orderedMarkers() []*etree.Element {
	var out []*etree.Element
	for _, el := range r.doc.Elements() {
		if marker.Decode(el) != nil {
			out = append(out, el)
		}
	}
	return out
}

// GroupForMarker resolves a marker element to its group, nil when the
// element is not one of a live group's two markers.
func (r *Registry) GroupForMarker(el *etree.Element) *Group {
	dec := marker.Decode(el)
	if dec == nil {
		return nil
	}
	g := r.groups[dec.ID]
	if g == nil || (g.open != el && g.close != el) {
		return nil
	}
	return g
}

// GroupForNode returns the innermost group containing a token. Resolved by
// binary search over the ordered markers: the nearest preceding open marker
// means "inside that group", a close marker means "after it, so inside its
// parent".
func (r *Registry) GroupForNode(t etree.Token) *Group {
	if el, ok := t.(*etree.Element); ok {
		if g := r.GroupForMarker(el); g != nil {
			return g
		}
	}
	return r.resolveAt(document.Before(t))
}

// GroupAtCursor returns the innermost group containing a position.
func (r *Registry) GroupAtCursor(pos document.Position) *Group {
	return r.resolveAt(pos)
}

func (r *Registry) resolveAt(pos document.Position) *Group {
	markers := r.orderedMarkers()
	// rightmost marker strictly before pos
	idx := sort.Search(len(markers), func(i int) bool {
		return r.doc.ComparePositions(document.Before(markers[i]), pos) >= 0
	}) - 1
	if idx < 0 {
		return nil
	}
	dec := marker.Decode(markers[idx])
	g := r.groups[dec.ID]
	if g == nil {
		return nil
	}
	if dec.Orientation == marker.Open {
		return g
	}
	return g.parent
}

// GroupForSelection returns the innermost group containing the whole range,
// nil when only the document itself does.
func (r *Registry) GroupForSelection(rng document.Range) *Group {
	a := r.GroupAtCursor(rng.Start)
	b := r.GroupAtCursor(rng.End)
	if a == nil || b == nil {
		return nil
	}
	inA := make(map[*Group]bool)
	for _, g := range a.Ancestors() {
		inA[g] = true
	}
	for _, g := range b.Ancestors() {
		if inA[g] {
			return g
		}
	}
	return nil
}

// GroupsTouchingRange returns every group whose region intersects the range,
// descendants before ancestors. Single pass over the ordered markers with a
// stack: a close marker inside the range reports its group immediately,
// groups still open when the range ends unwind innermost first.
func (r *Registry) GroupsTouchingRange(rng document.Range) []*Group {
	var (
		result []*Group
		open   []*Group
	)
	for _, m := range r.orderedMarkers() {
		if r.doc.ComparePositions(document.Before(m), rng.End) >= 0 {
			break
		}
		g := r.GroupForMarker(m)
		if g == nil {
			continue
		}
		if marker.Decode(m).Orientation == marker.Open {
			open = append(open, g)
			continue
		}
		if len(open) > 0 && open[len(open)-1] == g {
			open = open[:len(open)-1]
		}
		// the whole region precedes the range unless its close reaches it
		if r.doc.ComparePositions(document.After(m), rng.Start) >= 0 {
			result = append(result, g)
		}
	}
	for i := len(open) - 1; i >= 0; i-- {
		result = append(result, open[i])
	}
	return result
}

// RangeChanged notifies every group touching the edited range that its
// contents may have changed. Groups hear about it individually; no ancestor
// propagation on top, since enclosing groups touching the range are already
// in the list.
func (r *Registry) RangeChanged(rng document.Range) {
	for _, g := range r.GroupsTouchingRange(rng) {
		g.ContentsChanged(false)
	}
}

// MarkerClicked routes a pointer gesture on a marker element to the owning
// group's type hook.
func (r *Registry) MarkerClicked(el *etree.Element, kind ClickKind) {
	g := r.GroupForMarker(el)
	if g == nil {
		return
	}
	which := marker.Open
	if g.close == el {
		which = marker.Close
	}
	if t := g.Type(); t != nil && t.Clicked != nil {
		t.Clicked(g, kind, which)
	}
}

// RequestConnection asks the source group's type to establish a connection
// to the target. The target's type must allow incoming connections.
func (r *Registry) RequestConnection(from, to *Group) {
	if from == nil || to == nil || from == to {
		return
	}
	if tt := to.Type(); tt == nil || !tt.AllowsConnections {
		r.log.Debug("connection target does not accept connections",
			zap.Int("to", to.ID()))
		return
	}
	if ft := from.Type(); ft != nil && ft.ConnectionRequest != nil {
		ft.ConnectionRequest(from, to)
		return
	}
	from.Connect(to, "")
}

// Lock suspends scanning. Calls nest; scan requests arriving while locked
// are absorbed and the final Unlock runs exactly one scan.
func (r *Registry) Lock() {
	r.locks++
}

// Unlock releases one lock level; releasing the last level scans once.
func (r *Registry) Unlock() {
	if r.locks == 0 {
		return
	}
	r.locks--
	if r.locks == 0 {
		r.scan()
	}
}

// Locked reports whether scanning is currently suspended.
func (r *Registry) Locked() bool {
	return r.locks > 0
}

// ScanRequested asks for a rescan. Idle: the scan runs now. Already
// scanning (a hook edited the document mid-pass): one follow-up pass is
// scheduled, further requests coalesce into it. Locked: dropped, the unlock
// will scan.
func (r *Registry) ScanRequested() {
	if r.locks > 0 {
		return
	}
	switch r.phase {
	case phaseScanning:
		r.phase = phasePending
	case phasePending:
		// coalesced
	default:
		r.scan()
	}
}

func (r *Registry) scan() {
	if r.locks > 0 {
		return
	}
	r.phase = phaseScanning
	for {
		r.scanOnce()
		if r.phase != phasePending {
			break
		}
		r.phase = phaseScanning
	}
	r.phase = phaseIdle
}
