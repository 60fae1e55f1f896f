// Package group maintains the nested hierarchy of document regions
// delimited by paired grouper markers: the Group object itself, the
// registry that owns all groups for one editor instance, and the scanner
// that re-derives the forest from raw marker positions after every edit.
package group

import (
	"lwp/marker"
)

// ClickKind distinguishes pointer gestures reported on a marker.
type ClickKind int

const (
	ClickSingle ClickKind = iota
	ClickDouble
	ClickContext
)

// MenuItem is a UI affordance description handed back to the host's menu
// surfaces. The engine never renders menus itself.
type MenuItem struct {
	Label  string
	Action func()
}

// StyleContext receives outline/fill styling decisions from type hooks
// during drawing. Implemented by the render package.
type StyleContext interface {
	SetStroke(color string)
	SetStrokeWidth(w float64)
	SetFill(color string)
}

// TypeDef is the capability bundle registered for one group type. All hooks
// are optional; the engine checks for nil before calling.
type TypeDef struct {
	// Name is sanitized on registration: letters, hyphen and underscore
	// only, everything else stripped.
	Name        string
	DisplayName string

	// OpenImageRef/CloseImageRef override rendered glyphs with externally
	// supplied image references. Per-type SVG glyph templates are the
	// renderer's business, registered with it directly.
	OpenImageRef  string
	CloseImageRef string

	// OutlineStyle and FillStyle are CSS-like declaration strings used when
	// the corresponding hook is absent, e.g. "stroke:#806;stroke-width:2".
	OutlineStyle string
	FillStyle    string

	// AddMenuItem and AddToolbarButton request host UI affordances for
	// wrapping the current selection in a group of this type.
	AddMenuItem      bool
	AddToolbarButton bool

	// AllowsConnections gates connection creation targeting this type.
	AllowsConnections bool

	ContentsChanged   func(g *Group, firstTime bool)
	Deleted           func(g *Group)
	Clicked           func(g *Group, kind ClickKind, which marker.Orientation)
	ConnectionRequest func(from, to *Group)
	ContextMenuItems  func(g *Group) []MenuItem
	TagMenuItems      func(g *Group) []MenuItem
	TagContents       func(g *Group) string
	// Connections selects which connections to visualize when this group
	// is active. Nil means all stored connections.
	Connections     func(g *Group) []Connection
	SetOutlineStyle func(g *Group, ctx StyleContext)
	SetFillStyle    func(g *Group, ctx StyleContext)
}

// Command describes one "wrap selection in a new group" insertion
// affordance derived from a registered type.
type Command struct {
	Type    string
	Label   string
	Toolbar bool
}
