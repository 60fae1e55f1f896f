package state

import (
	"fmt"

	"lwp/document"
	"lwp/group"
	"lwp/marker"
	"lwp/render"
)

// Engine bundles the grouping machinery assembled around a single document.
type Engine struct {
	Doc    *document.Document
	Reg    *group.Registry
	Images *render.ImageCache
}

// BuildEngine wires a registry and a marker image cache around doc using the
// group types declared in configuration.
func (e *LocalEnv) BuildEngine(doc *document.Document) (*Engine, error) {
	cache := render.NewImageCache(e.Log, e.Cfg.Engine.Markers.Size)

	reg := group.NewRegistry(doc, e.Log)
	reg.SetRenderer(cache)

	for _, tc := range e.Cfg.Engine.Types {
		if len(tc.ImageTemplate) > 0 {
			if err := cache.SetTemplate(marker.SanitizeTypeName(tc.Name), tc.ImageTemplate); err != nil {
				return nil, fmt.Errorf("bad marker image template for type %q: %w", tc.Name, err)
			}
		}
		reg.AddType(&group.TypeDef{
			Name:              tc.Name,
			DisplayName:       tc.DisplayName,
			OutlineStyle:      tc.OutlineStyle,
			FillStyle:         tc.FillStyle,
			AddMenuItem:       tc.AddMenuItem,
			AddToolbarButton:  tc.AddToolbarButton,
			AllowsConnections: tc.AllowsConnections,
		})
	}

	if e.Cfg.Engine.Markers.Hidden {
		for _, g := range reg.Groups() {
			g.SetHidden(true)
		}
	}
	return &Engine{Doc: doc, Reg: reg, Images: cache}, nil
}

// NewOverlay builds a drawing overlay over the engine's registry using the
// host-provided geometry measurer, with configured appearance values applied
// on top of the overlay defaults.
func (e *LocalEnv) NewOverlay(eng *Engine, m document.Measurer) *render.Overlay {
	ov := render.NewOverlay(eng.Reg, m)
	c := e.Cfg.Overlay
	if c.OutlinePadding > 0 {
		ov.OutlinePad = c.OutlinePadding
	}
	if c.LabelHeight > 0 {
		ov.LabelHeight = c.LabelHeight
	}
	if c.ArrowLift > 0 {
		ov.ArrowLift = c.ArrowLift
	}
	return ov
}
