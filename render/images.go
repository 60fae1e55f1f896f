package render

import (
	"fmt"
	"image"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/disintegration/imaging"
	"github.com/gosimple/slug"
	"github.com/h2non/filetype"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"lwp/group"
	"lwp/marker"
)

// default glyph: a rounded box holding the decoration text or a bracket
// matching the marker's end
const defaultMarkerSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="{{ .Size }}" height="{{ .Size }}" viewBox="0 0 {{ .Size }} {{ .Size }}">
  <rect x="1" y="1" width="{{ sub .Size 2 }}" height="{{ sub .Size 2 }}" rx="3" fill="#eef" stroke="#806"/>
  <text x="{{ div .Size 2 }}" y="{{ sub .Size 4 }}" font-size="{{ sub .Size 6 }}" text-anchor="middle" fill="#806">{{ if .Decoration }}{{ .Decoration }}{{ else }}{{ .Glyph }}{{ end }}</text>
</svg>`

type markerSpec struct {
	typeName    string
	orientation marker.Orientation
	decoration  string
}

// ImageCache renders and caches marker visuals. References are stable slugs
// derived from type, orientation and decoration, so a decoration change
// produces a new reference and stale entries simply stop being asked for.
//
// Rendering is deferred: handing out a reference only queues the work, the
// way a browser host loads images asynchronously. RenderQueued settles the
// queue; until then geometry depending on a queued image reports not ready.
type ImageCache struct {
	log  *zap.Logger
	size int

	templates map[string]*template.Template
	queue     map[string]markerSpec
	images    map[string]image.Image
	external  map[string][]byte
}

// NewImageCache creates a cache rendering size-by-size pixel markers.
func NewImageCache(log *zap.Logger, size int) *ImageCache {
	if size <= 0 {
		size = 16
	}
	return &ImageCache{
		log:       log,
		size:      size,
		templates: make(map[string]*template.Template),
		queue:     make(map[string]markerSpec),
		images:    make(map[string]image.Image),
		external:  make(map[string][]byte),
	}
}

// SetTemplate installs a type-specific SVG template. The template gets Size,
// Type, Orientation, Decoration and Glyph and the usual sprig helpers.
func (c *ImageCache) SetTemplate(typeName, text string) error {
	tmpl, err := template.New(typeName).Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("parsing marker template for %q: %w", typeName, err)
	}
	c.templates[typeName] = tmpl
	return nil
}

// AddImage stores externally supplied image bytes under a slugged name.
// Non-image payloads are rejected by content sniffing, not by extension.
func (c *ImageCache) AddImage(name string, data []byte) (string, error) {
	if !filetype.IsImage(data) {
		return "", fmt.Errorf("%q is not an image", name)
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return "", fmt.Errorf("sniffing %q: %w", name, err)
	}
	ref := "image:" + slug.Make(name)
	c.external[ref] = data
	c.log.Debug("stored external marker image",
		zap.String("ref", ref), zap.String("kind", kind.Extension))
	return ref, nil
}

// MarkerImageRef returns the reference for a plain marker of the type,
// queueing a render when the image does not exist yet.
func (c *ImageCache) MarkerImageRef(typeName string, which marker.Orientation) string {
	return c.ref(markerSpec{typeName: typeName, orientation: which})
}

// UpdateMarker rewrites one marker element's image reference and hover text
// after its decoration attributes changed.
func (c *ImageCache) UpdateMarker(g *group.Group, which marker.Orientation) {
	el := g.OpenMarker()
	decoKey, hoverKey := group.KeyOpenDecoration, group.KeyOpenHoverText
	if which == marker.Close {
		el = g.CloseMarker()
		decoKey, hoverKey = group.KeyCloseDecoration, group.KeyCloseHoverText
	}
	if el == nil {
		return
	}
	ref := c.ref(markerSpec{
		typeName:    g.TypeName(),
		orientation: which,
		decoration:  g.GetString(decoKey),
	})
	doc := g.Registry().Doc()
	doc.SetAttr(el, "src", ref)
	if hover := g.GetString(hoverKey); hover != "" {
		doc.SetAttr(el, "title", hover)
	} else {
		doc.RemoveAttr(el, "title")
	}
}

func (c *ImageCache) ref(spec markerSpec) string {
	name := spec.typeName + "-" + spec.orientation.String()
	if spec.decoration != "" {
		name += "-" + spec.decoration
	}
	ref := "marker:" + slug.Make(name)
	if _, done := c.images[ref]; !done {
		c.queue[ref] = spec
	}
	return ref
}

// Ready reports whether a reference resolves to a finished image.
func (c *ImageCache) Ready(ref string) bool {
	if _, ok := c.images[ref]; ok {
		return true
	}
	_, ok := c.external[ref]
	return ok
}

// Pending returns the references queued but not yet rendered.
func (c *ImageCache) Pending() []string {
	out := make([]string, 0, len(c.queue))
	for ref := range c.queue {
		out = append(out, ref)
	}
	return out
}

// RenderQueued renders everything queued. Failures are collected per
// reference; one bad template does not starve the rest.
func (c *ImageCache) RenderQueued() error {
	var errs error
	for ref, spec := range c.queue {
		img, err := c.render(spec)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rendering %s: %w", ref, err))
			delete(c.queue, ref)
			continue
		}
		c.images[ref] = img
		delete(c.queue, ref)
	}
	return errs
}

// Image returns a finished image by reference.
func (c *ImageCache) Image(ref string) (image.Image, bool) {
	img, ok := c.images[ref]
	return img, ok
}

func (c *ImageCache) render(spec markerSpec) (image.Image, error) {
	tmpl := c.templates[spec.typeName]
	if tmpl == nil {
		var err error
		if tmpl, err = template.New("marker").Funcs(sprig.FuncMap()).Parse(defaultMarkerSVG); err != nil {
			return nil, err
		}
	}
	// render at double size and downsample for cheap antialiasing
	scale := 2 * c.size
	glyph := "["
	if spec.orientation == marker.Close {
		glyph = "]"
	}
	var b strings.Builder
	err := tmpl.Execute(&b, map[string]any{
		"Size":        scale,
		"Type":        spec.typeName,
		"Orientation": spec.orientation.String(),
		"Decoration":  spec.decoration,
		"Glyph":       glyph,
	})
	if err != nil {
		return nil, fmt.Errorf("executing marker template: %w", err)
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(b.String()))
	if err != nil {
		return nil, fmt.Errorf("parsing marker svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(scale), float64(scale))
	rgba := image.NewRGBA(image.Rect(0, 0, scale, scale))
	icon.Draw(rasterx.NewDasher(scale, scale,
		rasterx.NewScannerGV(scale, scale, rgba, rgba.Bounds())), 1)
	return imaging.Resize(rgba, c.size, c.size, imaging.Lanczos), nil
}
