package render

import (
	"errors"
	"sort"

	"lwp/document"
	"lwp/group"
)

// Zone is the on-screen shape of a region: one rectangle when the whole
// region sits on a single display line, a stack of per-line rectangles
// otherwise.
type Zone struct {
	Rects []document.Rect
}

// SingleLine reports whether the region fits one display line.
func (z Zone) SingleLine() bool {
	return len(z.Rects) == 1
}

// Bounds returns the union of the zone's rectangles.
func (z Zone) Bounds() document.Rect {
	var out document.Rect
	for _, r := range z.Rects {
		out = out.Union(r)
	}
	return out
}

// GroupZone measures a group's on-screen shape. It propagates ErrNotReady
// untouched while marker images are still loading; callers retry after a
// short delay. Content tokens that fail to measure are skipped, the markers
// themselves must measure.
func GroupZone(m document.Measurer, g *group.Group) (Zone, error) {
	openR, err := m.TokenRect(g.OpenMarker())
	if err != nil {
		return Zone{}, err
	}
	closeR, err := m.TokenRect(g.CloseMarker())
	if err != nil {
		return Zone{}, err
	}
	if openR.Y == closeR.Y {
		r := openR.Union(closeR)
		return Zone{Rects: []document.Rect{r}}, nil
	}
	// multi-line: bucket every measurable token by its line
	lines := map[float64]document.Rect{openR.Y: openR, closeR.Y: closeR}
	merge := func(r document.Rect) {
		lines[r.Y] = lines[r.Y].Union(r)
	}
	for _, tok := range g.ContentNodes() {
		r, err := m.TokenRect(tok)
		if errors.Is(err, document.ErrNotReady) {
			return Zone{}, err
		}
		if err != nil {
			continue
		}
		merge(r)
	}
	ys := make([]float64, 0, len(lines))
	for y := range lines {
		ys = append(ys, y)
	}
	sort.Float64s(ys)
	z := Zone{Rects: make([]document.Rect, 0, len(ys))}
	for _, y := range ys {
		z.Rects = append(z.Rects, lines[y])
	}
	return z, nil
}

// GroupBounds measures the single rectangle covering the whole region.
func GroupBounds(m document.Measurer, g *group.Group) (document.Rect, error) {
	z, err := GroupZone(m, g)
	if err != nil {
		return document.Rect{}, err
	}
	return z.Bounds(), nil
}
