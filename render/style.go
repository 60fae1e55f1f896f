// Package render turns the group forest into on-screen decoration: marker
// images, region outlines, tag labels and connection arrows. It draws onto
// an abstract canvas and measures through an abstract measurer, so the same
// code serves the browser host and headless tests.
package render

import (
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// Style is the resolved visual style for one drawing primitive.
type Style struct {
	Stroke      string
	StrokeWidth float64
	Fill        string
	Opacity     float64
}

// DefaultOutline is used for group types that specify nothing.
var DefaultOutline = Style{Stroke: "#806", StrokeWidth: 1.5, Opacity: 1}

// SetStroke implements the style hook contract.
func (s *Style) SetStroke(color string) { s.Stroke = color }

// SetStrokeWidth implements the style hook contract.
func (s *Style) SetStrokeWidth(w float64) { s.StrokeWidth = w }

// SetFill implements the style hook contract.
func (s *Style) SetFill(color string) { s.Fill = color }

// ParseStyle reads an inline CSS declaration list ("stroke:#f00;
// stroke-width:2px") into a Style. Unknown properties are ignored, malformed
// input yields whatever parsed before the damage.
func ParseStyle(decls string) Style {
	s := Style{StrokeWidth: 1, Opacity: 1}
	if decls == "" {
		return s
	}
	p := css.NewParser(parse.NewInputString(decls), true)
	for {
		gt, _, data := p.Next()
		if gt == css.ErrorGrammar {
			break
		}
		if gt != css.DeclarationGrammar {
			continue
		}
		var b strings.Builder
		for _, tok := range p.Values() {
			b.Write(tok.Data)
		}
		val := strings.TrimSpace(b.String())
		switch strings.ToLower(string(data)) {
		case "stroke", "border-color", "color":
			s.Stroke = val
		case "fill", "background-color":
			s.Fill = val
		case "stroke-width", "border-width":
			if f, ok := parseLength(val); ok {
				s.StrokeWidth = f
			}
		case "opacity":
			if f, err := strconv.ParseFloat(val, 64); err == nil && f >= 0 && f <= 1 {
				s.Opacity = f
			}
		}
	}
	return s
}

func parseLength(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
