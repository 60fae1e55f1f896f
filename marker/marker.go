// Package marker encodes and decodes the paired boundary elements
// ("groupers") that delimit a group in document content. Codec only: pure
// functions over the marker's identifying attributes, no registry state.
package marker

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Orientation distinguishes the two ends of a marker pair.
type Orientation int

const (
	Open Orientation = iota
	Close
)

func (o Orientation) String() string {
	if o == Close {
		return "close"
	}
	return "open"
}

// Opposite returns the other end of the pair.
func (o Orientation) Opposite() Orientation {
	if o == Close {
		return Open
	}
	return Close
}

const (
	// Tag is the element name used for markers; they behave as inline
	// replaced content in the host editor.
	Tag = "img"
	// StyleClass marks an element as grouper content. Anything carrying it
	// that fails to decode is garbage left behind by uncontrolled edits and
	// gets deleted during scanning.
	StyleClass = "grouper"
	// hiddenClass suppresses the marker's visual.
	hiddenClass = "hide"
)

var (
	idPattern       = regexp.MustCompile(`^(open|close)([0-9]+)$`)
	typeNamePattern = regexp.MustCompile(`[^A-Za-z_-]`)
)

// SanitizeTypeName strips every character outside [A-Za-z_-]. Stripping,
// not rejection: a caller-supplied name always yields a usable (possibly
// empty) identifier and the caller decides whether empty is acceptable.
func SanitizeTypeName(name string) string {
	return typeNamePattern.ReplaceAllString(name, "")
}

// Decoded is the result of parsing a marker element. Type is empty when the
// element lacks the expected class tag; callers must tolerate that.
type Decoded struct {
	Orientation Orientation
	ID          int
	Type        string
}

// Encode builds a marker element for one end of a group of the given type.
// id must be nonnegative; typeName is sanitized, not validated.
func Encode(typeName string, o Orientation, id int, hidden bool, imageRef string) *etree.Element {
	el := etree.NewElement(Tag)
	el.CreateAttr("id", o.String()+strconv.Itoa(id))
	classes := []string{StyleClass, SanitizeTypeName(typeName)}
	if hidden {
		classes = append(classes, hiddenClass)
	}
	el.CreateAttr("class", strings.Join(classes, " "))
	if imageRef != "" {
		el.CreateAttr("src", imageRef)
	}
	el.CreateAttr("alt", "")
	return el
}

// Decode parses a marker element back into orientation, id and type.
// Returns nil unless the id attribute matches (open|close)<digits>.
func Decode(el *etree.Element) *Decoded {
	if el == nil {
		return nil
	}
	m := idPattern.FindStringSubmatch(el.SelectAttrValue("id", ""))
	if m == nil {
		return nil
	}
	id, err := strconv.Atoi(m[2])
	if err != nil || id < 0 {
		// digits that overflow int; nobody has that many groups
		return nil
	}
	d := &Decoded{ID: id}
	if m[1] == "close" {
		d.Orientation = Close
	}
	d.Type = typeOf(el)
	return d
}

// LooksLikeMarker reports whether an element carries grouper styling,
// decodable or not. The scanner deletes styled elements that fail Decode.
func LooksLikeMarker(el *etree.Element) bool {
	for _, c := range strings.Fields(el.SelectAttrValue("class", "")) {
		if c == StyleClass {
			return true
		}
	}
	return false
}

// Hidden reports whether the marker carries the visibility-suppressing
// class.
func Hidden(el *etree.Element) bool {
	for _, c := range strings.Fields(el.SelectAttrValue("class", "")) {
		if c == hiddenClass {
			return true
		}
	}
	return false
}

// SetHidden flips the marker's visibility class in place.
func SetHidden(el *etree.Element, hidden bool) {
	classes := strings.Fields(el.SelectAttrValue("class", ""))
	out := classes[:0]
	for _, c := range classes {
		if c != hiddenClass {
			out = append(out, c)
		}
	}
	if hidden {
		out = append(out, hiddenClass)
	}
	el.CreateAttr("class", strings.Join(out, " "))
}

// SetID rewrites the marker's identifier keeping its orientation. Used by
// the scanner when renumbering collided ids.
func SetID(el *etree.Element, o Orientation, id int) {
	el.CreateAttr("id", o.String()+strconv.Itoa(id))
}

// typeOf extracts the type class: the first class token that is neither the
// grouper marking nor the visibility flag.
func typeOf(el *etree.Element) string {
	for _, c := range strings.Fields(el.SelectAttrValue("class", "")) {
		if c != StyleClass && c != hiddenClass {
			return c
		}
	}
	return ""
}
