// Package debug renders engine state as human-readable text for debug
// reports and dump tools.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter accumulates an indented text rendering of a hierarchy, two
// spaces per level. The zero value is ready to use.
type TreeWriter struct {
	b strings.Builder
}

func (tw *TreeWriter) String() string {
	return tw.b.String()
}

// Line writes one indented formatted line.
func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(&tw.b, format, args...)
	tw.b.WriteByte('\n')
}

// TextBlock writes a labeled text value, quoted so embedded newlines and
// markup stay on one dump line. Empty values stay unquoted, keeping dumps of
// empty groups scannable.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.b.WriteString(label)
	tw.b.WriteString(": ")
	if value != "" {
		value = strconv.Quote(value)
	}
	tw.b.WriteString(value)
	tw.b.WriteByte('\n')
}

func (tw *TreeWriter) indent(depth int) {
	for range depth {
		tw.b.WriteString("  ")
	}
}
