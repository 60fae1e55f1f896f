package debug

import (
	"lwp/group"
)

// DumpForest renders the registry's group forest as an indented text tree,
// one line per group followed by its attributes and outgoing connections.
// Used by debug reports and the scan subcommand.
func DumpForest(reg *group.Registry) string {
	tw := new(TreeWriter)
	for _, g := range reg.TopLevel() {
		dumpGroup(tw, g, 0)
	}
	return tw.String()
}

func dumpGroup(tw *TreeWriter, g *group.Group, depth int) {
	tw.Line(depth, "group %d type=%s", g.ID(), g.TypeName())
	for _, k := range g.Keys() {
		if k == "connections" {
			continue
		}
		if v, ok := g.Get(k); ok {
			tw.Line(depth+1, "@%s = %v", k, v)
		}
	}
	for _, c := range g.ConnectionsOut() {
		tw.Line(depth+1, "-> %d (%s)", c.To, c.Tag)
	}
	tw.TextBlock(depth+1, "text", g.Text())
	for _, child := range g.Children() {
		dumpGroup(tw, child, depth+1)
	}
}
