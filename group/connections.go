package group

import (
	"regexp"

	"go.uber.org/zap"
)

// Connection is a tagged directed link between two groups, identified by
// their numeric ids.
type Connection struct {
	From int
	To   int
	Tag  string
}

// connectionsKey holds every triple touching the group, incoming and
// outgoing alike. Each triple lives in both endpoints' bags so either side
// can enumerate its links without consulting the other.
const connectionsKey = "connections"

// connections loads the stored triples, dropping anything malformed.
func (g *Group) connections() []Connection {
	v, ok := g.Get(connectionsKey)
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Connection, 0, len(list))
	for _, item := range list {
		triple, ok := item.([]any)
		if !ok || len(triple) != 3 {
			continue
		}
		from, okF := triple[0].(float64)
		to, okT := triple[1].(float64)
		tag, okG := triple[2].(string)
		if !okF || !okT || !okG {
			continue
		}
		out = append(out, Connection{From: int(from), To: int(to), Tag: tag})
	}
	return out
}

func (g *Group) storeConnections(list []Connection) {
	if len(list) == 0 {
		g.reg.doc.RemoveAttr(g.open, dataPrefix+connectionsKey)
		return
	}
	triples := make([]any, 0, len(list))
	for _, c := range list {
		triples = append(triples, []any{c.From, c.To, c.Tag})
	}
	g.SetQuiet(connectionsKey, triples)
}

// Connect records a tagged link from this group to another. Idempotent: an
// identical triple is stored once. Both endpoints get the triple so the link
// survives either side being serialized independently.
func (g *Group) Connect(other *Group, tag string) {
	if other == nil || g.deleted || other.Deleted() {
		return
	}
	c := Connection{From: g.ID(), To: other.ID(), Tag: tag}
	if c.From < 0 || c.To < 0 {
		return
	}
	g.addConnection(c)
	other.addConnection(c)
	g.reg.log.Debug("connected groups",
		zap.Int("from", c.From), zap.Int("to", c.To), zap.String("tag", tag))
}

func (g *Group) addConnection(c Connection) {
	list := g.connections()
	for _, have := range list {
		if have == c {
			return
		}
	}
	g.storeConnections(append(list, c))
	g.ContentsChanged(false)
}

// Disconnect removes the exact triple from both endpoints.
func (g *Group) Disconnect(other *Group, tag string) {
	if other == nil {
		return
	}
	c := Connection{From: g.ID(), To: other.ID(), Tag: tag}
	g.dropConnections(func(have Connection) bool { return have == c })
	other.dropConnections(func(have Connection) bool { return have == c })
}

// DisconnectMatching removes every link between the two groups, in either
// direction, whose tag matches the pattern. A nil pattern matches any tag.
func (g *Group) DisconnectMatching(other *Group, tag *regexp.Regexp) {
	if other == nil {
		return
	}
	a, b := g.ID(), other.ID()
	match := func(have Connection) bool {
		between := (have.From == a && have.To == b) || (have.From == b && have.To == a)
		return between && (tag == nil || tag.MatchString(have.Tag))
	}
	g.dropConnections(match)
	other.dropConnections(match)
}

// DisconnectAll severs every link touching this group, updating each
// counterparty's bag as well. Called before the group is removed.
func (g *Group) DisconnectAll() {
	id := g.ID()
	for _, c := range g.connections() {
		otherID := c.To
		if otherID == id {
			otherID = c.From
		}
		if other := g.reg.GroupByID(otherID); other != nil && other != g {
			other.dropConnections(func(have Connection) bool { return have == c })
		}
	}
	g.dropConnections(func(Connection) bool { return true })
}

func (g *Group) dropConnections(match func(Connection) bool) {
	list := g.connections()
	kept := list[:0]
	for _, c := range list {
		if !match(c) {
			kept = append(kept, c)
		}
	}
	if len(kept) != len(list) {
		g.storeConnections(kept)
		g.ContentsChanged(false)
	}
}

// ConnectionsOut returns the stored triples originating at this group.
func (g *Group) ConnectionsOut() []Connection {
	id := g.ID()
	var out []Connection
	for _, c := range g.connections() {
		if c.From == id {
			out = append(out, c)
		}
	}
	return out
}

// ConnectionsIn returns the stored triples terminating at this group.
func (g *Group) ConnectionsIn() []Connection {
	id := g.ID()
	var out []Connection
	for _, c := range g.connections() {
		if c.To == id {
			out = append(out, c)
		}
	}
	return out
}

// VisibleConnections returns the triples the group's type wants drawn,
// defaulting to everything stored.
func (g *Group) VisibleConnections() []Connection {
	if t := g.Type(); t != nil && t.Connections != nil {
		return t.Connections(g)
	}
	return g.connections()
}

// rewriteConnectionIDs remaps one endpoint id in the group's own stored
// triples. The scanner applies it after renumbering a collided group.
func (g *Group) rewriteConnectionIDs(oldID, newID int) {
	list := g.connections()
	changed := false
	for i, c := range list {
		if c.From == oldID {
			list[i].From = newID
			changed = true
		}
		if c.To == oldID {
			list[i].To = newID
			changed = true
		}
	}
	if changed {
		g.storeConnections(list)
	}
}
