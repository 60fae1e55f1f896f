package group

import (
	"regexp"
	"testing"
)

func twoGroups(t *testing.T) (*Registry, *Group, *Group) {
	t.Helper()
	_, r := testDoc(t, "<body>"+pair(0, "test", "a")+pair(1, "test", "b")+"</body>")
	a, b := r.GroupByID(0), r.GroupByID(1)
	if a == nil || b == nil {
		t.Fatal("groups not bound")
	}
	return r, a, b
}

func TestConnectStoresTripleOnBothEndpoints(t *testing.T) {
	_, a, b := twoGroups(t)
	a.Connect(b, "implies")

	want := Connection{From: 0, To: 1, Tag: "implies"}
	if out := a.ConnectionsOut(); len(out) != 1 || out[0] != want {
		t.Fatalf("a.ConnectionsOut() = %v", out)
	}
	if in := b.ConnectionsIn(); len(in) != 1 || in[0] != want {
		t.Fatalf("b.ConnectionsIn() = %v", in)
	}
	// each endpoint sees the triple without consulting the other
	if _, ok := a.Get(connectionsKey); !ok {
		t.Fatal("triple missing from source bag")
	}
	if _, ok := b.Get(connectionsKey); !ok {
		t.Fatal("triple missing from target bag")
	}
	// direction matters for the filtered views
	if out := b.ConnectionsOut(); len(out) != 0 {
		t.Fatalf("b.ConnectionsOut() = %v, want empty", out)
	}
	if in := a.ConnectionsIn(); len(in) != 0 {
		t.Fatalf("a.ConnectionsIn() = %v, want empty", in)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	_, a, b := twoGroups(t)
	a.Connect(b, "implies")
	a.Connect(b, "implies")
	if out := a.ConnectionsOut(); len(out) != 1 {
		t.Fatalf("duplicate triple stored: %v", out)
	}
	// a different tag is a different connection
	a.Connect(b, "contradicts")
	if out := a.ConnectionsOut(); len(out) != 2 {
		t.Fatalf("second tag not stored: %v", out)
	}
}

func TestDisconnectEmptiesBothBags(t *testing.T) {
	_, a, b := twoGroups(t)
	a.Connect(b, "implies")
	a.Disconnect(b, "implies")
	if _, ok := a.Get(connectionsKey); ok {
		t.Fatal("source bag still holds connections")
	}
	if _, ok := b.Get(connectionsKey); ok {
		t.Fatal("target bag still holds connections")
	}
}

func TestDisconnectMatching(t *testing.T) {
	_, a, b := twoGroups(t)
	a.Connect(b, "step-1")
	a.Connect(b, "step-2")
	b.Connect(a, "step-3")
	a.Connect(b, "other")

	a.DisconnectMatching(b, regexp.MustCompile(`^step-`))
	if out := a.ConnectionsOut(); len(out) != 1 || out[0].Tag != "other" {
		t.Fatalf("a.ConnectionsOut() = %v, want only other", out)
	}
	if out := b.ConnectionsOut(); len(out) != 0 {
		t.Fatalf("b.ConnectionsOut() = %v, want empty", out)
	}
}

func TestRemoveSeversConnections(t *testing.T) {
	_, a, b := twoGroups(t)
	a.Connect(b, "implies")
	b.Connect(a, "replies")
	if err := b.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if out := a.ConnectionsOut(); len(out) != 0 {
		t.Fatalf("a still connected out after b removed: %v", out)
	}
	if in := a.ConnectionsIn(); len(in) != 0 {
		t.Fatalf("a still connected in after b removed: %v", in)
	}
}

func TestVisibleConnectionsHookOverride(t *testing.T) {
	r, a, b := twoGroups(t)
	a.Connect(b, "shown")
	a.Connect(b, "hidden")
	if got := a.VisibleConnections(); len(got) != 2 {
		t.Fatalf("default visible = %v, want all stored", got)
	}
	r.AddType(&TypeDef{Name: "test", Connections: func(g *Group) []Connection {
		var out []Connection
		for _, c := range g.ConnectionsOut() {
			if c.Tag == "shown" {
				out = append(out, c)
			}
		}
		return out
	}})
	got := a.VisibleConnections()
	if len(got) != 1 || got[0].Tag != "shown" {
		t.Fatalf("filtered visible = %v", got)
	}
}

func TestRequestConnectionGating(t *testing.T) {
	requested := 0
	r, a, b := twoGroups(t)
	// target type forbids connections: nothing happens
	r.AddType(&TypeDef{Name: "test", AllowsConnections: false})
	r.RequestConnection(a, b)
	if len(a.ConnectionsOut()) != 0 {
		t.Fatal("connection created despite target refusing")
	}
	// allowed, no hook: default direct connect
	r.AddType(&TypeDef{Name: "test", AllowsConnections: true})
	r.RequestConnection(a, b)
	if out := a.ConnectionsOut(); len(out) != 1 || out[0].Tag != "" {
		t.Fatalf("default connect = %v", out)
	}
	// source hook takes over
	r.AddType(&TypeDef{Name: "test", AllowsConnections: true,
		ConnectionRequest: func(from, to *Group) { requested++ }})
	r.RequestConnection(a, b)
	if requested != 1 {
		t.Fatalf("hook calls = %d, want 1", requested)
	}
}
