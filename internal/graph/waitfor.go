// Package graph builds wait-for graphs from a lock catalog and answers
// questions about them: blocking chains, deadlock cycles, DOT rendering.
package graph

import (
	"fmt"
	"sort"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/waitforgraph/internal/lock"
)

// EdgeID is the interned handle of an Edge inside a WFGraph.
type EdgeID int

// Edge says that Waiter cannot proceed until Holder releases the lock it
// holds in mode Hold on Target, which conflicts with the Wait mode Waiter
// requested. Edges are values; two edges are the same edge only when every
// field matches.
type Edge struct {
	Waiter lock.SessionID
	Holder lock.SessionID
	Wait   lock.Mode
	Hold   lock.Mode
	Target lock.TargetID
}

// Vertex is a session taking part in at least one edge.
type Vertex struct {
	Session lock.SessionID
	In      map[EdgeID]struct{}
	Out     map[EdgeID]struct{}
}

// WFGraph is the wait-for graph of one snapshot. It is never modified after
// Build returns.
type WFGraph struct {
	catalog  *lock.Catalog
	edges    *lock.Interner[Edge, EdgeID]
	vertices *orderedmap.OrderedMap[lock.SessionID, *Vertex]
}

// Build derives the wait-for graph of a catalog. For every waiting request
// it looks up the holders of each conflicting mode on the same target and
// adds one edge per holder other than the waiter itself.
func Build(c *lock.Catalog) *WFGraph {
	g := &WFGraph{
		catalog:  c,
		edges:    lock.NewInterner[Edge, EdgeID](),
		vertices: orderedmap.NewOrderedMap[lock.SessionID, *Vertex](),
	}

	for _, waiter := range c.Waiters() {
		for _, req := range c.WaitList(waiter) {
			for _, held := range req.Mode.ConflictsWith() {
				holders, ok := c.Holders(req.Target, held)
				if !ok {
					continue
				}
				for _, holder := range holders {
					if holder == waiter {
						continue
					}
					g.addDependency(Edge{
						Waiter: waiter,
						Holder: holder,
						Wait:   req.Mode,
						Hold:   held,
						Target: req.Target,
					})
				}
			}
		}
	}

	return g
}

func (g *WFGraph) addDependency(e Edge) {
	id := g.edges.Intern(e)
	g.vertex(e.Waiter).Out[id] = struct{}{}
	g.vertex(e.Holder).In[id] = struct{}{}
}

// vertex returns the vertex of a session, creating it on first use.
func (g *WFGraph) vertex(session lock.SessionID) *Vertex {
	if v, ok := g.vertices.Get(session); ok {
		return v
	}
	v := &Vertex{
		Session: session,
		In:      make(map[EdgeID]struct{}),
		Out:     make(map[EdgeID]struct{}),
	}
	g.vertices.Set(session, v)
	return v
}

// Vertices returns every session in the graph.
func (g *WFGraph) Vertices() []lock.SessionID {
	return g.vertices.Keys()
}

// Vertex returns the vertex of a session, if it is in the graph.
func (g *WFGraph) Vertex(session lock.SessionID) (*Vertex, bool) {
	return g.vertices.Get(session)
}

// HasVertex reports whether session takes part in any edge.
func (g *WFGraph) HasVertex(session lock.SessionID) bool {
	_, ok := g.vertices.Get(session)
	return ok
}

// Edges returns every distinct edge, in creation order.
func (g *WFGraph) Edges() []Edge {
	edges := make([]Edge, g.edges.Len())
	for i := range edges {
		edges[i] = g.edges.Lookup(EdgeID(i))
	}
	return edges
}

// Edge returns the edge behind a handle.
func (g *WFGraph) Edge(id EdgeID) Edge {
	return g.edges.Lookup(id)
}

// VertexCount returns the number of sessions in the graph.
func (g *WFGraph) VertexCount() int {
	return g.vertices.Len()
}

// EdgeCount returns the number of distinct edges.
func (g *WFGraph) EdgeCount() int {
	return g.edges.Len()
}

// InDegree returns the number of edges pointing at session, i.e. how many
// (waiter, request) pairs it blocks.
func (g *WFGraph) InDegree(session lock.SessionID) int {
	if v, ok := g.vertices.Get(session); ok {
		return len(v.In)
	}
	return 0
}

// OutDegree returns the number of edges leaving session.
func (g *WFGraph) OutDegree(session lock.SessionID) int {
	if v, ok := g.vertices.Get(session); ok {
		return len(v.Out)
	}
	return 0
}

// OutEdges returns the edges on which session waits, in creation order.
func (g *WFGraph) OutEdges(session lock.SessionID) []EdgeID {
	if v, ok := g.vertices.Get(session); ok {
		return sortedEdgeIDs(v.Out)
	}
	return nil
}

// InEdges returns the edges on which session blocks others, in creation order.
func (g *WFGraph) InEdges(session lock.SessionID) []EdgeID {
	if v, ok := g.vertices.Get(session); ok {
		return sortedEdgeIDs(v.In)
	}
	return nil
}

func sortedEdgeIDs(set map[EdgeID]struct{}) []EdgeID {
	ids := make([]EdgeID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Target returns the descriptor of the object an edge is about.
func (g *WFGraph) Target(e Edge) lock.Target {
	return g.catalog.Target(e.Target)
}

// Describe returns the human-readable explanation of an edge.
func (g *WFGraph) Describe(e Edge) string {
	return fmt.Sprintf("session %d waits for %s on %s; blocked by session %d(granted %s);",
		e.Waiter, e.Wait, g.Target(e), e.Holder, e.Hold)
}

// Adjacency flattens the graph into waiter -> holders lists. Parallel edges
// between the same pair of sessions appear once per edge.
func (g *WFGraph) Adjacency() Adjacency {
	adj := make(Adjacency)
	for _, e := range g.Edges() {
		adj.AddEdge(e.Waiter, e.Holder)
	}
	return adj
}
