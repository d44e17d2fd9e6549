package graph

import (
	"sort"

	"github.com/dbsmedya/waitforgraph/internal/lock"
)

// Adjacency maps a waiting session to the sessions directly blocking it.
type Adjacency map[lock.SessionID][]lock.SessionID

// AddEdge records that waiter is blocked by holder.
func (a Adjacency) AddEdge(waiter, holder lock.SessionID) {
	a[waiter] = append(a[waiter], holder)
}

// EdgeCount returns the total number of waiter -> holder entries.
func (a Adjacency) EdgeCount() int {
	count := 0
	for _, holders := range a {
		count += len(holders)
	}
	return count
}

// Subgraph is the part of a wait-for graph reachable from one session.
type Subgraph struct {
	Start   lock.SessionID
	visited map[lock.SessionID]bool
	order   []lock.SessionID
	adj     Adjacency
}

// Reachable returns every session whose lock start transitively waits on,
// together with the edges leaving those sessions. The traversal keeps a
// visited set, so cycles (deadlocks) terminate and are reported whole.
func Reachable(adj Adjacency, start lock.SessionID) *Subgraph {
	sub := &Subgraph{
		Start:   start,
		visited: map[lock.SessionID]bool{start: true},
		order:   []lock.SessionID{start},
		adj:     adj,
	}

	stack := []lock.SessionID{start}
	for len(stack) > 0 {
		session := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, next := range adj[session] {
			if sub.visited[next] {
				continue
			}
			sub.visited[next] = true
			sub.order = append(sub.order, next)
			stack = append(stack, next)
		}
	}

	return sub
}

// Vertices returns the reachable sessions, start first, in discovery order.
func (s *Subgraph) Vertices() []lock.SessionID {
	out := make([]lock.SessionID, len(s.order))
	copy(out, s.order)
	return out
}

// Contains reports whether session is reachable from the start session.
func (s *Subgraph) Contains(session lock.SessionID) bool {
	return s.visited[session]
}

// Len returns the number of reachable sessions.
func (s *Subgraph) Len() int {
	return len(s.order)
}

// Edges returns every edge whose waiter is reachable. Since reachability is
// closed under outgoing edges, every holder is reachable too.
func (s *Subgraph) Edges() [][2]lock.SessionID {
	var edges [][2]lock.SessionID
	for _, waiter := range s.order {
		for _, holder := range s.adj[waiter] {
			edges = append(edges, [2]lock.SessionID{waiter, holder})
		}
	}
	return edges
}

// sortedSessions returns the keys of a session set in ascending order.
func sortedSessions(set map[lock.SessionID]bool) []lock.SessionID {
	out := make([]lock.SessionID, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
