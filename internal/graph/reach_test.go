package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbsmedya/waitforgraph/internal/lock"
)

func edges(pairs ...[2]lock.SessionID) Adjacency {
	adj := make(Adjacency)
	for _, p := range pairs {
		adj.AddEdge(p[0], p[1])
	}
	return adj
}

func TestReachable_Chain(t *testing.T) {
	adj := edges([2]lock.SessionID{1, 2}, [2]lock.SessionID{2, 3}, [2]lock.SessionID{4, 5})

	sub := Reachable(adj, 1)

	assert.ElementsMatch(t, []lock.SessionID{1, 2, 3}, sub.Vertices())
	assert.ElementsMatch(t, [][2]lock.SessionID{{1, 2}, {2, 3}}, sub.Edges())
	assert.False(t, sub.Contains(4))
	assert.False(t, sub.Contains(5))
}

func TestReachable_StartWithoutEdges(t *testing.T) {
	sub := Reachable(edges([2]lock.SessionID{1, 2}), 9)

	assert.Equal(t, []lock.SessionID{9}, sub.Vertices())
	assert.Empty(t, sub.Edges())
	assert.Equal(t, 1, sub.Len())
}

func TestReachable_StartIsFirst(t *testing.T) {
	sub := Reachable(edges([2]lock.SessionID{5, 6}, [2]lock.SessionID{6, 7}), 5)
	assert.Equal(t, lock.SessionID(5), sub.Vertices()[0])
	assert.Equal(t, lock.SessionID(5), sub.Start)
}

func TestReachable_CycleTerminates(t *testing.T) {
	adj := edges(
		[2]lock.SessionID{1, 2},
		[2]lock.SessionID{2, 3},
		[2]lock.SessionID{3, 1},
		[2]lock.SessionID{3, 4},
		[2]lock.SessionID{5, 1},
	)

	sub := Reachable(adj, 2)

	assert.ElementsMatch(t, []lock.SessionID{1, 2, 3, 4}, sub.Vertices())
	assert.ElementsMatch(t, [][2]lock.SessionID{{1, 2}, {2, 3}, {3, 1}, {3, 4}}, sub.Edges())
}

func TestReachable_SelfLoop(t *testing.T) {
	sub := Reachable(edges([2]lock.SessionID{1, 1}), 1)

	assert.Equal(t, []lock.SessionID{1}, sub.Vertices())
	assert.Equal(t, [][2]lock.SessionID{{1, 1}}, sub.Edges())
}

// The reachable set is the least set containing start that is closed under
// outgoing edges. Check closure and minimality against a naive fixed point.
func TestReachable_LeastFixedPoint(t *testing.T) {
	adj := edges(
		[2]lock.SessionID{1, 2}, [2]lock.SessionID{2, 1},
		[2]lock.SessionID{2, 6}, [2]lock.SessionID{6, 7},
		[2]lock.SessionID{7, 6}, [2]lock.SessionID{8, 7},
		[2]lock.SessionID{9, 1},
	)

	for start := lock.SessionID(1); start <= 9; start++ {
		want := map[lock.SessionID]bool{start: true}
		for changed := true; changed; {
			changed = false
			for s := range want {
				for _, h := range adj[s] {
					if !want[h] {
						want[h] = true
						changed = true
					}
				}
			}
		}

		sub := Reachable(adj, start)
		assert.ElementsMatch(t, sortedSessions(want), sub.Vertices(), "start %d", start)
		for _, e := range sub.Edges() {
			assert.True(t, sub.Contains(e[1]), "edge %v leaves the subgraph", e)
		}
	}
}

func TestReachable_FromWFGraph(t *testing.T) {
	g := buildFromRows(t, deadlockRows())

	sub := Reachable(g.Adjacency(), 3)

	assert.ElementsMatch(t, []lock.SessionID{1, 2, 3}, sub.Vertices())

	sub = Reachable(g.Adjacency(), 1)
	assert.ElementsMatch(t, []lock.SessionID{1, 2}, sub.Vertices())
	assert.False(t, sub.Contains(3))
}

func TestAdjacency_EdgeCount(t *testing.T) {
	adj := edges([2]lock.SessionID{1, 2}, [2]lock.SessionID{1, 3}, [2]lock.SessionID{2, 3})
	assert.Equal(t, 3, adj.EdgeCount())
	assert.Equal(t, 0, Adjacency{}.EdgeCount())
}
