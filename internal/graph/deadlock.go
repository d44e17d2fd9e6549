package graph

import (
	"container/list"
	"fmt"
	"strings"

	"github.com/dbsmedya/waitforgraph/internal/lock"
)

// ProcessingQueue is the FIFO used while peeling sessions off the graph
// during deadlock detection.
type ProcessingQueue struct {
	queue *list.List
}

// NewProcessingQueue creates a new empty processing queue.
func NewProcessingQueue() *ProcessingQueue {
	return &ProcessingQueue{
		queue: list.New(),
	}
}

// Enqueue adds a session to the back of the queue.
func (pq *ProcessingQueue) Enqueue(session lock.SessionID) {
	pq.queue.PushBack(session)
}

// Dequeue removes and returns the session at the front of the queue.
// Returns false if the queue is empty.
func (pq *ProcessingQueue) Dequeue() (lock.SessionID, bool) {
	if pq.queue.Len() == 0 {
		return 0, false
	}
	elem := pq.queue.Front()
	pq.queue.Remove(elem)
	return elem.Value.(lock.SessionID), true
}

// IsEmpty returns true if the queue has no sessions.
func (pq *ProcessingQueue) IsEmpty() bool {
	return pq.queue.Len() == 0
}

// Sessions returns every session appearing as waiter or holder.
func (a Adjacency) Sessions() map[lock.SessionID]bool {
	sessions := make(map[lock.SessionID]bool)
	for waiter, holders := range a {
		sessions[waiter] = true
		for _, h := range holders {
			sessions[h] = true
		}
	}
	return sessions
}

// DeadlockInfo describes the sessions that can never make progress.
type DeadlockInfo struct {
	TotalSessions int              // Sessions in the graph
	Stuck         []lock.SessionID // Sessions on a cycle or waiting behind one, ascending
	Participants  []lock.SessionID // Sessions that are on a cycle themselves
	Cycles        [][]lock.SessionID
}

// Blocked returns the stuck sessions that are not themselves on a cycle.
func (d *DeadlockInfo) Blocked() []lock.SessionID {
	onCycle := make(map[lock.SessionID]bool, len(d.Participants))
	for _, p := range d.Participants {
		onCycle[p] = true
	}
	var blocked []lock.SessionID
	for _, s := range d.Stuck {
		if !onCycle[s] {
			blocked = append(blocked, s)
		}
	}
	return blocked
}

// DeadlockError reports deadlocks found in a wait-for graph.
type DeadlockError struct {
	Info *DeadlockInfo
}

func (e *DeadlockError) Error() string {
	msg := fmt.Sprintf("deadlock detected: %d of %d sessions cannot proceed",
		len(e.Info.Stuck), e.Info.TotalSessions)

	for _, cycle := range e.Info.Cycles {
		msg += fmt.Sprintf("\nCycle: %s", JoinSessions(cycle, " -> "))
	}

	if len(e.Info.Participants) > 0 {
		msg += fmt.Sprintf("\nSessions in cycle: %s", JoinSessions(e.Info.Participants, ", "))
	}

	if blocked := e.Info.Blocked(); len(blocked) > 0 {
		msg += fmt.Sprintf("\nSessions blocked by cycle: %s", JoinSessions(blocked, ", "))
	}

	return msg
}

// CalculateOutDegrees counts, for each session, how many edges leave it.
func (a Adjacency) CalculateOutDegrees() map[lock.SessionID]int {
	outDegree := make(map[lock.SessionID]int)
	for s := range a.Sessions() {
		outDegree[s] = len(a[s])
	}
	return outDegree
}

// waitersOf inverts the adjacency: holder -> sessions waiting on it.
func (a Adjacency) waitersOf() Adjacency {
	rev := make(Adjacency)
	for waiter, holders := range a {
		for _, h := range holders {
			rev.AddEdge(h, waiter)
		}
	}
	return rev
}

// DetectDeadlocks peels off sessions that wait on nothing, then every
// session whose holders have all been peeled, until no more can go.
// Whatever survives is on a cycle or waits, directly or not, on one.
// Returns nil when the graph is acyclic.
func (a Adjacency) DetectDeadlocks() *DeadlockInfo {
	outDegree := a.CalculateOutDegrees()
	total := len(outDegree)
	waiters := a.waitersOf()

	queue := NewProcessingQueue()
	for _, s := range zeroDegree(outDegree) {
		queue.Enqueue(s)
	}

	processed := make(map[lock.SessionID]bool)
	for !queue.IsEmpty() {
		session, _ := queue.Dequeue()
		processed[session] = true

		for _, waiter := range waiters[session] {
			outDegree[waiter]--
			if outDegree[waiter] == 0 {
				queue.Enqueue(waiter)
			}
		}
	}

	if len(processed) == total {
		return nil
	}

	stuckSet := make(map[lock.SessionID]bool)
	for s := range outDegree {
		if !processed[s] {
			stuckSet[s] = true
		}
	}
	stuck := sortedSessions(stuckSet)

	var participants []lock.SessionID
	for _, s := range stuck {
		if a.canReachSelf(s, stuckSet) {
			participants = append(participants, s)
		}
	}

	var cycles [][]lock.SessionID
	for _, group := range a.cycleGroups(participants) {
		if path := a.FindCyclePath(group[0], stuckSet); path != nil {
			cycles = append(cycles, path)
		}
	}

	return &DeadlockInfo{
		TotalSessions: total,
		Stuck:         stuck,
		Participants:  participants,
		Cycles:        cycles,
	}
}

// HasDeadlock returns true if the graph contains a cycle.
func (a Adjacency) HasDeadlock() bool {
	return a.DetectDeadlocks() != nil
}

// Validate returns a DeadlockError if the graph contains a cycle.
func (a Adjacency) Validate() error {
	if info := a.DetectDeadlocks(); info != nil {
		return &DeadlockError{Info: info}
	}
	return nil
}

// cycleGroups partitions participants into groups of sessions that can all
// reach each other. Groups and their members are in ascending order.
func (a Adjacency) cycleGroups(participants []lock.SessionID) [][]lock.SessionID {
	reach := make(map[lock.SessionID]*Subgraph, len(participants))
	for _, p := range participants {
		reach[p] = Reachable(a, p)
	}

	grouped := make(map[lock.SessionID]bool)
	var groups [][]lock.SessionID
	for _, p := range participants {
		if grouped[p] {
			continue
		}
		var group []lock.SessionID
		for _, q := range participants {
			if reach[p].Contains(q) && reach[q].Contains(p) {
				group = append(group, q)
				grouped[q] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// FindCyclePath returns a path from start back to start through allowed
// sessions only, with start at both ends, or nil if there is none.
func (a Adjacency) FindCyclePath(start lock.SessionID, allowed map[lock.SessionID]bool) []lock.SessionID {
	visited := make(map[lock.SessionID]bool)
	path := []lock.SessionID{start}

	if a.dfsFindPath(start, start, visited, allowed, &path) {
		return path
	}
	return nil
}

func (a Adjacency) dfsFindPath(current, target lock.SessionID, visited, allowed map[lock.SessionID]bool, path *[]lock.SessionID) bool {
	for _, next := range a[current] {
		if !allowed[next] {
			continue
		}

		if next == target {
			*path = append(*path, target)
			return true
		}

		if visited[next] {
			continue
		}

		visited[next] = true
		*path = append(*path, next)

		if a.dfsFindPath(next, target, visited, allowed, path) {
			return true
		}

		// Backtrack
		*path = (*path)[:len(*path)-1]
	}

	return false
}

// canReachSelf checks whether start lies on a cycle inside allowed.
func (a Adjacency) canReachSelf(start lock.SessionID, allowed map[lock.SessionID]bool) bool {
	visited := make(map[lock.SessionID]bool)
	return a.dfsCanReach(start, start, visited, allowed, true)
}

// dfsCanReach reports whether target is reachable from current.
// isStart is true only for the initial call to avoid an immediate self-match.
func (a Adjacency) dfsCanReach(current, target lock.SessionID, visited, allowed map[lock.SessionID]bool, isStart bool) bool {
	if current == target && !isStart {
		return true
	}
	if visited[current] || !allowed[current] {
		return false
	}

	visited[current] = true

	for _, next := range a[current] {
		if a.dfsCanReach(next, target, visited, allowed, false) {
			return true
		}
	}
	return false
}

// zeroDegree returns the sessions with degree zero in ascending order so
// the peeling order does not depend on map iteration.
func zeroDegree(degree map[lock.SessionID]int) []lock.SessionID {
	zero := make(map[lock.SessionID]bool)
	for s, d := range degree {
		if d == 0 {
			zero[s] = true
		}
	}
	return sortedSessions(zero)
}

// JoinSessions formats session ids joined by sep.
func JoinSessions(sessions []lock.SessionID, sep string) string {
	parts := make([]string, len(sessions))
	for i, s := range sessions {
		parts[i] = fmt.Sprintf("%d", s)
	}
	return strings.Join(parts, sep)
}
