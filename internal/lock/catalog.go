package lock

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
)

// Row is one pg_locks row as delivered by the snapshot query.
type Row struct {
	Target  Target
	Mode    string
	Session SessionID
	Granted bool
}

// Request is a lock a session is waiting for.
type Request struct {
	Target TargetID
	Mode   Mode
}

// holderSet keeps the sessions holding one (target, mode) pair in the order
// they were first recorded.
type holderSet = orderedmap.OrderedMap[SessionID, struct{}]

// Catalog holds the granted and waiting locks of one snapshot.
//
// It is filled row by row and afterwards only read. Iteration follows the
// order in which sessions and holders first appeared in the snapshot.
type Catalog struct {
	targets *Interner[Target, TargetID]
	granted map[TargetID]map[Mode]*holderSet
	waiting *orderedmap.OrderedMap[SessionID, []Request]
	rows    int
}

// NewEmptyCatalog creates a catalog with no locks recorded.
func NewEmptyCatalog() *Catalog {
	return &Catalog{
		targets: NewInterner[Target, TargetID](),
		granted: make(map[TargetID]map[Mode]*holderSet),
		waiting: orderedmap.NewOrderedMap[SessionID, []Request](),
	}
}

// NewCatalog builds a catalog from a complete snapshot. The first row that
// cannot be understood aborts construction; a partial snapshot is never
// returned.
func NewCatalog(rows []Row) (*Catalog, error) {
	c := NewEmptyCatalog()
	for i, row := range rows {
		if err := c.AddRow(row); err != nil {
			return nil, fmt.Errorf("lock row %d (session %d): %w", i, row.Session, err)
		}
	}
	return c, nil
}

// AddRow records a single pg_locks row as either granted or waiting.
func (c *Catalog) AddRow(row Row) error {
	mode, err := ParseMode(row.Mode)
	if err != nil {
		return err
	}
	if row.Granted {
		c.RecordGranted(row.Target, mode, row.Session)
	} else {
		c.RecordWaiting(row.Target, mode, row.Session)
	}
	return nil
}

// RecordGranted adds session to the holders of (target, mode).
func (c *Catalog) RecordGranted(target Target, mode Mode, session SessionID) {
	id := c.targets.Intern(target)
	c.rows++

	byMode, ok := c.granted[id]
	if !ok {
		byMode = make(map[Mode]*holderSet)
		c.granted[id] = byMode
	}
	holders, ok := byMode[mode]
	if !ok {
		holders = orderedmap.NewOrderedMap[SessionID, struct{}]()
		byMode[mode] = holders
	}
	holders.Set(session, struct{}{})
}

// RecordWaiting appends (target, mode) to the wait list of session.
func (c *Catalog) RecordWaiting(target Target, mode Mode, session SessionID) {
	id := c.targets.Intern(target)
	c.rows++

	reqs, _ := c.waiting.Get(session)
	c.waiting.Set(session, append(reqs, Request{Target: id, Mode: mode}))
}

// Holders returns the sessions holding exactly (target, mode). The boolean
// is false when nobody does.
func (c *Catalog) Holders(target TargetID, mode Mode) ([]SessionID, bool) {
	holders, ok := c.granted[target][mode]
	if !ok || holders.Len() == 0 {
		return nil, false
	}
	return holders.Keys(), true
}

// Waiters returns every session with at least one waiting request.
func (c *Catalog) Waiters() []SessionID {
	return c.waiting.Keys()
}

// WaitList returns the requests session is waiting on, in snapshot order.
func (c *Catalog) WaitList(session SessionID) []Request {
	reqs, _ := c.waiting.Get(session)
	return reqs
}

// Target returns the descriptor behind an interned target handle.
func (c *Catalog) Target(id TargetID) Target {
	return c.targets.Lookup(id)
}

// TargetCount returns the number of distinct lock targets.
func (c *Catalog) TargetCount() int {
	return c.targets.Len()
}

// RowCount returns the number of rows recorded.
func (c *Catalog) RowCount() int {
	return c.rows
}
