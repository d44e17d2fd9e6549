// Package lock models a pg_locks snapshot: lock modes and their conflict
// table, lock targets, and the catalog of granted and waiting locks.
package lock

import "fmt"

// Mode is one of the eight table-level lock modes reported by pg_locks.
type Mode int

const (
	AccessShareLock Mode = iota
	RowShareLock
	RowExclusiveLock
	ShareUpdateExclusiveLock
	ShareLock
	ShareRowExclusiveLock
	ExclusiveLock
	AccessExclusiveLock
)

// AllModes lists every mode in ascending strength.
var AllModes = []Mode{
	AccessShareLock,
	RowShareLock,
	RowExclusiveLock,
	ShareUpdateExclusiveLock,
	ShareLock,
	ShareRowExclusiveLock,
	ExclusiveLock,
	AccessExclusiveLock,
}

var modeNames = map[Mode]string{
	AccessShareLock:          "AccessShareLock",
	RowShareLock:             "RowShareLock",
	RowExclusiveLock:         "RowExclusiveLock",
	ShareUpdateExclusiveLock: "ShareUpdateExclusiveLock",
	ShareLock:                "ShareLock",
	ShareRowExclusiveLock:    "ShareRowExclusiveLock",
	ExclusiveLock:            "ExclusiveLock",
	AccessExclusiveLock:      "AccessExclusiveLock",
}

var modesByName = func() map[string]Mode {
	m := make(map[string]Mode, len(modeNames))
	for mode, name := range modeNames {
		m[name] = mode
	}
	return m
}()

// conflictTable maps a requested mode to the held modes that block it.
// Every row is written out on its own; nothing is derived by symmetry.
var conflictTable = map[Mode][]Mode{
	AccessShareLock: {
		AccessExclusiveLock,
	},
	RowShareLock: {
		ExclusiveLock,
		AccessExclusiveLock,
	},
	RowExclusiveLock: {
		ShareLock,
		ShareRowExclusiveLock,
		ExclusiveLock,
		AccessExclusiveLock,
	},
	ShareUpdateExclusiveLock: {
		ShareLock,
		ShareRowExclusiveLock,
		ExclusiveLock,
		AccessExclusiveLock,
		ShareUpdateExclusiveLock,
	},
	ShareLock: {
		RowExclusiveLock,
		ShareRowExclusiveLock,
		ShareUpdateExclusiveLock,
		ExclusiveLock,
		AccessExclusiveLock,
	},
	ShareRowExclusiveLock: {
		RowExclusiveLock,
		ShareLock,
		ShareUpdateExclusiveLock,
		ExclusiveLock,
		AccessExclusiveLock,
		ShareRowExclusiveLock,
	},
	ExclusiveLock: {
		RowShareLock,
		RowExclusiveLock,
		ShareLock,
		ShareUpdateExclusiveLock,
		ExclusiveLock,
		ShareRowExclusiveLock,
		AccessExclusiveLock,
	},
	AccessExclusiveLock: {
		RowShareLock,
		AccessShareLock,
		RowExclusiveLock,
		ShareLock,
		ShareUpdateExclusiveLock,
		ExclusiveLock,
		ShareRowExclusiveLock,
		AccessExclusiveLock,
	},
}

// UnknownModeError is returned when a mode string is not one of the eight
// recognized lock modes.
type UnknownModeError struct {
	Name string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown lock mode %q", e.Name)
}

// ParseMode converts a pg_locks mode name into a Mode.
func ParseMode(name string) (Mode, error) {
	mode, ok := modesByName[name]
	if !ok {
		return 0, &UnknownModeError{Name: name}
	}
	return mode, nil
}

// String returns the pg_locks name of the mode.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ConflictsWith returns the held modes that block a request for m.
// The returned slice is shared and must not be modified.
func (m Mode) ConflictsWith() []Mode {
	return conflictTable[m]
}

// Conflicts reports whether a lock held in mode held blocks a request for
// mode requested.
func Conflicts(requested, held Mode) bool {
	for _, c := range requested.ConflictsWith() {
		if c == held {
			return true
		}
	}
	return false
}
