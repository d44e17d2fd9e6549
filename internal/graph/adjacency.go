package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dbsmedya/waitforgraph/internal/lock"
)

// LineError describes an input line that is not a "<waiter> -> <holder>"
// edge. Readers skip such lines.
type LineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// ParseEdgeLine parses a single "<waiter> -> <holder>" line.
func ParseEdgeLine(line string) (waiter, holder lock.SessionID, err error) {
	parts := strings.Split(line, "->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected exactly one \"->\", found %d", len(parts)-1)
	}

	w, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid waiter session id: %w", err)
	}
	h, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid holder session id: %w", err)
	}

	return lock.SessionID(w), lock.SessionID(h), nil
}

// ReadAdjacency reads edge lines from r until EOF. Blank lines are ignored.
// Every other line that is not an edge is passed to skip and dropped;
// skip may be nil. Only a failure to read r is returned as an error.
func ReadAdjacency(r io.Reader, skip func(*LineError)) (Adjacency, error) {
	adj := make(Adjacency)
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		waiter, holder, err := ParseEdgeLine(text)
		if err != nil {
			if skip != nil {
				skip(&LineError{Line: lineNo, Text: text, Reason: err.Error()})
			}
			continue
		}
		adj.AddEdge(waiter, holder)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}
	return adj, nil
}
