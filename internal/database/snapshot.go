package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/dbsmedya/waitforgraph/internal/config"
	"github.com/dbsmedya/waitforgraph/internal/lock"
)

// ServerInfo describes the server a snapshot is taken from.
type ServerInfo struct {
	Flavor  string // config.FlavorGreenplum or config.FlavorPostgres
	Version string // Greenplum semantic version ("v6.3.0"), empty if unknown
	Raw     string // result of version()
}

// Legacy reports whether the server predates the virtualxid column.
func (s *ServerInfo) Legacy() bool {
	return s.Flavor == config.FlavorGreenplum && s.Version != "" &&
		semver.Compare(s.Version, "v5.0.0") < 0
}

const greenplumMarker = "(Greenplum Database "

// ParseServerVersion interprets the output of version(). flavor forces
// the result's flavor unless it is config.FlavorAuto.
//
// Greenplum reports e.g. "PostgreSQL 9.4.24 (Greenplum Database 6.3.0 build dev) on ...";
// old releases use four components such as "4.3.99.00".
func ParseServerVersion(raw, flavor string) (*ServerInfo, error) {
	info := &ServerInfo{Raw: raw, Flavor: config.FlavorPostgres}

	start := strings.Index(raw, greenplumMarker)
	if start >= 0 {
		info.Flavor = config.FlavorGreenplum

		rest := raw[start+len(greenplumMarker):]
		end := strings.IndexAny(rest, " )")
		if end < 0 {
			return nil, fmt.Errorf("unexpected version string %q", raw)
		}
		version, ok := toSemver(rest[:end])
		if !ok {
			return nil, fmt.Errorf("unexpected Greenplum version in %q", raw)
		}
		info.Version = version
	}

	if flavor != "" && flavor != config.FlavorAuto {
		info.Flavor = flavor
	}
	return info, nil
}

// toSemver turns a dotted release number into a canonical semantic version,
// keeping at most three components and dropping leading zeros. Only the
// leading digits of a component count, so "0-beta" reads as 0.
func toSemver(release string) (string, bool) {
	parts := strings.Split(release, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	for i, p := range parts {
		digits := strings.IndexFunc(p, func(r rune) bool { return r < '0' || r > '9' })
		if digits < 0 {
			digits = len(p)
		}
		n, err := strconv.Atoi(p[:digits])
		if err != nil {
			return "", false
		}
		parts[i] = strconv.Itoa(n)
	}
	version := "v" + strings.Join(parts, ".")
	if !semver.IsValid(version) {
		return "", false
	}
	return semver.Canonical(version), true
}

// DetectServer queries version() and interprets it.
func DetectServer(ctx context.Context, db *sql.DB, flavor string) (*ServerInfo, error) {
	var raw string
	if err := db.QueryRowContext(ctx, "select pg_catalog.version()").Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to query server version: %w", err)
	}
	return ParseServerVersion(raw, flavor)
}

const lockColumns = `gp_segment_id, locktype, database, relation, page, tuple,
	transactionid, classid, objid, objsubid, mode, granted, mppsessionid`

// SnapshotQuery returns the pg_locks query suited to the server. Every
// variant yields the same columns in the same order.
func SnapshotQuery(info *ServerInfo) string {
	switch {
	case info.Flavor == config.FlavorPostgres:
		// SIReadLock is a predicate lock that never blocks, and rows without
		// a pid belong to prepared transactions.
		return `select virtualxid, null::int as gp_segment_id, locktype, database, relation, page, tuple,
	transactionid, classid, objid, objsubid, mode, granted, pid as mppsessionid
from pg_catalog.pg_locks
where pid is not null and mode <> 'SIReadLock'`
	case info.Legacy():
		return "select null::text as virtualxid, " + lockColumns + "\nfrom pg_catalog.pg_locks"
	default:
		return "select virtualxid, " + lockColumns + "\nfrom pg_catalog.pg_locks"
	}
}

// FetchSnapshot runs the snapshot query and returns every row. Any row that
// cannot be scanned aborts the whole snapshot.
func FetchSnapshot(ctx context.Context, db *sql.DB, info *ServerInfo) ([]lock.Row, error) {
	rows, err := db.QueryContext(ctx, SnapshotQuery(info))
	if err != nil {
		return nil, fmt.Errorf("failed to query pg_locks: %w", err)
	}
	defer rows.Close()

	var out []lock.Row
	for rows.Next() {
		var (
			t       lock.Target
			mode    string
			granted bool
			session sql.NullInt64
		)
		err := rows.Scan(
			&t.VirtualXID, &t.SegmentID, &t.LockType, &t.Database, &t.Relation,
			&t.Page, &t.Tuple, &t.TransactionID, &t.ClassID, &t.ObjID, &t.ObjSubID,
			&mode, &granted, &session,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pg_locks row %d: %w", len(out), err)
		}
		if !session.Valid {
			return nil, fmt.Errorf("pg_locks row %d has no session id", len(out))
		}

		out = append(out, lock.Row{
			Target:  t,
			Mode:    mode,
			Session: lock.SessionID(session.Int64),
			Granted: granted,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pg_locks: %w", err)
	}

	return out, nil
}
