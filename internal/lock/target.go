package lock

import (
	"database/sql"
	"strconv"
	"strings"
)

// SessionID identifies one backend session (mppsessionid on Greenplum,
// pid on PostgreSQL).
type SessionID int64

// TargetID is the interned handle of a Target inside a Catalog.
type TargetID int

// Target describes the object a lock is taken on. Every field is optional,
// mirroring the nullable columns of pg_locks. Target is a plain value: two
// targets are the same object exactly when all their fields are equal.
type Target struct {
	LockType      sql.NullString
	SegmentID     sql.NullInt64
	VirtualXID    sql.NullString
	Database      sql.NullInt64
	Relation      sql.NullInt64
	Page          sql.NullInt64
	Tuple         sql.NullInt64
	TransactionID sql.NullInt64
	ClassID       sql.NullInt64
	ObjID         sql.NullInt64
	ObjSubID      sql.NullInt64
}

// String renders the populated fields as field=value pairs joined by commas,
// using the pg_locks column names.
func (t Target) String() string {
	var parts []string
	str := func(name string, v sql.NullString) {
		if v.Valid {
			parts = append(parts, name+"="+v.String)
		}
	}
	num := func(name string, v sql.NullInt64) {
		if v.Valid {
			parts = append(parts, name+"="+strconv.FormatInt(v.Int64, 10))
		}
	}

	str("locktype", t.LockType)
	num("gp_segment_id", t.SegmentID)
	str("virtualxid", t.VirtualXID)
	num("database", t.Database)
	num("relation", t.Relation)
	num("page", t.Page)
	num("tuple", t.Tuple)
	num("transactionid", t.TransactionID)
	num("classid", t.ClassID)
	num("objid", t.ObjID)
	num("objsubid", t.ObjSubID)

	return strings.Join(parts, ",")
}

// Int returns a populated optional integer.
func Int(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

// Str returns a populated optional string.
func Str(v string) sql.NullString {
	return sql.NullString{String: v, Valid: true}
}
