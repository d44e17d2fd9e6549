package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/gookit/color"
	"github.com/jackc/pgx/v5"

	"github.com/dbsmedya/waitforgraph/internal/config"
	"github.com/dbsmedya/waitforgraph/internal/database"
	"github.com/dbsmedya/waitforgraph/internal/lock"
	"github.com/dbsmedya/waitforgraph/internal/logger"
)

func relation(id int64) lock.Target {
	return lock.Target{LockType: lock.Str("relation"), Database: lock.Int(1), Relation: lock.Int(id)}
}

func xact(id int64) lock.Target {
	return lock.Target{LockType: lock.Str("transactionid"), TransactionID: lock.Int(id)}
}

// cycleRows is a snapshot where sessions 1 and 2 wait on each other and
// session 3 waits on session 1.
func cycleRows() []lock.Row {
	return []lock.Row{
		{Target: relation(10), Mode: "AccessExclusiveLock", Session: 1, Granted: true},
		{Target: xact(500), Mode: "ExclusiveLock", Session: 2, Granted: true},
		{Target: relation(10), Mode: "AccessShareLock", Session: 2, Granted: false},
		{Target: relation(10), Mode: "RowExclusiveLock", Session: 3, Granted: false},
		{Target: xact(500), Mode: "ShareLock", Session: 1, Granted: false},
	}
}

// stubSnapshot replaces the live pg_locks query with rows and pins the
// connection environment so config validation passes.
func stubSnapshot(t *testing.T, rows []lock.Row, fetchErr error) {
	t.Helper()

	t.Setenv("PGHOST", "localhost")
	t.Setenv("PGPORT", "5432")
	t.Setenv("PGUSER", "tester")
	t.Setenv("PGDATABASE", "tester")
	t.Setenv("PGSSLMODE", "disable")
	t.Setenv("PGAPPNAME", "")
	t.Setenv("PGCONNECT_TIMEOUT", "")
	t.Setenv("PGPASSWORD", "")
	t.Setenv("PGSERVICE", "")

	original := fetchRows
	fetchRows = func(ctx context.Context, conn *pgx.ConnConfig, flavor string, log *logger.Logger) ([]lock.Row, *database.ServerInfo, error) {
		if fetchErr != nil {
			return nil, nil, fetchErr
		}
		return rows, &database.ServerInfo{Flavor: config.FlavorGreenplum, Version: "v6.3.0"}, nil
	}
	t.Cleanup(func() { fetchRows = original })
}

// captureOutput redirects command output to a buffer for the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	outputWriter = &buf
	t.Cleanup(func() { outputWriter = os.Stdout })
	return &buf
}

func disableColor(t *testing.T) {
	t.Helper()
	original := color.Enable
	color.Enable = false
	t.Cleanup(func() { color.Enable = original })
}
