package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/waitforgraph/internal/config"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.ConnectionConfig
		expected string
	}{
		{
			name: "full configuration",
			cfg: &config.ConnectionConfig{
				Host:            "db.example.com",
				Port:            5432,
				User:            "gpadmin",
				Password:        "secret",
				Database:        "analytics",
				ApplicationName: "waitforgraph",
				SSLMode:         "disable",
				ConnectTimeout:  5,
			},
			expected: "application_name=waitforgraph connect_timeout=5 dbname=analytics host=db.example.com password=secret port=5432 sslmode=disable user=gpadmin",
		},
		{
			name: "empty values omitted",
			cfg: &config.ConnectionConfig{
				Host:     "/tmp",
				Port:     5432,
				User:     "postgres",
				Database: "postgres",
				SSLMode:  "require",
			},
			expected: "dbname=postgres host=/tmp port=5432 sslmode=require user=postgres",
		},
		{
			name: "values with spaces and quotes",
			cfg: &config.ConnectionConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "app",
				Password: `it's a \secret`,
				Database: "app",
				SSLMode:  "disable",
			},
			expected: `dbname=app host=localhost password='it\'s a \\secret' port=5432 sslmode=disable user=app`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildDSN(tt.cfg))
		})
	}
}

// clearPGEnv keeps the caller's libpq environment out of parsed configs.
func clearPGEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGAPPNAME",
		"PGSSLMODE", "PGCONNECT_TIMEOUT", "PGPASSFILE", "PGSERVICE", "PGSERVICEFILE",
	} {
		t.Setenv(name, "")
	}
}

func baseConnection() *config.ConnectionConfig {
	return &config.ConnectionConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "gpadmin",
		ApplicationName: "waitforgraph",
		SSLMode:         "disable",
	}
}

func TestBuildDSN_RoundTrip(t *testing.T) {
	clearPGEnv(t)
	cfg := &config.ConnectionConfig{
		Host:     "localhost",
		Port:     6543,
		User:     "o'brien",
		Password: `p w\x`,
		Database: "db",
		SSLMode:  "disable",
	}

	cc, err := pgx.ParseConfig(BuildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "o'brien", cc.User)
	assert.Equal(t, `p w\x`, cc.Password)
	assert.Equal(t, uint16(6543), cc.Port)
	assert.Equal(t, "db", cc.Database)
}

func TestParseConnConfig(t *testing.T) {
	clearPGEnv(t)

	tests := []struct {
		name     string
		connStr  string
		host     string
		port     uint16
		user     string
		database string
		appName  string
		tls      bool
	}{
		{
			name: "config only", connStr: "",
			host: "localhost", port: 5432, user: "gpadmin", database: "gpadmin", appName: "waitforgraph",
		},
		{
			name: "keyword value overrides", connStr: "host=mdw port=6000 dbname=prod application_name=oncall",
			host: "mdw", port: 6000, user: "gpadmin", database: "prod", appName: "oncall",
		},
		{
			name: "database follows overridden user", connStr: "user = monitor",
			host: "localhost", port: 5432, user: "monitor", database: "monitor", appName: "waitforgraph",
		},
		{
			name: "quoted value", connStr: `host=mdw application_name='lock watch'`,
			host: "mdw", port: 5432, user: "gpadmin", database: "gpadmin", appName: "lock watch",
		},
		{
			name: "url overrides", connStr: "postgres://alice@mdw:6000/warehouse",
			host: "mdw", port: 6000, user: "alice", database: "warehouse", appName: "waitforgraph",
		},
		{
			name: "url keeps unset parts", connStr: "postgresql:///sales?sslmode=require",
			host: "localhost", port: 5432, user: "gpadmin", database: "sales", appName: "waitforgraph", tls: true,
		},
		{
			name: "url query dbname", connStr: "postgres://mdw?dbname=ops",
			host: "mdw", port: 5432, user: "gpadmin", database: "ops", appName: "waitforgraph",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc, err := ParseConnConfig(baseConnection(), tt.connStr)
			require.NoError(t, err)
			assert.Equal(t, tt.host, cc.Host)
			assert.Equal(t, tt.port, cc.Port)
			assert.Equal(t, tt.user, cc.User)
			assert.Equal(t, tt.database, cc.Database)
			assert.Equal(t, tt.appName, cc.RuntimeParams["application_name"])
			assert.Equal(t, tt.tls, cc.TLSConfig != nil)
		})
	}
}

func TestParseConnConfig_Timeout(t *testing.T) {
	clearPGEnv(t)
	cfg := baseConnection()
	cfg.ConnectTimeout = 5

	cc, err := ParseConnConfig(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cc.ConnectTimeout)

	cc, err = ParseConnConfig(cfg, "connect_timeout=2")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cc.ConnectTimeout)
}

func TestParseConnConfig_Errors(t *testing.T) {
	clearPGEnv(t)

	for _, connStr := range []string{
		"host",
		"password='oops",
		"port=abc",
		"sslmode=sometimes",
		"postgres://mdw:notaport/db",
	} {
		t.Run(connStr, func(t *testing.T) {
			_, err := ParseConnConfig(baseConnection(), connStr)
			assert.Error(t, err)
		})
	}
}

func testConnConfig(t *testing.T) *pgx.ConnConfig {
	t.Helper()
	clearPGEnv(t)
	cc, err := ParseConnConfig(baseConnection(), "")
	require.NoError(t, err)
	return cc
}

func newTestManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	m := NewManager(testConnConfig(t), nil)
	m.DB = db
	return m, mock
}

func TestManager_Ping(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectPing()

	require.NoError(t, m.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_PingNotConnected(t *testing.T) {
	m := NewManager(testConnConfig(t), nil)

	err := m.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestManager_Close(t *testing.T) {
	m, mock := newTestManager(t)
	mock.ExpectClose()

	require.NoError(t, m.Close())
	assert.Nil(t, m.DB)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Closing twice is harmless.
	assert.NoError(t, m.Close())
}
