// Package database provides PostgreSQL/Greenplum connection management and
// the pg_locks snapshot query for waitforgraph.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dbsmedya/waitforgraph/internal/config"
	"github.com/dbsmedya/waitforgraph/internal/logger"
)

// Manager handles the single read-only connection used to take a snapshot.
type Manager struct {
	DB     *sql.DB
	config *pgx.ConnConfig
	logger *logger.Logger
}

// NewManager creates a new database manager from a parsed connection config.
func NewManager(cc *pgx.ConnConfig, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Manager{
		config: cc,
		logger: log.WithServer(cc.Host, int(cc.Port)),
	}
}

// Connect opens the connection and verifies it with a ping. A failure is
// reported as is; the tool is single-shot and does not retry.
func (m *Manager) Connect(ctx context.Context) error {
	db := stdlib.OpenDB(*m.config)

	// One session is enough and keeps the tool's own footprint in pg_locks small.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	m.DB = db
	if err := m.Ping(ctx); err != nil {
		db.Close()
		m.DB = nil
		return fmt.Errorf("failed to connect to %s:%d/%s: %w",
			m.config.Host, m.config.Port, m.config.Database, err)
	}

	m.logger.Debugw("connected", "database", m.config.Database, "user", m.config.User)
	return nil
}

// Close closes the connection if it is open.
func (m *Manager) Close() error {
	if m.DB == nil {
		return nil
	}
	if err := m.DB.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	m.DB = nil
	return nil
}

// Ping verifies the connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.DB == nil {
		return fmt.Errorf("not connected")
	}
	if err := m.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// ParseConnConfig layers connStr over the settings in cfg and parses the
// result with pgx. connStr may be empty, a keyword/value string or a
// postgres:// URL; every setting it names wins over cfg. As with libpq, the
// database defaults to the user name.
func ParseConnConfig(cfg *config.ConnectionConfig, connStr string) (*pgx.ConnConfig, error) {
	connStr = strings.TrimSpace(connStr)

	var merged string
	switch {
	case connStr == "":
		merged = BuildDSN(cfg)
	case strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://"):
		u, err := mergeURL(connParams(cfg), connStr)
		if err != nil {
			return nil, err
		}
		merged = u
	default:
		// Later keywords override earlier ones.
		merged = BuildDSN(cfg) + " " + connStr
	}

	cc, err := pgx.ParseConfig(merged)
	if err != nil {
		return nil, err
	}
	if cc.Database == "" {
		cc.Database = cc.User
	}
	return cc, nil
}

// mergeURL adds the params a connection URL leaves unset to its query.
func mergeURL(params map[string]string, connStr string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("invalid connection URL: %w", err)
	}

	q := u.Query()
	inURL := map[string]bool{
		"host":     u.Hostname() != "",
		"port":     u.Port() != "",
		"user":     u.User != nil && u.User.Username() != "",
		"dbname":   strings.TrimPrefix(u.Path, "/") != "",
		"password": false,
	}
	if u.User != nil {
		_, inURL["password"] = u.User.Password()
	}

	for k, v := range params {
		if inURL[k] || q.Has(k) || (k == "dbname" && q.Has("database")) {
			continue
		}
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildDSN constructs a keyword/value connection string. Keys are emitted
// in a fixed order and empty values are omitted.
func BuildDSN(cfg *config.ConnectionConfig) string {
	params := connParams(cfg)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + quoteValue(params[k])
	}
	return strings.Join(parts, " ")
}

// connParams returns the non-empty connection settings of cfg by keyword.
func connParams(cfg *config.ConnectionConfig) map[string]string {
	params := map[string]string{
		"host":             cfg.Host,
		"user":             cfg.User,
		"password":         cfg.Password,
		"dbname":           cfg.Database,
		"application_name": cfg.ApplicationName,
		"sslmode":          cfg.SSLMode,
	}
	if cfg.Port > 0 {
		params["port"] = fmt.Sprintf("%d", cfg.Port)
	}
	if cfg.ConnectTimeout > 0 {
		params["connect_timeout"] = fmt.Sprintf("%d", cfg.ConnectTimeout)
	}
	for k, v := range params {
		if v == "" {
			delete(params, k)
		}
	}
	return params
}

// quoteValue quotes a connection string value when it contains characters
// that would otherwise end it.
func quoteValue(v string) string {
	if !strings.ContainsAny(v, " '\\\t\n") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
