package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/waitforgraph/internal/config"
	"github.com/dbsmedya/waitforgraph/internal/database"
	"github.com/dbsmedya/waitforgraph/internal/graph"
	"github.com/dbsmedya/waitforgraph/internal/lock"
	"github.com/dbsmedya/waitforgraph/internal/logger"
)

// snapshot is one pg_locks snapshot turned into a wait-for graph.
type snapshot struct {
	cfg     *config.Config
	log     *logger.Logger
	server  *database.ServerInfo
	catalog *lock.Catalog
	graph   *graph.WFGraph
}

// fetchRows reads the raw lock rows. Tests replace it.
var fetchRows = fetchLiveRows

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig layers the config file, the environment and CLI overrides,
// validates the result, then parses the connection string argument over
// the connection settings.
func loadConfig(args []string) (*config.Config, *pgx.ConnConfig, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.Flavor, overrides.TimeoutSeconds)
	cfg.ResolveDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var connStr string
	if len(args) > 0 {
		connStr = args[0]
	}
	conn, err := database.ParseConnConfig(&cfg.Connection, connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid connection string: %w", err)
	}
	return cfg, conn, nil
}

func takeSnapshot(ctx context.Context, args []string) (*snapshot, error) {
	cfg, conn, err := loadConfig(args)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := database.WithInterrupt(ctx, log)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Snapshot.TimeoutSeconds)*time.Second)
	defer cancel()

	rows, server, err := fetchRows(ctx, conn, cfg.Snapshot.Flavor, log)
	if err != nil {
		return nil, err
	}

	catalog, err := lock.NewCatalog(rows)
	if err != nil {
		return nil, fmt.Errorf("invalid lock snapshot: %w", err)
	}
	g := graph.Build(catalog)

	log.Debugw("snapshot taken",
		"rows", catalog.RowCount(),
		"targets", catalog.TargetCount(),
		"sessions", g.VertexCount(),
		"edges", g.EdgeCount(),
	)

	return &snapshot{cfg: cfg, log: log, server: server, catalog: catalog, graph: g}, nil
}

func fetchLiveRows(ctx context.Context, conn *pgx.ConnConfig, flavor string, log *logger.Logger) ([]lock.Row, *database.ServerInfo, error) {
	mgr := database.NewManager(conn, log)
	if err := mgr.Connect(ctx); err != nil {
		return nil, nil, err
	}
	defer mgr.Close()

	server, err := database.DetectServer(ctx, mgr.DB, flavor)
	if err != nil {
		return nil, nil, err
	}
	log.Debugw("server detected", "flavor", server.Flavor, "version", server.Version)

	rows, err := database.FetchSnapshot(ctx, mgr.DB, server)
	if err != nil {
		return nil, nil, err
	}
	return rows, server, nil
}
