package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/waitforgraph/internal/graph"
	"github.com/dbsmedya/waitforgraph/internal/lock"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// CLI flags that override config file values
var (
	cfgFile        string
	logLevel       string
	logFormat      string
	flavor         string
	timeoutSeconds int
	fromSession    int64
)

var rootCmd = &cobra.Command{
	Use:   "waitforgraph [connstr]",
	Short: "Lock wait-for graph of a PostgreSQL/Greenplum cluster",
	Long: `waitforgraph takes one snapshot of pg_locks and prints the lock wait-for
graph in DOT format: an edge A -> B means session A waits for a lock that
session B holds in a conflicting mode.

The optional argument is a libpq connection string, either keyword/value
("host=mdw port=5432 dbname=prod") or a postgres:// URL. Parameters missing
from it fall back to PGHOST, PGPORT, PGUSER, PGPASSWORD, PGDATABASE,
PGAPPNAME, PGSSLMODE and PGCONNECT_TIMEOUT, then to the config file, then to
built-in defaults.

Example:
  waitforgraph "host=mdw dbname=prod" | dot -Tsvg > locks.svg
  waitforgraph --from 1234`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runGraph,
	SilenceUsage: true,
	Version:      Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Path to an optional YAML configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().StringVar(&flavor, "flavor", "",
		"Override server flavor (auto, greenplum, postgres)")
	rootCmd.PersistentFlags().IntVar(&timeoutSeconds, "timeout", 0,
		"Override snapshot timeout in seconds")

	rootCmd.Flags().Int64Var(&fromSession, "from", 0,
		"Print only the sessions this session transitively waits on")
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel       string
	LogFormat      string
	Flavor         string
	TimeoutSeconds int
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:       logLevel,
		LogFormat:      logFormat,
		Flavor:         flavor,
		TimeoutSeconds: timeoutSeconds,
	}
}

func runGraph(cmd *cobra.Command, args []string) error {
	snap, err := takeSnapshot(commandContext(cmd), args)
	if err != nil {
		return err
	}
	defer snap.log.Sync()

	adj := snap.graph.Adjacency()
	if adj.HasDeadlock() {
		snap.log.Warnw("graph contains a lock cycle, run `waitforgraph deadlocks` for details")
	}

	doc := snap.graph.Document()
	if cmd.Flags().Changed("from") {
		sub := graph.Reachable(adj, lock.SessionID(fromSession))
		if !snap.graph.HasVertex(sub.Start) {
			snap.log.WithSession(fromSession).Warn("session is neither waiting nor blocking")
		}
		doc = snap.graph.Restrict(sub)
	}

	if err := graph.WriteDOT(outputWriter, doc); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return nil
}
