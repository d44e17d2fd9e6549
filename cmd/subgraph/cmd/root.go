package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/waitforgraph/internal/config"
	"github.com/dbsmedya/waitforgraph/internal/graph"
	"github.com/dbsmedya/waitforgraph/internal/lock"
	"github.com/dbsmedya/waitforgraph/internal/logger"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// inputReader and outputWriter can be overridden in tests
var (
	inputReader  io.Reader = os.Stdin
	outputWriter io.Writer = os.Stdout
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "subgraph <session>",
	Short: "Extract the blocking chain of one session from a wait-for graph",
	Long: `Subgraph reads "A -> B" edge lines (session A waits on session B) from
stdin until EOF and prints, in DOT format, every session the given session
transitively waits on together with the edges between them.

Lines that are not edges are skipped with a warning, so the full output of
waitforgraph can be piped in directly.

Example:
  waitforgraph | subgraph 1234 | dot -Tpng > chain.png`,
	Args:         cobra.ExactArgs(1),
	RunE:         runSubgraph,
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
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")
}

// newLogger builds the stderr logger from the defaults and flag overrides.
func newLogger() (*logger.Logger, error) {
	cfg := config.DefaultConfig()
	cfg.ApplyOverrides(logLevel, logFormat, "", 0)
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return logger.New(&cfg.Logging)
}

func runSubgraph(cmd *cobra.Command, args []string) error {
	start, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	skipped := 0
	adj, err := graph.ReadAdjacency(inputReader, func(e *graph.LineError) {
		skipped++
		log.Warnw("skipping line", "line", e.Line, "text", e.Text, "reason", e.Reason)
	})
	if err != nil {
		return err
	}

	sub := graph.Reachable(adj, lock.SessionID(start))
	log.Debugw("subgraph extracted",
		"start", start,
		"input_edges", adj.EdgeCount(),
		"skipped_lines", skipped,
		"sessions", sub.Len(),
	)

	if err := graph.WriteDOT(outputWriter, sub.Document()); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return nil
}
