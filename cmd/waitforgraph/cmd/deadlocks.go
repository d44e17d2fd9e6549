package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/waitforgraph/internal/graph"
	"github.com/dbsmedya/waitforgraph/internal/lock"
)

var (
	topBlockers    int
	noColor        bool
	failOnDeadlock bool
)

var deadlocksCmd = &cobra.Command{
	Use:   "deadlocks [connstr]",
	Short: "Report lock cycles and the sessions stuck behind them",
	Long: `Deadlocks takes a pg_locks snapshot and reports every session that can
never proceed without intervention:

  - Cycle paths, one per group of sessions waiting on each other
  - Sessions in a cycle
  - Sessions waiting, directly or not, on a cycle
  - The sessions blocking the most others

Example:
  waitforgraph deadlocks "host=mdw dbname=prod" --top 5`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runDeadlocks,
	SilenceUsage: true,
}

func init() {
	deadlocksCmd.Flags().IntVar(&topBlockers, "top", 10,
		"Number of top blocking sessions to list (0 disables the list)")
	deadlocksCmd.Flags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")
	deadlocksCmd.Flags().BoolVar(&failOnDeadlock, "fail-on-deadlock", false,
		"Exit with status 1 when a deadlock is found")

	rootCmd.AddCommand(deadlocksCmd)
}

func runDeadlocks(cmd *cobra.Command, args []string) error {
	snap, err := takeSnapshot(commandContext(cmd), args)
	if err != nil {
		return err
	}
	defer snap.log.Sync()

	if noColor {
		color.Enable = false
	}

	adj := snap.graph.Adjacency()
	info := adj.DetectDeadlocks()
	printDeadlockReport(snap.graph, info, topBlockers)

	if info == nil {
		return nil
	}
	snap.log.Warnw("deadlock detected",
		"cycles", len(info.Cycles),
		"stuck_sessions", len(info.Stuck),
	)
	if failOnDeadlock {
		return adj.Validate()
	}
	return nil
}

// printDeadlockReport prints the report for info, which is nil when the
// graph has no cycle.
func printDeadlockReport(g *graph.WFGraph, info *graph.DeadlockInfo, top int) {
	printHeader("Deadlock Report")
	fmt.Fprintf(outputWriter, "  Sessions: %d   Wait edges: %d\n", g.VertexCount(), g.EdgeCount())
	fmt.Fprintln(outputWriter)

	if info == nil {
		fmt.Fprintln(outputWriter, color.Green.Sprint("No deadlocks detected"))
	} else {
		printCycles(g, info)
	}

	if top > 0 {
		fmt.Fprintln(outputWriter)
		printTopBlockers(g, info, top)
	}
}

func printCycles(g *graph.WFGraph, info *graph.DeadlockInfo) {
	printSection("Cycles")
	for i, cycle := range info.Cycles {
		fmt.Fprintf(outputWriter, "  [%d] %s\n", i+1, color.Red.Sprint(graph.JoinSessions(cycle, " -> ")))
		for j := 0; j+1 < len(cycle); j++ {
			for _, id := range g.OutEdges(cycle[j]) {
				if e := g.Edge(id); e.Holder == cycle[j+1] {
					fmt.Fprintf(outputWriter, "      %s\n", g.Describe(e))
				}
			}
		}
	}

	fmt.Fprintln(outputWriter)
	printSection("Sessions in cycle")
	fmt.Fprintf(outputWriter, "  %s\n", color.Red.Sprint(graph.JoinSessions(info.Participants, ", ")))

	if blocked := info.Blocked(); len(blocked) > 0 {
		fmt.Fprintln(outputWriter)
		printSection("Sessions blocked by cycle")
		fmt.Fprintf(outputWriter, "  %s\n", color.Yellow.Sprint(graph.JoinSessions(blocked, ", ")))
	}
}

// blocker is one row of the top blockers table.
type blocker struct {
	session  lock.SessionID
	blocking int
	waiting  int
	state    string
}

// rankBlockers returns the sessions other sessions wait on, most waited-on
// first, ties by ascending session id.
func rankBlockers(g *graph.WFGraph, info *graph.DeadlockInfo) []blocker {
	state := make(map[lock.SessionID]string)
	if info != nil {
		for _, s := range info.Stuck {
			state[s] = "blocked"
		}
		for _, s := range info.Participants {
			state[s] = "cycle"
		}
	}

	var out []blocker
	for _, s := range g.Vertices() {
		in := g.InDegree(s)
		if in == 0 {
			continue
		}
		st := state[s]
		if st == "" {
			st = "-"
		}
		out = append(out, blocker{session: s, blocking: in, waiting: g.OutDegree(s), state: st})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].blocking != out[j].blocking {
			return out[i].blocking > out[j].blocking
		}
		return out[i].session < out[j].session
	})
	return out
}

func printTopBlockers(g *graph.WFGraph, info *graph.DeadlockInfo, top int) {
	rows := rankBlockers(g, info)
	if len(rows) > top {
		rows = rows[:top]
	}

	printSection("Top Blockers")
	if len(rows) == 0 {
		fmt.Fprintln(outputWriter, "  (none)")
		return
	}

	table := [][]string{{"SESSION", "BLOCKING", "WAITING ON", "STATE"}}
	for _, r := range rows {
		table = append(table, []string{
			fmt.Sprintf("%d", r.session),
			fmt.Sprintf("%d", r.blocking),
			fmt.Sprintf("%d", r.waiting),
			r.state,
		})
	}

	widths := make([]int, len(table[0]))
	for _, row := range table {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for n, row := range table {
		cells := make([]string, len(row))
		for i, cell := range row {
			// Pad before coloring so escape codes do not count toward width.
			padded := runewidth.FillRight(cell, widths[i])
			switch {
			case n == 0:
				padded = color.Bold.Sprint(padded)
			case i == 3 && cell == "cycle":
				padded = color.Red.Sprint(padded)
			case i == 3 && cell == "blocked":
				padded = color.Yellow.Sprint(padded)
			}
			cells[i] = padded
		}
		fmt.Fprintf(outputWriter, "  %s\n", strings.TrimRight(strings.Join(cells, "   "), " "))
	}
}

// printHeader prints a formatted header
func printHeader(title string) {
	width := runewidth.StringWidth(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", color.Bold.Sprint(title))
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

// printSection prints a section header
func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("-", runewidth.StringWidth(title)+2))
}
