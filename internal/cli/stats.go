package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribeops/scribe/internal/store"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Database string
	Window   time.Duration
}

// StatsResult is the JSON shape of the stats output.
type StatsResult struct {
	ByState   map[string]int `json:"by_state"`
	Total     int            `json:"total"`
	Published int            `json:"published"`
	Rejected  int            `json:"rejected"`
	Failed    int            `json:"failed"`
	Window    string         `json:"window"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show request counts by state and recent outcomes",
		Long: `Show how many requests sit in each lifecycle state, plus terminal
outcomes within the given window.

Examples:
  scribe stats --db ./scribe.db
  scribe stats --db ./scribe.db --window 1h --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStats(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().DurationVar(&opts.Window, "window", 24*time.Hour, "outcome window")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showStats(opts *StatsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	stats, err := st.CountByState(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count states", err)
	}
	outcomes, err := st.OutcomesSince(cmd.Context(), opts.Window)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count outcomes", err)
	}

	result := StatsResult{
		ByState:   make(map[string]int, len(stats.ByState)),
		Total:     stats.Total,
		Published: outcomes.Published,
		Rejected:  outcomes.Rejected,
		Failed:    outcomes.Failed,
		Window:    opts.Window.String(),
	}
	for state, n := range stats.ByState {
		result.ByState[string(state)] = n
	}

	return formatter.SuccessText(renderStats(result), result)
}

func renderStats(result StatsResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d request(s) total:\n", result.Total)

	states := make([]string, 0, len(result.ByState))
	for state := range result.ByState {
		states = append(states, state)
	}
	sort.Strings(states)
	for _, state := range states {
		fmt.Fprintf(&b, "  %-18s %d\n", state, result.ByState[state])
	}

	fmt.Fprintf(&b, "\nOutcomes in the last %s:\n", result.Window)
	fmt.Fprintf(&b, "  published  %d\n", result.Published)
	fmt.Fprintf(&b, "  rejected   %d\n", result.Rejected)
	fmt.Fprintf(&b, "  failed     %d\n", result.Failed)
	return b.String()
}
