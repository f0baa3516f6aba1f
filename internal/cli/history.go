package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribeops/scribe/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
}

// HistoryEntry is the JSON shape of one audit entry.
type HistoryEntry struct {
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state"`
	Actor     string `json:"actor"`
	Note      string `json:"note,omitempty"`
	At        string `json:"at"`
}

// HistoryResult holds the full audit trail for a request.
type HistoryResult struct {
	RequestID    string         `json:"request_id"`
	SourceItemID string         `json:"source_item_id"`
	State        string         `json:"state"`
	Entries      []HistoryEntry `json:"entries"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <request-id>",
		Short: "Show the audit trail for a request",
		Long: `Show every state transition a request has gone through, in order,
with the actor and note recorded on each.

Examples:
  scribe history 0198a7... --db ./scribe.db
  scribe history 0198a7... --db ./scribe.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showHistory(opts *HistoryOptions, id string, cmd *cobra.Command) error {
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

	req, err := st.Get(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitCommandError, "request not found", err)
	}

	trail, err := st.AuditTrail(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load audit trail", err)
	}

	result := HistoryResult{
		RequestID:    req.ID,
		SourceItemID: req.SourceItemID,
		State:        string(req.State),
		Entries:      make([]HistoryEntry, 0, len(trail)),
	}
	for _, entry := range trail {
		result.Entries = append(result.Entries, HistoryEntry{
			FromState: string(entry.FromState),
			ToState:   string(entry.ToState),
			Actor:     entry.Actor,
			Note:      entry.Note,
			At:        entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return formatter.SuccessText(renderHistory(result), result)
}

func renderHistory(result HistoryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request %s (%s), currently %s:\n\n", result.RequestID, result.SourceItemID, result.State)
	for _, entry := range result.Entries {
		from := entry.FromState
		if from == "" {
			from = "(created)"
		}
		fmt.Fprintf(&b, "  %s  %s -> %s  by %s", entry.At, from, entry.ToState, entry.Actor)
		if entry.Note != "" {
			fmt.Fprintf(&b, "  (%s)", entry.Note)
		}
		b.WriteString("\n")
	}
	return b.String()
}
