package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scribeops/scribe/internal/model"
	"github.com/scribeops/scribe/internal/store"
)

// PendingOptions holds flags for the pending command.
type PendingOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// PendingRow is the JSON shape of one pending request.
type PendingRow struct {
	ID          string  `json:"id"`
	SourceTitle string  `json:"source_title"`
	Author      string  `json:"author,omitempty"`
	Verdict     string  `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	CreatedAt   string  `json:"created_at"`
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List requests waiting for review",
		Long: `List requests waiting for a reviewer decision, oldest first.

Examples:
  scribe pending --db ./scribe.db
  scribe pending --db ./scribe.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPending(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum requests to list")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func listPending(opts *PendingOptions, cmd *cobra.Command) error {
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

	pending, err := st.ListByState(cmd.Context(), model.StatePendingApproval, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list pending requests", err)
	}

	rows := make([]PendingRow, 0, len(pending))
	for _, req := range pending {
		rows = append(rows, PendingRow{
			ID:          req.ID,
			SourceTitle: req.SourceTitle,
			Author:      req.SourceAuthor,
			Verdict:     string(req.Verdict),
			Confidence:  req.Confidence,
			CreatedAt:   req.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}

	return formatter.SuccessText(renderPending(rows), rows)
}

func renderPending(rows []PendingRow) string {
	if len(rows) == 0 {
		return "No requests pending review.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d request(s) pending review:\n\n", len(rows))
	for _, row := range rows {
		fmt.Fprintf(&b, "  %s\n", row.ID)
		fmt.Fprintf(&b, "    title:      %s\n", row.SourceTitle)
		if row.Author != "" {
			fmt.Fprintf(&b, "    author:     %s\n", row.Author)
		}
		fmt.Fprintf(&b, "    verdict:    %s (confidence %.2f)\n", row.Verdict, row.Confidence)
		fmt.Fprintf(&b, "    created:    %s\n\n", row.CreatedAt)
	}
	return b.String()
}
