package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scribeops/scribe/internal/config"
	"github.com/scribeops/scribe/internal/gate"
	"github.com/scribeops/scribe/internal/model"
	"github.com/scribeops/scribe/internal/store"

	"github.com/scribeops/scribe/internal/collab/moderation"
)

// DecideOptions holds flags for the decide command.
type DecideOptions struct {
	*RootOptions
	Database   string
	ConfigPath string
	Approve    bool
	Reject     bool
	EditFile   string
	Reviewer   string
	Note       string
}

// DecideResult is the JSON shape of a decision outcome.
type DecideResult struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	DecidedBy string `json:"decided_by"`
	FinalText string `json:"final_text,omitempty"`
}

// NewDecideCommand creates the decide command.
func NewDecideCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecideOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decide <request-id>",
		Short: "Approve or reject a pending request",
		Long: `Apply a reviewer decision to a pending request.

Exactly one of --approve or --reject is required. An approval may carry
an edited answer read from a file; edited text is re-screened before
the approval is recorded.

Examples:
  scribe decide 0198a7... --db ./scribe.db --approve --reviewer alice
  scribe decide 0198a7... --db ./scribe.db --approve --edit-file answer.txt --reviewer alice
  scribe decide 0198a7... --db ./scribe.db --reject --reviewer bob --note "off topic"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return decide(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file for gate and moderation settings (defaults apply when omitted)")
	cmd.Flags().BoolVar(&opts.Approve, "approve", false, "approve the request")
	cmd.Flags().BoolVar(&opts.Reject, "reject", false, "reject the request")
	cmd.Flags().StringVar(&opts.EditFile, "edit-file", "", "file containing the edited answer (approve only)")
	cmd.Flags().StringVar(&opts.Reviewer, "reviewer", "", "reviewer name recorded on the decision (required)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note recorded on the audit entry")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("reviewer")

	return cmd
}

func decide(opts *DecideOptions, id string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Approve == opts.Reject {
		return NewExitError(ExitCommandError, "exactly one of --approve or --reject is required")
	}
	if opts.EditFile != "" && opts.Reject {
		return NewExitError(ExitCommandError, "--edit-file only applies to --approve")
	}

	var editedText string
	if opts.EditFile != "" {
		raw, err := os.ReadFile(opts.EditFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read edit file", err)
		}
		editedText = string(raw)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	cfg := config.Default()
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	moderator := moderation.New(cfg.Moderation.ExtraFlaggedKeywords, cfg.Moderation.ExtraBlockedTerms)
	g := gate.New(st, moderator, gate.Options{
		RemoderateOnEdit: cfg.Gate.RemoderateOnEdit,
	}, slog.Default())

	decision := model.DecisionApprove
	if opts.Reject {
		decision = model.DecisionReject
	}

	req, err := g.Decide(cmd.Context(), id, gate.Ruling{
		Decision:   decision,
		EditedText: editedText,
		Reviewer:   opts.Reviewer,
		Note:       opts.Note,
	})
	if model.IsStaleState(err) {
		formatter.Error("E_CONFLICT", err.Error(), nil)
		return NewExitError(ExitFailure, "request already decided")
	}
	if err != nil {
		return WrapExitError(ExitFailure, "decision failed", err)
	}

	result := DecideResult{
		ID:        req.ID,
		State:     string(req.State),
		DecidedBy: req.DecidedBy,
		FinalText: req.FinalText,
	}
	text := fmt.Sprintf("Request %s is now %s (decided by %s).\n", req.ID, req.State, req.DecidedBy)
	return formatter.SuccessText(text, result)
}
