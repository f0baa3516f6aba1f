// Package gate is the human review surface: listing requests waiting
// for a decision and applying approve, edit, or reject rulings.
package gate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scribeops/scribe/internal/collab"
	"github.com/scribeops/scribe/internal/model"
	"github.com/scribeops/scribe/internal/store"
)

// Options configures review policy.
type Options struct {
	// RemoderateOnEdit re-screens reviewer-edited text; an edit that
	// trips a BLOCKED verdict is rejected instead of approved.
	RemoderateOnEdit bool

	// ListLimit caps ListPending results. Zero means a sensible default.
	ListLimit int
}

// Gate applies reviewer decisions through the store's transition
// discipline, so concurrent reviewers resolve to a single winner.
type Gate struct {
	store     *store.Store
	moderator collab.Moderator
	opts      Options
	logger    *slog.Logger
}

func New(st *store.Store, moderator collab.Moderator, opts Options, logger *slog.Logger) *Gate {
	if opts.ListLimit <= 0 {
		opts.ListLimit = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: st, moderator: moderator, opts: opts, logger: logger}
}

// ListPending returns requests awaiting review, oldest first.
func (g *Gate) ListPending(ctx context.Context) ([]*model.Request, error) {
	return g.store.ListByState(ctx, model.StatePendingApproval, g.opts.ListLimit)
}

// BadRulingError marks a ruling that is malformed rather than one that
// lost a race or hit storage trouble.
type BadRulingError struct {
	Reason string
}

func (e *BadRulingError) Error() string { return "bad ruling: " + e.Reason }

// Ruling is one reviewer decision. EditedText empty means the draft is
// published as written.
type Ruling struct {
	Decision   model.Decision
	EditedText string
	Reviewer   string
	Note       string
}

// Decide applies a ruling to a pending request. Approval freezes the
// final text (normalized to plain text) and moves the request to
// APPROVED; rejection terminates it. A concurrent decision on the same
// request leaves exactly one winner; losers receive a StaleStateError.
func (g *Gate) Decide(ctx context.Context, id string, ruling Ruling) (*model.Request, error) {
	if ruling.Reviewer == "" {
		return nil, &BadRulingError{Reason: "reviewer is required"}
	}

	switch ruling.Decision {
	case model.DecisionReject:
		note := ruling.Note
		if note == "" {
			note = "rejected by reviewer"
		}
		return g.store.Transition(ctx, id,
			model.StatePendingApproval, model.StateRejected,
			ruling.Reviewer, note,
			store.WithDecision(ruling.Reviewer))

	case model.DecisionApprove:
		return g.approve(ctx, id, ruling)

	default:
		return nil, &BadRulingError{Reason: fmt.Sprintf("unknown decision %q", ruling.Decision)}
	}
}

func (g *Gate) approve(ctx context.Context, id string, ruling Ruling) (*model.Request, error) {
	req, err := g.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	text := req.DraftText
	edited := ruling.EditedText != "" && ruling.EditedText != req.DraftText
	if edited {
		text = ruling.EditedText
	}

	if edited && g.opts.RemoderateOnEdit && g.moderator != nil {
		screening, err := g.moderator.Score(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("re-moderate edited text: %w", err)
		}
		if screening.Verdict == model.VerdictBlocked {
			g.logger.Warn("edited text blocked by moderation",
				"request_id", id, "reviewer", ruling.Reviewer, "flags", screening.Flags)
			return g.store.Transition(ctx, id,
				model.StatePendingApproval, model.StateRejected,
				ruling.Reviewer, "edited text blocked by moderation",
				store.WithDecision(ruling.Reviewer))
		}
	}

	note := ruling.Note
	if note == "" {
		if edited {
			note = "approved with edits"
		} else {
			note = "approved"
		}
	}
	return g.store.Transition(ctx, id,
		model.StatePendingApproval, model.StateApproved,
		ruling.Reviewer, note,
		store.WithDecision(ruling.Reviewer),
		store.WithFinalText(PlainText(text)))
}
