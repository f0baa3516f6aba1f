package engine

import (
	"context"
	"errors"

	"github.com/scribeops/scribe/internal/collab"
	"github.com/scribeops/scribe/internal/store"
)

// coordinate turns one admitted item into a stored request: draft,
// moderate, persist. Exactly one LLM call and one moderation call per
// admission. Any collaborator failure leaves nothing persisted and is
// reported as an OrphanedItemError.
func (e *Engine) coordinate(ctx context.Context, item collab.Item) error {
	draftCtx, cancel := context.WithTimeout(ctx, e.cfg.DraftTimeout)
	defer cancel()

	draft, err := e.drafter.Draft(draftCtx, item)
	if err != nil {
		return &OrphanedItemError{SourceItemID: item.SourceItemID, Err: err}
	}

	screening, err := e.moderator.Score(draftCtx, draft.Text)
	if err != nil {
		return &OrphanedItemError{SourceItemID: item.SourceItemID, Err: err}
	}

	req, err := e.store.CreateFromDraft(ctx, store.NewRequest{
		SourceItemID:    item.SourceItemID,
		Topic:           item.Topic,
		SourceTitle:     item.Title,
		SourceBody:      item.Body,
		SourceAuthor:    item.Author,
		SourceURL:       item.URL,
		DraftText:       draft.Text,
		Citations:       draft.Citations,
		Confidence:      draft.Confidence,
		Verdict:         screening.Verdict,
		ModerationScore: screening.Score,
		ModerationFlags: screening.Flags,
		Actor:           "coordinator",
	})
	if errors.Is(err, store.ErrDuplicateActive) {
		// A concurrent coordinator won the admission race.
		e.logger.Debug("request already active", "source_item_id", item.SourceItemID)
		return nil
	}
	if err != nil {
		return &OrphanedItemError{SourceItemID: item.SourceItemID, Err: err}
	}

	e.logger.Info("request created",
		"request_id", req.ID,
		"source_item_id", item.SourceItemID,
		"state", req.State,
		"verdict", req.Verdict)
	return nil
}
