package engine

import (
	"context"
	"time"
)

// pollLoop drives feed discovery on a fixed interval.
func (e *Engine) pollLoop(ctx context.Context) error {
	return e.tickUntilCancelled(ctx, e.cfg.PollEvery, e.pollOnce)
}

// cursorOverlap keeps the poll window reaching slightly behind the last
// tick so clock skew on the feed side cannot hide items.
const cursorOverlap = 5 * time.Minute

// pollOnce fetches one batch from the feed, admits each item, and hands
// admitted items to the coordinator. Feed failures are logged and left
// for the next tick.
func (e *Engine) pollOnce(ctx context.Context) {
	e.pollMu.Lock()
	since := e.lastPoll
	e.lastPoll = e.now()
	e.pollMu.Unlock()
	if !since.IsZero() {
		since = since.Add(-cursorOverlap)
	}

	items, err := e.feed.Poll(ctx, e.cfg.Topic, since, e.cfg.PollLimit)
	if err != nil {
		e.logger.Warn("feed poll failed", "topic", e.cfg.Topic, "error", err)
		return
	}
	e.logger.Debug("polled feed", "topic", e.cfg.Topic, "items", len(items))

	for _, item := range items {
		if ctx.Err() != nil {
			return
		}

		admitted, err := e.store.Admit(ctx, item.SourceItemID, e.cfg.OrphanAfter)
		if err != nil {
			e.logger.Error("admission check failed", "source_item_id", item.SourceItemID, "error", err)
			continue
		}
		if !admitted {
			continue
		}

		if err := e.coordinate(ctx, item); err != nil {
			// Nothing persisted; the item becomes an orphan and is
			// re-admitted after the orphan timeout.
			e.logger.Warn("coordination failed, item left for re-admission",
				"source_item_id", item.SourceItemID, "error", err)
		}
	}
}
