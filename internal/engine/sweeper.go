package engine

import (
	"context"

	"github.com/scribeops/scribe/internal/model"
	"github.com/scribeops/scribe/internal/store"
)

// sweepLoop recovers requests stuck in PUBLISHING after a publisher
// crash: any request whose lease has expired goes back to APPROVED for
// another attempt.
func (e *Engine) sweepLoop(ctx context.Context) error {
	return e.tickUntilCancelled(ctx, e.cfg.SweepEvery, e.sweepOnce)
}

func (e *Engine) sweepOnce(ctx context.Context) {
	expired, err := e.store.ExpiredLeases(ctx, e.now())
	if err != nil {
		e.logger.Error("expired lease scan failed", "error", err)
		return
	}

	for _, req := range expired {
		_, err := e.store.Transition(ctx, req.ID,
			model.StatePublishing, model.StateApproved,
			"sweeper", "publish lease expired, returned for retry",
			store.WithLeaseCleared())
		if model.IsStaleState(err) {
			// The publisher finished between the scan and the sweep.
			continue
		}
		if err != nil {
			e.logger.Error("lease recovery failed", "request_id", req.ID, "error", err)
			continue
		}
		e.logger.Warn("recovered expired publish lease",
			"request_id", req.ID, "attempts", req.PublishAttempts)
	}
}
