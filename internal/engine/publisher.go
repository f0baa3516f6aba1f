package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/scribeops/scribe/internal/collab"
	"github.com/scribeops/scribe/internal/model"
	"github.com/scribeops/scribe/internal/store"
)

// publishLoop drains approved requests on a fixed interval, bounded by
// the publish concurrency semaphore.
func (e *Engine) publishLoop(ctx context.Context) error {
	sem := semaphore.NewWeighted(int64(e.cfg.PublishConcurrency))
	return e.tickUntilCancelled(ctx, e.cfg.PublishEvery, func(ctx context.Context) {
		e.publishBatch(ctx, sem)
	})
}

func (e *Engine) publishBatch(ctx context.Context, sem *semaphore.Weighted) {
	reqs, err := e.store.ListByState(ctx, model.StateApproved, e.cfg.PublishConcurrency*4)
	if err != nil {
		e.logger.Error("listing approved requests failed", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, req := range reqs {
		if e.coolingDown(req.ID) {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)
			e.publishOne(ctx, id)
		}(req.ID)
	}
	wg.Wait()
}

// publishOne takes a request through a single publish attempt: acquire
// the lease, call the platform at most once, and record the outcome.
// Losing the lease race to another publisher is not an error.
func (e *Engine) publishOne(ctx context.Context, id string) {
	lease := e.now().Add(e.cfg.LeaseFor)
	req, err := e.store.Transition(ctx, id,
		model.StateApproved, model.StatePublishing,
		"publisher", "publish attempt started",
		store.WithLease(lease), store.WithAttemptBump())
	if model.IsStaleState(err) {
		return
	}
	if err != nil {
		e.logger.Error("lease acquisition failed", "request_id", id, "error", err)
		return
	}

	logger := e.logger.With("request_id", id, "attempt", req.PublishAttempts)

	// A request that already carries a platform reference must never
	// produce a second platform call.
	ref := req.PublishedRef
	if ref == "" {
		pubCtx, cancel := context.WithTimeout(ctx, e.cfg.PublishTimeout)
		ref, err = e.platform.Publish(pubCtx, req.SourceItemID, req.FinalText)
		cancel()
		if err != nil {
			e.recordPublishFailure(ctx, req, err, logger)
			return
		}
	}

	if _, err := e.store.Transition(ctx, id,
		model.StatePublishing, model.StatePublished,
		"publisher", "published",
		store.WithPublishedRef(ref), store.WithLeaseCleared()); err != nil {
		// The reply is live but the state update failed. The sweeper
		// returns the request for another attempt, which will find no
		// stored reference and may double post; log loudly.
		logger.Error("publish succeeded but state update failed", "ref", ref, "error", err)
		return
	}
	e.clearCooldown(id)
	logger.Info("request published", "ref", ref)
}

// recordPublishFailure routes a platform error to FAILED (permanent or
// retries exhausted) or back to APPROVED with a backoff cooldown.
func (e *Engine) recordPublishFailure(ctx context.Context, req *model.Request, pubErr error, logger *slog.Logger) {
	switch {
	case collab.IsPermanent(pubErr):
		logger.Warn("permanent publish failure", "error", pubErr)
		if _, err := e.store.Transition(ctx, req.ID,
			model.StatePublishing, model.StateFailed,
			"publisher", "permanent failure: "+pubErr.Error(),
			store.WithLeaseCleared()); err != nil {
			logger.Error("recording permanent failure failed", "error", err)
		}

	case req.PublishAttempts >= e.cfg.MaxPublishAttempts:
		logger.Warn("publish retries exhausted", "error", pubErr)
		if _, err := e.store.Transition(ctx, req.ID,
			model.StatePublishing, model.StateFailed,
			"publisher", "retries exhausted: "+pubErr.Error(),
			store.WithLeaseCleared()); err != nil {
			logger.Error("recording exhausted retries failed", "error", err)
		}

	default:
		backoff := e.computeBackoff(req.PublishAttempts)
		logger.Warn("transient publish failure, will retry",
			"error", pubErr, "backoff", backoff)
		if _, err := e.store.Transition(ctx, req.ID,
			model.StatePublishing, model.StateApproved,
			"publisher", "transient failure: "+pubErr.Error(),
			store.WithLeaseCleared()); err != nil {
			logger.Error("returning request for retry failed", "error", err)
			return
		}
		e.setCooldown(req.ID, backoff)
	}
}
