package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/scribeops/scribe/internal/collab"
	"github.com/scribeops/scribe/internal/model"
	"github.com/scribeops/scribe/internal/store"
	"github.com/scribeops/scribe/internal/testutil"
)

type harness struct {
	engine    *Engine
	store     *store.Store
	clock     *testutil.Clock
	feed      *testutil.FakeFeed
	drafter   *testutil.FakeDrafter
	moderator *testutil.FakeModerator
	platform  *testutil.FakePlatform
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	clock := testutil.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st, err := store.Open(filepath.Join(t.TempDir(), "scribe.db"), store.WithNow(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	feed := testutil.NewFakeFeed()
	drafter := testutil.NewFakeDrafter()
	moderator := testutil.NewFakeModerator()
	platform := testutil.NewFakePlatform()

	if cfg.Topic == "" {
		cfg.Topic = "golang"
	}
	eng := New(cfg, st, feed, drafter, moderator, platform,
		slog.New(slog.DiscardHandler),
		WithNow(clock.Now),
		WithRandSource(rand.NewSource(1)))

	return &harness{
		engine:    eng,
		store:     st,
		clock:     clock,
		feed:      feed,
		drafter:   drafter,
		moderator: moderator,
		platform:  platform,
	}
}

func item(id string) collab.Item {
	return collab.Item{
		SourceItemID: id,
		Topic:        "golang",
		Title:        "How do I parse JSON?",
		Body:         "encoding/json keeps returning nil",
		Author:       "gopher42",
		URL:          "https://reddit.example/" + id,
		PostedAt:     time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
}

// approve moves the single pending request to APPROVED and returns it.
func (h *harness) approve(t *testing.T) *model.Request {
	t.Helper()
	pending, err := h.store.ListByState(context.Background(), model.StatePendingApproval, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	req, err := h.store.Transition(context.Background(), pending[0].ID,
		model.StatePendingApproval, model.StateApproved,
		"reviewer", "approved",
		store.WithDecision("reviewer"), store.WithFinalText(pending[0].DraftText))
	require.NoError(t, err)
	return req
}

func (h *harness) publishTick(t *testing.T) {
	t.Helper()
	h.engine.publishBatch(context.Background(), semaphore.NewWeighted(4))
}

func TestHappyPathEndToEnd(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.feed.Queue(item("t3_q1"))

	h.engine.pollOnce(ctx)

	req := h.approve(t)
	h.publishTick(t)

	got, err := h.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePublished, got.State)
	assert.NotEmpty(t, got.PublishedRef)
	assert.Equal(t, 1, got.PublishAttempts)
	assert.Equal(t, 1, h.platform.Calls())

	published := h.platform.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "t3_q1", published[0].SourceItemID)

	// The same item reappearing in a later poll must not create a
	// second request or a second draft.
	h.feed.Queue(item("t3_q1"))
	h.engine.pollOnce(ctx)
	assert.Equal(t, 1, h.drafter.Calls())

	trail, err := h.store.AuditTrail(ctx, req.ID)
	require.NoError(t, err)
	var states []model.State
	for _, entry := range trail {
		states = append(states, entry.ToState)
	}
	assert.Equal(t, []model.State{
		model.StateDrafted,
		model.StatePendingApproval,
		model.StateApproved,
		model.StatePublishing,
		model.StatePublished,
	}, states)
}

func TestBlockedDraftNeverReachesGate(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.moderator.Screen(collab.Screening{
		Verdict: model.VerdictBlocked,
		Score:   0.0,
		Flags:   []string{"blocked_term"},
	})
	h.feed.Queue(item("t3_bad"))

	h.engine.pollOnce(ctx)

	pending, err := h.store.ListByState(ctx, model.StatePendingApproval, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	rejected, err := h.store.ListByState(ctx, model.StateRejected, 10)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "t3_bad", rejected[0].SourceItemID)
	assert.Equal(t, 0, h.platform.Calls())
}

func TestCollaboratorFailureLeavesOrphan(t *testing.T) {
	h := newHarness(t, Config{OrphanAfter: time.Hour})
	ctx := context.Background()
	h.drafter.Fail(errors.New("model overloaded"))
	h.feed.Queue(item("t3_orphan"))

	h.engine.pollOnce(ctx)

	has, err := h.store.HasRequest(ctx, "t3_orphan")
	require.NoError(t, err)
	assert.False(t, has, "failed coordination must persist nothing")

	// Within the orphan window the item is suppressed.
	h.drafter.Fail(nil)
	h.feed.Queue(item("t3_orphan"))
	h.engine.pollOnce(ctx)
	has, err = h.store.HasRequest(ctx, "t3_orphan")
	require.NoError(t, err)
	assert.False(t, has)

	// After the window it is re-admitted and coordinated.
	h.clock.Advance(2 * time.Hour)
	h.feed.Queue(item("t3_orphan"))
	h.engine.pollOnce(ctx)
	has, err = h.store.HasRequest(ctx, "t3_orphan")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestConcurrentPublishOneCall(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.feed.Queue(item("t3_race"))
	h.engine.pollOnce(ctx)
	req := h.approve(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.engine.publishOne(ctx, req.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.platform.Calls())
	got, err := h.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePublished, got.State)
	assert.Equal(t, 1, got.PublishAttempts)
}

func TestTransientFailureRetriesThenSucceeds(t *testing.T) {
	h := newHarness(t, Config{BaseBackoff: time.Second, MaxBackoff: time.Minute})
	ctx := context.Background()
	h.feed.Queue(item("t3_flaky"))
	h.engine.pollOnce(ctx)
	req := h.approve(t)

	h.platform.FailNext(collab.WrapTransient(errors.New("rate limited")))

	h.publishTick(t)
	got, err := h.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, got.State)
	assert.Equal(t, 1, got.PublishAttempts)
	assert.True(t, got.LeaseExpiresAt.IsZero())

	// Pin the jittered cooldown so the no-retry assertion below is
	// deterministic.
	h.engine.setCooldown(req.ID, 30*time.Second)

	// Still cooling down: the next tick must not retry yet.
	h.publishTick(t)
	assert.Equal(t, 1, h.platform.Calls())

	h.clock.Advance(2 * time.Minute)
	h.publishTick(t)

	got, err = h.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePublished, got.State)
	assert.Equal(t, 2, got.PublishAttempts)
	assert.Equal(t, 2, h.platform.Calls())
}

func TestPermanentFailureTerminates(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.feed.Queue(item("t3_locked"))
	h.engine.pollOnce(ctx)
	req := h.approve(t)

	h.platform.Fail(collab.WrapPermanent(errors.New("thread locked")))
	h.publishTick(t)

	got, err := h.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, got.State)
	assert.Equal(t, 1, h.platform.Calls())
	assert.Empty(t, got.PublishedRef)
}

func TestRetriesExhaustedTerminates(t *testing.T) {
	h := newHarness(t, Config{MaxPublishAttempts: 3, BaseBackoff: time.Second, MaxBackoff: time.Second})
	ctx := context.Background()
	h.feed.Queue(item("t3_down"))
	h.engine.pollOnce(ctx)
	req := h.approve(t)

	h.platform.Fail(collab.WrapTransient(errors.New("gateway down")))
	for range 3 {
		h.publishTick(t)
		h.clock.Advance(time.Minute)
	}

	got, err := h.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, got.State)
	assert.Equal(t, 3, got.PublishAttempts)
	assert.Equal(t, 3, h.platform.Calls())

	// Terminal means terminal: further ticks do nothing.
	h.clock.Advance(time.Minute)
	h.publishTick(t)
	assert.Equal(t, 3, h.platform.Calls())
}

func TestSweeperRecoversExpiredLease(t *testing.T) {
	h := newHarness(t, Config{LeaseFor: time.Minute})
	ctx := context.Background()
	h.feed.Queue(item("t3_stuck"))
	h.engine.pollOnce(ctx)
	req := h.approve(t)

	// Simulate a publisher that died mid-attempt.
	_, err := h.store.Transition(ctx, req.ID,
		model.StateApproved, model.StatePublishing,
		"publisher", "publish attempt started",
		store.WithLease(h.clock.Now().Add(time.Minute)), store.WithAttemptBump())
	require.NoError(t, err)

	// Lease still live: the sweeper must not touch it.
	h.engine.sweepOnce(ctx)
	got, err := h.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePublishing, got.State)

	h.clock.Advance(2 * time.Minute)
	h.engine.sweepOnce(ctx)

	got, err = h.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, got.State)
	assert.True(t, got.LeaseExpiresAt.IsZero())

	// The recovered request publishes normally afterwards.
	h.publishTick(t)
	got, err = h.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePublished, got.State)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, Config{PollEvery: 10 * time.Millisecond, PublishEvery: 10 * time.Millisecond, SweepEvery: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
}

func TestComputeBackoffBounds(t *testing.T) {
	h := newHarness(t, Config{BaseBackoff: time.Second, MaxBackoff: 30 * time.Second})

	for attempt := 1; attempt <= 10; attempt++ {
		ceiling := time.Duration(float64(time.Second) * float64(int(1)<<(attempt-1)))
		if ceiling > 30*time.Second || ceiling <= 0 {
			ceiling = 30 * time.Second
		}
		for range 50 {
			d := h.engine.computeBackoff(attempt)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, ceiling)
		}
	}

	assert.Equal(t, time.Duration(0), h.engine.computeBackoff(0))
}
