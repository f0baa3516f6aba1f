package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scribeops/scribe/internal/model"
)

// fakeClock is a controllable time source for orphan and lease expiry
// tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestStore opens a store in a temp dir with a fake clock.
func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithNow(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

// draftFixture returns a NewRequest with sensible defaults; overrides
// tweak individual fields.
func draftFixture(sourceItemID string, overrides ...func(*NewRequest)) NewRequest {
	nr := NewRequest{
		SourceItemID:    sourceItemID,
		Topic:           "oss-help",
		SourceTitle:     "How do I configure the scanner?",
		SourceBody:      "I keep getting a config error on startup.",
		SourceAuthor:    "askerbot",
		SourceURL:       "https://example.com/q/" + sourceItemID,
		DraftText:       "Set the config path via --config. See the docs.",
		Citations:       []string{"docs/config.md"},
		Confidence:      0.8,
		Verdict:         model.VerdictPass,
		ModerationScore: 0.97,
		Actor:           "coordinator",
	}
	for _, fn := range overrides {
		fn(&nr)
	}
	return nr
}

// mustCreate creates a request from the fixture and fails the test on
// error.
func mustCreate(t *testing.T, s *Store, sourceItemID string, overrides ...func(*NewRequest)) *model.Request {
	t.Helper()

	req, err := s.CreateFromDraft(context.Background(), draftFixture(sourceItemID, overrides...))
	require.NoError(t, err)
	return req
}

// mustTransition applies a transition and fails the test on error.
func mustTransition(t *testing.T, s *Store, id string, from, to model.State, opts ...TransitionOpt) *model.Request {
	t.Helper()

	req, err := s.Transition(context.Background(), id, from, to, "test", "", opts...)
	require.NoError(t, err)
	return req
}

// advanceTo walks a PENDING_APPROVAL request to the given state using
// valid edges only.
func advanceTo(t *testing.T, s *Store, id string, target model.State) *model.Request {
	t.Helper()

	ctx := context.Background()
	req, err := s.Get(ctx, id)
	require.NoError(t, err)

	for req.State != target {
		switch req.State {
		case model.StatePendingApproval:
			next := model.StateApproved
			if target == model.StateRejected {
				next = model.StateRejected
			}
			req = mustTransition(t, s, id, req.State, next, WithDecision("reviewer"))
		case model.StateApproved:
			req = mustTransition(t, s, id, req.State, model.StatePublishing, WithLease(s.now().Add(time.Minute)))
		case model.StatePublishing:
			switch target {
			case model.StateFailed:
				req = mustTransition(t, s, id, req.State, model.StateFailed, WithLeaseCleared())
			default:
				req = mustTransition(t, s, id, req.State, model.StatePublished, WithPublishedRef("ref-"+id[:8]), WithLeaseCleared())
			}
		default:
			t.Fatalf("cannot advance from %s to %s", req.State, target)
		}
	}
	return req
}
