// Package testutil provides in-memory fakes for the engine's external
// collaborators. All fakes are safe for concurrent use.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scribeops/scribe/internal/collab"
	"github.com/scribeops/scribe/internal/model"
)

// FakeFeed serves a scripted queue of item batches. Each Poll call
// consumes one batch; when the script is exhausted it returns empty
// results, like a quiet subreddit.
type FakeFeed struct {
	mu      sync.Mutex
	batches [][]collab.Item
	err     error
	polls   int
}

var _ collab.Feed = (*FakeFeed)(nil)

func NewFakeFeed(batches ...[]collab.Item) *FakeFeed {
	return &FakeFeed{batches: batches}
}

// Queue appends one batch to be returned by a future Poll call.
func (f *FakeFeed) Queue(items ...collab.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, items)
}

// Fail makes every subsequent Poll return err.
func (f *FakeFeed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeFeed) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *FakeFeed) Poll(_ context.Context, _ string, _ time.Time, _ int) ([]collab.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

// FakeDrafter returns a canned draft, or per-item drafts when Scripted
// entries are present.
type FakeDrafter struct {
	mu       sync.Mutex
	Default  collab.Draft
	Scripted map[string]collab.Draft // keyed by SourceItemID
	err      error
	calls    int
}

var _ collab.Drafter = (*FakeDrafter)(nil)

func NewFakeDrafter() *FakeDrafter {
	return &FakeDrafter{
		Default: collab.Draft{
			Text:       "Here is a suggested answer.",
			Citations:  []string{"https://example.com/docs"},
			Confidence: 0.8,
		},
	}
}

func (d *FakeDrafter) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *FakeDrafter) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *FakeDrafter) Draft(_ context.Context, item collab.Item) (collab.Draft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return collab.Draft{}, d.err
	}
	if draft, ok := d.Scripted[item.SourceItemID]; ok {
		return draft, nil
	}
	return d.Default, nil
}

// FakeModerator screens every draft with a fixed verdict.
type FakeModerator struct {
	mu        sync.Mutex
	screening collab.Screening
	err       error
	calls     int
}

var _ collab.Moderator = (*FakeModerator)(nil)

func NewFakeModerator() *FakeModerator {
	return &FakeModerator{
		screening: collab.Screening{Verdict: model.VerdictPass, Score: 1.0, Flags: []string{}},
	}
}

// Screen sets the screening returned by every subsequent Score call.
func (m *FakeModerator) Screen(s collab.Screening) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screening = s
}

func (m *FakeModerator) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *FakeModerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *FakeModerator) Score(_ context.Context, _ string) (collab.Screening, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return collab.Screening{}, m.err
	}
	return m.screening, nil
}

// PublishRecord captures one successful publish.
type PublishRecord struct {
	SourceItemID string
	Text         string
	Ref          string
}

// FakePlatform records publishes and can be scripted to fail a number
// of times before succeeding, for retry tests.
type FakePlatform struct {
	mu        sync.Mutex
	published []PublishRecord
	failures  []error // consumed one per call before succeeding
	stickyErr error
	calls     int
}

var _ collab.Platform = (*FakePlatform)(nil)

func NewFakePlatform() *FakePlatform {
	return &FakePlatform{}
}

// FailNext queues errors returned by the next len(errs) calls, in order.
func (p *FakePlatform) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, errs...)
}

// Fail makes every subsequent call return err until cleared.
func (p *FakePlatform) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stickyErr = err
}

func (p *FakePlatform) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *FakePlatform) Published() []PublishRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishRecord, len(p.published))
	copy(out, p.published)
	return out
}

func (p *FakePlatform) Publish(_ context.Context, sourceItemID, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		return "", err
	}
	if p.stickyErr != nil {
		return "", p.stickyErr
	}
	rec := PublishRecord{
		SourceItemID: sourceItemID,
		Text:         text,
		Ref:          fmt.Sprintf("t1_fake%d", p.calls),
	}
	p.published = append(p.published, rec)
	return rec.Ref, nil
}
