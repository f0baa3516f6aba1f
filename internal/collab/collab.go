// Package collab defines the contracts for the external collaborators the
// lifecycle engine drives: the feed that supplies candidate questions, the
// drafter that writes answers, the moderator that screens them, and the
// platform that publishes them.
//
// The engine only ever talks to these interfaces; concrete adapters live in
// the subpackages (reddit, llm, moderation) and in testutil fakes.
package collab

import (
	"context"
	"time"

	"github.com/scribeops/scribe/internal/model"
)

// Item is a candidate unit from the feed, eligible for a response.
type Item struct {
	SourceItemID string
	Topic        string
	Title        string
	Body         string
	Author       string
	URL          string
	PostedAt     time.Time
}

// Draft is a generated candidate response plus supporting citations.
type Draft struct {
	Text       string
	Citations  []string
	Confidence float64
}

// Screening is the moderation collaborator's classification of a draft.
type Screening struct {
	Verdict model.Verdict
	Score   float64
	Flags   []string
}

// Feed supplies recent source items matching a topic filter. Poll must be
// safely callable repeatedly with overlapping results; the caller
// deduplicates.
type Feed interface {
	Poll(ctx context.Context, topic string, since time.Time, limit int) ([]Item, error)
}

// Drafter produces one candidate answer for a source item.
type Drafter interface {
	Draft(ctx context.Context, item Item) (Draft, error)
}

// Moderator scores a text for safety.
type Moderator interface {
	Score(ctx context.Context, text string) (Screening, error)
}

// Platform publishes a final text as a reply to a source item and returns
// the platform's reference for the published reply. Failures must be
// classified with ErrTransient or ErrPermanent so the publisher can decide
// between retry and termination.
type Platform interface {
	Publish(ctx context.Context, sourceItemID, text string) (ref string, err error)
}
