package model

import "time"

// State identifies where a request sits in its lifecycle.
//
// Requests move along the edges defined in transitions.go; any other
// move is rejected with a StaleStateError. REJECTED, PUBLISHED and
// FAILED are terminal.
type State string

const (
	StateDrafted         State = "DRAFTED"
	StatePendingApproval State = "PENDING_APPROVAL"
	StateApproved        State = "APPROVED"
	StateRejected        State = "REJECTED"
	StatePublishing      State = "PUBLISHING"
	StatePublished       State = "PUBLISHED"
	StateFailed          State = "FAILED"
)

// Verdict is the moderation classification of a draft.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictFlagged Verdict = "FLAGGED"
	VerdictBlocked Verdict = "BLOCKED"
)

// Decision is a reviewer's ruling on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Request is the unit of work: one candidate answer to one source item,
// tracked from draft to publication (or termination).
//
// DraftText, Citations and Confidence are set once at creation and never
// mutated; a reviewer edit lands in FinalText, preserving provenance.
// PublishedRef is non-empty iff State is PUBLISHED.
type Request struct {
	ID           string
	SourceItemID string

	// Source item snapshot, carried for the reviewer's benefit.
	Topic        string
	SourceTitle  string
	SourceBody   string
	SourceAuthor string
	SourceURL    string

	DraftText  string
	Citations  []string
	Confidence float64

	Verdict         Verdict
	ModerationScore float64
	ModerationFlags []string

	State        State
	FinalText    string
	PublishedRef string

	PublishAttempts int
	LeaseExpiresAt  time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DecidedBy string
	DecidedAt time.Time
}

// Terminated reports whether the request has reached a terminal state.
func (r *Request) Terminated() bool {
	return IsTerminal(r.State)
}

// AuditEntry is one append-only record of a state transition.
//
// A request's history is reconstructable solely from its audit entries;
// entries are never mutated or deleted.
type AuditEntry struct {
	ID        int64
	RequestID string
	FromState State
	ToState   State
	Actor     string
	Note      string
	CreatedAt time.Time
}
