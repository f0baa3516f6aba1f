package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/scribeops/scribe/internal/model"
)

// ActorModeration is the audit actor recorded for automatic transitions
// driven by the moderation verdict.
const ActorModeration = "moderation"

// NewRequest carries everything needed to create a request from a
// completed draft+moderation round trip.
type NewRequest struct {
	SourceItemID string
	Topic        string
	SourceTitle  string
	SourceBody   string
	SourceAuthor string
	SourceURL    string

	DraftText  string
	Citations  []string
	Confidence float64

	Verdict         model.Verdict
	ModerationScore float64
	ModerationFlags []string

	// Actor recorded on the creation audit entry, e.g. "coordinator".
	Actor string
}

// CreateFromDraft creates a request and drives it out of DRAFTED in a
// single transaction: the row is inserted as DRAFTED with its creation
// audit entry, then the DRAFTED -> PENDING_APPROVAL edge (or
// DRAFTED -> REJECTED for a BLOCKED verdict) is applied with a second
// audit entry. No request is ever observable in DRAFTED.
//
// Returns ErrDuplicateActive if a non-terminated request already exists
// for the source item.
func (s *Store) CreateFromDraft(ctx context.Context, nr NewRequest) (*model.Request, error) {
	if nr.SourceItemID == "" {
		return nil, fmt.Errorf("create request: source item id is required")
	}
	if nr.DraftText == "" {
		return nil, fmt.Errorf("create request: draft text is required")
	}

	citations, err := marshalStrings(nr.Citations)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	flags, err := marshalStrings(nr.ModerationFlags)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	id := uuid.Must(uuid.NewV7()).String()
	now := s.now()

	next := model.StatePendingApproval
	note := fmt.Sprintf("moderation %s (score %.2f)", nr.Verdict, nr.ModerationScore)
	if nr.Verdict == model.VerdictBlocked {
		// Hard safety rule: a BLOCKED draft never reaches a human.
		next = model.StateRejected
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO requests
			(id, source_item_id, topic, source_title, source_body, source_author, source_url,
			 draft_text, citations, confidence,
			 moderation_verdict, moderation_score, moderation_flags,
			 state, final_text, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, nr.SourceItemID, nr.Topic, nr.SourceTitle, nr.SourceBody, nr.SourceAuthor, nr.SourceURL,
			nr.DraftText, citations, nr.Confidence,
			string(nr.Verdict), nr.ModerationScore, flags,
			string(model.StateDrafted), nr.DraftText, toUnixNano(now), toUnixNano(now),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateActive
			}
			return fmt.Errorf("insert request: %w", err)
		}

		if err := appendAudit(ctx, tx, id, "", model.StateDrafted, nr.Actor,
			fmt.Sprintf("draft created (confidence %.2f)", nr.Confidence), now); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE requests SET state = ?, updated_at = ? WHERE id = ?`,
			string(next), toUnixNano(now), id,
		); err != nil {
			return fmt.Errorf("apply verdict: %w", err)
		}

		return appendAudit(ctx, tx, id, model.StateDrafted, next, ActorModeration, note, now)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// TransitionOpt adds column updates to a transition.
type TransitionOpt func(*transitionUpdate)

type transitionUpdate struct {
	finalText    *string
	decidedBy    *string
	publishedRef *string
	lease        *time.Time
	clearLease   bool
	bumpAttempts bool
}

// WithFinalText overwrites final_text, used when a reviewer approves with
// an edit.
func WithFinalText(text string) TransitionOpt {
	return func(u *transitionUpdate) { u.finalText = &text }
}

// WithDecision records the reviewer identity and decision time.
func WithDecision(reviewer string) TransitionOpt {
	return func(u *transitionUpdate) { u.decidedBy = &reviewer }
}

// WithPublishedRef stores the platform's reference for the published
// reply. Only valid together with a transition to PUBLISHED.
func WithPublishedRef(ref string) TransitionOpt {
	return func(u *transitionUpdate) { u.publishedRef = &ref }
}

// WithLease sets the publishing lease expiry.
func WithLease(until time.Time) TransitionOpt {
	return func(u *transitionUpdate) { u.lease = &until }
}

// WithLeaseCleared zeroes the publishing lease.
func WithLeaseCleared() TransitionOpt {
	return func(u *transitionUpdate) { u.clearLease = true }
}

// WithAttemptBump increments the publish attempt counter.
func WithAttemptBump() TransitionOpt {
	return func(u *transitionUpdate) { u.bumpAttempts = true }
}

// Transition applies one state-machine edge atomically: the current state
// is checked inside the transaction, the row is updated, and exactly one
// audit entry is appended. A request whose persisted state differs from
// `from`, or an edge not defined by the state machine, fails with a
// *model.StaleStateError and leaves the row untouched.
func (s *Store) Transition(ctx context.Context, id string, from, to model.State, actor, note string, opts ...TransitionOpt) (*model.Request, error) {
	var update transitionUpdate
	for _, opt := range opts {
		opt(&update)
	}

	// published_ref is non-null iff state is PUBLISHED.
	if to == model.StatePublished && (update.publishedRef == nil || *update.publishedRef == "") {
		return nil, fmt.Errorf("transition to %s requires a published ref", model.StatePublished)
	}
	if to != model.StatePublished && update.publishedRef != nil {
		return nil, fmt.Errorf("published ref may only be set on transition to %s", model.StatePublished)
	}

	now := s.now()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT state FROM requests WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read state: %w", err)
		}

		if model.State(current) != from {
			return &model.StaleStateError{
				RequestID: id,
				Expected:  from,
				Current:   model.State(current),
				Target:    to,
			}
		}
		if !model.CanTransition(from, to) {
			return &model.StaleStateError{
				RequestID: id,
				Expected:  from,
				Current:   from,
				Target:    to,
			}
		}

		query := `UPDATE requests SET state = ?, updated_at = ?`
		args := []any{string(to), toUnixNano(now)}

		if update.finalText != nil {
			query += `, final_text = ?`
			args = append(args, *update.finalText)
		}
		if update.decidedBy != nil {
			query += `, decided_by = ?, decided_at = ?`
			args = append(args, *update.decidedBy, toUnixNano(now))
		}
		if update.publishedRef != nil {
			query += `, published_ref = ?`
			args = append(args, *update.publishedRef)
		}
		if update.lease != nil {
			query += `, lease_expires_at = ?`
			args = append(args, toUnixNano(*update.lease))
		}
		if update.clearLease {
			query += `, lease_expires_at = 0`
		}
		if update.bumpAttempts {
			query += `, publish_attempts = publish_attempts + 1`
		}

		// The WHERE clause re-checks state so the read above and this
		// update stay consistent even if SQLite's locking changes.
		query += ` WHERE id = ? AND state = ?`
		args = append(args, id, string(from))

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return &model.StaleStateError{RequestID: id, Expected: from, Current: model.State(current), Target: to}
		}

		return appendAudit(ctx, tx, id, from, to, actor, note, now)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// appendAudit inserts one audit entry inside the caller's transaction.
func appendAudit(ctx context.Context, tx *sql.Tx, requestID string, from, to model.State, actor, note string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_entries (request_id, from_state, to_state, actor, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, requestID, string(from), string(to), actor, note, toUnixNano(at))
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure (the partial index on active source items).
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
