package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/scribeops/scribe/internal/model"
)

var requestColumns = []string{
	"id", "source_item_id", "topic", "source_title", "source_body", "source_author", "source_url",
	"draft_text", "citations", "confidence",
	"moderation_verdict", "moderation_score", "moderation_flags",
	"state", "final_text", "published_ref", "publish_attempts", "lease_expires_at",
	"created_at", "updated_at", "decided_by", "decided_at",
}

// Get returns the request with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*model.Request, error) {
	query, args, err := sq.Select(requestColumns...).
		From("requests").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	return req, nil
}

// ListByState returns requests in the given state, oldest first. The
// ordering is stable: created_at with id as tie-breaker (IDs are UUIDv7,
// themselves time-sortable). limit <= 0 means no limit.
func (s *Store) ListByState(ctx context.Context, state model.State, limit int) ([]*model.Request, error) {
	builder := sq.Select(requestColumns...).
		From("requests").
		Where(sq.Eq{"state": string(state)}).
		OrderBy("created_at ASC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	return s.queryRequests(ctx, query, args...)
}

// ExpiredLeases returns PUBLISHING requests whose lease expired at or
// before now, oldest lease first. These are crash leftovers the sweeper
// returns to APPROVED.
func (s *Store) ExpiredLeases(ctx context.Context, now time.Time) ([]*model.Request, error) {
	query, args, err := sq.Select(requestColumns...).
		From("requests").
		Where(sq.Eq{"state": string(model.StatePublishing)}).
		Where(sq.Gt{"lease_expires_at": 0}).
		Where(sq.LtOrEq{"lease_expires_at": now.UnixNano()}).
		OrderBy("lease_expires_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build expired leases query: %w", err)
	}

	return s.queryRequests(ctx, query, args...)
}

// ActiveBySource returns the non-terminated request for a source item,
// or ErrNotFound when none exists.
func (s *Store) ActiveBySource(ctx context.Context, sourceItemID string) (*model.Request, error) {
	terminal := make([]string, 0, 3)
	for _, st := range model.TerminalStates() {
		terminal = append(terminal, string(st))
	}

	query, args, err := sq.Select(requestColumns...).
		From("requests").
		Where(sq.Eq{"source_item_id": sourceItemID}).
		Where(sq.NotEq{"state": terminal}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build active query: %w", err)
	}

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active request for %s: %w", sourceItemID, err)
	}
	return req, nil
}

// HasRequest reports whether any request (active or terminal) exists for
// the source item.
func (s *Store) HasRequest(ctx context.Context, sourceItemID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE source_item_id = ?`, sourceItemID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count requests for %s: %w", sourceItemID, err)
	}
	return count > 0, nil
}

// AuditTrail returns every audit entry for a request in write order.
func (s *Store) AuditTrail(ctx context.Context, requestID string) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, from_state, to_state, actor, note, created_at
		FROM audit_entries
		WHERE request_id = ?
		ORDER BY id ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var (
			entry     model.AuditEntry
			from, to  string
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.RequestID, &from, &to, &entry.Actor, &entry.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.FromState = model.State(from)
		entry.ToState = model.State(to)
		entry.CreatedAt = fromUnixNano(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit trail: %w", err)
	}
	return entries, nil
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]*model.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []*model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*model.Request, error) {
	var (
		req                           model.Request
		citations, flags              string
		verdict, state                string
		publishedRef                  sql.NullString
		leaseAt, createdAt, updatedAt int64
		decidedAt                     int64
	)

	err := row.Scan(
		&req.ID, &req.SourceItemID, &req.Topic, &req.SourceTitle, &req.SourceBody, &req.SourceAuthor, &req.SourceURL,
		&req.DraftText, &citations, &req.Confidence,
		&verdict, &req.ModerationScore, &flags,
		&state, &req.FinalText, &publishedRef, &req.PublishAttempts, &leaseAt,
		&createdAt, &updatedAt, &req.DecidedBy, &decidedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Citations, err = unmarshalStrings(citations)
	if err != nil {
		return nil, err
	}
	req.ModerationFlags, err = unmarshalStrings(flags)
	if err != nil {
		return nil, err
	}

	req.Verdict = model.Verdict(verdict)
	req.State = model.State(state)
	if publishedRef.Valid {
		req.PublishedRef = publishedRef.String
	}
	req.LeaseExpiresAt = fromUnixNano(leaseAt)
	req.CreatedAt = fromUnixNano(createdAt)
	req.UpdatedAt = fromUnixNano(updatedAt)
	req.DecidedAt = fromUnixNano(decidedAt)

	return &req, nil
}
