package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Admit makes the single logical admission decision for a source item:
// it returns true exactly when the poller should hand the item to the
// coordinator now.
//
// An item is admitted when it has never been seen, or when it is an
// orphan: seen before, but no request exists for it (the coordinator
// failed after admission) and the last admission is older than
// orphanAfter. Marking seen without a request must not suppress an item
// forever, so orphans are re-admitted; items with any request, active or
// terminal, are suppressed permanently.
//
// The seen row and the request-existence check live in one transaction
// so concurrent pollers cannot both admit the same item.
func (s *Store) Admit(ctx context.Context, sourceItemID string, orphanAfter time.Duration) (bool, error) {
	if sourceItemID == "" {
		return false, fmt.Errorf("admit: source item id is required")
	}

	now := s.now()
	admitted := false

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var requestCount int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM requests WHERE source_item_id = ?`, sourceItemID,
		).Scan(&requestCount); err != nil {
			return fmt.Errorf("count requests: %w", err)
		}

		var lastAdmitted int64
		err := tx.QueryRowContext(ctx,
			`SELECT last_admitted_at FROM seen_items WHERE source_item_id = ?`, sourceItemID,
		).Scan(&lastAdmitted)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			// Never seen. Record it; admit unless a request somehow
			// already exists (e.g. seen row lost to a partial restore).
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO seen_items (source_item_id, first_seen_at, last_admitted_at)
				VALUES (?, ?, ?)
			`, sourceItemID, toUnixNano(now), toUnixNano(now)); err != nil {
				return fmt.Errorf("mark seen: %w", err)
			}
			admitted = requestCount == 0
			return nil

		case err != nil:
			return fmt.Errorf("read seen item: %w", err)
		}

		if requestCount > 0 {
			// Seen and handled; nothing to do.
			return nil
		}

		// Seen but no request: the coordinator never finished. Re-admit
		// once the orphan timeout has passed, otherwise assume a
		// coordinator is still working on it.
		if now.Sub(fromUnixNano(lastAdmitted)) < orphanAfter {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE seen_items SET last_admitted_at = ? WHERE source_item_id = ?`,
			toUnixNano(now), sourceItemID,
		); err != nil {
			return fmt.Errorf("re-admit orphan: %w", err)
		}
		admitted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return admitted, nil
}

// HasSeen reports whether the source item is in the dedup set.
func (s *Store) HasSeen(ctx context.Context, sourceItemID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_items WHERE source_item_id = ?`, sourceItemID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

// MarkSeen records a source item in the dedup set without admitting it.
// Idempotent.
func (s *Store) MarkSeen(ctx context.Context, sourceItemID string) error {
	now := toUnixNano(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_items (source_item_id, first_seen_at, last_admitted_at)
		VALUES (?, ?, ?)
		ON CONFLICT(source_item_id) DO NOTHING
	`, sourceItemID, now, now)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// Orphans returns seen source items with no request whose last admission
// is older than olderThan. Exposed for operational inspection.
func (s *Store) Orphans(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := toUnixNano(s.now().Add(-olderThan))
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.source_item_id
		FROM seen_items si
		LEFT JOIN requests r ON r.source_item_id = si.source_item_id
		WHERE r.id IS NULL AND si.last_admitted_at <= ?
		ORDER BY si.last_admitted_at ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query orphans: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan orphan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orphans: %w", err)
	}
	return ids, nil
}
