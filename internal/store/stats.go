package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/scribeops/scribe/internal/model"
)

// Stats summarizes the request table for dashboards and the stats
// command. Read-only.
type Stats struct {
	ByState map[model.State]int `json:"by_state"`
	Total   int                 `json:"total"`
}

// Outcomes counts terminal results over a time window.
type Outcomes struct {
	Window    time.Duration `json:"-"`
	Published int           `json:"published"`
	Rejected  int           `json:"rejected"`
	Failed    int           `json:"failed"`
}

// CountByState returns request counts grouped by state.
func (s *Store) CountByState(ctx context.Context) (*Stats, error) {
	query, args, err := sq.Select("state", "COUNT(*)").
		From("requests").
		GroupBy("state").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByState: make(map[model.State]int)}
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.ByState[model.State(state)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}

// OutcomesSince counts requests that reached a terminal state within the
// window ending now.
func (s *Store) OutcomesSince(ctx context.Context, window time.Duration) (*Outcomes, error) {
	cutoff := s.now().Add(-window).UnixNano()

	terminal := make([]string, 0, 3)
	for _, st := range model.TerminalStates() {
		terminal = append(terminal, string(st))
	}

	query, args, err := sq.Select("state", "COUNT(*)").
		From("requests").
		Where(sq.Eq{"state": terminal}).
		Where(sq.GtOrEq{"updated_at": cutoff}).
		GroupBy("state").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build outcomes query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	out := &Outcomes{Window: window}
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		switch model.State(state) {
		case model.StatePublished:
			out.Published = count
		case model.StateRejected:
			out.Rejected = count
		case model.StateFailed:
			out.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}
