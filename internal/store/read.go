package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/ir"
)

// SessionRow describes one appended run.
type SessionRow struct {
	Session string
	Context string
	Subject string
	Started time.Time
}

// EventRow is a stored event record with its identity columns.
type EventRow struct {
	Session string
	Subject string
	Phase   engine.Phase
	ir.EventRecord
}

// ResponseRow is a stored response record with its identity columns.
type ResponseRow struct {
	Session string
	Subject string
	Phase   engine.Phase
	ir.ResponseRecord
}

// Sessions returns every run appended under label, oldest first.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) Sessions(ctx context.Context, label string) ([]SessionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, context, subject, started_at
		FROM sessions
		WHERE context = ?
		ORDER BY rowid ASC
	`, label)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionRow{}
	for rows.Next() {
		var (
			row     SessionRow
			started string
		)
		if err := rows.Scan(&row.Session, &row.Context, &row.Subject, &started); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		row.Started, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at of %s: %w", row.Session, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Events returns every event stored under label in append order.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) Events(ctx context.Context, label string) ([]EventRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, subject, phase, time, name, condition, on_call, on_frame, on_end
		FROM events
		WHERE context = ?
		ORDER BY id ASC
	`, label)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []EventRow{}
	for rows.Next() {
		var (
			row                    EventRow
			phase                  string
			onCall, onFrame, onEnd sql.NullFloat64
		)
		if err := rows.Scan(&row.Session, &row.Subject, &phase,
			&row.Time, &row.Name, &row.Condition,
			&onCall, &onFrame, &onEnd,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		row.Phase = engine.Phase(phase)
		row.OnCall = fromNullable(onCall)
		row.OnFrame = fromNullable(onFrame)
		row.OnEnd = fromNullable(onEnd)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Responses returns every response stored under label in append order.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) Responses(ctx context.Context, label string) ([]ResponseRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, subject, phase, time, key, score, rt
		FROM responses
		WHERE context = ?
		ORDER BY id ASC
	`, label)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	out := []ResponseRow{}
	for rows.Next() {
		var (
			row       ResponseRow
			phase     string
			score, rt sql.NullFloat64
		)
		if err := rows.Scan(&row.Session, &row.Subject, &phase,
			&row.Time, &row.Key, &score, &rt,
		); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		row.Phase = engine.Phase(phase)
		row.Score = fromNullable(score)
		row.RT = fromNullable(rt)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return out, nil
}

// MainLogs reassembles the main-phase logs of one session.
func (s *Store) MainLogs(ctx context.Context, label, session string) (ir.EventLog, ir.ResponseLog, error) {
	events, err := s.Events(ctx, label)
	if err != nil {
		return nil, nil, err
	}
	responses, err := s.Responses(ctx, label)
	if err != nil {
		return nil, nil, err
	}

	var el ir.EventLog
	for _, row := range events {
		if row.Session == session && row.Phase == engine.PhaseMain {
			el = append(el, row.EventRecord)
		}
	}
	var rl ir.ResponseLog
	for _, row := range responses {
		if row.Session == session && row.Phase == engine.PhaseMain {
			rl = append(rl, row.ResponseRecord)
		}
	}
	return el, rl, nil
}
