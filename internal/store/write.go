package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/ir"
)

// Append writes one experiment run in a single transaction. A session that
// was already appended is rejected.
func (s *Store) Append(ctx context.Context, res *engine.Result) error {
	if res == nil {
		return fmt.Errorf("append: nil result")
	}
	if res.Session == "" || res.Context == "" || res.Subject == "" {
		return ir.NewConfigurationError("append: session, context and subject are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (session, context, subject, started_at)
		VALUES (?, ?, ?, ?)
	`, res.Session, res.Context, res.Subject, res.Started.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("append session %s: %w", res.Session, err)
	}

	w := rowWriter{tx: tx, res: res}
	phases := []struct {
		phase     engine.Phase
		events    ir.EventLog
		responses ir.ResponseLog
	}{
		{engine.PhasePre, res.PreEvents, res.PreResponses},
		{engine.PhaseMain, res.Events, res.Responses},
		{engine.PhasePost, res.PostEvents, res.PostResponses},
	}
	for _, p := range phases {
		if err := w.events(ctx, p.phase, p.events); err != nil {
			return err
		}
		if err := w.responses(ctx, p.phase, p.responses); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append: commit: %w", err)
	}
	return nil
}

type rowWriter struct {
	tx  *sql.Tx
	res *engine.Result
}

func (w rowWriter) events(ctx context.Context, phase engine.Phase, log ir.EventLog) error {
	if len(log) == 0 {
		return nil
	}
	stmt, err := w.tx.PrepareContext(ctx, `
		INSERT INTO events
		(context, subject, session, phase, time, name, condition, on_call, on_frame, on_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("append events: prepare: %w", err)
	}
	defer stmt.Close()

	for i, rec := range log {
		if _, err := stmt.ExecContext(ctx,
			w.res.Context,
			w.res.Subject,
			w.res.Session,
			string(phase),
			rec.Time,
			rec.Name,
			rec.Condition,
			nullable(rec.OnCall),
			nullable(rec.OnFrame),
			nullable(rec.OnEnd),
		); err != nil {
			return fmt.Errorf("append %s event %d: %w", phase, i, err)
		}
	}
	return nil
}

func (w rowWriter) responses(ctx context.Context, phase engine.Phase, log ir.ResponseLog) error {
	if len(log) == 0 {
		return nil
	}
	stmt, err := w.tx.PrepareContext(ctx, `
		INSERT INTO responses
		(context, subject, session, phase, time, key, score, rt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("append responses: prepare: %w", err)
	}
	defer stmt.Close()

	for i, rec := range log {
		if _, err := stmt.ExecContext(ctx,
			w.res.Context,
			w.res.Subject,
			w.res.Session,
			string(phase),
			rec.Time,
			rec.Key,
			nullable(rec.Score),
			nullable(rec.RT),
		); err != nil {
			return fmt.Errorf("append %s response %d: %w", phase, i, err)
		}
	}
	return nil
}

// nullable maps NaN to SQL NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

// fromNullable maps SQL NULL back to NaN.
func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return ir.Null()
	}
	return v.Float64
}
