package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/postgres"
)

// schema creates the tables used by HistoryStore.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
    id          BIGSERIAL PRIMARY KEY,
    run_id      TEXT NOT NULL,
    input_date  TEXT NOT NULL,
    input_path  TEXT NOT NULL,
    status      TEXT NOT NULL,
    stage       TEXT,
    error       TEXT,
    extraction  TEXT,
    duration_ms BIGINT NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS pipeline_relocations (
    run_pk    BIGINT NOT NULL REFERENCES pipeline_runs(id) ON DELETE CASCADE,
    artifact  TEXT NOT NULL,
    src       TEXT NOT NULL,
    dst       TEXT NOT NULL,
    status    TEXT NOT NULL,
    error     TEXT
)`,
	`CREATE INDEX IF NOT EXISTS pipeline_runs_finished_at ON pipeline_runs (finished_at DESC)`,
}

// HistoryStore keeps a run-history table in PostgreSQL. Each outcome is one
// pipeline_runs row plus one pipeline_relocations row per attempted move,
// written in a single transaction.
type HistoryStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewHistoryStore(db *postgres.Client) *HistoryStore {
	return &HistoryStore{
		db:     db,
		logger: logger.WithComponent("history-store"),
	}
}

// EnsureSchema creates the history tables if they do not exist.
func (s *HistoryStore) EnsureSchema(ctx context.Context) error {
	if err := s.db.Migrate(ctx, schema...); err != nil {
		return fmt.Errorf("creating history schema: %w", err)
	}
	return nil
}

func (s *HistoryStore) Record(ctx context.Context, o Outcome) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var pk int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO pipeline_runs
			   (run_id, input_date, input_path, status, stage, error, extraction, duration_ms, finished_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			o.RunID, o.Date, o.Input, string(o.Status),
			nullString(o.Stage), nullString(o.Error), nullString(o.Strategy),
			o.Duration.Milliseconds(), o.FinishedAt.UTC(),
		).Scan(&pk)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}
		for _, m := range o.Moves {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO pipeline_relocations (run_pk, artifact, src, dst, status, error)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				pk, m.Artifact, m.From, m.To, string(m.Status), nullString(m.Error),
			)
			if err != nil {
				return fmt.Errorf("inserting relocation %s: %w", m.Artifact, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", o.Date, err)
	}
	s.logger.Debug("outcome recorded", "date", o.Date, "status", o.Status)
	return nil
}

// Recent returns the latest limit outcomes, newest first. Relocation rows
// are not loaded.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]Outcome, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT run_id, input_date, input_path, status,
		        COALESCE(stage, ''), COALESCE(error, ''), COALESCE(extraction, ''),
		        duration_ms, finished_at
		   FROM pipeline_runs
		  ORDER BY finished_at DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o      Outcome
			status string
			ms     int64
		)
		if err := rows.Scan(&o.RunID, &o.Date, &o.Input, &status,
			&o.Stage, &o.Error, &o.Strategy, &ms, &o.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		o.Status = Status(status)
		o.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
