package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/slava225678/parsing-count/internal/models"
)

const schema = `
	CREATE TABLE IF NOT EXISTS query_runs (
		id          UUID PRIMARY KEY,
		mode        TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		row_count   INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS query_results (
		run_id            UUID NOT NULL REFERENCES query_runs(id) ON DELETE CASCADE,
		position          INTEGER NOT NULL,
		query             TEXT NOT NULL,
		request_count     BIGINT NOT NULL,
		total             INTEGER,
		avg_price         DOUBLE PRECISION,
		prev_period_count DOUBLE PRECISION NOT NULL DEFAULT 0,
		avg_per_day       DOUBLE PRECISION NOT NULL DEFAULT 0,
		avg_per_day_prev  DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, position)
	);`

var resultColumns = []string{
	"run_id", "position", "query", "request_count", "total", "avg_price",
	"prev_period_count", "avg_per_day", "avg_per_day_prev",
}

// Run describes one finished pass over an input list.
type Run struct {
	ID         uuid.UUID
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ResultRepository stores assembled output rows so runs can be compared over time.
type ResultRepository struct {
	db *DB
}

func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun writes the run and all its rows in one transaction.
func (r *ResultRepository) SaveRun(ctx context.Context, run *Run, rows []models.OutputRow) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO query_runs (id, mode, started_at, finished_at, row_count)
			VALUES ($1, $2, $3, $4, $5)`,
			run.ID, run.Mode, run.StartedAt, run.FinishedAt, len(rows))
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		copied, err := tx.CopyFrom(ctx,
			pgx.Identifier{"query_results"},
			resultColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				row := rows[i]
				return []any{
					run.ID, i, row.Query, row.RequestCount, row.Total, row.AvgPrice,
					row.PrevPeriodCount, row.AvgPerDay, row.AvgPerDayPrev,
				}, nil
			}))
		if err != nil {
			return fmt.Errorf("failed to copy results: %w", err)
		}
		if int(copied) != len(rows) {
			return fmt.Errorf("copied %d of %d results", copied, len(rows))
		}
		return nil
	})
}

// CountResults returns how many rows were stored for a run.
func (r *ResultRepository) CountResults(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM query_results WHERE run_id = $1`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}
