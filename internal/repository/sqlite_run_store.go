package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SalesPulse/internal/domain/models"
	domrepo "SalesPulse/internal/domain/repository"

	_ "modernc.org/sqlite"
)

const sqliteRunSchema = `
CREATE TABLE IF NOT EXISTS training_runs (
    id           TEXT PRIMARY KEY,
    bundle_id    TEXT    NOT NULL,
    started_at   TEXT    NOT NULL,
    finished_at  TEXT    NOT NULL,
    records      INTEGER NOT NULL DEFAULT 0,
    samples      INTEGER NOT NULL DEFAULT 0,
    date_start   TEXT    NOT NULL,
    date_end     TEXT    NOT NULL,
    train_r2     REAL,
    test_r2      REAL,
    n_estimators INTEGER NOT NULL DEFAULT 0,
    max_depth    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_finished ON training_runs(finished_at DESC);
`

// sqliteTime is fixed width so TEXT ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteRunStore is the default local training history.
type SQLiteRunStore struct {
	db *sql.DB
}

var _ domrepo.RunStore = (*SQLiteRunStore)(nil)

// NewSQLiteRunStore opens (or creates) the database at path. Use ":memory:"
// for an ephemeral store.
func NewSQLiteRunStore(path string) (*SQLiteRunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &SQLiteRunStore{db: db}, nil
}

func (s *SQLiteRunStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteRunSchema); err != nil {
		return fmt.Errorf("apply run schema: %w", err)
	}
	return nil
}

func (s *SQLiteRunStore) Record(ctx context.Context, r models.TrainingRun) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_runs
            (id, bundle_id, started_at, finished_at, records, samples, date_start, date_end,
             train_r2, test_r2, n_estimators, max_depth)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BundleID,
		r.StartedAt.UTC().Format(sqliteTime), r.FinishedAt.UTC().Format(sqliteTime),
		r.Records, r.Samples,
		r.DateStart.UTC().Format(sqliteTime), r.DateEnd.UTC().Format(sqliteTime),
		nullFloat(r.TrainR2), nullFloat(r.TestR2),
		r.NEstimators, r.MaxDepth,
	)
	if err != nil {
		return fmt.Errorf("insert training run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *SQLiteRunStore) Recent(ctx context.Context, limit int) ([]models.TrainingRun, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, bundle_id, started_at, finished_at, records, samples, date_start, date_end,
               train_r2, test_r2, n_estimators, max_depth
        FROM training_runs
        ORDER BY finished_at DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query training runs: %w", err)
	}
	defer rows.Close()

	var out []models.TrainingRun
	for rows.Next() {
		var (
			r                               models.TrainingRun
			started, finished, dStart, dEnd string
			trainR2, testR2                 sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.BundleID, &started, &finished, &r.Records, &r.Samples,
			&dStart, &dEnd, &trainR2, &testR2, &r.NEstimators, &r.MaxDepth); err != nil {
			return nil, fmt.Errorf("scan training run: %w", err)
		}
		for _, f := range []struct {
			raw string
			dst *time.Time
		}{{started, &r.StartedAt}, {finished, &r.FinishedAt}, {dStart, &r.DateStart}, {dEnd, &r.DateEnd}} {
			t, err := time.Parse(sqliteTime, f.raw)
			if err != nil {
				return nil, fmt.Errorf("parse run time %q: %w", f.raw, err)
			}
			*f.dst = t
		}
		r.TrainR2 = floatPtr(trainR2)
		r.TestR2 = floatPtr(testR2)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
