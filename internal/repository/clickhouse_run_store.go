package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SalesPulse/internal/domain/models"
	domrepo "SalesPulse/internal/domain/repository"
	pkgch "SalesPulse/pkg/clickhouse"
	applogger "SalesPulse/pkg/logger"
)

// CHRunStore keeps the training history in ClickHouse.
type CHRunStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.RunStore = (*CHRunStore)(nil)

func NewCHRunStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHRunStore {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHRunStore{ch: ch, db: ch.DB(), table: runTable(database), l: l}
}

func runTable(database string) string {
	if database == "" {
		return "training_runs"
	}
	return database + ".training_runs"
}

func runSchema(table string) []string {
	return []string{
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id           String,
            bundle_id    String,
            started_at   DateTime64(3, 'UTC'),
            finished_at  DateTime64(3, 'UTC'),
            records      UInt32,
            samples      UInt32,
            date_start   Date,
            date_end     Date,
            train_r2     Nullable(Float64),
            test_r2      Nullable(Float64),
            n_estimators UInt16,
            max_depth    UInt16
        )
        ENGINE = MergeTree
        ORDER BY (finished_at, id)
    `, table),
	}
}

func (s *CHRunStore) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, runSchema(s.table)); err != nil {
		s.l.Error("clickhouse run schema error", applogger.String("table", s.table), applogger.Error(err))
		return err
	}
	return nil
}

func (s *CHRunStore) Record(ctx context.Context, r models.TrainingRun) error {
	q := fmt.Sprintf(`
        INSERT INTO %s (id, bundle_id, started_at, finished_at, records, samples,
                        date_start, date_end, train_r2, test_r2, n_estimators, max_depth)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, s.table)
	_, err := s.db.ExecContext(ctx, q,
		r.ID, r.BundleID, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		uint32(r.Records), uint32(r.Samples), r.DateStart.UTC(), r.DateEnd.UTC(),
		nullFloat(r.TrainR2), nullFloat(r.TestR2), uint16(r.NEstimators), uint16(r.MaxDepth),
	)
	if err != nil {
		s.l.Error("clickhouse record_run error",
			applogger.String("table", s.table),
			applogger.String("run_id", r.ID),
			applogger.Error(err),
		)
		return fmt.Errorf("insert training run: %w", err)
	}
	return nil
}

func (s *CHRunStore) Recent(ctx context.Context, limit int) ([]models.TrainingRun, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT id, bundle_id, started_at, finished_at, records, samples,
               date_start, date_end, train_r2, test_r2, n_estimators, max_depth
        FROM %s
        ORDER BY finished_at DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		s.l.Error("clickhouse recent_runs query error",
			applogger.String("table", s.table),
			applogger.Int("limit", limit),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query training runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.TrainingRun, 0, limit)
	for rows.Next() {
		var (
			r                     models.TrainingRun
			records, samples      uint32
			nEstimators, maxDepth uint16
			trainR2, testR2       sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.BundleID, &r.StartedAt, &r.FinishedAt, &records, &samples,
			&r.DateStart, &r.DateEnd, &trainR2, &testR2, &nEstimators, &maxDepth); err != nil {
			s.l.Error("clickhouse recent_runs scan error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan training run: %w", err)
		}
		r.Records, r.Samples = int(records), int(samples)
		r.NEstimators, r.MaxDepth = int(nEstimators), int(maxDepth)
		r.TrainR2, r.TestR2 = floatPtr(trainR2), floatPtr(testR2)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse recent_runs ok",
		applogger.String("table", s.table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// Close is a no-op; the client is owned by the caller.
func (s *CHRunStore) Close() error {
	return nil
}
