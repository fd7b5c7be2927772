package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SalesPulse/internal/domain/models"
	domrepo "SalesPulse/internal/domain/repository"
	applogger "SalesPulse/pkg/logger"
	"SalesPulse/pkg/util"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const sourcePostgres = "postgres"

// pgQuerier is the subset of *pgxpool.Pool the source needs.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSalesSource reads the sale table directly with keyset pagination.
type PostgresSalesSource struct {
	db        pgQuerier
	query     string
	table     string
	batchSize int
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

func NewPostgresSalesSource(db pgQuerier, table string, batchSize int, m domrepo.Metrics, l *applogger.Logger) *PostgresSalesSource {
	if table == "" {
		table = "sale"
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	if l == nil {
		l = applogger.NewNop()
	}
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	return &PostgresSalesSource{
		db:        db,
		table:     table,
		query:     fmt.Sprintf(`SELECT id, date, shop, amount::text FROM %s WHERE id > $1 ORDER BY id LIMIT $2`, ident),
		batchSize: batchSize,
		metrics:   m,
		l:         l,
	}
}

func (s *PostgresSalesSource) Name() string { return sourcePostgres }

func (s *PostgresSalesSource) FetchAll(ctx context.Context) ([]models.SaleRecord, error) {
	return drain(ctx, s.Pages(ctx))
}

func (s *PostgresSalesSource) Pages(_ context.Context) domrepo.PageIterator {
	return &pgPageIterator{src: s}
}

type pgPageIterator struct {
	src    *PostgresSalesSource
	lastID int64
	seen   int
	done   bool
}

func (it *pgPageIterator) Next(ctx context.Context) ([]models.SaleRecord, bool, error) {
	if it.done {
		return nil, false, nil
	}
	s := it.src

	start := time.Now()
	rows, err := s.db.Query(ctx, s.query, it.lastID, s.batchSize)
	if err != nil {
		it.done = true
		return nil, false, s.transportError(err)
	}
	defer rows.Close()

	out := make([]models.SaleRecord, 0, s.batchSize)
	for rows.Next() {
		var (
			id     int64
			date   time.Time
			shop   *string
			amount *string
		)
		if err := rows.Scan(&id, &date, &shop, &amount); err != nil {
			it.done = true
			return nil, false, s.transportError(fmt.Errorf("scan sale: %w", err))
		}
		it.lastID = id

		rec, err := saleFromRow(date, shop, amount, it.seen)
		it.seen++
		if err != nil {
			it.done = true
			return nil, false, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		it.done = true
		return nil, false, s.transportError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordPage(sourcePostgres)
		s.metrics.RecordLatency("fetch_page", time.Since(start))
	}

	if len(out) < s.batchSize {
		it.done = true
		return out, false, nil
	}
	return out, true, nil
}

func saleFromRow(date time.Time, shop, amount *string, index int) (models.SaleRecord, error) {
	if date.IsZero() {
		return models.SaleRecord{}, &models.MissingFieldError{Field: "date", Index: index}
	}
	if shop == nil || strings.TrimSpace(*shop) == "" {
		return models.SaleRecord{}, &models.MissingFieldError{Field: "shop", Index: index}
	}
	if amount == nil {
		return models.SaleRecord{}, &models.MissingFieldError{Field: "amount", Index: index}
	}
	d, err := decimal.NewFromString(*amount)
	if err != nil {
		return models.SaleRecord{}, fmt.Errorf("%w: record %d: amount: %v", models.ErrInvalidRecord, index, err)
	}
	if d.IsNegative() {
		return models.SaleRecord{}, fmt.Errorf("%w: record %d: negative amount %s", models.ErrInvalidRecord, index, d)
	}
	return models.SaleRecord{Date: util.TruncateDay(date), Shop: strings.TrimSpace(*shop), Amount: d}, nil
}

func (s *PostgresSalesSource) transportError(err error) error {
	s.l.Error("postgres sales query failed",
		applogger.String("table", s.table),
		applogger.Error(err),
	)
	if s.metrics != nil {
		s.metrics.RecordError("transport")
	}
	return &models.TransportError{URL: "postgres:" + s.table, Err: err}
}
