package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"SalesPulse/internal/domain/models"
	domrepo "SalesPulse/internal/domain/repository"
	pkghttp "SalesPulse/pkg/http"
	applogger "SalesPulse/pkg/logger"

	"golang.org/x/time/rate"
)

const sourceHTTP = "http"

// HTTPSourceConfig configures the paginated sales listing client.
type HTTPSourceConfig struct {
	BaseURL  string
	Path     string
	PageSize int
	MaxPages int
	RPS      float64
}

// HTTPSalesSource reads the sales listing page by page, following the
// "next" link until it is null or a page comes back empty.
type HTTPSalesSource struct {
	client   *pkghttp.Client
	first    string
	pageSize int
	maxPages int
	limiter  *rate.Limiter
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

// NewHTTPSalesSource validates the endpoint and builds the source.
func NewHTTPSalesSource(cfg HTTPSourceConfig, client *pkghttp.Client, m domrepo.Metrics, l *applogger.Logger) (*HTTPSalesSource, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid sales api base url %q", cfg.BaseURL)
	}
	ref, err := url.Parse(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid sales api path %q: %w", cfg.Path, err)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10000
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &HTTPSalesSource{
		client:   client,
		first:    base.ResolveReference(ref).String(),
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
		limiter:  rate.NewLimiter(limit, 1),
		metrics:  m,
		l:        l,
	}, nil
}

func (s *HTTPSalesSource) Name() string { return sourceHTTP }

// FetchAll drains every page. An empty listing is not an error.
func (s *HTTPSalesSource) FetchAll(ctx context.Context) ([]models.SaleRecord, error) {
	return drain(ctx, s.Pages(ctx))
}

// Pages returns a fresh iterator starting at the first page.
func (s *HTTPSalesSource) Pages(_ context.Context) domrepo.PageIterator {
	return &httpPageIterator{src: s, next: s.first, first: true}
}

type httpPageIterator struct {
	src   *HTTPSalesSource
	next  string
	first bool
	pages int
	seen  int
	done  bool
}

type listingPage struct {
	Results *[]map[string]json.RawMessage `json:"results"`
	Next    *string                       `json:"next"`
}

func (it *httpPageIterator) Next(ctx context.Context) ([]models.SaleRecord, bool, error) {
	if it.done {
		return nil, false, nil
	}
	if it.pages >= it.src.maxPages {
		it.done = true
		return nil, false, &models.TransportError{
			URL: it.next,
			Err: fmt.Errorf("pagination exceeded %d pages", it.src.maxPages),
		}
	}
	if err := it.src.limiter.Wait(ctx); err != nil {
		it.done = true
		return nil, false, &models.TransportError{URL: it.next, Err: err}
	}

	current := it.next
	opts := &pkghttp.RequestOptions{Method: pkghttp.MethodGet, URL: current}
	if it.first {
		opts.QueryParams = map[string][]string{
			"page":      {"1"},
			"page_size": {strconv.Itoa(it.src.pageSize)},
		}
	}

	start := time.Now()
	var body []byte
	err := it.src.client.SendAndParse(ctx, opts, &body)
	it.src.recordLatency(time.Since(start))
	if err != nil {
		it.done = true
		return nil, false, it.src.transportError(current, err)
	}
	it.pages++
	it.first = false
	it.src.recordPage()

	rows, next, err := parseListing(body)
	if err != nil {
		it.done = true
		return nil, false, &models.TransportError{URL: current, Err: err}
	}

	records := make([]models.SaleRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeSale(row, it.seen)
		it.seen++
		if err != nil {
			it.done = true
			return nil, false, err
		}
		records = append(records, rec)
	}

	it.src.l.Debug("sales page fetched",
		applogger.String("url", current),
		applogger.Int("records", len(records)),
	)

	if next == "" || len(rows) == 0 {
		it.done = true
		return records, false, nil
	}
	resolved, err := resolveNext(current, next)
	if err != nil {
		it.done = true
		return nil, false, &models.TransportError{URL: current, Err: err}
	}
	it.next = resolved
	return records, true, nil
}

// parseListing accepts a paginated envelope or an unpaginated JSON array.
func parseListing(body []byte) ([]map[string]json.RawMessage, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, "", fmt.Errorf("decode listing: %w", err)
		}
		return rows, "", nil
	}

	var page listingPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, "", fmt.Errorf("decode listing: %w", err)
	}
	if page.Results == nil {
		return nil, "", errors.New(`listing has no "results" field`)
	}
	next := ""
	if page.Next != nil {
		next = *page.Next
	}
	return *page.Results, next, nil
}

func resolveNext(current, next string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("bad next link %q: %w", next, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (s *HTTPSalesSource) transportError(u string, err error) error {
	te := &models.TransportError{URL: u, Err: err}
	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		te.Status = se.Status
	}
	s.l.Error("sales source request failed",
		applogger.String("url", u),
		applogger.Int("status", te.Status),
		applogger.Error(err),
	)
	if s.metrics != nil {
		s.metrics.RecordError("transport")
	}
	return te
}

func (s *HTTPSalesSource) recordPage() {
	if s.metrics != nil {
		s.metrics.RecordPage(sourceHTTP)
	}
}

func (s *HTTPSalesSource) recordLatency(d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordLatency("fetch_page", d)
	}
}

// drain collects every page of it into one slice.
func drain(ctx context.Context, it domrepo.PageIterator) ([]models.SaleRecord, error) {
	var out []models.SaleRecord
	for {
		recs, more, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
		if !more {
			return out, nil
		}
	}
}
