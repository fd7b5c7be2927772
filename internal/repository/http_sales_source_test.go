package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SalesPulse/internal/domain/models"
	pkghttp "SalesPulse/pkg/http"
	"SalesPulse/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource(t *testing.T, srv *httptest.Server, opts ...pkghttp.ClientOption) *HTTPSalesSource {
	t.Helper()
	src, err := NewHTTPSalesSource(HTTPSourceConfig{
		BaseURL:  srv.URL,
		Path:     "/api/sales/",
		PageSize: 2,
	}, pkghttp.NewClient(opts...), metrics.Nop{}, nil)
	require.NoError(t, err)
	return src
}

func TestHTTPSalesSourceFollowsNext(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			assert.Equal(t, "2", r.URL.Query().Get("page_size"))
			fmt.Fprint(w, `{"results":[{"date":"2024-01-01","shop":"north","amount":"10.50"},{"date":"2024-01-01","shop":3,"amount":4}],"next":"/api/sales/?page=2&page_size=2"}`)
		case "2":
			fmt.Fprint(w, `{"results":[{"date":"2024-01-02T08:30:00Z","shop":"north","amount":"1"}],"next":null}`)
		default:
			t.Errorf("unexpected page %q", r.URL.RawQuery)
		}
	}))
	defer srv.Close()

	recs, err := newSource(t, srv).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 2, calls)

	assert.Equal(t, "north", recs[0].Shop)
	assert.Equal(t, "10.5", recs[0].Amount.String())
	assert.Equal(t, "3", recs[1].Shop)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), recs[2].Date)
}

func TestHTTPSalesSourceEmptyListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[],"next":"/api/sales/?page=2"}`)
	}))
	defer srv.Close()

	recs, err := newSource(t, srv).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestHTTPSalesSourceBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"date":"2024-03-01","shop":"a","amount":2}]`)
	}))
	defer srv.Close()

	recs, err := newSource(t, srv).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestHTTPSalesSourceTransportFailures(t *testing.T) {
	cases := map[string]struct {
		handler http.HandlerFunc
		status  int
	}{
		"server error": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			status: http.StatusInternalServerError,
		},
		"missing results": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"count":0}`)
			},
		},
		"not json": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `<html>`)
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := newSource(t, srv).FetchAll(context.Background())
			var te *models.TransportError
			require.True(t, errors.As(err, &te), "got %v", err)
			assert.Equal(t, tc.status, te.Status)
		})
	}
}

func TestHTTPSalesSourceTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := newSource(t, srv, pkghttp.WithTimeout(50*time.Millisecond)).FetchAll(context.Background())
	var te *models.TransportError
	assert.True(t, errors.As(err, &te), "got %v", err)
}

func TestHTTPSalesSourceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := newSource(t, srv).FetchAll(context.Background())
	var te *models.TransportError
	assert.True(t, errors.As(err, &te))
}

func TestHTTPSalesSourceBadRecords(t *testing.T) {
	cases := map[string]struct {
		body    string
		missing string
	}{
		"missing date":   {body: `{"results":[{"shop":"a","amount":1}]}`, missing: "date"},
		"null amount":    {body: `{"results":[{"date":"2024-01-01","shop":"a","amount":null}]}`, missing: "amount"},
		"negative":       {body: `{"results":[{"date":"2024-01-01","shop":"a","amount":"-1"}]}`},
		"bad date":       {body: `{"results":[{"date":"01/02/2024","shop":"a","amount":1}]}`},
		"amount garbage": {body: `{"results":[{"date":"2024-01-01","shop":"a","amount":"ten"}]}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			_, err := newSource(t, srv).FetchAll(context.Background())
			require.Error(t, err)
			if tc.missing != "" {
				var mf *models.MissingFieldError
				require.True(t, errors.As(err, &mf), "got %v", err)
				assert.Equal(t, tc.missing, mf.Field)
				return
			}
			assert.ErrorIs(t, err, models.ErrInvalidRecord)
		})
	}
}

func TestHTTPSalesSourceMaxPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[{"date":"2024-01-01","shop":"a","amount":1}],"next":"/api/sales/?page=again"}`)
	}))
	defer srv.Close()

	src, err := NewHTTPSalesSource(HTTPSourceConfig{BaseURL: srv.URL, Path: "/api/sales/", MaxPages: 3}, pkghttp.NewClient(), nil, nil)
	require.NoError(t, err)

	_, err = src.FetchAll(context.Background())
	var te *models.TransportError
	assert.True(t, errors.As(err, &te))
}

func TestNewHTTPSalesSourceRejectsBadURL(t *testing.T) {
	_, err := NewHTTPSalesSource(HTTPSourceConfig{BaseURL: "not a url"}, pkghttp.NewClient(), nil, nil)
	assert.Error(t, err)
}
