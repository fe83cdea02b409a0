package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-event-study/internal/series"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestBlockchainComFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/charts/transaction-fees" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Fatalf("expected format=json, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name": "Total Transaction Fees",
			"unit": "BTC",
			"values": []map[string]any{
				{"x": time.Date(2013, 3, 15, 0, 0, 0, 0, time.UTC).Unix(), "y": 20.5},
				{"x": time.Date(2013, 3, 16, 0, 0, 0, 0, time.UTC).Unix(), "y": 28.8},
				// outside the requested range, must be trimmed
				{"x": time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC).Unix(), "y": 99},
			},
		})
	}))
	defer srv.Close()

	provider := NewBlockchainCom(BlockchainComOptions{
		BaseURL: srv.URL,
		Timeout: time.Second,
		Rank:    10,
	}, noopLogger())

	raw, err := provider.Fetch(context.Background(), series.MetricFeesTotal,
		series.MustParseDay("2013-03-01"), series.MustParseDay("2013-03-31"))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if raw.Provider != "blockchain_com" || raw.Rank != 10 {
		t.Fatalf("provenance wrong: %s rank %d", raw.Provider, raw.Rank)
	}
	if raw.Unit != series.UnitBTC {
		t.Fatalf("fees chart should report BTC, got %s", raw.Unit)
	}
	if len(raw.Points) != 2 {
		t.Fatalf("expected 2 points inside range, got %d", len(raw.Points))
	}
	if raw.Points[1].Date.String() != "2013-03-16" || !raw.Points[1].Value.Equal(decimal.NewFromFloat(28.8)) {
		t.Fatalf("unexpected point: %+v", raw.Points[1])
	}
}

func TestBlockchainComFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	provider := NewBlockchainCom(BlockchainComOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := provider.Fetch(context.Background(), series.MetricTxCount,
		series.MustParseDay("2013-03-01"), series.MustParseDay("2013-03-31"))
	if err == nil {
		t.Fatal("HTTP 429 should return an error")
	}
}

func TestBlockchainComFetchMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"values": "not-an-array"}`))
	}))
	defer srv.Close()

	provider := NewBlockchainCom(BlockchainComOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := provider.Fetch(context.Background(), series.MetricTxCount,
		series.MustParseDay("2013-03-01"), series.MustParseDay("2013-03-31"))
	if err == nil {
		t.Fatal("malformed payload should return an error")
	}
}

func TestBlockchainComSupports(t *testing.T) {
	provider := NewBlockchainCom(BlockchainComOptions{}, noopLogger())
	for _, metric := range []string{series.MetricFeesTotal, series.MetricTxCount, series.MetricBlocks, series.MetricBDD} {
		if !provider.Supports(metric) {
			t.Fatalf("charts API should serve %s", metric)
		}
	}
	if provider.Supports(series.MetricMedianRate) {
		t.Fatal("charts API has no fee-rate percentiles")
	}

	if _, err := provider.Fetch(context.Background(), series.MetricMedianRate,
		series.MustParseDay("2013-03-01"), series.MustParseDay("2013-03-31")); err == nil {
		t.Fatal("unsupported metric should fail fast")
	}
}
