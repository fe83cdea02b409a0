package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"btc-event-study/internal/series"
)

func TestMempoolSpaceFetchAggregatesPerDay(t *testing.T) {
	day := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/mining/blocks/fee-rates/all" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[
			{"avgHeight": 738000, "timestamp": %d, "avgFee_50": 10, "avgFee_90": 40},
			{"avgHeight": 738001, "timestamp": %d, "avgFee_50": 20, "avgFee_90": 60},
			{"avgHeight": 738002, "timestamp": %d, "avgFee_50": 30, "avgFee_90": 80}
		]`, day.Unix(), day.Add(4*time.Hour).Unix(), day.Add(8*time.Hour).Unix())
	}))
	defer srv.Close()

	provider := NewMempoolSpace(MempoolSpaceOptions{BaseURL: srv.URL, Timeout: time.Second, Rank: 15}, noopLogger())

	raw, err := provider.Fetch(context.Background(), series.MetricMedianRate,
		series.MustParseDay("2022-06-01"), series.MustParseDay("2022-06-01"))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if !raw.Approximate {
		t.Fatal("block-average rates must be tagged approximate")
	}
	if len(raw.Points) != 1 {
		t.Fatalf("three blocks on one day should collapse to one point, got %d", len(raw.Points))
	}
	// median of {10, 20, 30}
	if got, _ := raw.Points[0].Value.Float64(); got != 20 {
		t.Fatalf("expected daily median 20, got %g", got)
	}

	p90, err := provider.Fetch(context.Background(), series.MetricP90Rate,
		series.MustParseDay("2022-06-01"), series.MustParseDay("2022-06-01"))
	if err != nil {
		t.Fatalf("p90 Fetch failed: %v", err)
	}
	if got, _ := p90.Points[0].Value.Float64(); got != 60 {
		t.Fatalf("expected daily p90 aggregate 60, got %g", got)
	}
}

func TestMempoolSpaceFetchTrimsRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"avgHeight": 1, "timestamp": %d, "avgFee_50": 10, "avgFee_90": 40}]`,
			time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC).Unix())
	}))
	defer srv.Close()

	provider := NewMempoolSpace(MempoolSpaceOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	raw, err := provider.Fetch(context.Background(), series.MetricMedianRate,
		series.MustParseDay("2022-06-01"), series.MustParseDay("2022-06-30"))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(raw.Points) != 0 {
		t.Fatalf("out-of-range blocks must be dropped, got %d points", len(raw.Points))
	}
}

func TestMempoolSpaceUnsupportedMetric(t *testing.T) {
	provider := NewMempoolSpace(MempoolSpaceOptions{}, noopLogger())
	if _, err := provider.Fetch(context.Background(), series.MetricFeesTotal,
		series.MustParseDay("2022-06-01"), series.MustParseDay("2022-06-30")); err == nil {
		t.Fatal("unsupported metric should fail fast")
	}
}
