package pipeline

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"btc-event-study/internal/ingest"
	"btc-event-study/internal/series"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func stepSeries(t *testing.T, metric string, from string, days int, anchor series.Day, preValue, crisisValue float64) series.MetricSeries {
	t.Helper()
	start := series.MustParseDay(from)
	points := make([]series.DailyPoint, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDays(i)
		v := preValue
		if !d.Before(anchor) {
			v = crisisValue
		}
		points = append(points, series.DailyPoint{Date: d, Value: v, Source: "test"})
	}
	s, err := series.New(metric, series.UnitFor(metric), points)
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	return s
}

func testCatalog() Catalog {
	return Catalog{
		Events: []series.EventSpec{{
			Name:    "cyprus_2013",
			Anchor:  series.MustParseDay("2013-03-16"),
			Windows: []series.WindowConfig{{Label: "symmetric_10", PreDays: 10, PostDays: 10}},
		}},
	}
}

func findRecord(t *testing.T, records []series.SummaryRecord, metric string) series.SummaryRecord {
	t.Helper()
	for _, rec := range records {
		if rec.Metric == metric {
			return rec
		}
	}
	t.Fatalf("no record for metric %s in %v", metric, records)
	return series.SummaryRecord{}
}

func TestRunStepScenario(t *testing.T) {
	anchor := series.MustParseDay("2013-03-16")
	tx := stepSeries(t, series.MetricTxCount, "2013-03-01", 30, anchor, 100, 150)

	inputs := map[string][]ingest.Normalized{
		series.MetricTxCount: {{Series: tx, Rank: 10}},
	}

	result, err := New(noopLogger()).Run(testCatalog(), inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec := findRecord(t, result.Records, series.MetricTxCount)
	if rec.Status != series.CellOK {
		t.Fatalf("expected ok cell, got %s (%s)", rec.Status, rec.Reason)
	}
	if rec.PreMean != 100 || rec.CrisisMean != 150 {
		t.Fatalf("means wrong: %g/%g", rec.PreMean, rec.CrisisMean)
	}
	if !rec.Change.Defined || math.Abs(rec.Change.Value-50) > 1e-12 {
		t.Fatalf("100 -> 150 should be +50%%, got %+v", rec.Change)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	anchor := series.MustParseDay("2013-03-16")
	inputs := map[string][]ingest.Normalized{
		series.MetricTxCount: {{Series: stepSeries(t, series.MetricTxCount, "2013-03-01", 30, anchor, 100, 150), Rank: 10}},
		series.MetricBDD:     {{Series: stepSeries(t, series.MetricBDD, "2013-03-01", 30, anchor, 1e6, 2e6), Rank: 10}},
	}

	p := New(noopLogger())
	first, err := p.Run(testCatalog(), inputs)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := p.Run(testCatalog(), inputs)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Fatal("identical inputs must produce identical summary tables")
	}
}

func TestRunCellScopedInsufficientData(t *testing.T) {
	anchor := series.MustParseDay("2013-03-16")
	inputs := map[string][]ingest.Normalized{
		series.MetricTxCount: {{Series: stepSeries(t, series.MetricTxCount, "2013-03-01", 30, anchor, 100, 150), Rank: 10}},
		// coverage starts after the pre window opens
		series.MetricBDD: {{Series: stepSeries(t, series.MetricBDD, "2013-03-10", 20, anchor, 1e6, 2e6), Rank: 10}},
	}

	result, err := New(noopLogger()).Run(testCatalog(), inputs)
	if err != nil {
		t.Fatalf("batch must complete despite a failing cell: %v", err)
	}

	bad := findRecord(t, result.Records, series.MetricBDD)
	if bad.Status != series.CellUnavailable {
		t.Fatalf("short-coverage metric should be unavailable, got %s", bad.Status)
	}
	if !strings.HasPrefix(bad.Reason, "insufficient_window_data") {
		t.Fatalf("reason should name the failure class, got %q", bad.Reason)
	}

	good := findRecord(t, result.Records, series.MetricTxCount)
	if good.Status != series.CellOK {
		t.Fatalf("healthy metric must be unaffected, got %s (%s)", good.Status, good.Reason)
	}
}

func TestRunMergeFailureScopedToMetric(t *testing.T) {
	anchor := series.MustParseDay("2013-03-16")
	inputs := map[string][]ingest.Normalized{
		series.MetricTxCount: {{Series: stepSeries(t, series.MetricTxCount, "2013-03-01", 30, anchor, 100, 150), Rank: 10}},
		series.MetricBDD:     {{}}, // no usable source at all
	}

	result, err := New(noopLogger()).Run(testCatalog(), inputs)
	if err != nil {
		t.Fatalf("batch must complete: %v", err)
	}

	bad := findRecord(t, result.Records, series.MetricBDD)
	if bad.Status != series.CellUnavailable || !strings.HasPrefix(bad.Reason, "source_unavailable") {
		t.Fatalf("metric without sources should be unavailable: %+v", bad)
	}
}

func TestRunRollingWindowShiftsCoverage(t *testing.T) {
	anchor := series.MustParseDay("2013-03-16")
	catalog := testCatalog()
	catalog.RollingWindow = 5

	// start coverage well before the pre window so the smoothed series still
	// covers both halves
	inputs := map[string][]ingest.Normalized{
		series.MetricTxCount: {{Series: stepSeries(t, series.MetricTxCount, "2013-02-01", 80, anchor, 100, 150), Rank: 10}},
	}

	result, err := New(noopLogger()).Run(catalog, inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec := findRecord(t, result.Records, series.MetricTxCount)
	if rec.Status != series.CellOK {
		t.Fatalf("expected ok cell, got %s (%s)", rec.Status, rec.Reason)
	}
	// smoothing drags the crisis mean toward the pre level across the step
	if rec.CrisisMean >= 150 || rec.CrisisMean <= 100 {
		t.Fatalf("smoothed crisis mean should sit between the plateaus, got %g", rec.CrisisMean)
	}

	smoothed, ok := result.Series[series.MetricTxCount]
	if !ok {
		t.Fatal("derived series should be exported on the result")
	}
	if p := smoothed.Points()[0]; !p.Missing {
		t.Fatal("first window-1 smoothed days must be missing")
	}
}

func TestRunMetricFilter(t *testing.T) {
	anchor := series.MustParseDay("2013-03-16")
	catalog := testCatalog()
	catalog.Metrics = []string{series.MetricTxCount}

	inputs := map[string][]ingest.Normalized{
		series.MetricTxCount: {{Series: stepSeries(t, series.MetricTxCount, "2013-03-01", 30, anchor, 100, 150), Rank: 10}},
		series.MetricBDD:     {{Series: stepSeries(t, series.MetricBDD, "2013-03-01", 30, anchor, 1e6, 2e6), Rank: 10}},
	}

	result, err := New(noopLogger()).Run(catalog, inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Records) != 1 || result.Records[0].Metric != series.MetricTxCount {
		t.Fatalf("filter should keep only tx_per_day, got %v", result.Records)
	}
}

func TestRunInvalidCatalog(t *testing.T) {
	if _, err := New(noopLogger()).Run(Catalog{}, nil); err == nil {
		t.Fatal("empty catalog should be rejected")
	}

	bad := Catalog{
		Events:        testCatalog().Events,
		RollingWindow: -1,
	}
	if _, err := New(noopLogger()).Run(bad, nil); err == nil {
		t.Fatal("negative rolling window should be rejected")
	}
}
