package window

import (
	"errors"
	"strings"
	"testing"

	"btc-event-study/internal/series"
)

func filled(t *testing.T, from, to string, value float64) series.MetricSeries {
	t.Helper()
	start := series.MustParseDay(from)
	end := series.MustParseDay(to)
	points := make([]series.DailyPoint, 0, start.DaysUntil(end)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		points = append(points, series.DailyPoint{Date: d, Value: value, Source: "test"})
	}
	s, err := series.New(series.MetricTxCount, series.UnitCount, points)
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	return s
}

func TestSliceWindowsAreDisjointAndContiguous(t *testing.T) {
	anchor := series.MustParseDay("2013-03-16")
	s := filled(t, "2012-12-01", "2013-06-30", 1)

	pre, crisis, err := Slice(s, anchor, series.WindowConfig{Label: "symmetric_90", PreDays: 90, PostDays: 90})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}

	if pre.Len() != 90 || crisis.Len() != 90 {
		t.Fatalf("window lengths wrong: pre=%d crisis=%d", pre.Len(), crisis.Len())
	}
	if !pre.End().AddDays(1).Equal(crisis.Start()) {
		t.Fatalf("halves must be contiguous: pre ends %s, crisis starts %s", pre.End(), crisis.Start())
	}
	if !crisis.Start().Equal(anchor) {
		t.Fatalf("anchor belongs to the crisis side, crisis starts %s", crisis.Start())
	}
	if !pre.Start().Equal(anchor.AddDays(-90)) {
		t.Fatalf("pre window starts %s, want anchor-90", pre.Start())
	}
	if !crisis.End().Equal(anchor.AddDays(89)) {
		t.Fatalf("crisis window ends %s, want anchor+89", crisis.End())
	}
}

func TestSliceAsymmetricWindow(t *testing.T) {
	anchor := series.MustParseDay("2017-12-01")
	s := filled(t, "2017-05-01", "2018-01-15", 1)

	pre, crisis, err := Slice(s, anchor, series.WindowConfig{Label: "long_baseline_30", PreDays: 180, PostDays: 30})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if pre.Len() != 180 || crisis.Len() != 30 {
		t.Fatalf("asymmetric lengths wrong: pre=%d crisis=%d", pre.Len(), crisis.Len())
	}
}

func TestSliceInsufficientCoverage(t *testing.T) {
	anchor := series.MustParseDay("2013-03-16")
	// series starts two days into the pre window
	s := filled(t, "2012-12-18", "2013-06-30", 1)

	_, _, err := Slice(s, anchor, series.WindowConfig{Label: "symmetric_90", PreDays: 90, PostDays: 90})

	var insufficient *InsufficientWindowDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientWindowDataError, got %v", err)
	}
	if len(insufficient.Missing) != 2 {
		t.Fatalf("expected 2 missing days, got %v", insufficient.Missing)
	}
	if !strings.Contains(err.Error(), "2012-12-16") || !strings.Contains(err.Error(), "2012-12-17") {
		t.Fatalf("error should name the missing dates: %v", err)
	}
	if insufficient.Label != "symmetric_90" {
		t.Fatalf("error should carry the window label, got %q", insufficient.Label)
	}
}

func TestSliceInteriorMissingDayFails(t *testing.T) {
	anchor := series.MustParseDay("2013-03-16")
	start := series.MustParseDay("2012-12-01")
	end := series.MustParseDay("2013-06-30")
	hole := series.MustParseDay("2013-04-01")

	points := make([]series.DailyPoint, 0, start.DaysUntil(end)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		if d.Equal(hole) {
			continue
		}
		points = append(points, series.DailyPoint{Date: d, Value: 1, Source: "test"})
	}
	s, err := series.New(series.MetricTxCount, series.UnitCount, points)
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}

	_, _, err = Slice(s, anchor, series.WindowConfig{Label: "symmetric_90", PreDays: 90, PostDays: 90})
	var insufficient *InsufficientWindowDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientWindowDataError, got %v", err)
	}
	if len(insufficient.Missing) != 1 || !insufficient.Missing[0].Equal(hole) {
		t.Fatalf("expected the interior hole to be named, got %v", insufficient.Missing)
	}
}

func TestSliceInvalidConfig(t *testing.T) {
	s := filled(t, "2013-01-01", "2013-12-31", 1)
	_, _, err := Slice(s, series.MustParseDay("2013-03-16"), series.WindowConfig{Label: "bad", PreDays: 0, PostDays: 90})
	if err == nil {
		t.Fatal("invalid config should be rejected")
	}
}
