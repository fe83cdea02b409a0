package stats

import (
	"math"
	"testing"

	"btc-event-study/internal/series"
)

func constant(t *testing.T, metric string, from string, days int, value float64) series.MetricSeries {
	t.Helper()
	start := series.MustParseDay(from)
	points := make([]series.DailyPoint, 0, days)
	for i := 0; i < days; i++ {
		points = append(points, series.DailyPoint{Date: start.AddDays(i), Value: value, Source: "test"})
	}
	s, err := series.New(metric, series.UnitFor(metric), points)
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	return s
}

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Fatalf("Mean = %g, want 2.5", got)
	}
	if got := Mean(nil); got != 0 {
		t.Fatalf("empty mean should be 0, got %g", got)
	}
}

func TestMedian(t *testing.T) {
	if got := Median([]float64{5, 1, 3}); got != 3 {
		t.Fatalf("odd median = %g, want 3", got)
	}
	if got := Median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Fatalf("even median = %g, want 2.5", got)
	}
	if got := Median(nil); got != 0 {
		t.Fatalf("empty median should be 0, got %g", got)
	}

	// input must not be reordered
	values := []float64{5, 1, 3}
	_ = Median(values)
	if values[0] != 5 || values[1] != 1 || values[2] != 3 {
		t.Fatalf("Median mutated its input: %v", values)
	}
}

func TestPopStdDev(t *testing.T) {
	// population stddev of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2
	got := PopStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2) > 1e-12 {
		t.Fatalf("PopStdDev = %g, want 2", got)
	}
	if got := PopStdDev([]float64{7}); got != 0 {
		t.Fatalf("single value stddev should be 0, got %g", got)
	}
}

func TestComparePercentChange(t *testing.T) {
	pre := constant(t, series.MetricTxCount, "2013-01-01", 10, 100)
	crisis := constant(t, series.MetricTxCount, "2013-01-11", 10, 150)

	rec := Compare("cyprus_2013", "symmetric_90", pre, crisis)

	if rec.Status != series.CellOK {
		t.Fatalf("expected ok cell, got %s", rec.Status)
	}
	if rec.PreMean != 100 || rec.CrisisMean != 150 {
		t.Fatalf("means wrong: %g/%g", rec.PreMean, rec.CrisisMean)
	}
	if rec.PreStdDev != 0 || rec.CrisisStdDev != 0 {
		t.Fatalf("constant series stddev should be 0")
	}
	if rec.Change.Kind != series.ChangePercent || !rec.Change.Defined {
		t.Fatalf("expected defined percent change, got %+v", rec.Change)
	}
	if math.Abs(rec.Change.Value-50) > 1e-12 {
		t.Fatalf("100 -> 150 is +50%%, got %g", rec.Change.Value)
	}
}

func TestCompareZeroPreMeanUndefined(t *testing.T) {
	pre := constant(t, series.MetricTxCount, "2013-01-01", 10, 0)
	crisis := constant(t, series.MetricTxCount, "2013-01-11", 10, 5)

	rec := Compare("cyprus_2013", "symmetric_90", pre, crisis)

	if rec.Change.Defined {
		t.Fatalf("percent change over a zero baseline must be undefined, got %+v", rec.Change)
	}
	if rec.Status != series.CellOK {
		t.Fatal("an undefined change does not make the cell unavailable")
	}
}

func TestCompareRatioUsesPercentagePoints(t *testing.T) {
	pre := constant(t, series.MetricFeeToSubsidy, "2013-01-01", 10, 0.02)
	crisis := constant(t, series.MetricFeeToSubsidy, "2013-01-11", 10, 0.05)

	rec := Compare("cyprus_2013", "symmetric_90", pre, crisis)

	if rec.Change.Kind != series.ChangePercentagePoint {
		t.Fatalf("fee_to_subsidy must change in percentage points, got %s", rec.Change.Kind)
	}
	if !rec.Change.Defined || math.Abs(rec.Change.Value-0.03) > 1e-12 {
		t.Fatalf("expected +0.03, got %+v", rec.Change)
	}
}

func TestCompareRatioZeroBaselineStillDefined(t *testing.T) {
	pre := constant(t, series.MetricFeeToSubsidy, "2013-01-01", 10, 0)
	crisis := constant(t, series.MetricFeeToSubsidy, "2013-01-11", 10, 0.01)

	rec := Compare("cyprus_2013", "symmetric_90", pre, crisis)
	if !rec.Change.Defined {
		t.Fatal("percentage-point change is defined even over a zero baseline")
	}
}
