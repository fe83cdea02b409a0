package stats

import (
	"fmt"

	"btc-event-study/internal/series"
)

// RollingMean smooths a series with a simple unweighted trailing mean over
// the given window. The first window-1 days have no rolling value and are
// reported missing, never zero-filled. A missing input day inside the
// trailing window leaves that day's rolling value missing as well.
func RollingMean(s series.MetricSeries, window int) (series.MetricSeries, error) {
	if window <= 0 {
		return series.MetricSeries{}, fmt.Errorf("rolling window must be positive, got %d", window)
	}
	if s.IsEmpty() {
		return s, nil
	}

	points := s.Points()
	out := make([]series.DailyPoint, 0, len(points))
	for i, p := range points {
		smoothed := series.DailyPoint{Date: p.Date, Source: p.Source, Interpolated: p.Interpolated}
		if i < window-1 {
			smoothed.Missing = true
			smoothed.Interpolated = false
			out = append(out, smoothed)
			continue
		}

		sum := 0.0
		complete := true
		for j := i - window + 1; j <= i; j++ {
			if points[j].Missing {
				complete = false
				break
			}
			sum += points[j].Value
		}
		if !complete {
			smoothed.Missing = true
			smoothed.Interpolated = false
		} else {
			smoothed.Value = sum / float64(window)
		}
		out = append(out, smoothed)
	}

	return series.New(s.Metric(), s.Unit(), out)
}

// SpikeRatio relates each day's raw value to its trailing mean. Days where
// either series is missing, or where the trailing mean is zero, stay missing.
func SpikeRatio(metric string, raw, trailing series.MetricSeries) (series.MetricSeries, error) {
	if raw.IsEmpty() || trailing.IsEmpty() {
		return series.MetricSeries{}, nil
	}

	points := make([]series.DailyPoint, 0, trailing.Len())
	for _, t := range trailing.Points() {
		point := series.DailyPoint{Date: t.Date, Source: t.Source}
		r, ok := raw.At(t.Date)
		if !ok || r.Missing || t.Missing || t.Value == 0 {
			point.Missing = true
		} else {
			point.Value = r.Value / t.Value
			point.Interpolated = r.Interpolated || t.Interpolated
		}
		points = append(points, point)
	}

	return series.New(metric, series.UnitFor(metric), points)
}
