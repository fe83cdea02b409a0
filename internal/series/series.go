package series

import (
	"fmt"
)

// Unit identifies the canonical unit of a metric series. Fiat units are
// deliberately absent; everything stays BTC-native.
type Unit string

const (
	UnitBTC      Unit = "btc"
	UnitSatoshi  Unit = "sat"
	UnitSatPerVB Unit = "sat_vb"
	UnitRatio    Unit = "ratio"
	UnitCount    Unit = "count"
	UnitCoinDays Unit = "coin_days"
)

// DailyPoint is one observation of a metric on one calendar day.
type DailyPoint struct {
	Date         Day
	Value        float64
	Source       string
	Interpolated bool
	Missing      bool
}

// MetricSeries is a date-contiguous run of daily points for exactly one
// metric. Gaps inside the covered range are present as Missing points,
// never silently skipped, so downstream windowing can rely on date-indexed
// contiguity. The zero value is an empty series.
type MetricSeries struct {
	metric string
	unit   Unit
	points []DailyPoint
}

// New builds a MetricSeries from points. Points may arrive unsorted;
// duplicate dates are rejected. Interior days not covered by any point are
// materialised as Missing so the result is contiguous from first to last
// observed date.
func New(metric string, unit Unit, points []DailyPoint) (MetricSeries, error) {
	if len(points) == 0 {
		return MetricSeries{metric: metric, unit: unit}, nil
	}

	byDate := make(map[Day]DailyPoint, len(points))
	first, last := points[0].Date, points[0].Date
	for _, p := range points {
		if _, dup := byDate[p.Date]; dup {
			return MetricSeries{}, fmt.Errorf("series %s: duplicate point for %s", metric, p.Date)
		}
		byDate[p.Date] = p
		if p.Date.Before(first) {
			first = p.Date
		}
		if p.Date.After(last) {
			last = p.Date
		}
	}

	span := first.DaysUntil(last) + 1
	contiguous := make([]DailyPoint, 0, span)
	for d := first; !d.After(last); d = d.AddDays(1) {
		if p, ok := byDate[d]; ok {
			contiguous = append(contiguous, p)
			continue
		}
		contiguous = append(contiguous, DailyPoint{Date: d, Missing: true})
	}

	return MetricSeries{metric: metric, unit: unit, points: contiguous}, nil
}

// Metric returns the metric name the series carries.
func (s MetricSeries) Metric() string { return s.metric }

// Unit returns the canonical unit.
func (s MetricSeries) Unit() Unit { return s.unit }

// Len returns the number of covered calendar days, missing days included.
func (s MetricSeries) Len() int { return len(s.points) }

// IsEmpty reports whether the series covers no days at all.
func (s MetricSeries) IsEmpty() bool { return len(s.points) == 0 }

// Start returns the first covered day.
func (s MetricSeries) Start() Day {
	if len(s.points) == 0 {
		return Day{}
	}
	return s.points[0].Date
}

// End returns the last covered day.
func (s MetricSeries) End() Day {
	if len(s.points) == 0 {
		return Day{}
	}
	return s.points[len(s.points)-1].Date
}

// At returns the point for a day. ok is false when the day lies outside the
// covered range; a Missing point inside the range is returned with ok true.
func (s MetricSeries) At(d Day) (DailyPoint, bool) {
	if len(s.points) == 0 || d.Before(s.Start()) || d.After(s.End()) {
		return DailyPoint{}, false
	}
	return s.points[s.Start().DaysUntil(d)], true
}

// Points returns a copy of the underlying points in date order.
func (s MetricSeries) Points() []DailyPoint {
	out := make([]DailyPoint, len(s.points))
	copy(out, s.points)
	return out
}

// Values returns the non-missing values in date order.
func (s MetricSeries) Values() []float64 {
	out := make([]float64, 0, len(s.points))
	for _, p := range s.points {
		if p.Missing {
			continue
		}
		out = append(out, p.Value)
	}
	return out
}

// MissingDays lists the days inside [from, to] that are missing from the
// series, either because they fall outside the covered range or because the
// covered point is marked Missing.
func (s MetricSeries) MissingDays(from, to Day) []Day {
	var missing []Day
	for d := from; !d.After(to); d = d.AddDays(1) {
		p, ok := s.At(d)
		if !ok || p.Missing {
			missing = append(missing, d)
		}
	}
	return missing
}

// Equal reports whether two series carry identical metric, unit, and points.
func (s MetricSeries) Equal(other MetricSeries) bool {
	if s.metric != other.metric || s.unit != other.unit || len(s.points) != len(other.points) {
		return false
	}
	for i := range s.points {
		a, b := s.points[i], other.points[i]
		if !a.Date.Equal(b.Date) || a.Value != b.Value || a.Source != b.Source ||
			a.Interpolated != b.Interpolated || a.Missing != b.Missing {
			return false
		}
	}
	return true
}
