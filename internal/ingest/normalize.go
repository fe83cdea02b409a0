// Package ingest converts raw provider payloads into canonical metric
// series: provider units become canonical units, interior gaps are
// forward-filled, and schema defects fail fast per source.
package ingest

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"btc-event-study/internal/fetcher"
	"btc-event-study/internal/series"
)

var satPerBTC = decimal.NewFromInt(100_000_000)

// SourceFormatError reports a provider payload whose shape does not match
// the expected schema. Fatal for that source's ingestion; the fetch layer
// owns retries, the normaliser does not.
type SourceFormatError struct {
	Provider string
	Metric   string
	Reason   string
}

func (e *SourceFormatError) Error() string {
	return fmt.Sprintf("source format error: %s/%s: %s", e.Provider, e.Metric, e.Reason)
}

// Normalized couples a canonical series with its merge inputs.
type Normalized struct {
	Series series.MetricSeries
	Rank   int
}

// Normalize converts one raw payload into a canonical MetricSeries.
//
// Missing calendar days inside the payload's observed range are forward
// filled from the most recent prior value and tagged interpolated. Days
// before the first or after the last observation are never fabricated.
// Negative values on semantically non-negative metrics are flagged and
// marked missing rather than silently carried.
func Normalize(raw fetcher.RawSeries) (Normalized, []series.QualityFlag, error) {
	if raw.Provider == "" || raw.Metric == "" {
		return Normalized{}, nil, &SourceFormatError{Provider: raw.Provider, Metric: raw.Metric, Reason: "missing provider or metric tag"}
	}
	if len(raw.Points) == 0 {
		return Normalized{}, nil, &SourceFormatError{Provider: raw.Provider, Metric: raw.Metric, Reason: "payload contains no points"}
	}

	target := series.UnitFor(raw.Metric)
	convert, err := converter(raw.Unit, target)
	if err != nil {
		return Normalized{}, nil, &SourceFormatError{Provider: raw.Provider, Metric: raw.Metric, Reason: err.Error()}
	}

	observations := make([]fetcher.Observation, len(raw.Points))
	copy(observations, raw.Points)
	sort.Slice(observations, func(i, j int) bool { return observations[i].Date.Before(observations[j].Date) })

	var flags []series.QualityFlag
	seen := make(map[series.Day]bool, len(observations))
	points := make([]series.DailyPoint, 0, len(observations))

	for _, obs := range observations {
		if obs.Date.IsZero() {
			return Normalized{}, nil, &SourceFormatError{Provider: raw.Provider, Metric: raw.Metric, Reason: "observation without a date"}
		}
		if seen[obs.Date] {
			return Normalized{}, nil, &SourceFormatError{Provider: raw.Provider, Metric: raw.Metric, Reason: fmt.Sprintf("duplicate observation for %s", obs.Date)}
		}
		seen[obs.Date] = true

		point := series.DailyPoint{Date: obs.Date, Source: raw.Provider}
		if obs.Value.IsNegative() && series.NonNegativeMetrics[raw.Metric] {
			flags = append(flags, series.QualityFlag{
				Code:   series.QualityNegativeValue,
				Metric: raw.Metric,
				Date:   obs.Date,
				Detail: fmt.Sprintf("%s reported %s", raw.Provider, obs.Value),
			})
			point.Missing = true
		} else {
			point.Value = convert(obs.Value).InexactFloat64()
		}
		points = append(points, point)
	}

	filled := forwardFill(points, raw.Provider)

	s, err := series.New(raw.Metric, target, filled)
	if err != nil {
		return Normalized{}, nil, &SourceFormatError{Provider: raw.Provider, Metric: raw.Metric, Reason: err.Error()}
	}

	if raw.Approximate {
		flags = append(flags, series.QualityFlag{
			Code:   series.QualityApproximate,
			Metric: raw.Metric,
			Date:   s.Start(),
			Detail: fmt.Sprintf("%s series derived through a proxy, not per-transaction data", raw.Provider),
		})
	}

	return Normalized{Series: s, Rank: raw.Rank}, flags, nil
}

// forwardFill materialises interior gap days with the most recent prior
// value. The input must already be sorted and date-unique.
func forwardFill(points []series.DailyPoint, source string) []series.DailyPoint {
	if len(points) == 0 {
		return points
	}

	filled := make([]series.DailyPoint, 0, len(points))
	filled = append(filled, points[0])
	for i := 1; i < len(points); i++ {
		prev := points[i-1]
		for d := prev.Date.AddDays(1); d.Before(points[i].Date); d = d.AddDays(1) {
			gap := series.DailyPoint{Date: d, Source: source, Interpolated: true}
			if prev.Missing {
				// nothing to carry forward from a flagged point
				gap.Missing = true
				gap.Interpolated = false
			} else {
				gap.Value = prev.Value
			}
			filled = append(filled, gap)
		}
		filled = append(filled, points[i])
	}
	return filled
}

func converter(from, to series.Unit) (func(decimal.Decimal) decimal.Decimal, error) {
	if from == to || from == "" {
		return func(d decimal.Decimal) decimal.Decimal { return d }, nil
	}
	if from == series.UnitSatoshi && to == series.UnitBTC {
		return func(d decimal.Decimal) decimal.Decimal { return d.Div(satPerBTC) }, nil
	}
	return nil, fmt.Errorf("no conversion from unit %q to %q", from, to)
}
