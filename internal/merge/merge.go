// Package merge reconciles normalised series from multiple providers into
// one authoritative series per metric.
package merge

import (
	"fmt"
	"math"
	"sort"

	"btc-event-study/internal/ingest"
	"btc-event-study/internal/series"
)

// Options tune merge behaviour.
type Options struct {
	// RelativeTolerance bounds acceptable disagreement between same-rank
	// sources on the same day, e.g. 0.05 for 5%.
	RelativeTolerance float64
}

// Merge combines one or more normalised series for the same metric into a
// series covering the union of their dates.
//
// Overlapping days take the value from the highest-rank source; lower-rank
// values are dropped, never averaged, since providers compute the same
// metric with incompatible methodologies. Days covered by no input stay
// missing in the result: interpolating across providers would hide genuine
// data unavailability. Same-rank sources disagreeing beyond the relative
// tolerance are flagged for manual review, not rejected.
func Merge(metric string, inputs []ingest.Normalized, opts Options) (series.MetricSeries, []series.QualityFlag, error) {
	if len(inputs) == 0 {
		return series.MetricSeries{}, nil, fmt.Errorf("merge %s: no input series", metric)
	}

	unit := series.UnitFor(metric)
	for _, in := range inputs {
		if in.Series.IsEmpty() {
			continue
		}
		if in.Series.Metric() != metric {
			return series.MetricSeries{}, nil, fmt.Errorf("merge %s: input series carries metric %q", metric, in.Series.Metric())
		}
	}

	// highest rank first so the first non-missing candidate wins a day
	ordered := make([]ingest.Normalized, len(inputs))
	copy(ordered, inputs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Rank > ordered[j].Rank })

	start, end, any := unionRange(ordered)
	if !any {
		return series.MetricSeries{}, nil, fmt.Errorf("merge %s: all input series are empty", metric)
	}

	var flags []series.QualityFlag
	points := make([]series.DailyPoint, 0, start.DaysUntil(end)+1)

	for d := start; !d.After(end); d = d.AddDays(1) {
		var chosen *series.DailyPoint
		chosenRank := 0
		for i := range ordered {
			p, ok := ordered[i].Series.At(d)
			if !ok || p.Missing {
				continue
			}
			if chosen == nil {
				point := p
				chosen = &point
				chosenRank = ordered[i].Rank
				continue
			}
			if ordered[i].Rank == chosenRank && disagrees(chosen.Value, p.Value, opts.RelativeTolerance) {
				flags = append(flags, series.QualityFlag{
					Code:   series.QualitySourceDisagreement,
					Metric: metric,
					Date:   d,
					Detail: fmt.Sprintf("%s=%g vs %s=%g beyond tolerance %g", chosen.Source, chosen.Value, p.Source, p.Value, opts.RelativeTolerance),
				})
			}
			// lower rank or duplicate rank: value is dropped either way
		}

		if chosen != nil {
			points = append(points, *chosen)
		} else {
			points = append(points, series.DailyPoint{Date: d, Missing: true})
		}
	}

	merged, err := series.New(metric, unit, points)
	if err != nil {
		return series.MetricSeries{}, nil, fmt.Errorf("merge %s: %w", metric, err)
	}
	return merged, flags, nil
}

func unionRange(inputs []ingest.Normalized) (start, end series.Day, any bool) {
	for _, in := range inputs {
		if in.Series.IsEmpty() {
			continue
		}
		if !any {
			start, end, any = in.Series.Start(), in.Series.End(), true
			continue
		}
		if in.Series.Start().Before(start) {
			start = in.Series.Start()
		}
		if in.Series.End().After(end) {
			end = in.Series.End()
		}
	}
	return start, end, any
}

func disagrees(a, b, tolerance float64) bool {
	if tolerance <= 0 {
		return false
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return false
	}
	return math.Abs(a-b)/denom > tolerance
}
