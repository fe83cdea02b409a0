// Package stats computes descriptive statistics and pre/crisis comparisons
// over metric sub-series.
package stats

import (
	"math"
	"sort"

	"btc-event-study/internal/series"
)

// Mean returns the arithmetic mean. Zero for an empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle value, averaging the two central values for an
// even count. Zero for an empty input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// PopStdDev returns the population standard deviation.
func PopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// changeKindFor picks the delta expression per metric: metrics already
// expressed as a proportion change in percentage points, everything else as
// percent of the pre-period mean.
func changeKindFor(metric string) series.ChangeKind {
	if metric == series.MetricFeeToSubsidy {
		return series.ChangePercentagePoint
	}
	return series.ChangePercent
}

// Compare builds the summary record for one (event, window, metric) cell
// from fully-populated pre and crisis sub-series.
func Compare(event, windowLabel string, pre, crisis series.MetricSeries) series.SummaryRecord {
	preValues := pre.Values()
	crisisValues := crisis.Values()

	rec := series.SummaryRecord{
		Event:  event,
		Window: windowLabel,
		Metric: pre.Metric(),

		PreMean:      Mean(preValues),
		PreMedian:    Median(preValues),
		PreStdDev:    PopStdDev(preValues),
		CrisisMean:   Mean(crisisValues),
		CrisisMedian: Median(crisisValues),
		CrisisStdDev: PopStdDev(crisisValues),

		Status: series.CellOK,
	}

	kind := changeKindFor(pre.Metric())
	switch kind {
	case series.ChangePercentagePoint:
		rec.Change = series.Change{
			Kind:    kind,
			Value:   rec.CrisisMean - rec.PreMean,
			Defined: true,
		}
	default:
		if rec.PreMean == 0 {
			// percent change over a zero baseline is undefined, not infinite
			rec.Change = series.Change{Kind: kind}
		} else {
			rec.Change = series.Change{
				Kind:    kind,
				Value:   (rec.CrisisMean - rec.PreMean) / rec.PreMean * 100,
				Defined: true,
			}
		}
	}

	return rec
}
