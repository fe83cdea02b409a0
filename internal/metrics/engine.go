// Package metrics derives the analytic metric series from merged raw
// series. Every derivation is a pure date-by-date function; a date missing
// any required input is missing in the output, never partially computed.
package metrics

import (
	"fmt"

	"github.com/rs/zerolog"

	"btc-event-study/internal/series"
)

// Engine derives analytic metrics from merged raw series.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine constructs a metric engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "metric_engine").Logger()}
}

// Derive computes every derivable metric from the raw series on hand and
// returns them keyed by metric name alongside any quality flags. Raw
// passthrough metrics (tx count, dormancy) are included unchanged so the
// result is the complete metric set for windowing.
func (e *Engine) Derive(raw map[string]series.MetricSeries) (map[string]series.MetricSeries, []series.QualityFlag, error) {
	out := make(map[string]series.MetricSeries)
	var flags []series.QualityFlag

	// passthrough metrics
	for _, name := range []string{series.MetricTxCount, series.MetricBDD} {
		if s, ok := raw[name]; ok && !s.IsEmpty() {
			out[name] = s
		}
	}

	median, p90, rateFlags := e.feeRates(raw)
	flags = append(flags, rateFlags...)
	if !median.IsEmpty() {
		out[series.MetricMedianRate] = median
	}
	if !p90.IsEmpty() {
		out[series.MetricP90Rate] = p90
	}

	if !median.IsEmpty() && !p90.IsEmpty() {
		spread, spreadFlags, err := urgencySpread(p90, median)
		if err != nil {
			return nil, nil, err
		}
		out[series.MetricUrgencySpread] = spread
		flags = append(flags, spreadFlags...)
	}

	fees, haveFees := raw[series.MetricFeesTotal]
	blocks, haveBlocks := raw[series.MetricBlocks]
	if haveFees && haveBlocks {
		perBlock, err := feesPerBlock(fees, blocks)
		if err != nil {
			return nil, nil, err
		}
		if !perBlock.IsEmpty() {
			out[series.MetricFeesPerBlock] = perBlock

			ratio, ratioFlags, err := feeToSubsidy(perBlock, raw[series.MetricHeight])
			if err != nil {
				return nil, nil, err
			}
			out[series.MetricFeeToSubsidy] = ratio
			flags = append(flags, ratioFlags...)
		}
	}

	e.logger.Debug().Int("metrics", len(out)).Int("flags", len(flags)).Msg("metrics derived")
	return out, flags, nil
}

// feeRates returns the median and p90 fee-rate series, falling back to the
// fees/vbytes proxy when no percentile source is available. The proxy is an
// average, not a percentile, so both outputs are flagged approximate.
func (e *Engine) feeRates(raw map[string]series.MetricSeries) (median, p90 series.MetricSeries, flags []series.QualityFlag) {
	median = raw[series.MetricMedianRate]
	p90 = raw[series.MetricP90Rate]
	if !median.IsEmpty() && !p90.IsEmpty() {
		return median, p90, nil
	}

	fees, haveFees := raw[series.MetricFeesTotal]
	vbytes, haveVBytes := raw[series.MetricVBytes]
	if !haveFees || !haveVBytes {
		return median, p90, nil
	}

	proxy, err := zip(series.MetricMedianRate, series.UnitSatPerVB, fees, vbytes, func(f, v float64) (float64, bool) {
		if v == 0 {
			return 0, false
		}
		return f * 1e8 / v, true
	})
	if err != nil || proxy.IsEmpty() {
		return median, p90, nil
	}

	flag := series.QualityFlag{
		Code:   series.QualityApproximate,
		Date:   proxy.Start(),
		Detail: "fee-rate percentiles derived from daily fees/vbytes proxy",
	}
	if median.IsEmpty() {
		median = proxy
		flag.Metric = series.MetricMedianRate
		flags = append(flags, flag)
	}
	if p90.IsEmpty() {
		p90, _ = renameSeries(proxy, series.MetricP90Rate)
		flag.Metric = series.MetricP90Rate
		flags = append(flags, flag)
	}
	return median, p90, flags
}

func urgencySpread(p90, median series.MetricSeries) (series.MetricSeries, []series.QualityFlag, error) {
	var flags []series.QualityFlag
	spread, err := zip(series.MetricUrgencySpread, series.UnitSatPerVB, p90, median, func(hi, mid float64) (float64, bool) {
		return hi - mid, true
	})
	if err != nil {
		return series.MetricSeries{}, nil, err
	}
	for _, p := range spread.Points() {
		if !p.Missing && p.Value < 0 {
			flags = append(flags, series.QualityFlag{
				Code:   series.QualityNegativeSpread,
				Metric: series.MetricUrgencySpread,
				Date:   p.Date,
				Detail: fmt.Sprintf("p90 below median by %g sat/vB", -p.Value),
			})
		}
	}
	return spread, flags, nil
}

func feesPerBlock(fees, blocks series.MetricSeries) (series.MetricSeries, error) {
	return zip(series.MetricFeesPerBlock, series.UnitBTC, fees, blocks, func(f, b float64) (float64, bool) {
		if b == 0 {
			// a day without blocks has no meaningful per-block figure
			return 0, false
		}
		return f / b, true
	})
}

// feeToSubsidy computes fees/(fees+subsidy) per day, with the subsidy
// resolved from exact heights when the height series covers the day. A
// value outside [0, 1] is flagged, never clamped: the formula cannot
// produce it from sane inputs.
func feeToSubsidy(perBlock, heights series.MetricSeries) (series.MetricSeries, []series.QualityFlag, error) {
	var flags []series.QualityFlag
	points := make([]series.DailyPoint, 0, perBlock.Len())
	for _, p := range perBlock.Points() {
		out := series.DailyPoint{Date: p.Date, Source: p.Source, Interpolated: p.Interpolated, Missing: p.Missing}
		if !p.Missing {
			subsidy := SubsidyForDay(p.Date, heights)
			total := p.Value + subsidy
			if total == 0 {
				out.Missing = true
			} else {
				out.Value = p.Value / total
				if out.Value < 0 || out.Value > 1 {
					flags = append(flags, series.QualityFlag{
						Code:   series.QualityRatioOutOfRange,
						Metric: series.MetricFeeToSubsidy,
						Date:   p.Date,
						Detail: fmt.Sprintf("fee-to-subsidy %g outside [0,1]", out.Value),
					})
				}
			}
		}
		points = append(points, out)
	}

	ratio, err := series.New(series.MetricFeeToSubsidy, series.UnitRatio, points)
	if err != nil {
		return series.MetricSeries{}, nil, err
	}
	return ratio, flags, nil
}

// zip applies f date-by-date over the intersection of two series. A date
// missing in either input, or rejected by f, is missing in the output.
func zip(metric string, unit series.Unit, a, b series.MetricSeries, f func(x, y float64) (float64, bool)) (series.MetricSeries, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return series.MetricSeries{}, nil
	}

	start, end := a.Start(), a.End()
	if b.Start().After(start) {
		start = b.Start()
	}
	if b.End().Before(end) {
		end = b.End()
	}
	if start.After(end) {
		return series.MetricSeries{}, nil
	}

	points := make([]series.DailyPoint, 0, start.DaysUntil(end)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		pa, okA := a.At(d)
		pb, okB := b.At(d)
		point := series.DailyPoint{Date: d}
		if !okA || !okB || pa.Missing || pb.Missing {
			point.Missing = true
		} else if v, ok := f(pa.Value, pb.Value); ok {
			point.Value = v
			point.Source = pa.Source
			point.Interpolated = pa.Interpolated || pb.Interpolated
		} else {
			point.Missing = true
		}
		points = append(points, point)
	}

	return series.New(metric, unit, points)
}

func renameSeries(s series.MetricSeries, metric string) (series.MetricSeries, error) {
	return series.New(metric, s.Unit(), s.Points())
}
