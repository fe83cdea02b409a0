// Package window slices metric series into pre/crisis halves around an
// event anchor. Slicing is stateless and deterministic; a window that is
// not fully covered by the series fails fast rather than silently biasing
// the comparison with a truncated half.
package window

import (
	"fmt"
	"strings"

	"btc-event-study/internal/series"
)

// InsufficientWindowDataError reports a window reaching beyond the series'
// coverage, naming every absent date.
type InsufficientWindowDataError struct {
	Metric  string
	Label   string
	Missing []series.Day
}

func (e *InsufficientWindowDataError) Error() string {
	days := make([]string, 0, len(e.Missing))
	for _, d := range e.Missing {
		days = append(days, d.String())
	}
	return fmt.Sprintf("insufficient window data: %s window %s missing %d day(s): %s",
		e.Metric, e.Label, len(e.Missing), strings.Join(days, ", "))
}

// Slice cuts a series into its pre and crisis halves for one window config.
// Pre covers [anchor-PreDays, anchor); crisis covers [anchor, anchor+PostDays),
// anchor inclusive on the crisis side. Both halves must be fully populated.
func Slice(s series.MetricSeries, anchor series.Day, cfg series.WindowConfig) (pre, crisis series.MetricSeries, err error) {
	if err := cfg.Validate(); err != nil {
		return series.MetricSeries{}, series.MetricSeries{}, err
	}

	preStart := anchor.AddDays(-cfg.PreDays)
	preEnd := anchor.AddDays(-1)
	crisisStart := anchor
	crisisEnd := anchor.AddDays(cfg.PostDays - 1)

	missing := s.MissingDays(preStart, preEnd)
	missing = append(missing, s.MissingDays(crisisStart, crisisEnd)...)
	if len(missing) > 0 {
		return series.MetricSeries{}, series.MetricSeries{}, &InsufficientWindowDataError{
			Metric:  s.Metric(),
			Label:   cfg.Label,
			Missing: missing,
		}
	}

	pre, err = cut(s, preStart, preEnd)
	if err != nil {
		return series.MetricSeries{}, series.MetricSeries{}, err
	}
	crisis, err = cut(s, crisisStart, crisisEnd)
	if err != nil {
		return series.MetricSeries{}, series.MetricSeries{}, err
	}
	return pre, crisis, nil
}

func cut(s series.MetricSeries, from, to series.Day) (series.MetricSeries, error) {
	points := make([]series.DailyPoint, 0, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		p, ok := s.At(d)
		if !ok {
			return series.MetricSeries{}, fmt.Errorf("cut %s: day %s outside series range", s.Metric(), d)
		}
		points = append(points, p)
	}
	return series.New(s.Metric(), s.Unit(), points)
}
