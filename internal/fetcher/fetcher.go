package fetcher

import (
	"context"

	"github.com/shopspring/decimal"

	"btc-event-study/internal/series"
)

// Observation is one raw provider data point collapsed onto a UTC day.
// Values stay decimal until normalisation so satoshi-denominated payloads
// survive the unit conversion exactly.
type Observation struct {
	Date  series.Day
	Value decimal.Decimal
}

// RawSeries is one provider payload for one metric, still in provider units.
type RawSeries struct {
	Provider    string
	Rank        int
	Metric      string
	Unit        series.Unit
	Approximate bool
	Points      []Observation
}

// SeriesProvider retrieves raw time-keyed observations for one metric.
// Transport concerns (timeouts, auth, rate limits) live behind this
// interface; nothing downstream of the normaliser performs I/O.
type SeriesProvider interface {
	Name() string
	Rank() int
	Supports(metric string) bool
	Fetch(ctx context.Context, metric string, from, to series.Day) (RawSeries, error)
}
