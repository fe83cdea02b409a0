package metrics

import (
	"time"

	"btc-event-study/internal/series"
)

const (
	// halvingInterval is the fixed block interval of the subsidy schedule.
	halvingInterval = 210_000
	// initialSubsidyBTC is the coinbase reward of the genesis era.
	initialSubsidyBTC = 50.0
	// approxBlocksPerDay is the long-run average used when exact heights
	// are unavailable (10-minute target spacing).
	approxBlocksPerDay = 144
)

var genesisDay = series.NewDay(2009, time.January, 3)

// SubsidyAtHeight returns the block subsidy in BTC in effect at a height.
// The halving applies exactly at each 210,000-block boundary.
func SubsidyAtHeight(height int64) float64 {
	if height < 0 {
		return 0
	}
	halvings := height / halvingInterval
	if halvings >= 64 {
		return 0
	}
	return initialSubsidyBTC / float64(uint64(1)<<uint(halvings))
}

// ApproxHeightForDay estimates the chain height at the end of a day from
// the long-run 144 blocks/day average. Exact heights from a node source
// always take precedence; this keeps the subsidy schedule usable for
// providers that report no heights.
func ApproxHeightForDay(d series.Day) int64 {
	days := genesisDay.DaysUntil(d)
	if days < 0 {
		return 0
	}
	return int64(days) * approxBlocksPerDay
}

// SubsidyForDay resolves the subsidy for a calendar day, preferring an
// exact height series when one covers the day.
func SubsidyForDay(d series.Day, heights series.MetricSeries) float64 {
	if p, ok := heights.At(d); ok && !p.Missing {
		return SubsidyAtHeight(int64(p.Value))
	}
	return SubsidyAtHeight(ApproxHeightForDay(d))
}
