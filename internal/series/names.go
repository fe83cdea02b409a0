package series

// Raw metric names as ingested from providers.
const (
	MetricFeesTotal  = "fees_btc_day"
	MetricTxCount    = "tx_per_day"
	MetricBlocks     = "blocks_per_day"
	MetricBDD        = "bdd"
	MetricVBytes     = "vbytes_day"
	MetricMedianRate = "median_sat_vb"
	MetricP90Rate    = "p90_sat_vb"
	MetricHeight     = "block_height"
)

// Derived metric names produced by the metric engine.
const (
	MetricUrgencySpread = "urgency_spread_sat_vb"
	MetricFeesPerBlock  = "fees_per_block_btc"
	MetricFeeToSubsidy  = "fee_to_subsidy"
	// MetricBDDSpike relates a day's coin-days-destroyed to its trailing
	// mean; only derived when smoothing is enabled.
	MetricBDDSpike = "bdd_spike_ratio"
)

// NonNegativeMetrics lists raw metrics that can never be negative; negative
// observations from a provider are a data-quality defect.
var NonNegativeMetrics = map[string]bool{
	MetricFeesTotal:  true,
	MetricTxCount:    true,
	MetricBlocks:     true,
	MetricBDD:        true,
	MetricVBytes:     true,
	MetricMedianRate: true,
	MetricP90Rate:    true,
}

// UnitFor maps a metric name to its canonical unit.
func UnitFor(metric string) Unit {
	switch metric {
	case MetricFeesTotal, MetricFeesPerBlock:
		return UnitBTC
	case MetricMedianRate, MetricP90Rate, MetricUrgencySpread:
		return UnitSatPerVB
	case MetricFeeToSubsidy, MetricBDDSpike:
		return UnitRatio
	case MetricBDD:
		return UnitCoinDays
	default:
		return UnitCount
	}
}
