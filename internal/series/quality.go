package series

import "fmt"

// QualityCode classifies a non-fatal data-quality finding.
type QualityCode string

const (
	// QualityNegativeValue marks a negative observation on a metric that is
	// semantically non-negative (fees, tx count, coin days destroyed).
	QualityNegativeValue QualityCode = "negative_value"
	// QualitySourceDisagreement marks same-rank sources disagreeing beyond
	// the configured relative tolerance on the same day.
	QualitySourceDisagreement QualityCode = "source_disagreement"
	// QualityNegativeSpread marks an urgency spread below zero, which can
	// only come from inconsistent upstream percentiles.
	QualityNegativeSpread QualityCode = "negative_urgency_spread"
	// QualityRatioOutOfRange marks a fee-to-subsidy value outside [0, 1].
	QualityRatioOutOfRange QualityCode = "ratio_out_of_range"
	// QualityApproximate marks values derived through a proxy formula rather
	// than the preferred granularity.
	QualityApproximate QualityCode = "approximate"
)

// QualityFlag is one data-quality finding. Flags never halt a run; they are
// surfaced alongside the output for manual review.
type QualityFlag struct {
	Code   QualityCode
	Metric string
	Date   Day
	Detail string
}

func (f QualityFlag) String() string {
	return fmt.Sprintf("%s %s %s: %s", f.Code, f.Metric, f.Date, f.Detail)
}
