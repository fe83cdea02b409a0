package series

// ChangeKind distinguishes how the pre/crisis delta of a metric is expressed.
type ChangeKind string

const (
	// ChangePercent is (crisis_mean - pre_mean) / pre_mean * 100.
	ChangePercent ChangeKind = "percent"
	// ChangePercentagePoint is crisis_mean - pre_mean, used for metrics that
	// are already a proportion (fee-to-subsidy).
	ChangePercentagePoint ChangeKind = "percentage_point"
)

// CellStatus records whether a (event, window, metric) cell was computed.
type CellStatus string

const (
	CellOK          CellStatus = "ok"
	CellUnavailable CellStatus = "unavailable"
)

// Change is the pre/crisis delta of one summary cell. Defined is false when
// the change cannot be expressed, e.g. a percent change over a zero pre-mean.
type Change struct {
	Kind    ChangeKind
	Value   float64
	Defined bool
}

// SummaryRecord is one row of the output table: descriptive statistics for
// one (event, window, metric) cell. Records are produced fresh on every run
// and only ever appended, never mutated.
type SummaryRecord struct {
	Event  string
	Window string
	Metric string

	PreMean      float64
	PreMedian    float64
	PreStdDev    float64
	CrisisMean   float64
	CrisisMedian float64
	CrisisStdDev float64

	Change Change

	Status CellStatus
	Reason string
}
