package storage

import (
	"time"

	"btc-event-study/internal/series"
)

// PointRow is one persisted daily observation of a metric from one source.
// Missing days are not persisted; series contiguity is rebuilt on load.
type PointRow struct {
	Metric       string
	Source       string
	Day          series.Day
	Value        float64
	Interpolated bool
	CreatedAt    time.Time
}

// SummaryRow is one persisted summary cell. Rows are keyed by
// (event, window, metric) and upserted, so re-running a study over the same
// frozen inputs leaves the table byte-identical.
type SummaryRow struct {
	Record    series.SummaryRecord
	CreatedAt time.Time
}
