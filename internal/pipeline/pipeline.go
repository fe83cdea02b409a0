// Package pipeline wires normalisation, merging, metric derivation,
// windowing, and summarisation into one deterministic batch pass.
package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"btc-event-study/internal/ingest"
	"btc-event-study/internal/merge"
	"btc-event-study/internal/metrics"
	"btc-event-study/internal/series"
	"btc-event-study/internal/stats"
	"btc-event-study/internal/window"
)

// Catalog is the fully-resolved run configuration handed to the pipeline.
// It is passed in explicitly and never mutated, so two runs over the same
// frozen inputs produce identical summary tables.
type Catalog struct {
	Events []series.EventSpec
	// Metrics filters which derived metrics are summarised; empty means all.
	Metrics []string
	// RollingWindow applies a trailing mean of that many days per metric
	// before windowing; zero disables smoothing.
	RollingWindow int
	// MergeTolerance bounds same-rank source disagreement.
	MergeTolerance float64
}

// Validate checks every event spec in the catalog.
func (c Catalog) Validate() error {
	if len(c.Events) == 0 {
		return fmt.Errorf("catalog contains no events")
	}
	for _, e := range c.Events {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	if c.RollingWindow < 0 {
		return fmt.Errorf("rolling window cannot be negative")
	}
	return nil
}

// Result is the output of one full pass.
type Result struct {
	Records []series.SummaryRecord
	Flags   []series.QualityFlag
	// Series holds the derived (and optionally smoothed) metric series that
	// fed the summary, for full-history export and plotting.
	Series map[string]series.MetricSeries
}

// Pipeline coordinates one batch computation. It holds no mutable state
// across runs.
type Pipeline struct {
	engine *metrics.Engine
	logger zerolog.Logger
}

// New constructs a pipeline.
func New(logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		engine: metrics.NewEngine(logger),
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run merges the normalised inputs, derives metrics, and summarises every
// (event, window, metric) cell. Fatal errors stay scoped to their cell or
// metric: a metric with no valid source is marked unavailable on its cells,
// a window reaching outside coverage marks only that cell, and the batch
// always completes.
func (p *Pipeline) Run(catalog Catalog, inputs map[string][]ingest.Normalized) (Result, error) {
	if err := catalog.Validate(); err != nil {
		return Result{}, err
	}

	result := Result{Series: make(map[string]series.MetricSeries)}

	merged := make(map[string]series.MetricSeries)
	unavailable := make(map[string]string)
	for _, metric := range sortedKeys(inputs) {
		s, flags, err := merge.Merge(metric, inputs[metric], merge.Options{RelativeTolerance: catalog.MergeTolerance})
		result.Flags = append(result.Flags, flags...)
		if err != nil {
			p.logger.Warn().Err(err).Str("metric", metric).Msg("metric unavailable after merge")
			unavailable[metric] = err.Error()
			continue
		}
		merged[metric] = s
	}

	derived, flags, err := p.engine.Derive(merged)
	if err != nil {
		return Result{}, err
	}
	result.Flags = append(result.Flags, flags...)

	if catalog.RollingWindow > 0 {
		rawBDD := derived[series.MetricBDD]
		for _, metric := range sortedKeys(derived) {
			smoothed, err := stats.RollingMean(derived[metric], catalog.RollingWindow)
			if err != nil {
				return Result{}, err
			}
			derived[metric] = smoothed
		}
		if !rawBDD.IsEmpty() {
			spike, err := stats.SpikeRatio(series.MetricBDDSpike, rawBDD, derived[series.MetricBDD])
			if err != nil {
				return Result{}, err
			}
			if !spike.IsEmpty() {
				derived[series.MetricBDDSpike] = spike
			}
		}
	}
	for metric, s := range derived {
		result.Series[metric] = s
	}

	metricNames := p.selectMetrics(catalog, derived, unavailable)

	for _, event := range catalog.Events {
		for _, cfg := range event.Windows {
			for _, metric := range metricNames {
				rec := p.summariseCell(event, cfg, metric, derived, unavailable)
				result.Records = append(result.Records, rec)
			}
		}
	}

	p.logger.Info().
		Int("records", len(result.Records)).
		Int("flags", len(result.Flags)).
		Msg("summary computed")
	return result, nil
}

// summariseCell computes one (event, window, metric) cell. Failures scope
// to the cell: the record reports unavailable with a reason code.
func (p *Pipeline) summariseCell(event series.EventSpec, cfg series.WindowConfig, metric string, derived map[string]series.MetricSeries, unavailable map[string]string) series.SummaryRecord {
	if reason, ok := unavailable[metric]; ok {
		return unavailableRecord(event.Name, cfg.Label, metric, "source_unavailable: "+reason)
	}

	s, ok := derived[metric]
	if !ok || s.IsEmpty() {
		return unavailableRecord(event.Name, cfg.Label, metric, "metric_not_derived")
	}

	pre, crisis, err := window.Slice(s, event.Anchor, cfg)
	if err != nil {
		var insufficient *window.InsufficientWindowDataError
		if errors.As(err, &insufficient) {
			p.logger.Warn().Str("event", event.Name).Str("window", cfg.Label).
				Str("metric", metric).Int("missing_days", len(insufficient.Missing)).
				Msg("window not fully covered")
			return unavailableRecord(event.Name, cfg.Label, metric, "insufficient_window_data: "+err.Error())
		}
		return unavailableRecord(event.Name, cfg.Label, metric, err.Error())
	}

	return stats.Compare(event.Name, cfg.Label, pre, crisis)
}

func (p *Pipeline) selectMetrics(catalog Catalog, derived map[string]series.MetricSeries, unavailable map[string]string) []string {
	if len(catalog.Metrics) > 0 {
		selected := make([]string, len(catalog.Metrics))
		copy(selected, catalog.Metrics)
		sort.Strings(selected)
		return selected
	}

	names := make(map[string]bool, len(derived)+len(unavailable))
	for m := range derived {
		names[m] = true
	}
	for m := range unavailable {
		names[m] = true
	}
	return sortedKeys(names)
}

func unavailableRecord(event, label, metric, reason string) series.SummaryRecord {
	return series.SummaryRecord{
		Event:  event,
		Window: label,
		Metric: metric,
		Status: series.CellUnavailable,
		Reason: reason,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
