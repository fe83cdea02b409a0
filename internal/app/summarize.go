package app

import (
	"context"
	"errors"
	"sort"

	"btc-event-study/internal/ingest"
	"btc-event-study/internal/pipeline"
	"btc-event-study/internal/storage"
)

// Summarize runs the full study over stored daily points: merge sources,
// derive the analytic metrics, slice event windows, and compute the summary
// table. The table is persisted (upserted, so re-runs on frozen data are
// idempotent) and optionally written to CSV.
func (a *App) Summarize(ctx context.Context, opts SummarizeOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot summarize")
	}
	if closeStore != nil {
		defer closeStore()
	}

	result, err := a.runStudy(ctx, store)
	if err != nil {
		return err
	}
	a.logFlags(result.Flags)

	if !opts.DryRun {
		if err := store.UpsertSummaryRecords(ctx, result.Records); err != nil {
			return err
		}
	}

	if opts.CSVPath != "" {
		if err := writeSummaryCSV(opts.CSVPath, result.Records); err != nil {
			return err
		}
	}

	return renderSummaryTable(result.Records)
}

// runStudy loads the per-source series from storage and feeds the pipeline.
func (a *App) runStudy(ctx context.Context, store *storage.Store) (pipeline.Result, error) {
	catalog, err := a.buildCatalog()
	if err != nil {
		return pipeline.Result{}, err
	}

	from, to, err := a.studyRange(nil, nil)
	if err != nil {
		return pipeline.Result{}, err
	}

	metrics, err := store.ListMetrics(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}
	if len(metrics) == 0 {
		return pipeline.Result{}, errors.New("no stored metric points; run fetch first")
	}

	inputs := make(map[string][]ingest.Normalized, len(metrics))
	for _, metric := range metrics {
		bySource, err := store.LoadSeriesBySource(ctx, metric, from, to)
		if err != nil {
			return pipeline.Result{}, err
		}
		sources := make([]string, 0, len(bySource))
		for source := range bySource {
			sources = append(sources, source)
		}
		sort.Strings(sources)
		for _, source := range sources {
			inputs[metric] = append(inputs[metric], ingest.Normalized{
				Series: bySource[source],
				Rank:   a.providerRank(source),
			})
		}
	}

	return pipeline.New(a.Logger).Run(catalog, inputs)
}
