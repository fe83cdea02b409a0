package app

import (
	"context"
	"errors"

	"btc-event-study/internal/ingest"
	"btc-event-study/internal/series"
)

// rawMetrics are the source-level metrics an ingestion run collects.
var rawMetrics = []string{
	series.MetricFeesTotal,
	series.MetricTxCount,
	series.MetricBlocks,
	series.MetricBDD,
	series.MetricMedianRate,
	series.MetricP90Rate,
	series.MetricHeight,
}

// Fetch pulls raw payloads from every enabled provider, normalises them,
// and persists the canonical daily points. A malformed payload is fatal for
// that source only; ingestion continues with the remaining sources.
func (a *App) Fetch(ctx context.Context, opts FetchOptions) error {
	from, to, err := a.studyRange(opts.From, opts.To)
	if err != nil {
		return err
	}

	metrics := rawMetrics
	if len(opts.Metrics) > 0 {
		metrics = opts.Metrics
	}

	var persist func(metric string, points []series.DailyPoint) error
	if opts.DryRun {
		a.Logger.Warn().Msg("fetch dry-run: nothing will be persisted")
		persist = func(string, []series.DailyPoint) error { return nil }
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; cannot persist fetched data")
		}
		if closeStore != nil {
			defer closeStore()
		}

		unlock, acquired, err := store.TryAdvisoryLock(ctx, a.Config.Database.AdvisoryLockKey)
		if err != nil {
			return err
		}
		if !acquired {
			return errors.New("another ingestion run holds the advisory lock")
		}
		defer unlock()

		persist = func(metric string, points []series.DailyPoint) error {
			return store.UpsertPoints(ctx, metric, points)
		}
	}

	providers, closeProviders, err := a.newProviders(ctx)
	if err != nil {
		return err
	}
	defer closeProviders()

	fetched := 0
	failed := 0
	for _, provider := range providers {
		for _, metric := range metrics {
			if !provider.Supports(metric) {
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			raw, err := provider.Fetch(ctx, metric, from, to)
			if err != nil {
				failed++
				a.Logger.Error().Err(err).Str("provider", provider.Name()).
					Str("metric", metric).Msg("fetch failed")
				continue
			}

			normalized, flags, err := ingest.Normalize(raw)
			if err != nil {
				failed++
				var formatErr *ingest.SourceFormatError
				if errors.As(err, &formatErr) {
					a.Logger.Error().Err(err).Str("provider", provider.Name()).
						Str("metric", metric).Msg("payload rejected")
					continue
				}
				return err
			}
			a.logFlags(flags)

			if err := persist(metric, normalized.Series.Points()); err != nil {
				return err
			}

			fetched++
			a.Logger.Info().Str("provider", provider.Name()).Str("metric", metric).
				Int("days", normalized.Series.Len()).Msg("series ingested")
		}
	}

	a.Logger.Info().Int("fetched", fetched).Int("failed", failed).Msg("ingestion complete")
	if fetched == 0 {
		return errors.New("no series ingested; check provider configuration and logs")
	}
	return nil
}

func (a *App) logFlags(flags []series.QualityFlag) {
	for _, f := range flags {
		a.Logger.Warn().Str("code", string(f.Code)).Str("metric", f.Metric).
			Str("date", f.Date.String()).Str("detail", f.Detail).Msg("data quality flag")
	}
}
