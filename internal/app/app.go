package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"btc-event-study/internal/config"
	"btc-event-study/internal/fetcher"
	"btc-event-study/internal/pipeline"
	"btc-event-study/internal/series"
	"btc-event-study/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newProviders builds the enabled source adapters. The returned closer
// releases the node RPC client when one was dialled.
func (a *App) newProviders(ctx context.Context) ([]fetcher.SeriesProvider, func(), error) {
	var providers []fetcher.SeriesProvider
	closer := func() {}

	if p := a.Config.Providers.BlockchainCom; p.Enabled {
		providers = append(providers, fetcher.NewBlockchainCom(fetcher.BlockchainComOptions{
			BaseURL:   p.BaseURL,
			Timespan:  p.Timespan,
			Timeout:   p.RequestTimeout,
			UserAgent: p.UserAgent,
			Rank:      p.Rank,
		}, a.Logger))
	}
	if p := a.Config.Providers.Blockchair; p.Enabled {
		providers = append(providers, fetcher.NewBlockchair(fetcher.BlockchairOptions{
			BaseURL:   p.BaseURL,
			Timeout:   p.RequestTimeout,
			UserAgent: p.UserAgent,
			Rank:      p.Rank,
		}, a.Logger))
	}
	if p := a.Config.Providers.MempoolSpace; p.Enabled {
		providers = append(providers, fetcher.NewMempoolSpace(fetcher.MempoolSpaceOptions{
			BaseURL:    p.BaseURL,
			TimePeriod: p.Timespan,
			Timeout:    p.RequestTimeout,
			UserAgent:  p.UserAgent,
			Rank:       p.Rank,
		}, a.Logger))
	}
	if p := a.Config.Providers.Node; p.Enabled {
		node, err := fetcher.NewNode(ctx, fetcher.NodeOptions{
			RPCURL:   p.RPCURL,
			Username: p.Username,
			Password: p.Password,
			Timeout:  p.RequestTimeout,
			Rank:     p.Rank,
		}, a.Logger)
		if err != nil {
			return nil, nil, err
		}
		providers = append(providers, node)
		closer = node.Close
	}

	if len(providers) == 0 {
		return nil, nil, fmt.Errorf("no providers enabled")
	}
	return providers, closer, nil
}

// providerRank resolves the configured authority rank for a source tag.
func (a *App) providerRank(source string) int {
	switch source {
	case "blockchain_com":
		return a.Config.Providers.BlockchainCom.Rank
	case "blockchair":
		return a.Config.Providers.Blockchair.Rank
	case "mempool_space":
		return a.Config.Providers.MempoolSpace.Rank
	case "node_rpc":
		return a.Config.Providers.Node.Rank
	default:
		return 0
	}
}

// buildCatalog materialises the immutable study catalog from configuration.
// Every event carries the full set of configured window shapes.
func (a *App) buildCatalog() (pipeline.Catalog, error) {
	windows := make([]series.WindowConfig, 0, len(a.Config.Study.Windows))
	for _, w := range a.Config.Study.Windows {
		windows = append(windows, series.WindowConfig{
			Label:    w.Label,
			PreDays:  w.PreDays,
			PostDays: w.PostDays,
		})
	}

	events := make([]series.EventSpec, 0, len(a.Config.Study.Events))
	for _, e := range a.Config.Study.Events {
		anchor, err := series.ParseDay(e.Anchor)
		if err != nil {
			return pipeline.Catalog{}, fmt.Errorf("event %s: %w", e.Name, err)
		}
		events = append(events, series.EventSpec{
			Name:    e.Name,
			Anchor:  anchor,
			Windows: windows,
		})
	}

	catalog := pipeline.Catalog{
		Events:         events,
		Metrics:        a.Config.Study.Metrics,
		RollingWindow:  a.Config.Study.RollingWindowDays,
		MergeTolerance: a.Config.Study.MergeTolerance,
	}
	if err := catalog.Validate(); err != nil {
		return pipeline.Catalog{}, err
	}
	return catalog, nil
}

// studyRange resolves the configured ingestion date range with optional
// overrides.
func (a *App) studyRange(fromOverride, toOverride *time.Time) (series.Day, series.Day, error) {
	from, err := series.ParseDay(a.Config.Study.StartDate)
	if err != nil {
		return series.Day{}, series.Day{}, fmt.Errorf("study.start_date: %w", err)
	}
	to, err := series.ParseDay(a.Config.Study.EndDate)
	if err != nil {
		return series.Day{}, series.Day{}, fmt.Errorf("study.end_date: %w", err)
	}
	if fromOverride != nil {
		from = series.DayOf(*fromOverride)
	}
	if toOverride != nil {
		to = series.DayOf(*toOverride)
	}
	if to.Before(from) {
		return series.Day{}, series.Day{}, fmt.Errorf("study range is empty: %s..%s", from, to)
	}
	return from, to, nil
}

// FetchOptions configure the ingestion run.
type FetchOptions struct {
	From    *time.Time
	To      *time.Time
	Metrics []string
	DryRun  bool
}

// SummarizeOptions configure the study computation.
type SummarizeOptions struct {
	CSVPath string
	DryRun  bool
}

// ExportOptions hold parameters for exporting series and summaries.
type ExportOptions struct {
	Metric     string
	CSVPath    string
	PNGPath    string
	SummaryCSV string
	MaxPoints  int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
