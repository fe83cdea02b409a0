package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-event-study/internal/series"
)

const defaultBlockchainComBaseURL = "https://api.blockchain.info"

// chart identifiers on the Blockchain.com Charts API.
var blockchainComCharts = map[string]string{
	series.MetricFeesTotal: "transaction-fees",
	series.MetricTxCount:   "n-transactions",
	series.MetricBlocks:    "n-blocks",
	series.MetricBDD:       "bdd",
}

// BlockchainComOptions parameterise the Blockchain.com adapter.
type BlockchainComOptions struct {
	BaseURL   string
	Timespan  string
	Timeout   time.Duration
	UserAgent string
	Rank      int
}

// BlockchainCom fetches daily aggregates from the Blockchain.com Charts API.
type BlockchainCom struct {
	opts    BlockchainComOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewBlockchainCom constructs a Blockchain.com provider.
func NewBlockchainCom(opts BlockchainComOptions, logger zerolog.Logger) *BlockchainCom {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBlockchainComBaseURL
	}

	return &BlockchainCom{
		opts:    opts,
		logger:  logger.With().Str("component", "blockchaincom_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name returns the provenance tag used on normalised points.
func (b *BlockchainCom) Name() string { return "blockchain_com" }

// Rank returns the static authority rank for merging.
func (b *BlockchainCom) Rank() int { return b.opts.Rank }

// Supports reports whether the charts API serves the metric.
func (b *BlockchainCom) Supports(metric string) bool {
	_, ok := blockchainComCharts[metric]
	return ok
}

// Fetch retrieves one chart and trims it to [from, to].
func (b *BlockchainCom) Fetch(ctx context.Context, metric string, from, to series.Day) (RawSeries, error) {
	chartName, ok := blockchainComCharts[metric]
	if !ok {
		return RawSeries{}, fmt.Errorf("blockchain.com does not serve metric %q", metric)
	}

	timespan := b.opts.Timespan
	if timespan == "" {
		timespan = "all"
	}

	endpoint := fmt.Sprintf("%s/charts/%s?%s", b.baseURL, chartName, url.Values{
		"timespan": {timespan},
		"format":   {"json"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RawSeries{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(b.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return RawSeries{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawSeries{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return RawSeries{}, fmt.Errorf("blockchain.com api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var chart chartResponse
	if err := json.Unmarshal(payload, &chart); err != nil {
		return RawSeries{}, fmt.Errorf("decode chart %s: %w", chartName, err)
	}

	points := make([]Observation, 0, len(chart.Values))
	for _, v := range chart.Values {
		day := series.DayOf(time.Unix(v.X, 0))
		if day.Before(from) || day.After(to) {
			continue
		}
		points = append(points, Observation{Date: day, Value: decimal.NewFromFloat(v.Y)})
	}

	b.logger.Debug().Str("chart", chartName).Int("points", len(points)).Msg("chart fetched")

	return RawSeries{
		Provider: b.Name(),
		Rank:     b.Rank(),
		Metric:   metric,
		Unit:     series.UnitFor(metric),
		Points:   points,
	}, nil
}

type chartResponse struct {
	Name   string `json:"name"`
	Unit   string `json:"unit"`
	Values []struct {
		X int64   `json:"x"`
		Y float64 `json:"y"`
	} `json:"values"`
}

var _ SeriesProvider = (*BlockchainCom)(nil)
