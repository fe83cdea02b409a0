package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-event-study/internal/series"
)

const defaultMempoolSpaceBaseURL = "https://mempool.space/api"

// MempoolSpaceOptions parameterise the mempool.space adapter.
type MempoolSpaceOptions struct {
	BaseURL    string
	TimePeriod string
	Timeout    time.Duration
	UserAgent  string
	Rank       int
}

// MempoolSpace fetches per-block fee-rate percentiles from the mempool.space
// mining charts and collapses them to daily aggregates. Values come from
// block averages rather than per-transaction data, so the resulting series
// is tagged approximate.
type MempoolSpace struct {
	opts    MempoolSpaceOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewMempoolSpace constructs a mempool.space provider.
func NewMempoolSpace(opts MempoolSpaceOptions, logger zerolog.Logger) *MempoolSpace {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultMempoolSpaceBaseURL
	}

	return &MempoolSpace{
		opts:    opts,
		logger:  logger.With().Str("component", "mempoolspace_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name returns the provenance tag used on normalised points.
func (m *MempoolSpace) Name() string { return "mempool_space" }

// Rank returns the static authority rank for merging.
func (m *MempoolSpace) Rank() int { return m.opts.Rank }

// Supports reports whether the mining charts serve the metric.
func (m *MempoolSpace) Supports(metric string) bool {
	return metric == series.MetricMedianRate || metric == series.MetricP90Rate
}

// Fetch retrieves block fee rates and aggregates them per day.
func (m *MempoolSpace) Fetch(ctx context.Context, metric string, from, to series.Day) (RawSeries, error) {
	if !m.Supports(metric) {
		return RawSeries{}, fmt.Errorf("mempool.space does not serve metric %q", metric)
	}

	period := m.opts.TimePeriod
	if period == "" {
		period = "all"
	}
	endpoint := fmt.Sprintf("%s/v1/mining/blocks/fee-rates/%s", m.baseURL, period)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RawSeries{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return RawSeries{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawSeries{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return RawSeries{}, fmt.Errorf("mempool.space api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var blocks []blockFeeRates
	if err := json.Unmarshal(payload, &blocks); err != nil {
		return RawSeries{}, fmt.Errorf("decode fee rates: %w", err)
	}

	perDay := make(map[series.Day][]float64)
	for _, b := range blocks {
		day := series.DayOf(time.Unix(b.Timestamp, 0))
		if day.Before(from) || day.After(to) {
			continue
		}
		switch metric {
		case series.MetricMedianRate:
			perDay[day] = append(perDay[day], b.AvgFee50)
		case series.MetricP90Rate:
			perDay[day] = append(perDay[day], b.AvgFee90)
		}
	}

	days := make([]series.Day, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	points := make([]Observation, 0, len(days))
	for _, d := range days {
		points = append(points, Observation{Date: d, Value: decimal.NewFromFloat(medianOf(perDay[d]))})
	}

	m.logger.Debug().Str("metric", metric).Int("days", len(points)).Msg("fee rates fetched")

	return RawSeries{
		Provider:    m.Name(),
		Rank:        m.Rank(),
		Metric:      metric,
		Unit:        series.UnitFor(metric),
		Approximate: true,
		Points:      points,
	}, nil
}

type blockFeeRates struct {
	AvgHeight int64   `json:"avgHeight"`
	Timestamp int64   `json:"timestamp"`
	AvgFee50  float64 `json:"avgFee_50"`
	AvgFee90  float64 `json:"avgFee_90"`
}

var _ SeriesProvider = (*MempoolSpace)(nil)
