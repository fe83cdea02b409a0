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

const defaultBlockchairBaseURL = "https://api.blockchair.com/bitcoin"

// BlockchairOptions parameterise the Blockchair adapter.
type BlockchairOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Rank      int
}

// Blockchair fetches per-day block counts through the Blockchair aggregation
// API. Unlike chart endpoints these are true counts of mined blocks, not a
// 144-per-day estimate.
type Blockchair struct {
	opts    BlockchairOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewBlockchair constructs a Blockchair provider.
func NewBlockchair(opts BlockchairOptions, logger zerolog.Logger) *Blockchair {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBlockchairBaseURL
	}

	return &Blockchair{
		opts:    opts,
		logger:  logger.With().Str("component", "blockchair_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name returns the provenance tag used on normalised points.
func (b *Blockchair) Name() string { return "blockchair" }

// Rank returns the static authority rank for merging.
func (b *Blockchair) Rank() int { return b.opts.Rank }

// Supports reports whether the aggregation API serves the metric.
func (b *Blockchair) Supports(metric string) bool {
	return metric == series.MetricBlocks || metric == series.MetricTxCount
}

// Fetch retrieves grouped-by-date aggregates for [from, to].
func (b *Blockchair) Fetch(ctx context.Context, metric string, from, to series.Day) (RawSeries, error) {
	var field string
	switch metric {
	case series.MetricBlocks:
		field = "count()"
	case series.MetricTxCount:
		field = "sum(transaction_count)"
	default:
		return RawSeries{}, fmt.Errorf("blockchair does not serve metric %q", metric)
	}

	query := url.Values{
		"a": {"date," + field},
		"q": {fmt.Sprintf("time(%s..%s)", from, to)},
	}
	endpoint := fmt.Sprintf("%s/blocks?%s", b.baseURL, query.Encode())

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
		return RawSeries{}, fmt.Errorf("blockchair api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var body struct {
		Data []map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return RawSeries{}, fmt.Errorf("decode blockchair aggregate: %w", err)
	}

	points := make([]Observation, 0, len(body.Data))
	for _, row := range body.Data {
		dateRaw, ok := row["date"]
		if !ok {
			return RawSeries{}, fmt.Errorf("blockchair aggregate row missing date field")
		}
		var dateStr string
		if err := json.Unmarshal(dateRaw, &dateStr); err != nil {
			return RawSeries{}, fmt.Errorf("decode blockchair date: %w", err)
		}
		day, err := series.ParseDay(dateStr)
		if err != nil {
			return RawSeries{}, err
		}
		valueRaw, ok := row[field]
		if !ok {
			return RawSeries{}, fmt.Errorf("blockchair aggregate row missing %s field", field)
		}
		var value json.Number
		if err := json.Unmarshal(valueRaw, &value); err != nil {
			return RawSeries{}, fmt.Errorf("decode blockchair value: %w", err)
		}
		dec, err := decimal.NewFromString(value.String())
		if err != nil {
			return RawSeries{}, fmt.Errorf("parse blockchair value: %w", err)
		}
		points = append(points, Observation{Date: day, Value: dec})
	}

	b.logger.Debug().Str("metric", metric).Int("points", len(points)).Msg("aggregate fetched")

	return RawSeries{
		Provider: b.Name(),
		Rank:     b.Rank(),
		Metric:   metric,
		Unit:     series.UnitFor(metric),
		Points:   points,
	}, nil
}

var _ SeriesProvider = (*Blockchair)(nil)
