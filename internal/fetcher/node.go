package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-event-study/internal/series"
)

// NodeOptions parameterise the Bitcoin Core RPC adapter.
type NodeOptions struct {
	RPCURL   string
	Username string
	Password string
	Timeout  time.Duration
	Rank     int
}

// Node fetches per-day aggregates straight from a Bitcoin Core node via
// JSON-RPC (getblockcount / getblockstats). A node is the authoritative
// source: complete history, per-transaction fee-rate percentiles, exact
// block heights for the subsidy schedule.
type Node struct {
	opts   NodeOptions
	logger zerolog.Logger
	client *rpc.Client

	// one scan per (from, to) range serves every metric of that range
	scanFrom series.Day
	scanTo   series.Day
	scanned  map[series.Day]dayStats
}

type dayStats struct {
	totalFeeSat decimal.Decimal
	txs         int64
	blocks      int64
	lastHeight  int64
	medianRates []float64
	p90Rates    []float64
}

// NewNode dials the node RPC endpoint. Basic auth is attached per request
// through the client's header hook.
func NewNode(ctx context.Context, opts NodeOptions, logger zerolog.Logger) (*Node, error) {
	if opts.RPCURL == "" {
		return nil, fmt.Errorf("node rpc_url is required")
	}

	dialOpts := []rpc.ClientOption{}
	if timeout := opts.Timeout; timeout > 0 {
		dialOpts = append(dialOpts, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	if opts.Username != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		dialOpts = append(dialOpts, rpc.WithHTTPAuth(func(h http.Header) error {
			h.Set("Authorization", "Basic "+credentials)
			return nil
		}))
	}

	client, err := rpc.DialOptions(ctx, opts.RPCURL, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial bitcoin node: %w", err)
	}

	return &Node{
		opts:   opts,
		logger: logger.With().Str("component", "node_fetcher").Logger(),
		client: client,
	}, nil
}

// Close releases the RPC client.
func (n *Node) Close() {
	if n != nil && n.client != nil {
		n.client.Close()
	}
}

// Name returns the provenance tag used on normalised points.
func (n *Node) Name() string { return "node_rpc" }

// Rank returns the static authority rank for merging.
func (n *Node) Rank() int { return n.opts.Rank }

// Supports reports whether the node serves the metric.
func (n *Node) Supports(metric string) bool {
	switch metric {
	case series.MetricFeesTotal, series.MetricTxCount, series.MetricBlocks,
		series.MetricMedianRate, series.MetricP90Rate, series.MetricHeight:
		return true
	}
	return false
}

// Fetch scans block stats for [from, to] and projects the requested metric.
func (n *Node) Fetch(ctx context.Context, metric string, from, to series.Day) (RawSeries, error) {
	if !n.Supports(metric) {
		return RawSeries{}, fmt.Errorf("node does not serve metric %q", metric)
	}

	stats, err := n.scanRange(ctx, from, to)
	if err != nil {
		return RawSeries{}, err
	}

	days := make([]series.Day, 0, len(stats))
	for d := range stats {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	unit := series.UnitFor(metric)
	if metric == series.MetricFeesTotal {
		unit = series.UnitSatoshi // getblockstats reports fees in satoshi
	}

	points := make([]Observation, 0, len(days))
	for _, d := range days {
		s := stats[d]
		var value decimal.Decimal
		switch metric {
		case series.MetricFeesTotal:
			value = s.totalFeeSat
		case series.MetricTxCount:
			value = decimal.NewFromInt(s.txs)
		case series.MetricBlocks:
			value = decimal.NewFromInt(s.blocks)
		case series.MetricHeight:
			value = decimal.NewFromInt(s.lastHeight)
		case series.MetricMedianRate:
			value = decimal.NewFromFloat(medianOf(s.medianRates))
		case series.MetricP90Rate:
			value = decimal.NewFromFloat(medianOf(s.p90Rates))
		}
		points = append(points, Observation{Date: d, Value: value})
	}

	return RawSeries{
		Provider: n.Name(),
		Rank:     n.Rank(),
		Metric:   metric,
		Unit:     unit,
		Points:   points,
	}, nil
}

func (n *Node) scanRange(ctx context.Context, from, to series.Day) (map[series.Day]dayStats, error) {
	if n.scanned != nil && n.scanFrom.Equal(from) && n.scanTo.Equal(to) {
		return n.scanned, nil
	}

	var tip int64
	if err := n.client.CallContext(ctx, &tip, "getblockcount"); err != nil {
		return nil, fmt.Errorf("getblockcount: %w", err)
	}

	start, err := n.firstHeightAtOrAfter(ctx, from, tip)
	if err != nil {
		return nil, err
	}

	endExclusive := to.AddDays(1)
	stats := make(map[series.Day]dayStats)

	for height := start; height <= tip; height++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bs, err := n.blockStats(ctx, height)
		if err != nil {
			return nil, err
		}

		day := series.DayOf(time.Unix(bs.Time, 0))
		if day.Before(from) {
			continue
		}
		if !day.Before(endExclusive) {
			break
		}

		agg := stats[day]
		agg.totalFeeSat = agg.totalFeeSat.Add(decimal.NewFromInt(bs.TotalFee))
		agg.txs += bs.Txs
		agg.blocks++
		agg.lastHeight = bs.Height
		if len(bs.FeeratePercentiles) == 5 {
			agg.medianRates = append(agg.medianRates, bs.FeeratePercentiles[2])
			agg.p90Rates = append(agg.p90Rates, bs.FeeratePercentiles[4])
		}
		stats[day] = agg
	}

	n.logger.Debug().Str("from", from.String()).Str("to", to.String()).
		Int("days", len(stats)).Msg("block stats scanned")

	n.scanFrom, n.scanTo, n.scanned = from, to, stats
	return stats, nil
}

// firstHeightAtOrAfter binary-searches block times for the first block mined
// on or after the day boundary. Block times are not strictly monotonic but
// drift far less than a day, which is the resolution that matters here.
func (n *Node) firstHeightAtOrAfter(ctx context.Context, day series.Day, tip int64) (int64, error) {
	boundary := day.Time().Unix()
	lo, hi := int64(0), tip
	for lo < hi {
		mid := (lo + hi) / 2
		bs, err := n.blockStats(ctx, mid)
		if err != nil {
			return 0, err
		}
		if bs.Time < boundary {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

type blockStatsResult struct {
	Height             int64     `json:"height"`
	Time               int64     `json:"time"`
	Txs                int64     `json:"txs"`
	TotalFee           int64     `json:"totalfee"`
	Subsidy            int64     `json:"subsidy"`
	FeeratePercentiles []float64 `json:"feerate_percentiles"`
}

func (n *Node) blockStats(ctx context.Context, height int64) (blockStatsResult, error) {
	var result blockStatsResult
	fields := []string{"height", "time", "txs", "totalfee", "subsidy", "feerate_percentiles"}
	if err := n.client.CallContext(ctx, &result, "getblockstats", height, fields); err != nil {
		return blockStatsResult{}, fmt.Errorf("getblockstats %d: %w", height, err)
	}
	return result, nil
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

var _ SeriesProvider = (*Node)(nil)
