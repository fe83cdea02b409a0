package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"btc-event-study/internal/series"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertPointSQL = `INSERT INTO metric_points (
        metric,
        source,
        day,
        value,
        interpolated
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (metric, source, day) DO UPDATE
    SET
        value        = EXCLUDED.value,
        interpolated = EXCLUDED.interpolated;`

	listPointsSQL = `SELECT
        source,
        day,
        value,
        interpolated
    FROM metric_points
    WHERE metric = $1
      AND day >= $2
      AND day <= $3
    ORDER BY source, day;`

	listMetricsSQL = `SELECT DISTINCT metric FROM metric_points ORDER BY metric;`

	upsertSummarySQL = `INSERT INTO summary_records (
        event,
        window_label,
        metric,
        pre_mean,
        pre_median,
        pre_stddev,
        crisis_mean,
        crisis_median,
        crisis_stddev,
        change_kind,
        change_value,
        status,
        reason
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
    )
    ON CONFLICT (event, window_label, metric) DO UPDATE
    SET
        pre_mean      = EXCLUDED.pre_mean,
        pre_median    = EXCLUDED.pre_median,
        pre_stddev    = EXCLUDED.pre_stddev,
        crisis_mean   = EXCLUDED.crisis_mean,
        crisis_median = EXCLUDED.crisis_median,
        crisis_stddev = EXCLUDED.crisis_stddev,
        change_kind   = EXCLUDED.change_kind,
        change_value  = EXCLUDED.change_value,
        status        = EXCLUDED.status,
        reason        = EXCLUDED.reason;`

	listSummarySQL = `SELECT
        event,
        window_label,
        metric,
        pre_mean,
        pre_median,
        pre_stddev,
        crisis_mean,
        crisis_median,
        crisis_stddev,
        change_kind,
        change_value,
        status,
        reason
    FROM summary_records
    ORDER BY event, window_label, metric
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PointStore defines operations for daily metric point persistence.
type PointStore interface {
	UpsertPoints(ctx context.Context, metric string, points []series.DailyPoint) error
	LoadSeriesBySource(ctx context.Context, metric string, from, to series.Day) (map[string]series.MetricSeries, error)
	ListMetrics(ctx context.Context) ([]string, error)
}

// SummaryStore defines operations for summary table persistence.
type SummaryStore interface {
	UpsertSummaryRecords(ctx context.Context, records []series.SummaryRecord) error
	ListSummaryRecords(ctx context.Context, limit int) ([]series.SummaryRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to metric points and summary records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertPoints persists the non-missing points of a normalised series.
func (s *Store) UpsertPoints(ctx context.Context, metric string, points []series.DailyPoint) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, p := range points {
		if p.Missing {
			continue
		}
		value := decimal.NewFromFloat(p.Value).String()
		if _, execErr := pool.Exec(ctx, upsertPointSQL,
			metric,
			p.Source,
			p.Date.Time(),
			value,
			p.Interpolated,
		); execErr != nil {
			return fmt.Errorf("upsert metric point %s/%s: %w", metric, p.Date, execErr)
		}
	}
	return nil
}

// LoadSeriesBySource rebuilds the per-source series of one metric inside a
// date range. Interior gaps reappear as missing points through series.New.
func (s *Store) LoadSeriesBySource(ctx context.Context, metric string, from, to series.Day) (map[string]series.MetricSeries, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPointsSQL, metric, from.Time(), to.Time())
	if queryErr != nil {
		return nil, fmt.Errorf("list metric points: %w", queryErr)
	}
	defer rows.Close()

	bySource := make(map[string][]series.DailyPoint)
	for rows.Next() {
		var (
			source       string
			day          time.Time
			valueStr     string
			interpolated bool
		)
		if err := rows.Scan(&source, &day, &valueStr, &interpolated); err != nil {
			return nil, err
		}
		value, convErr := decimal.NewFromString(valueStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse point value: %w", convErr)
		}
		bySource[source] = append(bySource[source], series.DailyPoint{
			Date:         series.DayOf(day),
			Value:        value.InexactFloat64(),
			Source:       source,
			Interpolated: interpolated,
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	out := make(map[string]series.MetricSeries, len(bySource))
	for source, points := range bySource {
		ms, err := series.New(metric, series.UnitFor(metric), points)
		if err != nil {
			return nil, fmt.Errorf("rebuild %s/%s: %w", metric, source, err)
		}
		out[source] = ms
	}
	return out, nil
}

// ListMetrics lists the metric names with stored points.
func (s *Store) ListMetrics(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listMetricsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list metrics: %w", queryErr)
	}
	defer rows.Close()

	var metrics []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// UpsertSummaryRecords persists the summary table.
func (s *Store) UpsertSummaryRecords(ctx context.Context, records []series.SummaryRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, rec := range records {
		var changeValue interface{}
		if rec.Change.Defined {
			changeValue = decimal.NewFromFloat(rec.Change.Value).String()
		}
		if _, execErr := pool.Exec(ctx, upsertSummarySQL,
			rec.Event,
			rec.Window,
			rec.Metric,
			decimal.NewFromFloat(rec.PreMean).String(),
			decimal.NewFromFloat(rec.PreMedian).String(),
			decimal.NewFromFloat(rec.PreStdDev).String(),
			decimal.NewFromFloat(rec.CrisisMean).String(),
			decimal.NewFromFloat(rec.CrisisMedian).String(),
			decimal.NewFromFloat(rec.CrisisStdDev).String(),
			string(rec.Change.Kind),
			changeValue,
			string(rec.Status),
			rec.Reason,
		); execErr != nil {
			return fmt.Errorf("upsert summary record %s/%s/%s: %w", rec.Event, rec.Window, rec.Metric, execErr)
		}
	}
	return nil
}

// ListSummaryRecords lists stored summary rows in deterministic order.
func (s *Store) ListSummaryRecords(ctx context.Context, limit int) ([]series.SummaryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSummarySQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list summary records: %w", queryErr)
	}
	defer rows.Close()

	records := make([]series.SummaryRecord, 0, limit)
	for rows.Next() {
		var (
			rec        series.SummaryRecord
			preMean    string
			preMedian  string
			preStd     string
			crMean     string
			crMedian   string
			crStd      string
			changeKind string
			changeVal  sql.NullString
			status     string
		)
		if err := rows.Scan(
			&rec.Event,
			&rec.Window,
			&rec.Metric,
			&preMean,
			&preMedian,
			&preStd,
			&crMean,
			&crMedian,
			&crStd,
			&changeKind,
			&changeVal,
			&status,
			&rec.Reason,
		); err != nil {
			return nil, err
		}

		var convErr error
		if rec.PreMean, convErr = parseFloat(preMean); convErr != nil {
			return nil, convErr
		}
		if rec.PreMedian, convErr = parseFloat(preMedian); convErr != nil {
			return nil, convErr
		}
		if rec.PreStdDev, convErr = parseFloat(preStd); convErr != nil {
			return nil, convErr
		}
		if rec.CrisisMean, convErr = parseFloat(crMean); convErr != nil {
			return nil, convErr
		}
		if rec.CrisisMedian, convErr = parseFloat(crMedian); convErr != nil {
			return nil, convErr
		}
		if rec.CrisisStdDev, convErr = parseFloat(crStd); convErr != nil {
			return nil, convErr
		}

		rec.Change.Kind = series.ChangeKind(changeKind)
		if changeVal.Valid {
			if rec.Change.Value, convErr = parseFloat(changeVal.String); convErr != nil {
				return nil, convErr
			}
			rec.Change.Defined = true
		}
		rec.Status = series.CellStatus(status)

		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

var (
	_ PointStore     = (*Store)(nil)
	_ SummaryStore   = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)

func parseFloat(v string) (float64, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", v, err)
	}
	return d.InexactFloat64(), nil
}
