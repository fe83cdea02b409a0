package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"btc-event-study/internal/series"
)

// Export writes a derived metric series as CSV and/or PNG, and optionally
// the summary table as CSV, for external reporting.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.SummaryCSV == "" {
		return errors.New("at least one of --csv, --png, or --summary-csv must be provided")
	}
	if (opts.CSVPath != "" || opts.PNGPath != "") && opts.Metric == "" {
		return errors.New("--metric is required for series export")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	result, err := a.runStudy(ctx, store)
	if err != nil {
		return err
	}

	if opts.SummaryCSV != "" {
		if err := writeSummaryCSV(opts.SummaryCSV, result.Records); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.SummaryCSV).Int("rows", len(result.Records)).Msg("summary table exported")
	}

	if opts.Metric == "" {
		return nil
	}

	s, ok := result.Series[opts.Metric]
	if !ok || s.IsEmpty() {
		return fmt.Errorf("metric %q was not derived; nothing to export", opts.Metric)
	}

	points := downsamplePoints(s.Points(), opts.MaxPoints)
	a.Logger.Info().Str("metric", opts.Metric).Int("total", s.Len()).
		Int("exported", len(points)).Msg("exporting series")

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, points); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := a.writeSeriesPNG(opts.PNGPath, s.Metric(), string(s.Unit()), points); err != nil {
			return err
		}
	}
	return nil
}

func downsamplePoints(points []series.DailyPoint, max int) []series.DailyPoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]series.DailyPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeSeriesCSV(path string, points []series.DailyPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"date", "value", "source", "interpolated", "missing"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		value := ""
		if !p.Missing {
			value = strconv.FormatFloat(p.Value, 'g', -1, 64)
		}
		record := []string{
			p.Date.String(),
			value,
			p.Source,
			strconv.FormatBool(p.Interpolated),
			strconv.FormatBool(p.Missing),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSummaryCSV(path string, records []series.SummaryRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"event", "window", "metric",
		"pre_mean", "pre_median", "pre_stddev",
		"crisis_mean", "crisis_median", "crisis_stddev",
		"change_kind", "change", "status", "reason",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		if err := writer.Write([]string{
			rec.Event,
			rec.Window,
			rec.Metric,
			formatFloat(rec.PreMean),
			formatFloat(rec.PreMedian),
			formatFloat(rec.PreStdDev),
			formatFloat(rec.CrisisMean),
			formatFloat(rec.CrisisMedian),
			formatFloat(rec.CrisisStdDev),
			string(rec.Change.Kind),
			formatChange(rec.Change),
			string(rec.Status),
			rec.Reason,
		}); err != nil {
			return err
		}
	}

	return writer.Error()
}

// writeSeriesPNG renders the series with vertical gridlines on every event
// anchor so the windows are visible against the full history.
func (a *App) writeSeriesPNG(path, metric, unit string, points []series.DailyPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var x []time.Time
	var y []float64
	for _, p := range points {
		if p.Missing {
			continue
		}
		x = append(x, p.Date.Time())
		y = append(y, p.Value)
	}
	if len(x) == 0 {
		return fmt.Errorf("metric %s has no plottable points", metric)
	}

	gridLines := make([]chart.GridLine, 0, len(a.Config.Study.Events))
	for _, e := range a.Config.Study.Events {
		anchor, err := series.ParseDay(e.Anchor)
		if err != nil {
			continue
		}
		gridLines = append(gridLines, chart.GridLine{Value: chart.TimeToFloat64(anchor.Time())})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
			GridLines:      gridLines,
			GridMajorStyle: chart.Style{
				StrokeColor:     chart.ColorAlternateGray,
				StrokeWidth:     1.0,
				StrokeDashArray: []float64{4.0, 4.0},
			},
		},
		YAxis: chart.YAxis{
			Name: fmt.Sprintf("%s (%s)", metric, unit),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    metric,
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatChange(c series.Change) string {
	if !c.Defined {
		return "undefined"
	}
	return strconv.FormatFloat(c.Value, 'f', 4, 64)
}
