package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"btc-event-study/internal/series"
)

// Show prints the most recently stored summary records as a table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; nothing to show")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListSummaryRecords(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no summary records stored yet; run `btceventstudy summarize` first")
		return nil
	}

	return renderSummaryTable(records)
}

func renderSummaryTable(records []series.SummaryRecord) error {
	data := make([][]string, 0, len(records))
	for _, rec := range records {
		data = append(data, []string{
			rec.Event,
			rec.Window,
			rec.Metric,
			formatCell(rec, rec.PreMean),
			formatCell(rec, rec.CrisisMean),
			changeCell(rec),
			string(rec.Status),
		})
	}

	table := tablewriter.NewWriter(os.Stdout)
	headers := []string{"Event", "Window", "Metric", "Pre Mean", "Crisis Mean", "Change", "Status"}
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func formatCell(rec series.SummaryRecord, v float64) string {
	if rec.Status != series.CellOK {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

func changeCell(rec series.SummaryRecord) string {
	if rec.Status != series.CellOK {
		return "-"
	}
	if !rec.Change.Defined {
		return "undefined"
	}
	switch rec.Change.Kind {
	case series.ChangePercentagePoint:
		return fmt.Sprintf("%+.4f pp", rec.Change.Value)
	default:
		return fmt.Sprintf("%+.2f%%", rec.Change.Value)
	}
}
