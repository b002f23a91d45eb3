package worker

import (
	"context"
	"fmt"
	"log/slog"

	"sitebook/internal/amqp"
	"sitebook/internal/services"
	"sitebook/internal/sheets"
)

// ExportWorker consumes day events and mirrors the changed day's report
// rows into an external sheet.
type ExportWorker struct {
	billing  *services.BillingService
	exporter sheets.BillExporter
}

func NewExportWorker(billing *services.BillingService, exporter sheets.BillExporter) *ExportWorker {
	return &ExportWorker{billing: billing, exporter: exporter}
}

// HandleDayEvent re-aggregates the single day named by the message and
// appends its rows. Returned errors make the consumer nack and requeue.
func (w *ExportWorker) HandleDayEvent(ctx context.Context, msg *amqp.DayEventMessage) error {
	slog.InfoContext(ctx, "Processing day event",
		"kind", msg.Kind,
		"site_id", msg.SiteID,
		"date", msg.Date.String())

	report, err := w.billing.Aggregate(ctx,
		services.Range{From: msg.Date, To: msg.Date},
		services.Filters{SiteID: msg.SiteID},
		services.OrderPrintable)
	if err != nil {
		return fmt.Errorf("aggregate day: %w", err)
	}
	if len(report.Rows) == 0 {
		slog.InfoContext(ctx, "Day has no rows, nothing to export",
			"site_id", msg.SiteID, "date", msg.Date.String())
		return nil
	}

	if err := w.exporter.AppendReportRows(ctx, report.Rows); err != nil {
		return fmt.Errorf("export day: %w", err)
	}

	slog.InfoContext(ctx, "Exported day",
		"site_id", msg.SiteID,
		"date", msg.Date.String(),
		"rows", len(report.Rows))
	return nil
}

// Run blocks consuming events until ctx is canceled.
func (w *ExportWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeDayEvents(ctx, func(msg *amqp.DayEventMessage) error {
		return w.HandleDayEvent(ctx, msg)
	})
}
