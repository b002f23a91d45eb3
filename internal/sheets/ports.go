package sheets

import (
	"context"

	"sitebook/internal/core"
)

// Ports for outbound adapters.
type (
	// BillExporter appends aggregated report rows to an external sheet.
	BillExporter interface {
		AppendReportRows(ctx context.Context, rows []core.ReportRow) error
	}
)
