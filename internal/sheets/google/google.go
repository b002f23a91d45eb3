// Package google exports report rows to a Google Sheet using service
// account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"sitebook/internal/config"
	"sitebook/internal/core"
	ports "sitebook/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.BillExporter = (*Client)(nil)

// New creates a Sheets exporter from the application config.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     cfg.GoogleSheetName,
	}, nil
}

func loadCredentials(cfg *config.Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.GoogleCredentialsJSON) != "":
		return []byte(cfg.GoogleCredentialsJSON), nil
	case strings.TrimSpace(cfg.GoogleCredentialsFile) != "":
		data, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
	}
}

// AppendReportRows appends one sheet row per report row:
// date, site, category, label, agent, labour, material, advance, total.
func (c *Client) AppendReportRows(ctx context.Context, rows []core.ReportRow) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = []any{
			r.Date.String(),
			r.Site,
			r.Category,
			r.Label,
			r.Agent,
			r.Labour.String(),
			r.Material.String(),
			r.Advance.String(),
			r.Total.String(),
		}
	}

	rangeRef := fmt.Sprintf("%s!A:I", c.sheetName)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rangeRef, &gsheet.ValueRange{
		Values: values,
	}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append rows: %w", err)
	}

	slog.InfoContext(ctx, "Appended report rows to sheet",
		"rows", len(rows),
		"sheet", c.sheetName)
	return nil
}
