package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/bakery/internal/config"
	"github.com/mamadbah2/bakery/internal/domain/models"
)

const dailySummaryRange = "DailySummary!A:H"

// Appender is the spreadsheet operation the exporter needs.
type Appender interface {
	AppendRows(ctx context.Context, sheetRange string, rows [][]interface{}) error
}

// GoogleSheetRepository appends rows through the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// AppendRows appends the provided rows to the supplied sheet range.
func (r *GoogleSheetRepository) AppendRows(ctx context.Context, sheetRange string, rows [][]interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}
	if len(rows) == 0 {
		return nil
	}

	payload := &sheetsapi.ValueRange{Values: rows}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append rows into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("rows appended to sheet", zap.String("range", sheetRange), zap.Int("rows", len(rows)))
	return nil
}

// SummaryExporter writes daily summaries as spreadsheet rows.
type SummaryExporter struct {
	sheet Appender
}

// NewSummaryExporter wraps a sheet appender.
func NewSummaryExporter(sheet Appender) *SummaryExporter {
	return &SummaryExporter{sheet: sheet}
}

// ExportDailySummary appends one row per shift plus a totals row.
func (e *SummaryExporter) ExportDailySummary(ctx context.Context, summary models.DailySummary) error {
	return e.sheet.AppendRows(ctx, dailySummaryRange, DailySummaryRows(summary))
}

// DailySummaryRows lays a summary out as date, shift, cakes, bread, value,
// flour, wages and paid status columns.
func DailySummaryRows(summary models.DailySummary) [][]interface{} {
	rows := make([][]interface{}, 0, len(summary.Shifts)+1)
	for _, s := range summary.Shifts {
		rows = append(rows, []interface{}{
			summary.Date, s.Name, s.CakesSold, s.BreadSold, s.TotalCakeValue, s.FlourUsed, s.WorkerWages, s.AllWagesPaid,
		})
	}
	t := summary.Totals
	rows = append(rows, []interface{}{
		summary.Date, "TOTAL", t.CakesSold, t.BreadSold, t.TotalCakeValue, t.FlourUsed, t.WorkerWages, "",
	})
	return rows
}
