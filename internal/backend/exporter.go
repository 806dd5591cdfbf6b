package backend

import (
	"context"
	"fmt"

	"meurenda/internal/config"
	"meurenda/internal/sheets"
	gsheet "meurenda/internal/sheets/google"
	sheetsmem "meurenda/internal/sheets/memory"
)

// NewExporter returns the Google Sheets exporter when export is configured
// and an in-memory one otherwise, so the worker can run without Google
// credentials in development.
func NewExporter(ctx context.Context, cfg *config.Config) (sheets.RecordExporter, error) {
	if !cfg.SheetsExportEnabled() {
		return sheetsmem.New(), nil
	}

	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		Location:        cfg.Calendar().Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if err := cli.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("prepare sheet header: %w", err)
	}
	return cli, nil
}
