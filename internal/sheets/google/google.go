// Package google exports the ledger to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/sheets"
)

var _ sheets.LedgerExporter = (*Client)(nil)

const (
	valueInputOption = "USER_ENTERED"
	// ledgerColumns spans every column LedgerRows writes.
	ledgerColumns = "A:E"
	callTimeout   = 30 * time.Second
)

// Options configure New.
type Options struct {
	SpreadsheetID string
	SheetName     string

	// Credentials, in order of preference.
	ServiceAccountJSON string
	ServiceAccountFile string

	// ClientOptions replace credential handling entirely when set.
	ClientOptions []goption.ClientOption
	Logger        *log.Logger
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(opts.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		creds, err := credentialsJSON(ctx, logger, opts.ServiceAccountJSON, opts.ServiceAccountFile)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", opts.SpreadsheetID, "sheet", opts.SheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     opts.SheetName,
		logger:        logger,
	}, nil
}

// NewFromConfig reads the GOOGLE_* settings. GOOGLE_APPLICATION_CREDENTIALS
// is used when no service account JSON or file is given.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Client, error) {
	file := cfg.GoogleServiceAccountFile
	if file == "" {
		file = cfg.GoogleApplicationCredsFile
	}
	return New(ctx, Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: file,
		Logger:             logger,
	})
}

func credentialsJSON(ctx context.Context, logger *log.Logger, inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.DebugContext(ctx, "Read service account credentials", "path", file, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportLedger clears the ledger columns and writes the rendered rows from A1.
func (c *Client) ExportLedger(ctx context.Context, entries []core.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	clearRange := fmt.Sprintf("%s!%s", c.sheetName, ledgerColumns)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := sheets.LedgerRows(entries)
	writeRange := fmt.Sprintf("%s!A1", c.sheetName)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", writeRange, err)
	}

	c.logger.InfoContext(ctx, "Ledger exported",
		log.NewFields().WithOperation(log.OpExport).WithEntriesCount(len(entries)).ToSlice()...)
	return nil
}
