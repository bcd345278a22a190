// Package sheets backs transactions up to a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"tally/internal/config"
	"tally/internal/core"
	"tally/internal/export"
	"tally/internal/log"
)

// Writer appends transaction rows to one sheet of one spreadsheet.
type Writer struct {
	svc           *gsheets.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ export.TransactionWriter = (*Writer)(nil)

// New builds the writer from configuration. Credentials come from the
// configured service account file or JSON; with neither set the Google
// client falls back to application default credentials.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Writer, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	sheetName := cfg.GoogleSheetName
	if sheetName == "" {
		sheetName = "Transactions"
	}

	var opts []option.ClientOption
	switch {
	case cfg.GoogleCredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GoogleCredentialsJSON)))
	case cfg.GoogleCredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Writer{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentExport),
	}, nil
}

// Append writes one row per transaction in a single API call. Rate
// limited calls are retried; any other failure surfaces immediately so
// the queue can mark the batch for a later attempt.
func (w *Writer) Append(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	values := make([][]any, 0, len(txs))
	for _, t := range txs {
		values = append(values, transactionRow(t))
	}

	writeRange := fmt.Sprintf("%s!A2:G2", w.sheetName)
	writeReq := gsheets.ValueRange{Values: values}

	err := retry.Do(
		func() error {
			_, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, writeRange, &writeReq).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				w.logger.Warn("Sheets rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(30*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("append batch to sheet: %w", err)
	}

	w.logger.Info("Appended transaction batch", "count", len(txs))
	return nil
}

func transactionRow(t core.Transaction) []any {
	return []any{
		t.Date.String(),
		string(t.Kind),
		t.Amount.DecimalString(),
		t.Category,
		string(t.Origin),
		t.RecurringID,
		t.ID,
	}
}
