// Package google stores transactions as rows of a Google Sheets tab.
//
// The tab holds one transaction per row in columns A:H:
// ID, UserID, Date, Type, Amount, Category, Description, CreatedAt.
// A header row is optional and skipped on read.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// Ensure interface conformance
var (
	_ ports.TransactionWriter  = (*Client)(nil)
	_ ports.TransactionLister  = (*Client)(nil)
	_ ports.TransactionDeleter = (*Client)(nil)
)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	mu      sync.Mutex
	sheetID *int64

	// deleteMu serializes row deletion; indexes shift after every delete.
	deleteMu sync.Mutex
}

// New creates a client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string) *Client {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Transactions"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	file := strings.TrimSpace(cfg.CredentialsFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(cfg.CredentialsJSON), nil
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

func (c *Client) rowsRange() string {
	return fmt.Sprintf("%s!A:H", c.sheet)
}

// Ping checks that the spreadsheet is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return err
}

// Append adds t as a new row and returns its id.
func (c *Client) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	vr := &gsheet.ValueRange{Values: [][]any{formatRow(t)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rowsRange(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Transaction appended to sheet", "id", t.ID, "user_id", t.UserID, "range", ref)
	return t.ID, nil
}

func (c *Client) readRows(ctx context.Context) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rowsRange()).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.rowsRange(), err)
	}
	return resp.Values, nil
}

// ListTransactions returns every row owned by userID in sheet order.
func (c *Client) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return nil, err
	}
	out := []core.Transaction{}
	for _, t := range parseRows(rows) {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// maxDeleteAttempts bounds how often Delete retries when the target row
// moves between locating it and deleting it.
const maxDeleteAttempts = 3

// Delete removes the row holding id if userID owns it.
func (c *Client) Delete(ctx context.Context, userID, id string) error {
	c.deleteMu.Lock()
	defer c.deleteMu.Unlock()

	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}

	for attempt := 1; attempt <= maxDeleteAttempts; attempt++ {
		rows, err := c.readRows(ctx)
		if err != nil {
			return err
		}
		idx := findRow(rows, userID, id)
		if idx < 0 {
			return ports.ErrNotFound
		}

		// Another writer (a second replica, a person editing the sheet) may
		// have shifted rows since the grid was read.
		ok, err := c.rowHolds(ctx, idx, userID, id)
		if err != nil {
			return err
		}
		if !ok {
			slog.WarnContext(ctx, "Sheet row moved before delete, retrying",
				"id", id, "user_id", userID, "row", idx+1, "attempt", attempt)
			continue
		}

		if err := c.deleteRow(ctx, sheetID, idx); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Transaction deleted from sheet", "id", id, "user_id", userID, "row", idx+1)
		return nil
	}
	return fmt.Errorf("delete %s: row kept moving after %d attempts", id, maxDeleteAttempts)
}

// rowHolds re-reads the single row at idx and reports whether it still holds
// id for userID.
func (c *Client) rowHolds(ctx context.Context, idx int, userID, id string) (bool, error) {
	rng := fmt.Sprintf("%s!A%d:H%d", c.sheet, idx+1, idx+1)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", rng, err)
	}
	return findRow(resp.Values, userID, id) == 0, nil
}

func (c *Client) deleteRow(ctx context.Context, sheetID int64, idx int) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(idx),
					EndIndex:        int64(idx + 1),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", idx+1, err)
	}
	return nil
}

// lookupSheetID resolves the numeric id of the tab, which row deletion needs.
func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetID != nil {
		return *c.sheetID, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheet)
}
