package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// fakeSheets serves the handful of Sheets API calls the client makes,
// backed by an in-memory grid.
type fakeSheets struct {
	mu   sync.Mutex
	rows [][]any

	// beforeRead, when set, runs ahead of every values read. row is the
	// one-based row of a single-row read, or 0 for the whole grid.
	beforeRead func(row int)
}

var singleRow = regexp.MustCompile(`![A-Z]+(\d+):[A-Z]+\d+$`)

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	row := 0
	if m := singleRow.FindStringSubmatch(path); m != nil {
		row, _ = strconv.Atoi(m[1])
	}
	if f.beforeRead != nil && r.Method == http.MethodGet && strings.Contains(path, "/values/") {
		f.beforeRead(row)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Transactions!A1:H1"},
		})
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		values := f.rows
		if row > 0 {
			values = nil
			if row <= len(f.rows) {
				values = f.rows[row-1 : row]
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"values": values})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, q := range req.Requests {
			if q.DeleteDimension == nil {
				continue
			}
			start := q.DeleteDimension.Range.StartIndex
			f.rows = append(f.rows[:start], f.rows[start+1:]...)
		}
		w.Write([]byte(`{}`))
	case r.Method == http.MethodGet:
		w.Write([]byte(`{"spreadsheetId":"sheet-1","sheets":[{"properties":{"sheetId":7,"title":"Transactions"}}]}`))
	default:
		http.Error(w, "unexpected call "+r.Method+" "+path, http.StatusNotImplemented)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sheet-1", "")
}

func TestClientAppendListDelete(t *testing.T) {
	f := &fakeSheets{rows: [][]any{{"ID", "UserID", "Date", "Type", "Amount", "Category", "Description", "CreatedAt"}}}
	c := newTestClient(t, f)
	ctx := context.Background()

	in := core.Transaction{
		Type:            core.Expense,
		Amount:          decimal.RequireFromString("12.50"),
		Category:        "Food & Dining",
		Description:     "groceries",
		TransactionDate: core.NewDate(2024, 4, 2),
		UserID:          "u1",
	}
	id, err := c.Append(ctx, in)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	other := in
	other.UserID = "u2"
	if _, err := c.Append(ctx, other); err != nil {
		t.Fatalf("Append other: %v", err)
	}

	got, err := c.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 transaction for u1, got %d", len(got))
	}
	if got[0].ID != id || got[0].Amount.StringFixed(2) != "12.50" || got[0].Category != "Food & Dining" {
		t.Fatalf("unexpected row %+v", got[0])
	}
	if !got[0].TransactionDate.Equal(core.NewDate(2024, 4, 2)) {
		t.Fatalf("date = %v", got[0].TransactionDate)
	}

	if err := c.Delete(ctx, "u2", id); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("cross-user delete = %v", err)
	}
	if err := c.Delete(ctx, "u1", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(f.rows) != 2 {
		t.Fatalf("expected header plus one row left, got %d rows", len(f.rows))
	}
	if got, _ := c.ListTransactions(ctx, "u1"); len(got) != 0 {
		t.Fatalf("expected u1 rows gone, got %+v", got)
	}
}

func sheetRow(id, user string) []any {
	return []any{id, user, "2024-04-02", "expense", "1.00", "Food", "", "2024-04-02T00:00:00Z"}
}

func (f *fakeSheets) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.rows[1:] {
		out = append(out, r[0].(string))
	}
	return out
}

func TestClientConcurrentDeletesKeepOtherRows(t *testing.T) {
	f := &fakeSheets{rows: [][]any{
		{"ID", "UserID", "Date", "Type", "Amount", "Category", "Description", "CreatedAt"},
		sheetRow("a", "u1"),
		sheetRow("b", "u2"),
		sheetRow("c", "u3"),
	}}
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.beforeRead = func(int) {
		once.Do(func() {
			close(started)
			<-release
		})
	}
	c := newTestClient(t, f)
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() { errs <- c.Delete(ctx, "u1", "a") }()
	<-started
	go func() { errs <- c.Delete(ctx, "u2", "b") }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	for range 2 {
		if err := <-errs; err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
	if got := f.ids(); len(got) != 1 || got[0] != "c" {
		t.Fatalf("rows left = %v, want [c]", got)
	}
}

func TestClientDeleteRetriesWhenRowMoves(t *testing.T) {
	f := &fakeSheets{rows: [][]any{
		{"ID", "UserID", "Date", "Type", "Amount", "Category", "Description", "CreatedAt"},
		sheetRow("a", "u1"),
		sheetRow("b", "u2"),
	}}
	var once sync.Once
	f.beforeRead = func(row int) {
		if row == 0 {
			return
		}
		// Someone inserts a row above the target after the grid was read.
		once.Do(func() {
			f.mu.Lock()
			f.rows = append(f.rows[:1], append([][]any{sheetRow("z", "u9")}, f.rows[1:]...)...)
			f.mu.Unlock()
		})
	}
	c := newTestClient(t, f)

	if err := c.Delete(context.Background(), "u2", "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got := f.ids()
	if len(got) != 2 || got[0] != "z" || got[1] != "a" {
		t.Fatalf("rows left = %v, want [z a]", got)
	}
}

func TestClientAppendValidates(t *testing.T) {
	c := newTestClient(t, &fakeSheets{})
	_, err := c.Append(context.Background(), core.Transaction{Type: core.Income, UserID: "u1"})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestParseRows(t *testing.T) {
	rows := [][]any{
		{"ID", "UserID", "Date", "Type", "Amount", "Category"},
		{},
		{"a", "u1", "2024-01-05", "Expense", 19.99, "Food"},
		{"b", "u1", 45292.0, "income", "1.000,5", "Salary", "note", "2024-01-01T10:00:00Z"},
		{"c", "u1", "garbage", "refund", "€7,25"},
		{float64(42), "u1"},
	}

	got := parseRows(rows)
	if len(got) != 4 {
		t.Fatalf("expected 4 rows, got %d: %+v", len(got), got)
	}

	if got[0].Type != core.Expense || got[0].Amount.StringFixed(2) != "19.99" {
		t.Errorf("row a = %+v", got[0])
	}
	if !got[0].TransactionDate.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("row a date = %v", got[0].TransactionDate)
	}

	// 45292 is 2024-01-01 as a serial date. "1.000,5" is not a number after
	// comma normalisation and falls back to zero.
	if !got[1].TransactionDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("serial date = %v", got[1].TransactionDate)
	}
	if !got[1].Amount.IsZero() || got[1].Description != "note" || got[1].CreatedAt.IsZero() {
		t.Errorf("row b = %+v", got[1])
	}

	if got[2].Type != "refund" || !got[2].TransactionDate.IsZero() || got[2].Amount.StringFixed(2) != "7.25" {
		t.Errorf("row c = %+v", got[2])
	}
	if got[3].ID != "42" {
		t.Errorf("numeric id = %q", got[3].ID)
	}
}

func TestFormatRowRoundTrip(t *testing.T) {
	in := core.Transaction{
		ID:              "x",
		UserID:          "u1",
		Type:            core.Income,
		Amount:          decimal.RequireFromString("1500"),
		Category:        "Salary",
		TransactionDate: core.NewDate(2024, 2, 29),
		CreatedAt:       time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	row := formatRow(in)
	if row[colAmount] != "1500.00" || row[colDate] != "2024-02-29" {
		t.Fatalf("row = %v", row)
	}
	out := parseRows([][]any{row})[0]
	if out.ID != in.ID || !out.Amount.Equal(in.Amount) || !out.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("round trip = %+v", out)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}
