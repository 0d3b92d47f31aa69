package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecodeSnapshot(t *testing.T) {
	payload := `[
		{"id":"a","type":"income","amount":1000,"category":"Salary","transactionDate":"2024-01-01","userId":"u1"},
		{"id":"b","type":"expense","amount":"300.50","category":"Food","transactionDate":{"seconds":1706745600,"nanoseconds":0},"extra":{"nested":true}},
		{"id":7,"type":"Expense","amount":-50,"category":"","date":"2024-02-10"},
		{"type":"refund","amount":"oops","transactionDate":1709251200000}
	]`
	got, err := DecodeSnapshot([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}

	if got[0].Type != Income || got[0].Amount.String() != "1000" || !got[0].TransactionDate.Equal(NewDate(2024, 1, 1)) {
		t.Fatalf("record 0 = %+v", got[0])
	}
	if got[1].Amount.String() != "300.5" || !got[1].TransactionDate.Equal(NewDate(2024, 2, 1)) {
		t.Fatalf("record 1 = %+v", got[1])
	}
	if got[2].ID != "7" || got[2].Type != Expense || !got[2].TransactionDate.Equal(NewDate(2024, 2, 10)) {
		t.Fatalf("record 2 = %+v", got[2])
	}
	if got[3].Type.Valid() || !got[3].Amount.IsZero() || !got[3].TransactionDate.Equal(NewDate(2024, 3, 1)) {
		t.Fatalf("record 3 = %+v", got[3])
	}

	stats := ComputeStatistics(got)
	if stats.TransactionCount != 4 || stats.TotalExpenses.String() != "350.5" {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestDecodeSnapshotContractViolation(t *testing.T) {
	bad := []string{
		``,
		`null`,
		`{"id":"a"}`,
		`"transactions"`,
		`[1, 2]`,
		`[{"id":"a"}, null]`,
		`[{"id":"a"}`,
	}
	for _, in := range bad {
		if _, err := DecodeSnapshot([]byte(in)); !errors.Is(err, ErrContractViolation) {
			t.Fatalf("%q: expected ErrContractViolation, got %v", in, err)
		}
	}

	got, err := DecodeSnapshot([]byte(`[]`))
	if err != nil || len(got) != 0 {
		t.Fatalf("empty array: got %v, %v", got, err)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{`"2024-03-01T10:00:00Z"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`"2024-03-01T10:00:00+02:00"`, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)},
		{`"2024-03-01"`, NewDate(2024, 3, 1)},
		{`{"_seconds":1709251200,"_nanoseconds":0}`, NewDate(2024, 3, 1)},
		{`1709251200000`, NewDate(2024, 3, 1)},
		{`"not a date"`, time.Time{}},
		{`null`, time.Time{}},
		{``, time.Time{}},
		{`true`, time.Time{}},
	}
	for _, tc := range cases {
		if got := ParseTimestamp(json.RawMessage(tc.in)); !got.Equal(tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		`12.34`:    "12.34",
		`"12,34"`:  "12.34",
		`" 7 "`:    "7",
		`1e3`:      "1000",
		`"abc"`:    "0",
		`null`:     "0",
		`{"v":1}`:  "0",
		`-4.5`:     "-4.5",
	}
	for in, want := range cases {
		if got := ParseAmount(json.RawMessage(in)); got.String() != want {
			t.Fatalf("%s: got %s, want %s", in, got, want)
		}
	}
}
