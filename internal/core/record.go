package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawTransaction is a transaction document as the store delivers it. Every
// field is optional and loosely typed; unknown extra fields are ignored.
type RawTransaction struct {
	ID              *string
	Type            *string
	Category        *string
	Description     *string
	UserID          *string
	Amount          json.RawMessage
	TransactionDate json.RawMessage
	CreatedAt       json.RawMessage
}

// UnmarshalJSON accepts any JSON object. Fields with an unexpected JSON type
// are left empty rather than failing the whole record.
func (r *RawTransaction) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("%w: record is null", ErrContractViolation)
	}
	r.ID = stringField(fields, "id")
	r.Type = stringField(fields, "type")
	r.Category = stringField(fields, "category")
	r.Description = stringField(fields, "description")
	r.UserID = stringField(fields, "userId")
	r.Amount = fields["amount"]
	r.TransactionDate = fields["transactionDate"]
	if len(r.TransactionDate) == 0 {
		r.TransactionDate = fields["date"]
	}
	r.CreatedAt = fields["createdAt"]
	return nil
}

// ToTransaction maps the raw document onto a strict Transaction. Values that
// cannot be parsed become zero values; sanitization happens in the engine.
func (r RawTransaction) ToTransaction() Transaction {
	return Transaction{
		ID:              deref(r.ID),
		Type:            ParseTransactionType(deref(r.Type)),
		Amount:          ParseAmount(r.Amount),
		Category:        deref(r.Category),
		Description:     deref(r.Description),
		TransactionDate: ParseTimestamp(r.TransactionDate),
		UserID:          deref(r.UserID),
		CreatedAt:       ParseTimestamp(r.CreatedAt),
	}
}

// DecodeSnapshot decodes a JSON array of transaction documents. It fails with
// ErrContractViolation only when the payload is not an array of objects.
func DecodeSnapshot(data []byte) ([]Transaction, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected JSON array", ErrContractViolation)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContractViolation, err)
	}
	out := make([]Transaction, 0, len(elems))
	for i, elem := range elems {
		e := bytes.TrimSpace(elem)
		if len(e) == 0 || e[0] != '{' {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrContractViolation, i)
		}
		var raw RawTransaction
		if err := json.Unmarshal(e, &raw); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrContractViolation, i, err)
		}
		out = append(out, raw.ToTransaction())
	}
	return out, nil
}

// ParseAmount reads a JSON number or numeric string. Anything else is zero.
func ParseAmount(raw json.RawMessage) decimal.Decimal {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero
	}
	if s[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339 or YYYY-MM-DD strings, unix milliseconds,
// or a {seconds, nanoseconds} object. Anything else is the zero time.
func ParseTimestamp(raw json.RawMessage) time.Time {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}
	}
	switch s[0] {
	case '"':
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}
		}
		str = strings.TrimSpace(str)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, str); err == nil {
				return t.UTC()
			}
		}
	case '{':
		var ts struct {
			Seconds     *int64 `json:"seconds"`
			Nanoseconds int64  `json:"nanoseconds"`
			AltSeconds  *int64 `json:"_seconds"`
			AltNanos    int64  `json:"_nanoseconds"`
		}
		if err := json.Unmarshal(raw, &ts); err != nil {
			return time.Time{}
		}
		switch {
		case ts.Seconds != nil:
			return time.Unix(*ts.Seconds, ts.Nanoseconds).UTC()
		case ts.AltSeconds != nil:
			return time.Unix(*ts.AltSeconds, ts.AltNanos).UTC()
		}
	default:
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	}
	return time.Time{}
}

func stringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	// Numeric ids and similar scalars keep their literal text.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		str := n.String()
		return &str
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
