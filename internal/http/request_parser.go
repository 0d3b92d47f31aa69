// Package http serves the statistics and transaction API.
//
// This file reads transaction input from JSON or form bodies and the
// numeric query parameters of the read endpoints.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

// maxBodyBytes caps transaction bodies; a form is a few hundred bytes.
const maxBodyBytes = 64 << 10

const dateLayout = "2006-01-02"

var errMalformedBody = errors.New("malformed request body")

// RequestBodyParser reads a body once and serves fields from it whether it
// was sent as JSON or form-encoded.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("%w: body larger than %d bytes", errMalformedBody, maxBodyBytes)
	}
	return p
}

func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	switch {
	case trimmed == "":
		p.formData = url.Values{}
	case trimmed[0] == '{':
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: %v", errMalformedBody, err)
		}
	default:
		if p.formData, p.err = url.ParseQuery(trimmed); p.err != nil {
			p.err = fmt.Errorf("%w: %v", errMalformedBody, p.err)
		}
	}
	return p.err
}

// Get returns the sanitized value of key, or "".
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseTransaction builds a transaction for userID from the body fields
// type, amount, category, description and date. A missing date means today.
// The result still needs Validate.
func parseTransaction(p *RequestBodyParser, userID string, now time.Time) (core.Transaction, error) {
	t := core.Transaction{
		Type:            core.ParseTransactionType(p.Get("type")),
		Category:        p.Get("category"),
		Description:     p.Get("description"),
		TransactionDate: core.DateOnly(now),
		UserID:          userID,
	}

	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	t.Amount = core.Money{Cents: cents}.Decimal()

	if v := p.Get("date"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return core.Transaction{}, core.ErrInvalidDate
		}
		t.TransactionDate = d
	}
	return t, nil
}

// queryInt reads a non-negative integer parameter, falling back to def when
// it is absent. Zero is valid and selects nothing.
func queryInt(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
