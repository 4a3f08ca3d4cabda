// Package http provides the MoneyWise web server, its handlers and forms.
//
// This file implements utilities for parsing and validating HTTP request data:
// month selectors, list filters, path ids, redirect targets and input
// sanitization.

package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moneywise/internal/core"
)

// ParseMonthParams extracts year and month from query parameters, using the
// month of now as default. An out-of-range month falls back to the default.
func ParseMonthParams(query url.Values, now time.Time) core.Period {
	p := core.MonthPeriod(now.Year(), int(now.Month()))

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 {
			p.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			p.Month = m
		}
	}
	return p
}

// ParseTransactionFilter reads the transaction list filters. The month
// filter applies only when both month and year are present; unknown types
// and malformed numbers are ignored.
func ParseTransactionFilter(query url.Values) core.TransactionFilter {
	var f core.TransactionFilter

	if v := strings.TrimSpace(query.Get("category")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			f.CategoryID = id
		}
	}
	if t := core.TransactionType(strings.ToLower(strings.TrimSpace(query.Get("type")))); t.Validate() == nil {
		f.Type = t
	}

	month, mErr := strconv.Atoi(strings.TrimSpace(query.Get("month")))
	year, yErr := strconv.Atoi(strings.TrimSpace(query.Get("year")))
	if mErr == nil && yErr == nil && month >= 1 && month <= 12 && year > 0 {
		f.Period = core.MonthPeriod(year, month)
	}
	return f
}

// PathID parses a positive integer path wildcard.
func PathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// SafeRedirect returns next when it is a local absolute path, else fallback.
func SafeRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return next
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// wantsJSON reports whether the caller is an API client.
func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// monthQuery encodes p as year and month query parameters.
func monthQuery(p core.Period) string {
	return url.Values{
		"year":  {strconv.Itoa(p.Year)},
		"month": {strconv.Itoa(p.Month)},
	}.Encode()
}
