package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"moneywise/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
	}{
		{
			name:      "both values provided",
			query:     url.Values{"year": {"2023"}, "month": {"12"}},
			wantYear:  2023,
			wantMonth: 12,
		},
		{
			name:      "empty query uses current month",
			query:     url.Values{},
			wantYear:  2024,
			wantMonth: 3,
		},
		{
			name:      "only year",
			query:     url.Values{"year": {"2022"}},
			wantYear:  2022,
			wantMonth: 3,
		},
		{
			name:      "month out of range falls back",
			query:     url.Values{"month": {"13"}},
			wantYear:  2024,
			wantMonth: 3,
		},
		{
			name:      "garbage is ignored",
			query:     url.Values{"year": {"abc"}, "month": {"-1"}},
			wantYear:  2024,
			wantMonth: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMonthParams(tt.query, now)
			if got.Year != tt.wantYear || got.Month != tt.wantMonth {
				t.Errorf("ParseMonthParams() = %d-%d, want %d-%d", got.Year, got.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestParseTransactionFilter(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  core.TransactionFilter
	}{
		{
			name:  "empty",
			query: url.Values{},
			want:  core.TransactionFilter{},
		},
		{
			name:  "all filters",
			query: url.Values{"category": {"7"}, "type": {"Expense"}, "month": {"2"}, "year": {"2024"}},
			want:  core.TransactionFilter{CategoryID: 7, Type: core.Expense, Period: core.MonthPeriod(2024, 2)},
		},
		{
			name:  "month without year is ignored",
			query: url.Values{"month": {"2"}},
			want:  core.TransactionFilter{},
		},
		{
			name:  "unknown type and bad category are ignored",
			query: url.Values{"type": {"transfer"}, "category": {"x"}},
			want:  core.TransactionFilter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTransactionFilter(tt.query); got != tt.want {
				t.Errorf("ParseTransactionFilter() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		value  string
		wantID int64
		wantOK bool
	}{
		{"12", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/transactions/delete/"+tt.value, nil)
		r.SetPathValue("id", tt.value)
		id, ok := PathID(r, "id")
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("PathID(%q) = %d, %v, want %d, %v", tt.value, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"/transactions?type=income", "/transactions?type=income"},
		{"", "/dashboard"},
		{"https://evil.example/", "/dashboard"},
		{"//evil.example/", "/dashboard"},
		{"/\\evil.example", "/dashboard"},
		{"dashboard", "/dashboard"},
	}
	for _, tt := range tests {
		if got := SafeRedirect(tt.next, "/dashboard"); got != tt.want {
			t.Errorf("SafeRedirect(%q) = %q, want %q", tt.next, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Groceries  ", "Groceries"},
		{"a\x00b\x07c", "abc"},
		{"line\nbreak\ttab", "line\nbreak\ttab"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWantsJSON(t *testing.T) {
	api := httptest.NewRequest(http.MethodGet, "/api/dashboard-summary", nil)
	if !wantsJSON(api) {
		t.Error("api path should want JSON")
	}

	accept := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	accept.Header.Set("Accept", "application/json, text/plain")
	if !wantsJSON(accept) {
		t.Error("Accept: application/json should want JSON")
	}

	page := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	page.Header.Set("Accept", "text/html")
	if wantsJSON(page) {
		t.Error("browser page should not want JSON")
	}
}

func TestMonthQuery(t *testing.T) {
	if got := monthQuery(core.MonthPeriod(2024, 5)); got != "month=5&year=2024" {
		t.Errorf("monthQuery() = %q", got)
	}
}
