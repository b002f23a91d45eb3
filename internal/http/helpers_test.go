package http

import (
	"net/http/httptest"
	"testing"

	"sitebook/internal/core"
)

func TestParseDateParamFallsBackToToday(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  core.Date
	}{
		{"valid", "date=2024-01-15", core.NewDate(2024, 1, 15)},
		{"absent", "", core.Today()},
		{"malformed", "date=15/01/2024", core.Today()},
		{"garbage", "date=tomorrow", core.Today()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/day?"+tt.query, nil)
			if got := parseDateParam(r, "date"); !got.Equal(tt.want) {
				t.Fatalf("parseDateParam(%q) = %s, want %s", tt.query, got, tt.want)
			}
		})
	}
}

func TestParseIDParamZeroOnBadInput(t *testing.T) {
	tests := []struct {
		query string
		want  int64
	}{
		{"id=42", 42},
		{"id=", 0},
		{"", 0},
		{"id=abc", 0},
		{"id=1.5", 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/x?"+tt.query, nil)
		if got := parseIDParam(r, "id"); got != tt.want {
			t.Fatalf("parseIDParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestParseMoneyParamZeroOnBadInput(t *testing.T) {
	tests := []struct {
		query string
		want  int64
	}{
		{"amount=500", 50000},
		{"amount=1.23", 123},
		{"amount=abc", 0},
		{"", 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/x?"+tt.query, nil)
		if got := parseMoneyParam(r, "amount").Cents; got != tt.want {
			t.Fatalf("parseMoneyParam(%q) = %d cents, want %d", tt.query, got, tt.want)
		}
	}
}

func TestParseBoolParam(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes"} {
		r := httptest.NewRequest("GET", "/x?flag="+v, nil)
		if !parseBoolParam(r, "flag") {
			t.Fatalf("parseBoolParam(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"", "0", "false", "no", "junk"} {
		r := httptest.NewRequest("GET", "/x?flag="+v, nil)
		if parseBoolParam(r, "flag") {
			t.Fatalf("parseBoolParam(%q) = true, want false", v)
		}
	}
}
