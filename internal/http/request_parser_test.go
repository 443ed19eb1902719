package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"finanzas/internal/core"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr error
	}{
		{"3", 3, nil},
		{" 14 ", 14, nil},
		{"", 0, core.ErrInvalidMonth},
		{"0", 0, core.ErrInvalidMonth},
		{"-2", 0, core.ErrInvalidMonth},
		{"march", 0, errBadRequest},
	}
	for _, tt := range tests {
		got, err := ParseMonth(tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseMonth(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMonth(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestParseLimit(t *testing.T) {
	if n, err := ParseLimit("", 50); err != nil || n != 50 {
		t.Errorf("empty limit = %d, %v", n, err)
	}
	if n, err := ParseLimit("500", 50); err != nil || n != 50 {
		t.Errorf("limit must be capped, got %d, %v", n, err)
	}
	if _, err := ParseLimit("0", 50); !errors.Is(err, errBadRequest) {
		t.Errorf("zero limit error = %v", err)
	}
}

func TestParseSnapshotRequest(t *testing.T) {
	req, err := ParseSnapshotRequest(url.Values{
		"month":        {"4"},
		"group":        {"rubro"},
		"type":         {"labor"},
		"q":            {"  sdm\x00 "},
		"onlyVariance": {"true"},
	})
	if err != nil {
		t.Fatalf("ParseSnapshotRequest: %v", err)
	}
	if req.Month != 4 || req.GroupBy != core.GroupByRubro || req.Filters.CostType != core.Labor ||
		req.Filters.Search != "sdm" || !req.Filters.OnlyVariance {
		t.Fatalf("unexpected request: %+v", req)
	}

	req, err = ParseSnapshotRequest(url.Values{"month": {"1"}})
	if err != nil || req.GroupBy != core.GroupByProject || req.Filters.CostType != "" {
		t.Fatalf("defaults = %+v, %v", req, err)
	}

	for _, q := range []url.Values{
		{"month": {"1"}, "group": {"vendor"}},
		{"month": {"1"}, "type": {"capex"}},
		{"month": {"1"}, "onlyVariance": {"maybe"}},
		{},
	} {
		if _, err := ParseSnapshotRequest(q); err == nil {
			t.Errorf("expected error for %v", q)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	decode := func(body string) error {
		var v []core.InvoiceRecord
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return DecodeJSON(httptest.NewRecorder(), r, &v)
	}
	if err := decode(`[{"id":"a","amount":"1.5"}]`); err != nil {
		t.Errorf("valid body: %v", err)
	}
	for _, body := range []string{``, `{`, `[{"bogus":1}]`, `[] []`} {
		if err := decode(body); !errors.Is(err, errBadRequest) {
			t.Errorf("body %q error = %v, want bad request", body, err)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x01b\tc  "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
