package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"1.000.000", "1000000", true},
		{"$ 2.500,50", "2500.5", true},
		{" 2.50 ", "2.5", true},
		{"-150", "-150", true},
		{"1.000", "1000", true},
		{"$ 1.500", "1500", true},
		{"25.000", "25000", true},
		{"$ 1,000", "1000", true},
		{"-999.000", "-999000", true},
		{"0.500", "0.5", true},
		{"1234.567", "1234.567", true},
		{"1.5000", "1.5", true},
		{"12,345", "12345", true},
		{"abc", "", false},
		{"1.2.3,4,5", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got.String(), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got.String())
		}
	}
}

func TestAmountUnmarshalJSON(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{`{"amount": 1500.25}`, 1500.25},
		{`{"amount": "1.500,25"}`, 1500.25},
		{`{"amount": "$ 1.500"}`, 1500},
		{`{"amount": null}`, 0},
		{`{}`, 0},
		{`{"amount": "n/a"}`, 0},
	}
	for _, tc := range cases {
		var inv InvoiceRecord
		if err := json.Unmarshal([]byte(tc.in), &inv); err != nil {
			t.Fatalf("%s: unexpected error %v", tc.in, err)
		}
		if got := inv.Amount.Float64(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.in, tc.want, got)
		}
	}
}
