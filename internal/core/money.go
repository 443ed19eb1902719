// Package core provides money parsing and handling utilities.
//
// This file contains the Amount type used by loosely-typed external records
// and the parser that accepts both decimal-comma and decimal-dot notations.
package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value carried by external records. It decodes from a
// JSON number, a numeric string in either notation, or null.
type Amount struct {
	decimal.Decimal
}

// NewAmount creates an Amount from a float64 value.
func NewAmount(v float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(v)}
}

// Float64 returns the amount as a float64 for aggregation.
func (a Amount) Float64() float64 {
	return a.Decimal.InexactFloat64()
}

// UnmarshalJSON never fails on malformed input: anything that does not parse
// as an amount decodes as zero.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			a.Decimal = decimal.Zero
			return nil
		}
		d, err := ParseAmount(s)
		if err != nil {
			d = decimal.Zero
		}
		a.Decimal = d
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		d = decimal.Zero
	}
	a.Decimal = d
	return nil
}

// MarshalJSON encodes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// ParseAmount converts a human-entered amount into a decimal.
//
// Both "1.234,56" and "1,234.56" are accepted: when both separators appear the
// rightmost one is the decimal separator. A repeated separator groups
// thousands. A single separator is a thousands separator when it follows one
// to three digits (no leading zero) and precedes exactly three, and decimal
// otherwise. Currency symbols and spaces are ignored. Negative values are
// allowed (credit notes).
//
// Examples:
//
//	ParseAmount("1.234,56")    -> 1234.56
//	ParseAmount("1,234.56")    -> 1234.56
//	ParseAmount("12,5")        -> 12.5
//	ParseAmount("$ 1.500")     -> 1500
//	ParseAmount("0.500")       -> 0.5
//	ParseAmount("$ 1.000.000") -> 1000000
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' {
			return r
		}
		if unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" || s == "-" {
		return decimal.Zero, ErrInvalidAmount
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || groupsThousands(s, lastComma) {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || groupsThousands(s, lastDot) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// groupsThousands reports whether the only separator in s, at index sep,
// reads as a thousands separator: "1.500", "25,000", "-999.000".
func groupsThousands(s string, sep int) bool {
	intPart := strings.TrimPrefix(s[:sep], "-")
	frac := s[sep+1:]
	if len(frac) != 3 || len(intPart) == 0 || len(intPart) > 3 || intPart[0] == '0' {
		return false
	}
	return isDigits(intPart) && isDigits(frac)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
