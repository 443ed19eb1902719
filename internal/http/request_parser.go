// This file implements helpers for decoding request bodies and query
// parameters.
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

	"github.com/gorilla/mux"

	"finanzas/internal/core"
	"finanzas/internal/services"
	"finanzas/internal/snapshot"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// errBadRequest marks malformed input: unparsable JSON or query values.
var errBadRequest = errors.New("bad request")

// DecodeJSON reads one JSON value from the body into v. Unknown fields are
// rejected so misspelled keys do not pass silently.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// ParseMonth parses a 1-based month number. Months beyond 12 are valid
// offsets for multi-year plans.
func ParseMonth(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: month is required", core.ErrInvalidMonth)
	}
	m, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: month %q is not a number", errBadRequest, s)
	}
	if m < 1 {
		return 0, fmt.Errorf("%w: %d", core.ErrInvalidMonth, m)
	}
	return m, nil
}

// ParseBool treats an empty value as false.
func ParseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", errBadRequest, s)
	}
	return b, nil
}

// ParseLimit parses an optional positive limit, capped at max.
func ParseLimit(s string, max int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return max, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit %q must be a positive integer", errBadRequest, s)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// ParseSnapshotRequest reads month, group, type, q and onlyVariance.
func ParseSnapshotRequest(query url.Values) (services.SnapshotRequest, error) {
	month, err := ParseMonth(query.Get("month"))
	if err != nil {
		return services.SnapshotRequest{}, err
	}
	group, err := core.ParseGroupMode(query.Get("group"))
	if err != nil {
		return services.SnapshotRequest{}, err
	}
	costType, err := core.ParseCostType(query.Get("type"))
	if err != nil {
		return services.SnapshotRequest{}, err
	}
	onlyVariance, err := ParseBool(query.Get("onlyVariance"))
	if err != nil {
		return services.SnapshotRequest{}, err
	}
	return services.SnapshotRequest{
		Month:   month,
		GroupBy: group,
		Filters: snapshot.Filters{
			CostType:     costType,
			Search:       sanitizeInput(query.Get("q")),
			OnlyVariance: onlyVariance,
		},
	}, nil
}

// pathMonth reads the {month} route variable.
func pathMonth(r *http.Request) (int, error) {
	return ParseMonth(mux.Vars(r)["month"])
}
