package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"finanze/internal/core"
	"finanze/internal/store"
)

// errInvalidBody covers malformed JSON and amount strings that do not parse.
var errInvalidBody = errors.New("invalid request body")

// validationErrs are the domain sentinels that map to 422.
var validationErrs = []error{
	core.ErrEmptyMerchant,
	core.ErrInvalidAmount,
	core.ErrEmptyCategory,
	core.ErrEmptyCategoryName,
	core.ErrEmptyMonthKey,
	core.ErrInvalidMonthKey,
	core.ErrInvalidTxType,
	core.ErrInvalidLimit,
	core.ErrEmptyGoalName,
	core.ErrInvalidTarget,
	core.ErrInvalidDeposit,
	core.ErrZeroDate,
}

func isValidationErr(err error) bool {
	for _, sentinel := range validationErrs {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto status codes: validation failures are
// 422, missing documents 404, a malformed body 400 and everything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isValidationErr(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, errInvalidBody):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "method", r.Method, "url", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// userID returns the caller's namespace from the X-User-ID header.
func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

// parseAmount converts a decimal string ("12.50") into money. Failures
// carry core.ErrInvalidAmount and surface as 422.
func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(s))
	if err != nil {
		return core.Money{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return core.Money{Cents: cents}, nil
}

// parseLimit parses a budget limit. Unlike transaction amounts, zero is a
// valid limit.
func parseLimit(s string) (core.Money, error) {
	if isZeroDecimal(strings.TrimSpace(s)) {
		return core.Money{}, nil
	}
	return parseAmount(s)
}

// isZeroDecimal reports whether s is a decimal spelling of zero, e.g. "0",
// "0.00" or ",00".
func isZeroDecimal(s string) bool {
	seps, digits := 0, 0
	for _, r := range s {
		switch r {
		case '.', ',':
			seps++
			if seps > 1 {
				return false
			}
		case '0':
			digits++
		default:
			return false
		}
	}
	return digits > 0
}

// parseDate parses a date in YYYY-MM-DD or RFC 3339 form. Empty is allowed
// and returns the zero time so callers can apply their defaults.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", errInvalidBody, s)
	}
	return t, nil
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
