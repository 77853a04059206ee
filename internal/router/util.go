package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/DangVuDev/vndc-exchange/internal/usecase/exchange"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeJSON reads, unmarshals and validates the request body into T with
// sane limits and timeouts.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var zero T

	// Optional: enforce a context timeout for reading large bodies
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	r = r.WithContext(ctx)

	// Optional: limit max body size to prevent abuse
	const maxBody = int64(1 << 20) // 1 MiB
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req T
	if err := dec.Decode(&req); err != nil {
		// Provide clearer errors
		if errors.Is(err, io.EOF) {
			return zero, errors.New("empty body")
		}
		return zero, err
	}

	// Ensure there’s no trailing garbage
	if dec.More() {
		return zero, errors.New("multiple JSON values in body")
	}

	if err := validate.Struct(req); err != nil {
		return zero, err
	}
	return req, nil
}

// writeJSON marshals v and writes it with status and proper headers.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

// writeJSONError writes a simple error response as JSON.
func writeJSONError(w http.ResponseWriter, status int, err error) {
	type errorResp struct {
		Error   string `json:"error"`
		Status  int    `json:"status"`
		Message string `json:"message,omitempty"`
	}
	writeJSON(w, status, errorResp{
		Error:   http.StatusText(status),
		Status:  status,
		Message: err.Error(),
	})
}

// writeExchangeError maps exchange errors onto HTTP statuses.
func writeExchangeError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, exchange.ErrInvalidOrder):
		writeJSONError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, exchange.ErrUnknownPair), errors.Is(err, exchange.ErrUnknownTimeframe):
		writeJSONError(w, http.StatusNotFound, err)
	case errors.Is(err, exchange.ErrClosed):
		writeJSONError(w, http.StatusServiceUnavailable, err)
	case errors.As(err, &validationErrs):
		writeJSONError(w, http.StatusBadRequest, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusRequestTimeout, err)
	default:
		writeJSONError(w, http.StatusInternalServerError, err)
	}
}

// queryInt reads an optional integer query parameter bounded to [min, max].
func queryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	if v < min {
		v = min
	}
	if max > 0 && v > max {
		v = max
	}
	return v, nil
}

// queryUnix reads an optional unix seconds timestamp.
func queryUnix(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be unix seconds", key)
	}
	return time.Unix(v, 0).UTC(), nil
}
