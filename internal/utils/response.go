package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"train-station/internal/apperr"
)

type APIResponse struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message"`
	Data      interface{}         `json:"data,omitempty"`
	Error     string              `json:"error,omitempty"`
	Fields    map[string][]string `json:"fields,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(v)
}

// WriteError maps err to its status and writes the error payload. Store
// faults are reported without their internal detail. The status is returned
// so callers can log it.
func WriteError(w http.ResponseWriter, err error) int {
	status := apperr.StatusCode(err)
	resp := ErrorResponse(http.StatusText(status), err.Error())
	if status >= http.StatusInternalServerError {
		resp.Error = "internal server error"
	} else {
		resp.Fields = apperr.Fields(err)
	}
	_ = WriteJSON(w, status, resp)
	return status
}

// DecodeJSON reads a JSON request body into dst. Unknown fields are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Field("body", apperr.ErrInvalid, "request body must not be empty")
		}
		return apperr.Field("body", apperr.ErrInvalid, "invalid JSON: %v", err)
	}
	return nil
}

// ParseID parses a path parameter as a positive integer id. A malformed id
// cannot name an existing record, so it is reported as not found.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id %q: %w", raw, apperr.ErrNotFound)
	}
	return id, nil
}
