package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the pipeline error taxonomy onto HTTP statuses:
// unknown ids are 404, run conflicts 409, rejected input 400 and
// everything else 500. Internal failures are logged with their cause
// but reported with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case core.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case core.IsConcurrentRun(err):
		status, code = http.StatusConflict, "conflict"
	case core.IsInvalid(err), core.IsIngestion(err):
		status, code = http.StatusBadRequest, "invalid_input"
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal server error"
	} else {
		s.logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// decodeJSON reads the request body into dst, treating malformed JSON
// as invalid input.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", core.ErrInvalid, err)
	}
	return nil
}

// queryInt parses a positive integer query parameter, falling back to
// def when the parameter is missing or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
		return parsed
	}
	return def
}
