package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"aegis/core"

	"github.com/gorilla/mux"
)

const maxRequestBody = 1024 * 1024 // 1MB

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// errorStatus maps the core error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest
	case core.IsNotFound(err):
		return http.StatusNotFound
	case core.IsStateConflict(err):
		return http.StatusConflict
	default:
		var de *core.DependencyError
		if errors.As(err, &de) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

// writeError maps err onto the taxonomy status and writes a JSON error body.
// Internal errors are logged in full but reported generically.
func (a *API) writeError(w http.ResponseWriter, err error, context string) {
	status := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Errorw(context, "error", err)
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSONBody decodes a bounded JSON request body into v.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return core.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// pathID extracts the numeric {id} path variable.
func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError("id", fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// formatID renders a numeric ID for error messages.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// queryInt parses an optional integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
