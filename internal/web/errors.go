package web

// errors.go provides the JSON response helpers shared by all handlers.
// Technical errors are logged server-side with the request ID; clients see
// a stable {error} or {errors} shape.

import (
	"encoding/json"
	"net/http"

	"github.com/crmtools/customer-import/internal/logging"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondError writes a single-message error response and logs the
// underlying cause when one is given.
func respondError(w http.ResponseWriter, r *http.Request, status int, msg string, cause error) {
	if cause != nil {
		logging.FromContext(r.Context()).Error("request error",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", cause,
		)
	}
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondViolations writes the validation-failure shape used by the
// customer endpoints: a list of operator-facing messages.
func respondViolations(w http.ResponseWriter, status int, violations []string) {
	respondJSON(w, status, map[string][]string{"errors": violations})
}
