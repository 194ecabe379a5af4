package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response. Bodies may carry user or game cookies, so
// they are never cached.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Accepted writes an empty 202, used when the outcome is delivered later by
// notification
func Accepted(w http.ResponseWriter) {
	w.WriteHeader(http.StatusAccepted)
}

// NoContent writes a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
