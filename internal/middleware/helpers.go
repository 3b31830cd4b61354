package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/driftware/driftbox/internal/models"
)

// writeError sends a JSON error response in the API's standard shape.
func writeError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
