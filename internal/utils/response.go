package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"CapIot.powerfeed/internal/models"
)

// RespondWithError sends a JSON error response using the APIError model.
// The HTTP status code comes from the APIError.
func RespondWithError(writer http.ResponseWriter, apiErr models.APIError) {
	RespondWithJSON(writer, apiErr.StatusCode, apiErr)
}

// RespondWithJSON sends a JSON response. Headers are set before the status
// line is written.
func RespondWithJSON(writer http.ResponseWriter, statusCode int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondNoContent sends an empty 204 response.
func RespondNoContent(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusNoContent)
}
