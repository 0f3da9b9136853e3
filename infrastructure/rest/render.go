package rest

import (
	"net/http"

	"social-lab/errors"

	"github.com/goccy/go-json"
)

const maxBodyBytes = 64 * 1024

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders a domain error with the status it maps to.
// Unmapped errors are logged by the caller and never shown to the client.
func writeError(w http.ResponseWriter, err error) {
	statusCode := errors.HTTPStatus(err)
	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, statusCode, errorResponse{Error: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ErrInvalidCommand
	}
	return nil
}
