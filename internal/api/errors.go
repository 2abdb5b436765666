package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kalambet/vinsight/internal/lookup"
	"github.com/kalambet/vinsight/internal/vehicle"
)

const internalErrorDetail = "Internal server error"

// errorBody is the envelope for every non-2xx response.
type errorBody struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{
		Detail:    detail,
		ErrorCode: fmt.Sprintf("HTTP_%d", status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps façade errors to an HTTP status and client-facing detail.
// Anything unrecognized is a 500 with a generic detail.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, vehicle.ErrInvalidKey), errors.Is(err, lookup.ErrInvalidQuery):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, vehicle.ErrNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, internalErrorDetail
	}
}
