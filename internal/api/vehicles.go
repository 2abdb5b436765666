package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/vinsight/internal/vehicle"
)

func handleLookup(deps Deps, kt vehicle.KeyType, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, param)
		res, err := deps.Service.Lookup(r.Context(), key, kt)
		if err != nil {
			if errors.Is(err, vehicle.ErrNotFound) {
				shown, nerr := vehicle.Normalize(key, kt)
				if nerr != nil {
					shown = key
				}
				writeError(w, http.StatusNotFound, fmt.Sprintf("Vehicle with %s %s not found",
					strings.ToUpper(param), shown))
				return
			}
			respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Service.Search(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleRefresh(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "vehicle id must be an integer")
			return
		}
		res, err := deps.Service.RefreshInsights(r.Context(), id)
		if err != nil {
			if errors.Is(err, vehicle.ErrNotFound) {
				writeError(w, http.StatusNotFound, fmt.Sprintf("Vehicle with ID %d not found", id))
				return
			}
			respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeError(w, status, detail)
}
