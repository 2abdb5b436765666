// Package api serves the vehicle lookup façade over HTTP and MCP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/vinsight/internal/lookup"
	"github.com/kalambet/vinsight/internal/vehicle"
)

// APIPrefix is the versioned mount point; vehicle routes are also served
// at the root.
const APIPrefix = "/api/v1"

// Lookuper is implemented by lookup.Service.
type Lookuper interface {
	Lookup(ctx context.Context, key string, kt vehicle.KeyType) (*lookup.Result, error)
	Search(ctx context.Context, q string) (*lookup.SearchResponse, error)
	RefreshInsights(ctx context.Context, vehicleID int64) (*lookup.RefreshResult, error)
}

// Pinger checks database connectivity for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds everything the HTTP handler needs.
type Deps struct {
	Service     Lookuper
	DB          Pinger
	Version     string
	LLMProvider string
	LLMModel    string
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewHandler builds the HTTP handler.
func NewHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))
	r.Use(CORS(deps.CORSOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/", handleRoot(deps))
	r.Get("/version", handleVersion(deps))

	mountVehicleRoutes(r, deps)
	r.Route(APIPrefix, func(r chi.Router) {
		mountVehicleRoutes(r, deps)
	})
	return r
}

func mountVehicleRoutes(r chi.Router, deps Deps) {
	r.Get("/health", handleHealth(deps))
	r.Get("/vehicle/vin/{vin}", handleLookup(deps, vehicle.KeyVIN, "vin"))
	r.Get("/vehicle/vrm/{vrm}", handleLookup(deps, vehicle.KeyVRM, "vrm"))
	r.Get("/vehicle/search", handleSearch(deps))
	r.Get("/vehicle/{id}/refresh-insights", handleRefresh(deps))
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Database:  "ok",
		}
		status := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if deps.DB == nil || deps.DB.Ping(ctx) != nil {
			resp.Status = "unhealthy"
			resp.Database = "error"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

type versionResponse struct {
	Version     string `json:"version"`
	LLMProvider string `json:"llm_provider"`
	LLMModel    string `json:"llm_model"`
}

func handleVersion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, versionResponse{
			Version:     deps.Version,
			LLMProvider: deps.LLMProvider,
			LLMModel:    deps.LLMModel,
		})
	}
}

type rootResponse struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Docs    map[string]string `json:"docs"`
}

func handleRoot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rootResponse{
			Name:    "vinsight",
			Version: deps.Version,
			Docs: map[string]string{
				"health":           APIPrefix + "/health",
				"search_by_vin":    APIPrefix + "/vehicle/vin/{vin}",
				"search_by_vrm":    APIPrefix + "/vehicle/vrm/{vrm}",
				"general_search":   APIPrefix + "/vehicle/search?q={query}",
				"refresh_insights": APIPrefix + "/vehicle/{id}/refresh-insights",
			},
		})
	}
}
