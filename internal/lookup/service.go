// Package lookup composes the store and the insight cache into the
// operations exposed over HTTP, MCP and the CLI.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/vinsight/internal/narrative"
	"github.com/kalambet/vinsight/internal/storage"
	"github.com/kalambet/vinsight/internal/vehicle"
)

// MinQueryLength is the shortest accepted search query.
const MinQueryLength = 2

// ErrInvalidQuery is returned for search queries that are too short.
var ErrInvalidQuery = errors.New("invalid search query")

// Store is the read side of storage.Store used here.
type Store interface {
	LoadByKey(ctx context.Context, kt vehicle.KeyType, key string) (*vehicle.Aggregate, error)
	GetVehicle(ctx context.Context, id int64) (vehicle.Vehicle, error)
	Search(ctx context.Context, q string) ([]storage.SearchResult, error)
}

// Cache is implemented by insights.Manager.
type Cache interface {
	GetOrRefresh(ctx context.Context, agg *vehicle.Aggregate) narrative.Artifact
	Invalidate(ctx context.Context, vehicleID int64) error
}

// Result is the full lookup payload.
type Result struct {
	VehicleID    int64              `json:"vehicle_id"`
	SearchTerm   string             `json:"search_term"`
	SearchType   vehicle.KeyType    `json:"search_type"`
	AIInsights   narrative.Artifact `json:"ai_insights"`
	DetailedData *vehicle.Aggregate `json:"detailed_data"`
	LastUpdated  time.Time          `json:"last_updated"`
}

// SearchResponse wraps search matches.
type SearchResponse struct {
	Query   string                 `json:"query"`
	Results []storage.SearchResult `json:"results"`
	Count   int                    `json:"count"`
}

// RefreshResult confirms an invalidation.
type RefreshResult struct {
	Message                   string `json:"message"`
	VehicleID                 int64  `json:"vehicle_id"`
	VRM                       string `json:"vrm"`
	NextRequestWillRegenerate bool   `json:"next_request_will_regenerate"`
}

// Service is the query façade.
type Service struct {
	store Store
	cache Cache
	now   func() time.Time
}

// New creates a Service.
func New(store Store, cache Cache) *Service {
	return &Service{store: store, cache: cache, now: time.Now}
}

// Lookup validates and normalizes key, loads the aggregate and attaches its
// insights. It returns vehicle.ErrInvalidKey or vehicle.ErrNotFound for the
// client-side failures.
func (s *Service) Lookup(ctx context.Context, key string, kt vehicle.KeyType) (*Result, error) {
	normalized, err := vehicle.Normalize(key, kt)
	if err != nil {
		return nil, err
	}
	log := slog.With("key", normalized, "key_type", string(kt))

	agg, err := s.store.LoadByKey(ctx, kt, normalized)
	if err != nil {
		if !errors.Is(err, vehicle.ErrNotFound) {
			log.Error("loading vehicle failed", "stage", "load", "error", err)
		}
		return nil, err
	}

	artifact := s.cache.GetOrRefresh(ctx, agg)
	log.Info("vehicle lookup", "vehicle_id", agg.Basic.ID, "stage", "lookup",
		"cached", artifact.Cached, "error_artifact", artifact.Error)

	return &Result{
		VehicleID:    agg.Basic.ID,
		SearchTerm:   normalized,
		SearchType:   kt,
		AIInsights:   artifact,
		DetailedData: agg,
		LastUpdated:  s.now().UTC(),
	}, nil
}

// Search matches q against VIN, VRM, make and model.
func (s *Service) Search(ctx context.Context, q string) (*SearchResponse, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return nil, fmt.Errorf("%w: query must be at least %d characters", ErrInvalidQuery, MinQueryLength)
	}
	results, err := s.store.Search(ctx, q)
	if err != nil {
		slog.Error("search failed", "query", q, "stage", "search", "error", err)
		return nil, err
	}
	return &SearchResponse{Query: q, Results: results, Count: len(results)}, nil
}

// RefreshInsights drops the cached artifact for vehicleID so the next
// lookup regenerates it.
func (s *Service) RefreshInsights(ctx context.Context, vehicleID int64) (*RefreshResult, error) {
	v, err := s.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, vehicleID); err != nil {
		slog.Error("invalidating insights failed", "vehicle_id", vehicleID, "stage", "invalidate", "error", err)
		return nil, err
	}
	return &RefreshResult{
		Message:                   "Vehicle insights cache cleared successfully",
		VehicleID:                 vehicleID,
		VRM:                       v.VRM,
		NextRequestWillRegenerate: true,
	}, nil
}
