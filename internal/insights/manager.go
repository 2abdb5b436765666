// Package insights caches narrative artifacts per vehicle and decides when
// they must be regenerated.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/vinsight/internal/fingerprint"
	"github.com/kalambet/vinsight/internal/narrative"
	"github.com/kalambet/vinsight/internal/storage"
	"github.com/kalambet/vinsight/internal/vehicle"
)

// DefaultTTL is how long a cached artifact is served without regeneration.
const DefaultTTL = 30 * 24 * time.Hour

// Store defines the cache-row operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	GetInsight(ctx context.Context, vehicleID int64) (storage.InsightRow, error)
	UpsertInsight(ctx context.Context, row storage.InsightRow) error
	DeleteInsight(ctx context.Context, vehicleID int64) error
}

// Generator produces artifacts. Implemented by narrative.Generator.
type Generator interface {
	Generate(ctx context.Context, agg *vehicle.Aggregate) narrative.Artifact
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CacheEntry is the stored state for one vehicle.
type CacheEntry struct {
	VehicleID      int64
	Payload        []byte
	Fingerprint    string
	GeneratedAt    time.Time
	ModelVersion   string
	HasIssues      bool
	NeedsAttention bool
}

func entryFromRow(r storage.InsightRow) *CacheEntry {
	return &CacheEntry{
		VehicleID:      r.VehicleID,
		Payload:        r.Payload,
		Fingerprint:    r.Fingerprint,
		GeneratedAt:    r.GeneratedAt,
		ModelVersion:   r.ModelVersion,
		HasIssues:      r.HasIssues,
		NeedsAttention: r.NeedsAttention,
	}
}

// Kind tags a LookupResult.
type Kind int

const (
	Miss Kind = iota
	Hit
)

func (k Kind) String() string {
	if k == Hit {
		return "hit"
	}
	return "miss"
}

// LookupResult is the outcome of consulting the cache. Artifact is only
// meaningful for a Hit.
type LookupResult struct {
	Kind     Kind
	Artifact narrative.Artifact
	Entry    *CacheEntry
}

// Manager owns the cache rows. Concurrent misses for the same vehicle and
// fingerprint share one generation call.
type Manager struct {
	store Store
	gen   Generator
	clock Clock
	ttl   time.Duration

	group singleflight.Group
}

// NewManager creates a Manager. A non-positive ttl selects DefaultTTL.
func NewManager(store Store, gen Generator, ttl time.Duration) *Manager {
	return NewManagerWithClock(store, gen, realClock{}, ttl)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store Store, gen Generator, clock Clock, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, gen: gen, clock: clock, ttl: ttl}
}

// TTL returns the configured staleness bound.
func (m *Manager) TTL() time.Duration { return m.ttl }

// ShouldRegenerate reports whether entry can no longer be served for a
// vehicle whose current fingerprint is fp.
func (m *Manager) ShouldRegenerate(entry *CacheEntry, fp string, now time.Time) bool {
	switch {
	case entry == nil:
		return true
	case entry.Fingerprint == "" || entry.GeneratedAt.IsZero():
		return true
	case entry.Fingerprint != fp:
		return true
	case now.Sub(entry.GeneratedAt) > m.ttl:
		return true
	default:
		return false
	}
}

// Lookup consults the cache row for vehicleID. Read failures and
// undecodable payloads are reported as a Miss.
func (m *Manager) Lookup(ctx context.Context, vehicleID int64, fp string) LookupResult {
	log := slog.With("vehicle_id", vehicleID, "stage", "cache_read")

	row, err := m.store.GetInsight(ctx, vehicleID)
	if errors.Is(err, vehicle.ErrNotFound) {
		return LookupResult{Kind: Miss}
	}
	if err != nil {
		log.Warn("reading cached insights failed", "error", err)
		return LookupResult{Kind: Miss}
	}

	entry := entryFromRow(row)
	if m.ShouldRegenerate(entry, fp, m.clock.Now()) {
		return LookupResult{Kind: Miss, Entry: entry}
	}

	var a narrative.Artifact
	if err := json.Unmarshal(entry.Payload, &a); err != nil {
		log.Warn("cached insights are unreadable, regenerating", "error", err)
		return LookupResult{Kind: Miss, Entry: entry}
	}
	a.GeneratedAt = entry.GeneratedAt
	a.ModelVersion = entry.ModelVersion
	a.Cached = true
	return LookupResult{Kind: Hit, Artifact: a, Entry: entry}
}

// GetOrRefresh returns the cached artifact for agg when it is still valid
// and generates (and stores) a new one otherwise. It never fails.
func (m *Manager) GetOrRefresh(ctx context.Context, agg *vehicle.Aggregate) narrative.Artifact {
	fp := fingerprint.Compute(agg)
	id := agg.Basic.ID

	if res := m.Lookup(ctx, id, fp); res.Kind == Hit {
		slog.Debug("serving cached insights", "vehicle_id", id, "key", agg.SearchKey(), "stage", "cache_read")
		return res.Artifact
	}

	// The flight is shared, so it must not inherit one caller's cancellation.
	// The generator's own timeout still bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(strconv.FormatInt(id, 10)+":"+fp, func() (any, error) {
		return m.regenerate(flightCtx, agg, fp), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			slog.Debug("joined in-flight generation", "vehicle_id", id, "stage", "generate")
		}
		a := res.Val.(narrative.Artifact)
		a.Cached = false
		return a
	case <-ctx.Done():
		slog.Warn("caller gave up waiting for insights", "vehicle_id", id, "stage", "generate", "error", ctx.Err())
		return narrative.Fallback(agg, m.clock.Now())
	}
}

func (m *Manager) regenerate(ctx context.Context, agg *vehicle.Aggregate, fp string) narrative.Artifact {
	id := agg.Basic.ID
	log := slog.With("vehicle_id", id, "key", agg.SearchKey())

	a := m.gen.Generate(ctx, agg)
	a.Cached = false
	if a.Error {
		log.Warn("not caching error artifact", "stage", "cache_write", "error_kind", a.ErrorKind)
		return a
	}

	now := m.clock.Now().UTC()
	flags := DeriveFlags(agg, a, now)
	payload, err := json.Marshal(a)
	if err != nil {
		log.Error("encoding insights failed", "stage", "cache_write", "error", err)
		return a
	}

	row := storage.InsightRow{
		VehicleID:      id,
		SearchKey:      agg.SearchKey(),
		Payload:        payload,
		Fingerprint:    fp,
		GeneratedAt:    a.GeneratedAt,
		ModelVersion:   a.ModelVersion,
		HasIssues:      flags.HasIssues,
		NeedsAttention: flags.NeedsAttention,
		UpdatedAt:      now,
	}
	if row.GeneratedAt.IsZero() {
		row.GeneratedAt = now
	}
	if err := m.store.UpsertInsight(ctx, row); err != nil {
		log.Error("caching insights failed", "stage", "cache_write", "error", err)
		return a
	}
	log.Info("cached insights", "stage", "cache_write",
		"has_issues", flags.HasIssues, "needs_attention", flags.NeedsAttention)
	return a
}

// Invalidate deletes the cache row so the next lookup regenerates. It is
// idempotent.
func (m *Manager) Invalidate(ctx context.Context, vehicleID int64) error {
	if err := m.store.DeleteInsight(ctx, vehicleID); err != nil {
		return err
	}
	slog.Info("invalidated insights", "vehicle_id", vehicleID, "stage", "invalidate")
	return nil
}
