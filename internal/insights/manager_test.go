package insights

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/vinsight/internal/fingerprint"
	"github.com/kalambet/vinsight/internal/narrative"
	"github.com/kalambet/vinsight/internal/storage"
	"github.com/kalambet/vinsight/internal/vehicle"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	rows    map[int64]storage.InsightRow
	getErr  error
	putErr  error
	upserts int
	reads   chan struct{}
}

func newMemStore() *memStore { return &memStore{rows: map[int64]storage.InsightRow{}} }

func (s *memStore) GetInsight(_ context.Context, id int64) (storage.InsightRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reads != nil {
		s.reads <- struct{}{}
	}
	if s.getErr != nil {
		return storage.InsightRow{}, s.getErr
	}
	r, ok := s.rows[id]
	if !ok {
		return storage.InsightRow{}, vehicle.ErrNotFound
	}
	return r, nil
}

func (s *memStore) UpsertInsight(_ context.Context, r storage.InsightRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.upserts++
	s.rows[r.VehicleID] = r
	return nil
}

func (s *memStore) DeleteInsight(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// stubGenerator returns a fixed artifact and counts calls. With release
// set it blocks until release is closed, and reports the fallback if its
// context ends first.
type stubGenerator struct {
	artifact narrative.Artifact
	calls    atomic.Int32
	started  chan struct{}
	release  chan struct{}
}

func (g *stubGenerator) Generate(ctx context.Context, agg *vehicle.Aggregate) narrative.Artifact {
	g.calls.Add(1)
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return narrative.Fallback(agg, now)
		}
	}
	return g.artifact
}

func goodArtifact() narrative.Artifact {
	return narrative.Artifact{
		Summary:               "A tidy 2019 Ford Focus.",
		KeyInsights:           narrative.StringList{"Full service history"},
		ReliabilityAssessment: narrative.Reliability{Score: narrative.ScoreOf(8)},
		AttentionItems:        narrative.StringList{},
		GeneratedAt:           now.Add(-time.Minute),
		ModelVersion:          "ollama:llama3.1",
	}
}

func ptr[T any](v T) *T { return &v }

func date(t time.Time) *vehicle.Date {
	d := vehicle.DateOf(t)
	return &d
}

func aggregate() *vehicle.Aggregate {
	agg := &vehicle.Aggregate{Basic: vehicle.Vehicle{
		ID:        7,
		VIN:       "WF0AXXGCDA1234567",
		VRM:       "AB12CDE",
		Make:      "Ford",
		Model:     "Focus",
		Year:      ptr(2019),
		UpdatedAt: now.Add(-48 * time.Hour),
	}}
	agg.EnsureCollections()
	return agg
}

func newTestManager(store Store, gen Generator) *Manager {
	return NewManagerWithClock(store, gen, fixedClock{now}, DefaultTTL)
}

func TestShouldRegenerate(t *testing.T) {
	m := newTestManager(newMemStore(), &stubGenerator{})
	fresh := &CacheEntry{Fingerprint: "abc", GeneratedAt: now.Add(-time.Hour)}

	tests := []struct {
		name  string
		entry *CacheEntry
		fp    string
		want  bool
	}{
		{"no entry", nil, "abc", true},
		{"empty fingerprint", &CacheEntry{GeneratedAt: now}, "abc", true},
		{"zero timestamp", &CacheEntry{Fingerprint: "abc"}, "abc", true},
		{"fingerprint changed", fresh, "def", true},
		{"fresh and matching", fresh, "abc", false},
		{"exactly at ttl", &CacheEntry{Fingerprint: "abc", GeneratedAt: now.Add(-DefaultTTL)}, "abc", false},
		{"older than ttl", &CacheEntry{Fingerprint: "abc", GeneratedAt: now.Add(-DefaultTTL - time.Second)}, "abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ShouldRegenerate(tt.entry, tt.fp, now))
		})
	}
}

func TestNewManager_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewManager(newMemStore(), &stubGenerator{}, 0).TTL())
	assert.Equal(t, time.Hour, NewManager(newMemStore(), &stubGenerator{}, time.Hour).TTL())
}

func TestGetOrRefresh_MissThenHit(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{artifact: goodArtifact()}
	m := newTestManager(store, gen)
	agg := aggregate()

	first := m.GetOrRefresh(context.Background(), agg)
	assert.False(t, first.Cached)
	assert.Equal(t, "A tidy 2019 Ford Focus.", first.Summary)
	assert.EqualValues(t, 1, gen.calls.Load())

	row, ok := store.rows[agg.Basic.ID]
	require.True(t, ok)
	assert.Equal(t, fingerprint.Compute(agg), row.Fingerprint)
	assert.Equal(t, "AB12CDE", row.SearchKey)
	assert.Equal(t, "ollama:llama3.1", row.ModelVersion)
	assert.Equal(t, now, row.UpdatedAt)

	second := m.GetOrRefresh(context.Background(), agg)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, row.GeneratedAt, second.GeneratedAt)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestGetOrRefresh_HitUsesRowMetadata(t *testing.T) {
	store := newMemStore()
	agg := aggregate()
	stamped := now.Add(-24 * time.Hour)
	store.rows[agg.Basic.ID] = storage.InsightRow{
		VehicleID:    agg.Basic.ID,
		Payload:      []byte(`{"summary":"from cache","generated_at":"2000-01-01T00:00:00Z","model_version":"old","cached":false}`),
		Fingerprint:  fingerprint.Compute(agg),
		GeneratedAt:  stamped,
		ModelVersion: "openai:gpt-4o-mini",
	}
	gen := &stubGenerator{artifact: goodArtifact()}

	a := newTestManager(store, gen).GetOrRefresh(context.Background(), agg)
	assert.True(t, a.Cached)
	assert.Equal(t, "from cache", a.Summary)
	assert.Equal(t, stamped, a.GeneratedAt)
	assert.Equal(t, "openai:gpt-4o-mini", a.ModelVersion)
	assert.Zero(t, gen.calls.Load())
}

func TestGetOrRefresh_FingerprintChangeRegenerates(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{artifact: goodArtifact()}
	m := newTestManager(store, gen)
	agg := aggregate()

	m.GetOrRefresh(context.Background(), agg)
	agg.History = append(agg.History, vehicle.HistoryEvent{EventType: vehicle.EventService, Mileage: ptr(50000)})

	a := m.GetOrRefresh(context.Background(), agg)
	assert.False(t, a.Cached)
	assert.EqualValues(t, 2, gen.calls.Load())
	assert.Equal(t, fingerprint.Compute(agg), store.rows[agg.Basic.ID].Fingerprint)
}

func TestGetOrRefresh_StaleRegenerates(t *testing.T) {
	store := newMemStore()
	agg := aggregate()
	store.rows[agg.Basic.ID] = storage.InsightRow{
		VehicleID:   agg.Basic.ID,
		Payload:     []byte(`{"summary":"stale"}`),
		Fingerprint: fingerprint.Compute(agg),
		GeneratedAt: now.Add(-31 * 24 * time.Hour),
	}
	gen := &stubGenerator{artifact: goodArtifact()}

	a := newTestManager(store, gen).GetOrRefresh(context.Background(), agg)
	assert.False(t, a.Cached)
	assert.Equal(t, "A tidy 2019 Ford Focus.", a.Summary)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestGetOrRefresh_UndecodablePayloadIsMiss(t *testing.T) {
	store := newMemStore()
	agg := aggregate()
	store.rows[agg.Basic.ID] = storage.InsightRow{
		VehicleID:   agg.Basic.ID,
		Payload:     []byte(`{not json`),
		Fingerprint: fingerprint.Compute(agg),
		GeneratedAt: now,
	}
	m := newTestManager(store, &stubGenerator{artifact: goodArtifact()})

	res := m.Lookup(context.Background(), agg.Basic.ID, fingerprint.Compute(agg))
	assert.Equal(t, Miss, res.Kind)
	require.NotNil(t, res.Entry)

	a := m.GetOrRefresh(context.Background(), agg)
	assert.False(t, a.Cached)
	assert.Equal(t, "A tidy 2019 Ford Focus.", a.Summary)
}

func TestGetOrRefresh_ErrorArtifactNotCached(t *testing.T) {
	store := newMemStore()
	agg := aggregate()
	gen := &stubGenerator{artifact: narrative.Fallback(agg, now)}
	m := newTestManager(store, gen)

	a := m.GetOrRefresh(context.Background(), agg)
	assert.True(t, a.Error)
	assert.False(t, a.Cached)
	assert.Equal(t, narrative.FallbackModelVersion, a.ModelVersion)
	assert.Zero(t, store.upserts)

	m.GetOrRefresh(context.Background(), agg)
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestGetOrRefresh_PersistenceErrorSwallowed(t *testing.T) {
	store := newMemStore()
	store.putErr = errors.New("disk full")
	a := newTestManager(store, &stubGenerator{artifact: goodArtifact()}).GetOrRefresh(context.Background(), aggregate())

	assert.False(t, a.Error)
	assert.False(t, a.Cached)
	assert.Equal(t, "A tidy 2019 Ford Focus.", a.Summary)
}

func TestGetOrRefresh_ReadErrorIsMiss(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("database is locked")
	gen := &stubGenerator{artifact: goodArtifact()}

	a := newTestManager(store, gen).GetOrRefresh(context.Background(), aggregate())
	assert.False(t, a.Cached)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{artifact: goodArtifact()}
	m := newTestManager(store, gen)
	agg := aggregate()

	m.GetOrRefresh(context.Background(), agg)
	require.NoError(t, m.Invalidate(context.Background(), agg.Basic.ID))
	require.NoError(t, m.Invalidate(context.Background(), agg.Basic.ID))
	assert.Empty(t, store.rows)

	a := m.GetOrRefresh(context.Background(), agg)
	assert.False(t, a.Cached)
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestGetOrRefresh_CoalescesConcurrentMisses(t *testing.T) {
	store := newMemStore()
	store.reads = make(chan struct{}, 5)
	gen := &stubGenerator{artifact: goodArtifact(), release: make(chan struct{})}
	m := newTestManager(store, gen)
	agg := aggregate()

	var wg sync.WaitGroup
	results := make([]narrative.Artifact, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.GetOrRefresh(context.Background(), agg)
		}(i)
	}
	// Every caller has missed the cache before generation is allowed to finish.
	for range results {
		<-store.reads
	}
	close(gen.release)
	wg.Wait()

	assert.EqualValues(t, 1, gen.calls.Load())
	for _, a := range results {
		assert.Equal(t, "A tidy 2019 Ford Focus.", a.Summary)
	}
}

func TestGetOrRefresh_CancelledCallerDoesNotAbortSharedGeneration(t *testing.T) {
	store := newMemStore()
	store.reads = make(chan struct{}, 2)
	gen := &stubGenerator{
		artifact: goodArtifact(),
		started:  make(chan struct{}, 2),
		release:  make(chan struct{}),
	}
	m := newTestManager(store, gen)
	agg := aggregate()

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	resA := make(chan narrative.Artifact, 1)
	go func() { resA <- m.GetOrRefresh(ctxA, agg) }()
	<-store.reads
	<-gen.started

	resB := make(chan narrative.Artifact, 1)
	go func() { resB <- m.GetOrRefresh(context.Background(), agg) }()
	<-store.reads

	cancelA()
	a := <-resA
	assert.True(t, a.Error)
	assert.Equal(t, narrative.FallbackModelVersion, a.ModelVersion)

	close(gen.release)
	b := <-resB
	assert.False(t, b.Error)
	assert.Equal(t, "A tidy 2019 Ford Focus.", b.Summary)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Contains(t, store.rows, agg.Basic.ID)
}

func TestGetOrRefresh_TotalLossSetsHasIssues(t *testing.T) {
	store := newMemStore()
	agg := aggregate()
	agg.InsuranceClaims = []vehicle.InsuranceClaim{{TotalLoss: true, ClaimAmount: ptr(9800.0)}}

	newTestManager(store, &stubGenerator{artifact: goodArtifact()}).GetOrRefresh(context.Background(), agg)
	assert.True(t, store.rows[agg.Basic.ID].HasIssues)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "hit", Hit.String())
	assert.Equal(t, "miss", Miss.String())
}
