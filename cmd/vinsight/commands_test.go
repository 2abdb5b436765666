package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/vinsight/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Accept string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Accept: r.Header.Get("Accept"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(404)
		w.Write([]byte(`{"detail":"Vehicle with VRM ZZ99ZZZ not found","error_code":"HTTP_404","timestamp":"2026-10-16T09:00:00Z"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestClientLookup(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/v1/vehicle/vrm/AB12 CDE": `{"vehicle_id":1,"search_term":"AB12CDE","search_type":"vrm"}`,
	})

	out, err := ts.client().lookup(ctx, "vrm", "AB12 CDE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["search_term"] != "AB12CDE" {
		t.Errorf("search_term = %v, want AB12CDE", out["search_term"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Path != "/api/v1/vehicle/vrm/AB12%20CDE" {
		t.Errorf("path = %q, want escaped VRM", r.Path)
	}
	if r.Accept != "application/json" {
		t.Errorf("accept = %q, want application/json", r.Accept)
	}
}

func TestClientLookup_NotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	_, err := ts.client().lookup(ctx, "vrm", "ZZ99ZZZ")
	if !isStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 serverError, got %v", err)
	}

	var se *serverError
	if !errors.As(err, &se) {
		t.Fatalf("expected *serverError, got %T", err)
	}
	if se.Detail != "Vehicle with VRM ZZ99ZZZ not found" {
		t.Errorf("detail = %q", se.Detail)
	}
}

func TestClientSearch(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/v1/vehicle/search": `{"query":"ford focus","count":1,"results":[{"id":3,"vrm":"AB12CDE","make":"Ford","model":"Focus","year":2019}]}`,
	})

	res, err := ts.client().search(ctx, "ford focus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Count != 1 || res.Results[0].ID != 3 || *res.Results[0].Year != 2019 {
		t.Errorf("unexpected result: %+v", res)
	}
	if got := ts.requests[0].Path; got != "/api/v1/vehicle/search?q=ford+focus" {
		t.Errorf("path = %q", got)
	}
}

func TestClientRefresh(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/v1/vehicle/7/refresh-insights": `{"message":"Vehicle insights cache cleared successfully","vehicle_id":7,"vrm":"AB12CDE","next_request_will_regenerate":true}`,
	})

	res, err := ts.client().refresh(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.VehicleID != 7 || res.VRM != "AB12CDE" {
		t.Errorf("unexpected result: %+v", res)
	}
	if got := ts.requests[0].Path; got != "/api/v1/vehicle/7/refresh-insights" {
		t.Errorf("path = %q", got)
	}
}

func TestDecodeJSON_PlainTextError(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusBadGateway)
	rec.WriteString("upstream down\n")

	err := decodeJSON(rec.Result(), &struct{}{})
	var se *serverError
	if !errors.As(err, &se) {
		t.Fatalf("expected *serverError, got %v", err)
	}
	if se.Status != http.StatusBadGateway || se.Detail != "upstream down" {
		t.Errorf("unexpected error: %+v", se)
	}
}

func TestSeed(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	input := `[
  {"basic": {"id": 99, "vin": "WF0AXXGCDA1234567", "vrm": "AB12CDE", "make": "Ford", "model": "Focus", "year": 2019},
   "history": [{"event_date": "2023-05-02", "event_type": "mot", "pass_fail": "pass", "mileage": 41000}]},
  {"basic": {"vin": "SALGA2BE8LA123456", "vrm": "XY70ABC", "make": "Land Rover", "model": "Range Rover"}},
  {"basic": {"vrm": "ab12 cde", "make": "Ford"}}
]`
	res, err := seed(ctx, store, strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.inserted != 2 || res.skipped != 1 {
		t.Errorf("seed result = %+v, want 2 inserted, 1 skipped", res)
	}

	agg, err := store.LoadByVRM(ctx, "AB12CDE")
	if err != nil {
		t.Fatalf("loading seeded vehicle: %v", err)
	}
	if agg.Basic.ID == 99 {
		t.Error("seed must not keep ids from the file")
	}
	if len(agg.History) != 1 {
		t.Errorf("history = %d events, want 1", len(agg.History))
	}
}

func TestSeed_BadJSON(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if _, err := seed(ctx, store, strings.NewReader(`{"basic": {}}`)); err == nil {
		t.Fatal("expected error for a non-array document")
	}
}

func TestMigrationsLabel(t *testing.T) {
	if got := migrationsLabel(nil); got != "none applied" {
		t.Errorf("got %q", got)
	}
	if got := migrationsLabel([]int64{1, 2}); got != "2 applied (1, 2)" {
		t.Errorf("got %q", got)
	}
}

func TestLookupCommand_RejectsBadVIN(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"lookup", "--vin", "SHORT"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "VIN must be exactly 17 characters") {
		t.Fatalf("expected VIN validation error, got %v", err)
	}
}

func TestRefreshCommand_RejectsNonNumericID(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"refresh", "abc"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "must be an integer") {
		t.Fatalf("expected id error, got %v", err)
	}
}

func TestSeedCommand_RequiresFile(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"seed"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--file is required") {
		t.Fatalf("expected --file error, got %v", err)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, map[string]int{"count": 2}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\n  \"count\": 2\n}\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorRed, "test"); result != "test" {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorRed, "test"); !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
