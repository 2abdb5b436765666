package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func withoutColor(t *testing.T) {
	t.Helper()
	old := noColor
	noColor = true
	t.Cleanup(func() { noColor = old })
}

func TestStatusTable_AlignsValues(t *testing.T) {
	withoutColor(t)

	var tbl statusTable
	tbl.add("LLM", "%s (%s)", "ollama", "llama3.1")
	tbl.add("Cached insights", "%d", 4)

	var buf bytes.Buffer
	tbl.write(&buf)

	want := "  LLM:              ollama (llama3.1)\n" +
		"  Cached insights:  4\n"
	if buf.String() != want {
		t.Errorf("got:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestWriteSearchResults(t *testing.T) {
	withoutColor(t)

	var res searchResponse
	body := `{"query":"focus","count":1,"results":[{"id":3,"vrm":"AB12CDE","vin":"WF0AXXGCDA1234567","make":"Ford","model":"Focus"}]}`
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	writeSearchResults(&buf, &res)
	out := buf.String()
	if !strings.Contains(out, "#3  AB12CDE  WF0AXXGCDA1234567 ---- Ford Focus") {
		t.Errorf("unexpected row: %q", out)
	}
	if !strings.Contains(out, `1 of at most 10 matches for "focus"`) {
		t.Errorf("missing footer: %q", out)
	}
}

func TestWriteSearchResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	writeSearchResults(&buf, &searchResponse{Query: "zzz"})
	if buf.String() != "No vehicles match \"zzz\".\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteLookupSummary(t *testing.T) {
	withoutColor(t)

	tests := []struct {
		name string
		ai   string
		want string
	}{
		{"generated", `{"cached":false,"error":false,"model_version":"ollama:llama3.1"}`, "generated, ollama:llama3.1"},
		{"cached", `{"cached":true,"error":false,"model_version":"ollama:llama3.1"}`, "cached, ollama:llama3.1"},
		{"fallback", `{"cached":false,"error":true,"error_kind":"generator_unavailable","model_version":"fallback"}`, "degraded (generator_unavailable)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload map[string]any
			body := `{"detailed_data":{"basic":{"vrm":"AB12CDE","vin":"WF0AXXGCDA1234567","make":"Ford","model":"Focus","year":2019}},"ai_insights":` + tt.ai + `}`
			if err := json.Unmarshal([]byte(body), &payload); err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			writeLookupSummary(&buf, payload)
			out := buf.String()
			if !strings.HasPrefix(out, "AB12CDE  2019 Ford Focus\n") {
				t.Errorf("unexpected header: %q", out)
			}
			if !strings.Contains(out, "WF0AXXGCDA1234567") {
				t.Errorf("missing VIN: %q", out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("insights line: got %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestNotices(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	old := stderr
	stderr = &buf
	defer func() { stderr = old }()

	printSuccess("Seeded %d vehicles", 3)
	printWarning("skipping entry %d", 2)
	printError("config error")

	want := "✓ Seeded 3 vehicles\n⚠ skipping entry 2\n✗ config error\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
