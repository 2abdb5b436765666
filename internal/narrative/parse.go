package narrative

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient covers transport failures, non-2xx responses, timeouts
	// and empty completions.
	ErrTransient = errors.New("narrative generator unavailable")

	// ErrMalformedOutput is returned when the completion is not a JSON
	// object in the artifact shape.
	ErrMalformedOutput = errors.New("malformed generator output")
)

// Parse decodes a model completion into an Artifact. Code fences are stripped
// first; if the remainder is not JSON, the outermost {...} span is tried.
func Parse(raw string) (Artifact, error) {
	body := stripFences(raw)
	if body == "" {
		return Artifact{}, fmt.Errorf("%w: empty body", ErrMalformedOutput)
	}

	a, err := decode(body)
	if err != nil {
		obj, ok := extractObject(body)
		if !ok {
			return Artifact{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		if a, err = decode(obj); err != nil {
			return Artifact{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	}
	if strings.TrimSpace(a.Summary) == "" {
		return Artifact{}, fmt.Errorf("%w: summary is missing", ErrMalformedOutput)
	}

	a.fillPlaceholders()
	return a, nil
}

// metadataKeys are stamped by the generator and ignored when the model
// returns them.
var metadataKeys = []string{"generated_at", "model_version", "cached", "error", "error_kind"}

func decode(s string) (Artifact, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return Artifact{}, err
	}
	for _, k := range metadataKeys {
		delete(fields, k)
	}
	clean, err := json.Marshal(fields)
	if err != nil {
		return Artifact{}, err
	}
	var a Artifact
	if err := json.Unmarshal(clean, &a); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

// stripFences removes a surrounding ``` or ```json fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string ("json", "JSON", ...).
		if !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// Degraded wraps unparsable model output so it can still be shown.
func Degraded(raw string) Artifact {
	a := Artifact{
		Summary: strings.TrimSpace(raw),
		ReliabilityAssessment: Reliability{
			Explanation: "The generated analysis could not be read in a structured form.",
		},
		Error:     true,
		ErrorKind: KindParsingError,
	}
	a.fillPlaceholders()
	return a
}
