// Package narrative turns a vehicle aggregate into the structured insight
// artifact shown to owners, using an LLM when one is reachable and a
// deterministic template when it is not.
package narrative

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NotAvailable is the placeholder for sections the model could not fill.
const NotAvailable = "N/A"

// FallbackModelVersion marks artifacts built from the template.
const FallbackModelVersion = "fallback"

// Error kinds attached to error artifacts.
const (
	KindGeneratorUnavailable = "generator_unavailable"
	KindParsingError         = "parsing_error"
)

// Artifact is the insight document returned as ai_insights. Field names are
// a client contract.
type Artifact struct {
	Summary               string          `json:"summary"`
	KeyInsights           StringList      `json:"key_insights"`
	OwnerAdvice           string          `json:"owner_advice"`
	ReliabilityAssessment Reliability     `json:"reliability_assessment"`
	ValueAssessment       ValueAssessment `json:"value_assessment"`
	AttentionItems        StringList      `json:"attention_items"`
	CostInsights          CostInsights    `json:"cost_insights"`
	TechnicalHighlights   StringList      `json:"technical_highlights"`
	GeneratedAt           time.Time       `json:"generated_at"`
	ModelVersion          string          `json:"model_version"`
	Cached                bool            `json:"cached"`
	Error                 bool            `json:"error"`
	ErrorKind             string          `json:"error_kind,omitempty"`
}

type Reliability struct {
	Score       Score  `json:"score"`
	Explanation string `json:"explanation"`
}

type ValueAssessment struct {
	CurrentMarketPosition string `json:"current_market_position"`
	FactorsAffectingValue Text   `json:"factors_affecting_value"`
}

type CostInsights struct {
	TypicalMaintenance string `json:"typical_maintenance"`
	InsuranceNotes     string `json:"insurance_notes"`
	FuelEfficiency     string `json:"fuel_efficiency"`
}

// Score is a 1-10 reliability rating, or "N/A" when no rating was given.
type Score struct {
	Value int
	Valid bool
}

// ScoreOf returns a valid score.
func ScoreOf(v int) Score { return Score{Value: v, Valid: true} }

// Numeric returns the score and whether it is a number.
func (s Score) Numeric() (int, bool) { return s.Value, s.Valid }

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON accepts numbers, numeric strings such as "7" or "7/10", and
// anything else as N/A. It never fails on well-formed JSON.
func (s *Score) UnmarshalJSON(data []byte) error {
	*s = Score{}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*s = ScoreOf(int(math.Round(x)))
	case string:
		head, _, _ := strings.Cut(strings.TrimSpace(x), "/")
		if f, err := strconv.ParseFloat(strings.TrimSpace(head), 64); err == nil {
			*s = ScoreOf(int(math.Round(f)))
		}
	}
	return nil
}

// StringList decodes from either a JSON array or a single string, and always
// encodes as an array.
type StringList []string

func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = StringList{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = StringList{}
		} else {
			*l = StringList{s}
		}
		return nil
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("expected string or array: %w", err)
	}
	out := make(StringList, 0, len(items))
	for _, it := range items {
		if str := stringify(it); str != "" {
			out = append(out, str)
		}
	}
	*l = out
	return nil
}

// Text decodes from a string or an array of strings, which it joins.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var l StringList
	if err := l.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Text(strings.Join(l, "; "))
	return nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// fillPlaceholders makes sure no section is empty or missing on the wire.
func (a *Artifact) fillPlaceholders() {
	if a.KeyInsights == nil {
		a.KeyInsights = StringList{}
	}
	if a.AttentionItems == nil {
		a.AttentionItems = StringList{}
	}
	if a.TechnicalHighlights == nil {
		a.TechnicalHighlights = StringList{}
	}
	orNA := func(s *string) {
		if strings.TrimSpace(*s) == "" {
			*s = NotAvailable
		}
	}
	orNA(&a.OwnerAdvice)
	orNA(&a.ReliabilityAssessment.Explanation)
	orNA(&a.ValueAssessment.CurrentMarketPosition)
	if strings.TrimSpace(string(a.ValueAssessment.FactorsAffectingValue)) == "" {
		a.ValueAssessment.FactorsAffectingValue = NotAvailable
	}
	orNA(&a.CostInsights.TypicalMaintenance)
	orNA(&a.CostInsights.InsuranceNotes)
	orNA(&a.CostInsights.FuelEfficiency)
}
