package insights

import (
	"strings"
	"time"
	"unicode"

	"github.com/kalambet/vinsight/internal/narrative"
	"github.com/kalambet/vinsight/internal/vehicle"
)

const (
	dueSoonDays       = 30
	financeEndingDays = 60
	lowReliability    = 3
)

// Flags are the derived booleans stored next to an artifact.
type Flags struct {
	HasIssues      bool `json:"has_issues"`
	NeedsAttention bool `json:"needs_attention"`
}

// Attention-item vocabulary, matched against whole words. A trailing '*'
// matches any word with that prefix: "expir*" matches "expires".
var (
	issueWords   = []string{"safety", "critical*", "stolen"}
	issuePhrases = []string{"outstanding finance"}

	attentionWords = []string{"due", "overdue", "expir*", "recall*", "financ*", "mot", "tax*"}
)

// DeriveFlags computes has_issues and needs_attention. Structured data
// decides first; the artifact's attention items and reliability score only
// add signals.
func DeriveFlags(agg *vehicle.Aggregate, a narrative.Artifact, now time.Time) Flags {
	return Flags{
		HasIssues:      hasIssues(agg, a),
		NeedsAttention: needsAttention(agg, a, now),
	}
}

func hasIssues(agg *vehicle.Aggregate, a narrative.Artifact) bool {
	for _, h := range agg.History {
		if h.Failed() {
			return true
		}
	}
	for _, r := range agg.Recalls {
		if r.RecallStatus.Unresolved() {
			return true
		}
	}
	for _, t := range agg.TheftRecords {
		if t.CurrentStatus == vehicle.TheftStolen {
			return true
		}
	}
	for _, c := range agg.InsuranceClaims {
		if c.TotalLoss {
			return true
		}
	}
	for _, f := range agg.FinanceRecords {
		if f.OutstandingFinance {
			return true
		}
	}

	for _, item := range a.AttentionItems {
		if mentions(item, issueWords) || containsPhrase(item, issuePhrases) {
			return true
		}
	}
	if score, ok := a.ReliabilityAssessment.Score.Numeric(); ok && score <= lowReliability {
		return true
	}
	return false
}

func needsAttention(agg *vehicle.Aggregate, a narrative.Artifact, now time.Time) bool {
	for _, d := range []*vehicle.Date{agg.Basic.MOTExpiryDate, agg.Basic.TaxDueDate} {
		if d != nil && d.DaysUntil(now) <= dueSoonDays {
			return true
		}
	}
	for _, f := range agg.FinanceRecords {
		if f.OutstandingFinance {
			return true
		}
		if f.EndDate != nil {
			if days := f.EndDate.DaysUntil(now); days >= 0 && days <= financeEndingDays {
				return true
			}
		}
	}

	for _, item := range a.AttentionItems {
		if mentions(item, attentionWords) {
			return true
		}
	}
	return false
}

// mentions reports whether any word of s matches one of words, ignoring case.
func mentions(s string, words []string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		for _, w := range words {
			if stem, ok := strings.CutSuffix(w, "*"); ok {
				if strings.HasPrefix(tok, stem) {
					return true
				}
			} else if tok == w {
				return true
			}
		}
	}
	return false
}

func containsPhrase(s string, phrases []string) bool {
	s = strings.ToLower(s)
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
