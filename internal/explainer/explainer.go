// Package explainer turns a risk score and its feature vector into a
// deterministic, human-readable explanation driven by a declarative rule table.
package explainer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mikey/chain-risk/internal/core"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// attentionWeight is the minimum rule weight that makes a factor an attention point
	attentionWeight = 10
	// summaryFactors is how many factors the composite text lists
	summaryFactors = 3
)

// Explainer evaluates a rule table against feature vectors. It holds no
// mutable state and is safe for concurrent use.
type Explainer struct {
	rules   []Rule
	printer *message.Printer
}

// New creates an explainer over rules. An empty table selects DefaultRules.
func New(rules []Rule) (*Explainer, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	seen := make(map[string]bool, len(rules))
	table := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid risk rule: %w", err)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate risk rule id: %s", r.ID)
		}
		seen[r.ID] = true
		if r.Comparison == "" {
			r.Comparison = Greater
		}
		if r.Format == "" {
			r.Format = FormatNumber
		}
		table = append(table, r)
	}

	return &Explainer{
		rules:   table,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Rules returns a copy of the active rule table
func (e *Explainer) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Factors evaluates every rule and returns the triggered ones sorted by
// weight, highest first. Ties keep table order. Absent features never trigger.
func (e *Explainer) Factors(features core.FeatureVector) []core.RiskFactor {
	factors := make([]core.RiskFactor, 0, len(e.rules))
	for _, r := range e.rules {
		value, ok := features[r.Feature]
		if !ok || !r.Matches(value) {
			continue
		}
		factors = append(factors, core.RiskFactor{
			ID:               r.ID,
			Name:             r.Name,
			Description:      r.Description,
			FeatureValue:     value,
			Threshold:        r.Threshold,
			RiskContribution: r.Weight,
			Explanation:      e.render(r, value),
		})
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].RiskContribution > factors[j].RiskContribution
	})
	return factors
}

// Explain builds the full explanation for score
func (e *Explainer) Explain(features core.FeatureVector, score float64) *core.Explanation {
	level := LevelFor(score)
	factors := e.Factors(features)

	summary := level.Explanation
	if len(factors) > 0 {
		top := factors[:min(summaryFactors, len(factors))]
		parts := make([]string, len(top))
		for i, f := range top {
			parts[i] = fmt.Sprintf("%d. %s", i+1, f.Explanation)
		}
		summary += " Main risk factors include: " + strings.Join(parts, " ")
	}

	attention := make([]string, 0, len(factors))
	for _, f := range factors {
		if f.RiskContribution >= attentionWeight {
			attention = append(attention, f.Explanation)
		}
	}

	return &core.Explanation{
		Level:            level.Level,
		LevelDescription: level.Description,
		Summary:          summary,
		Factors:          factors,
		AttentionPoints:  attention,
	}
}

func (e *Explainer) render(r Rule, value float64) string {
	return strings.Replace(r.Template, valuePlaceholder, e.formatValue(r.Format, value), 1)
}

func (e *Explainer) formatValue(format ValueFormat, value float64) string {
	if format == FormatPercent {
		return e.printer.Sprintf("%.0f%%", value*100)
	}
	if value == math.Trunc(value) && math.Abs(value) < 1e15 {
		return e.printer.Sprintf("%d", int64(value))
	}
	return e.printer.Sprintf("%.2f", value)
}
