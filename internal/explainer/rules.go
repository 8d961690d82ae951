package explainer

import (
	"fmt"
	"strings"

	"github.com/mikey/chain-risk/internal/core"
)

// Comparison is the operator a rule applies between a feature and its threshold
type Comparison string

const (
	Greater Comparison = "greater"
	Less    Comparison = "less"
	Equal   Comparison = "equal"
)

// ValueFormat controls how the observed value is rendered into a template
type ValueFormat string

const (
	FormatNumber  ValueFormat = "number"
	FormatPercent ValueFormat = "percent"
)

const valuePlaceholder = "{value}"

// Rule is one declarative risk rule
type Rule struct {
	ID          string
	Name        string
	Description string
	Feature     string
	Threshold   float64
	Comparison  Comparison
	Weight      int
	Template    string
	Format      ValueFormat
}

// Matches reports whether value triggers the rule
func (r Rule) Matches(value float64) bool {
	switch r.Comparison {
	case Less:
		return value < r.Threshold
	case Equal:
		return value == r.Threshold
	default:
		return value > r.Threshold
	}
}

// Validate checks that the rule can be evaluated and rendered
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Feature == "" {
		return fmt.Errorf("rule %s: feature is required", r.ID)
	}
	switch r.Comparison {
	case "", Greater, Less, Equal:
	default:
		return fmt.Errorf("rule %s: unsupported comparison %q", r.ID, r.Comparison)
	}
	switch r.Format {
	case "", FormatNumber, FormatPercent:
	default:
		return fmt.Errorf("rule %s: unsupported value format %q", r.ID, r.Format)
	}
	if strings.Count(r.Template, valuePlaceholder) != 1 {
		return fmt.Errorf("rule %s: template must contain exactly one %s slot", r.ID, valuePlaceholder)
	}
	return nil
}

// DefaultRules returns the built-in rule table
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "high_value_transfers",
			Name:        "Large transfers",
			Description: "Moves unusually large amounts in single transactions",
			Feature:     core.FeatureMaxTransactionValue,
			Threshold:   5.0,
			Comparison:  Greater,
			Weight:      10,
			Template:    "This address makes large transfers; its largest single transaction was {value} ETH.",
			Format:      FormatNumber,
		},
		{
			ID:          "high_interaction_frequency",
			Name:        "High interaction frequency",
			Description: "Interacts with a large number of distinct addresses",
			Feature:     core.FeatureUniqueInteractionAddresses,
			Threshold:   10,
			Comparison:  Greater,
			Weight:      5,
			Template:    "This address has interacted with {value} distinct addresses and may be acting as a relay.",
			Format:      FormatNumber,
		},
		{
			ID:          "new_address",
			Name:        "New address",
			Description: "First activity is recent",
			Feature:     core.FeatureDaysSinceFirstTx,
			Threshold:   30,
			Comparison:  Less,
			Weight:      5,
			Template:    "This address first became active only {value} days ago.",
			Format:      FormatNumber,
		},
		{
			ID:          "high_outgoing_ratio",
			Name:        "High outgoing ratio",
			Description: "Most transactions move funds out",
			Feature:     core.FeatureOutgoingTxRatio,
			Threshold:   0.75,
			Comparison:  Greater,
			Weight:      10,
			Template:    "Outgoing transactions make up {value} of this address's activity, a sign of fast fund outflow.",
			Format:      FormatPercent,
		},
		{
			ID:          "high_risk_interactions",
			Name:        "High-risk interactions",
			Description: "Has transacted with known high-risk addresses",
			Feature:     core.FeatureHighRiskInteractionCount,
			Threshold:   0,
			Comparison:  Greater,
			Weight:      20,
			Template:    "This address has interacted with {value} known high-risk addresses.",
			Format:      FormatNumber,
		},
		{
			ID:          "token_diversity",
			Name:        "Token diversity",
			Description: "Holds an unusually wide range of tokens",
			Feature:     core.FeatureTokenCount,
			Threshold:   10,
			Comparison:  Greater,
			Weight:      5,
			Template:    "This address holds {value} different tokens.",
			Format:      FormatNumber,
		},
	}
}

// LevelInfo describes one risk level bucket
type LevelInfo struct {
	Level       core.RiskLevel
	Threshold   float64
	Description string
	Explanation string
}

// levels is ordered by ascending upper bound; critical has no upper bound.
var levels = []LevelInfo{
	{
		Level:       core.RiskLevelLow,
		Threshold:   30,
		Description: "Low risk",
		Explanation: "This address shows low risk with no obviously suspicious behavior.",
	},
	{
		Level:       core.RiskLevelMedium,
		Threshold:   60,
		Description: "Medium risk",
		Explanation: "This address shows medium risk; some of its behavior warrants attention.",
	},
	{
		Level:       core.RiskLevelHigh,
		Threshold:   80,
		Description: "High risk",
		Explanation: "This address shows high risk with several suspicious behavior patterns.",
	},
	{
		Level:       core.RiskLevelCritical,
		Threshold:   100,
		Description: "Critical risk",
		Explanation: "This address shows critical risk; interacting with it is strongly discouraged.",
	},
}

// LevelFor returns the level bucket for score
func LevelFor(score float64) LevelInfo {
	for _, l := range levels[:len(levels)-1] {
		if score < l.Threshold {
			return l
		}
	}
	return levels[len(levels)-1]
}

// ClassifyLevel maps a 0-100 score to its risk level
func ClassifyLevel(score float64) core.RiskLevel {
	return LevelFor(score).Level
}
