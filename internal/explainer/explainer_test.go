package explainer

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseline mirrors the placeholder behavior defaults with empty holdings.
func baseline() core.FeatureVector {
	return core.FeatureVector{
		core.FeatureEthBalance:                 0,
		core.FeatureTokenCount:                 0,
		core.FeatureHasUSDT:                    0,
		core.FeatureHasUSDC:                    0,
		core.FeatureTotalTokenValueUSD:         0,
		core.FeatureTransactionCount:           10,
		core.FeatureUniqueInteractionAddresses: 5,
		core.FeatureAvgTransactionValue:        0.5,
		core.FeatureMaxTransactionValue:        2.0,
		core.FeatureDaysSinceFirstTx:           100,
		core.FeatureDaysSinceLastTx:            5,
		core.FeatureOutgoingTxRatio:            0.6,
		core.FeatureContractInteractionCount:   3,
		core.FeatureDefiInteractionCount:       2,
		core.FeatureHighRiskInteractionCount:   0,
	}
}

func newExplainer(t *testing.T) *Explainer {
	t.Helper()
	e, err := New(nil)
	require.NoError(t, err)
	return e
}

func TestClassifyLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  core.RiskLevel
	}{
		{0, core.RiskLevelLow},
		{29.999, core.RiskLevelLow},
		{30, core.RiskLevelMedium},
		{59.999, core.RiskLevelMedium},
		{60, core.RiskLevelHigh},
		{79.9, core.RiskLevelHigh},
		{80, core.RiskLevelCritical},
		{100, core.RiskLevelCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyLevel(tt.score), "score %v", tt.score)
	}
}

func TestExplainBaselineTriggersNothing(t *testing.T) {
	e := newExplainer(t)

	exp := e.Explain(baseline(), 12)

	assert.Equal(t, core.RiskLevelLow, exp.Level)
	assert.Empty(t, exp.Factors)
	assert.Empty(t, exp.AttentionPoints)
	assert.NotContains(t, exp.Summary, "Main risk factors")
}

func TestExplainAllZeroFlagsOnlyNewAddress(t *testing.T) {
	e := newExplainer(t)
	features := core.FeatureVector{}
	for _, name := range core.ScoringFeatures() {
		features[name] = 0
	}

	exp := e.Explain(features, 0)

	require.Len(t, exp.Factors, 1)
	assert.Equal(t, "new_address", exp.Factors[0].ID)
	assert.Empty(t, exp.AttentionPoints)
}

func TestExplainSuspiciousAddress(t *testing.T) {
	e := newExplainer(t)
	features := baseline()
	features[core.FeatureEthBalance] = 1000
	features[core.FeatureMaxTransactionValue] = 6.0
	features[core.FeatureOutgoingTxRatio] = 0.8
	features[core.FeatureHighRiskInteractionCount] = 1

	exp := e.Explain(features, 72)

	require.Len(t, exp.Factors, 3)
	ids := []string{exp.Factors[0].ID, exp.Factors[1].ID, exp.Factors[2].ID}
	assert.Equal(t, []string{"high_risk_interactions", "high_value_transfers", "high_outgoing_ratio"}, ids)
	assert.Equal(t, 20, exp.Factors[0].RiskContribution)
	assert.Equal(t, 1.0, exp.Factors[0].FeatureValue)
	assert.Equal(t, 0.0, exp.Factors[0].Threshold)

	assert.Equal(t, core.RiskLevelHigh, exp.Level)
	assert.Len(t, exp.AttentionPoints, 3)
	assert.Contains(t, exp.Factors[2].Explanation, "80%")
	assert.Contains(t, exp.Summary, " Main risk factors include: 1. ")
	assert.Contains(t, exp.Summary, " 3. ")
}

func TestFactorsSortedByWeight(t *testing.T) {
	e := newExplainer(t)
	features := baseline()
	features[core.FeatureDaysSinceFirstTx] = 3
	features[core.FeatureTokenCount] = 12
	features[core.FeatureHighRiskInteractionCount] = 4
	features[core.FeatureUniqueInteractionAddresses] = 40

	factors := e.Factors(features)

	require.Len(t, factors, 4)
	for i := 1; i < len(factors); i++ {
		assert.GreaterOrEqual(t, factors[i-1].RiskContribution, factors[i].RiskContribution)
	}
	// equal weights keep table order
	assert.Equal(t, "high_interaction_frequency", factors[1].ID)
	assert.Equal(t, "new_address", factors[2].ID)
	assert.Equal(t, "token_diversity", factors[3].ID)
}

func TestAttentionPointsAreHeavyFactors(t *testing.T) {
	e := newExplainer(t)
	features := baseline()
	features[core.FeatureDaysSinceFirstTx] = 3
	features[core.FeatureMaxTransactionValue] = 9

	exp := e.Explain(features, 40)

	require.Len(t, exp.Factors, 2)
	require.Len(t, exp.AttentionPoints, 1)
	assert.Equal(t, exp.Factors[0].Explanation, exp.AttentionPoints[0])
}

func TestSummaryListsAtMostThreeFactors(t *testing.T) {
	e := newExplainer(t)
	features := baseline()
	features[core.FeatureDaysSinceFirstTx] = 3
	features[core.FeatureTokenCount] = 12
	features[core.FeatureHighRiskInteractionCount] = 4
	features[core.FeatureUniqueInteractionAddresses] = 40
	features[core.FeatureOutgoingTxRatio] = 0.9

	exp := e.Explain(features, 90)

	assert.Len(t, exp.Factors, 5)
	assert.Contains(t, exp.Summary, "3. ")
	assert.NotContains(t, exp.Summary, "4. ")
	assert.True(t, strings.HasPrefix(exp.Summary, LevelFor(90).Explanation))
}

func TestAbsentFeatureDoesNotTrigger(t *testing.T) {
	e := newExplainer(t)

	factors := e.Factors(core.FeatureVector{core.FeatureOutgoingTxRatio: 0.99})

	require.Len(t, factors, 1)
	assert.Equal(t, "high_outgoing_ratio", factors[0].ID)
}

func TestExplainIsDeterministic(t *testing.T) {
	e := newExplainer(t)
	features := baseline()
	features[core.FeatureHighRiskInteractionCount] = 2

	assert.Equal(t, e.Explain(features, 55), e.Explain(features, 55))
}

func TestCustomRules(t *testing.T) {
	e, err := New([]Rule{{
		ID:         "dust",
		Name:       "Dust balance",
		Feature:    core.FeatureEthBalance,
		Threshold:  0,
		Comparison: Equal,
		Weight:     1,
		Template:   "Balance is {value} ETH.",
	}})
	require.NoError(t, err)

	factors := e.Factors(core.FeatureVector{core.FeatureEthBalance: 0})
	require.Len(t, factors, 1)
	assert.Equal(t, "Balance is 0 ETH.", factors[0].Explanation)
}

func TestNewRejectsInvalidRules(t *testing.T) {
	_, err := New([]Rule{{ID: "x", Feature: "f", Comparison: "between", Template: "{value}"}})
	assert.Error(t, err)

	_, err = New([]Rule{{ID: "x", Feature: "f", Template: "no slot"}})
	assert.Error(t, err)

	_, err = New([]Rule{
		{ID: "x", Feature: "f", Template: "{value}"},
		{ID: "x", Feature: "g", Template: "{value}"},
	})
	assert.Error(t, err)
}

func TestExplainOrderingHoldsForRandomFeatures(t *testing.T) {
	e := newExplainer(t)
	rng := rand.New(rand.NewSource(17))
	scales := []float64{0, 1, 10, 100, 5000}

	for i := 0; i < 2000; i++ {
		features := core.FeatureVector{}
		for _, name := range core.ScoringFeatures() {
			features[name] = rng.Float64() * scales[rng.Intn(len(scales))]
		}
		score := rng.Float64() * 100

		exp := e.Explain(features, score)

		for j := 1; j < len(exp.Factors); j++ {
			require.GreaterOrEqual(t, exp.Factors[j-1].RiskContribution, exp.Factors[j].RiskContribution,
				"factors out of order for %v", features)
		}

		var want []string
		for _, f := range exp.Factors {
			if f.RiskContribution >= 10 {
				want = append(want, f.Explanation)
			}
		}
		require.Len(t, exp.AttentionPoints, len(want))
		for j := range want {
			require.Equal(t, want[j], exp.AttentionPoints[j])
		}
		require.Equal(t, ClassifyLevel(score), exp.Level)
	}
}
