package features

import (
	"context"

	"github.com/mikey/chain-risk/internal/core"
)

// PlaceholderBehavior returns fixed behavioral features for every address.
// It stands in until a transaction-history indexer is available.
type PlaceholderBehavior struct{}

// NewPlaceholderBehavior creates a new placeholder behavior source
func NewPlaceholderBehavior() *PlaceholderBehavior {
	return &PlaceholderBehavior{}
}

// Behavior returns the placeholder defaults
func (PlaceholderBehavior) Behavior(ctx context.Context, address string) (core.FeatureVector, error) {
	return DefaultBehavior(), nil
}

// DefaultBehavior returns the placeholder behavioral feature values
func DefaultBehavior() core.FeatureVector {
	return core.FeatureVector{
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
