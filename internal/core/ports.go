package core

import (
	"context"
)

// BalanceProvider fetches on-chain holdings for an address
type BalanceProvider interface {
	// GetAddressBalanceAndTokens returns the ETH balance and token holdings
	GetAddressBalanceAndTokens(ctx context.Context, address string) (*AddressHoldings, error)
}

// BehaviorSource supplies the transaction-history features of an address
type BehaviorSource interface {
	Behavior(ctx context.Context, address string) (FeatureVector, error)
}

// FeatureExtractor turns an address into a feature vector
type FeatureExtractor interface {
	Extract(ctx context.Context, address string) (FeatureVector, error)
}

// RiskScorer predicts a 0-100 risk score
type RiskScorer interface {
	Predict(features FeatureVector) (float64, []FeatureImportance, error)
}

// ClusterPredictor assigns an address to a behavioral cluster
type ClusterPredictor interface {
	Predict(features FeatureVector) (*ClusterResult, error)
}

// ModelSource hands out the currently loaded models.
// It returns ErrModelNotTrained for a model that is not available.
type ModelSource interface {
	RiskScorer() (RiskScorer, error)
	ClusterPredictor() (ClusterPredictor, error)
}

// RiskExplainer turns a score and its features into an explanation
type RiskExplainer interface {
	Explain(features FeatureVector, score float64) *Explanation
}

// Narrator writes a prose summary of a full analysis
type Narrator interface {
	Narrate(ctx context.Context, analysis *FullAnalysis) (*Narrative, error)
}

// ResultPublisher hands fresh analysis results to downstream consumers
type ResultPublisher interface {
	Publish(ctx context.Context, analysis *FullAnalysis) error
}

// CacheRepository defines the interface for caching analysis products
type CacheRepository interface {
	// Get retrieves an unexpired entry or returns ErrCacheMiss
	Get(ctx context.Context, key CacheKey) (*CacheEntry, error)

	// Set stores a cache entry, replacing any entry with the same key
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key CacheKey) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
