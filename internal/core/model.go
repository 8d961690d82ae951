package core

import (
	"time"
)

// RiskLevel is the coarse bucket a risk score falls into
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// Rank orders levels from low (0) to critical (3). Unknown levels rank -1.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLevelLow:
		return 0
	case RiskLevelMedium:
		return 1
	case RiskLevelHigh:
		return 2
	case RiskLevelCritical:
		return 3
	default:
		return -1
	}
}

// AnalysisKind identifies which product of the pipeline a request asks for
type AnalysisKind string

const (
	KindScore     AnalysisKind = "score"
	KindProfile   AnalysisKind = "profile"
	KindFull      AnalysisKind = "full"
	KindNarrative AnalysisKind = "narrative"
)

// TokenBalance is a single token holding as reported upstream.
// Balance is the raw integer amount in the token's smallest unit.
type TokenBalance struct {
	Contract string `json:"contract"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Decimals int32  `json:"decimals"`
	Balance  string `json:"balance"`
}

// AddressHoldings is the balance snapshot of one address
type AddressHoldings struct {
	Address    string         `json:"address"`
	EthBalance float64        `json:"eth_balance"`
	Tokens     []TokenBalance `json:"tokens"`
}

// FeatureImportance is the relative weight of one input column in the classifier
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// RiskFactor is a triggered explainer rule
type RiskFactor struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	FeatureValue     float64 `json:"feature_value"`
	Threshold        float64 `json:"threshold"`
	RiskContribution int     `json:"risk_contribution"`
	Explanation      string  `json:"explanation"`
}

// Explanation is the human-readable account of a score
type Explanation struct {
	Level            RiskLevel
	LevelDescription string
	Summary          string
	Factors          []RiskFactor
	AttentionPoints  []string
}

// ClusterResult is the behavioral segment assigned to an address
type ClusterResult struct {
	Cluster           int       `json:"cluster"`
	Name              string    `json:"cluster_name"`
	Description       string    `json:"cluster_description"`
	CentroidDistances []float64 `json:"centroid_distances"`
}

// RiskReport is the scoring product for one address
type RiskReport struct {
	ID                string              `json:"analysis_id"`
	Kind              AnalysisKind        `json:"kind"`
	Address           string              `json:"address"`
	RiskScore         float64             `json:"risk_score"`
	RiskLevel         RiskLevel           `json:"risk_level"`
	RiskDescription   string              `json:"risk_description"`
	RiskExplanation   string              `json:"risk_explanation"`
	RiskFactors       []RiskFactor        `json:"risk_factors"`
	AttentionPoints   []string            `json:"attention_points"`
	FeatureImportance []FeatureImportance `json:"feature_importance"`
	Features          FeatureVector       `json:"features"`
	AnalyzedAt        time.Time           `json:"analyzed_at"`
}

// ProfileReport is the clustering product for one address
type ProfileReport struct {
	ID                 string        `json:"analysis_id"`
	Kind               AnalysisKind  `json:"kind"`
	Address            string        `json:"address"`
	Cluster            int           `json:"cluster"`
	ClusterName        string        `json:"cluster_name"`
	ClusterDescription string        `json:"cluster_description"`
	CentroidDistances  []float64     `json:"centroid_distances"`
	Features           FeatureVector `json:"features"`
	AnalyzedAt         time.Time     `json:"analyzed_at"`
}

// Narrative is an LLM-written summary of a full analysis
type Narrative struct {
	Text        string    `json:"text"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// FullAnalysis combines scoring and profiling of one address.
// Either part may be nil when the analysis was published from a partial request.
type FullAnalysis struct {
	ID           string         `json:"analysis_id"`
	Kind         AnalysisKind   `json:"kind"`
	Address      string         `json:"address"`
	RiskAnalysis *RiskReport    `json:"risk_analysis"`
	UserProfile  *ProfileReport `json:"user_profile"`
	Narrative    *Narrative     `json:"narrative,omitempty"`
	AnalyzedAt   time.Time      `json:"analyzed_at"`
}

// CacheKey addresses a cached analysis product
type CacheKey struct {
	Component string
	Address   string
	Kind      AnalysisKind
}

// String renders the key as component:kind:address
func (k CacheKey) String() string {
	return k.Component + ":" + string(k.Kind) + ":" + k.Address
}

// CacheEntry is a serialized analysis product with its expiry
type CacheEntry struct {
	Key       CacheKey
	Payload   []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}
