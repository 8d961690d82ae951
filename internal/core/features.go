package core

import (
	"sort"
)

// Feature names
const (
	FeatureEthBalance                 = "eth_balance"
	FeatureTokenCount                 = "token_count"
	FeatureHasUSDT                    = "has_usdt"
	FeatureHasUSDC                    = "has_usdc"
	FeatureTotalTokenValueUSD         = "total_token_value_usd"
	FeatureTransactionCount           = "transaction_count"
	FeatureUniqueInteractionAddresses = "unique_interaction_addresses"
	FeatureAvgTransactionValue        = "avg_transaction_value"
	FeatureMaxTransactionValue        = "max_transaction_value"
	FeatureDaysSinceFirstTx           = "days_since_first_tx"
	FeatureDaysSinceLastTx            = "days_since_last_tx"
	FeatureOutgoingTxRatio            = "outgoing_tx_ratio"
	FeatureContractInteractionCount   = "contract_interaction_count"
	FeatureDefiInteractionCount       = "defi_interaction_count"
	FeatureHighRiskInteractionCount   = "high_risk_interaction_count"
)

// ScoringFeatures returns the classifier input columns in model order
func ScoringFeatures() []string {
	return []string{
		FeatureEthBalance,
		FeatureTokenCount,
		FeatureHasUSDT,
		FeatureHasUSDC,
		FeatureTotalTokenValueUSD,
		FeatureTransactionCount,
		FeatureUniqueInteractionAddresses,
		FeatureAvgTransactionValue,
		FeatureMaxTransactionValue,
		FeatureDaysSinceFirstTx,
		FeatureDaysSinceLastTx,
		FeatureOutgoingTxRatio,
		FeatureContractInteractionCount,
		FeatureDefiInteractionCount,
		FeatureHighRiskInteractionCount,
	}
}

// ClusteringFeatures returns the clusterer input columns in model order
func ClusteringFeatures() []string {
	return []string{
		FeatureEthBalance,
		FeatureTokenCount,
		FeatureTotalTokenValueUSD,
		FeatureTransactionCount,
		FeatureUniqueInteractionAddresses,
		FeatureAvgTransactionValue,
		FeatureDaysSinceFirstTx,
		FeatureOutgoingTxRatio,
		FeatureContractInteractionCount,
		FeatureDefiInteractionCount,
	}
}

// FeatureVector maps feature names to values. Models read it through an
// explicit column list, so map iteration order never matters.
type FeatureVector map[string]float64

// Missing returns the columns absent from the vector, in column order
func (f FeatureVector) Missing(columns []string) []string {
	var missing []string
	for _, col := range columns {
		if _, ok := f[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Row projects the vector onto columns. It never default-fills.
func (f FeatureVector) Row(columns []string) ([]float64, error) {
	if missing := f.Missing(columns); len(missing) > 0 {
		return nil, &MissingFeaturesError{Missing: missing}
	}
	row := make([]float64, len(columns))
	for i, col := range columns {
		row[i] = f[col]
	}
	return row, nil
}

// Clone returns an independent copy
func (f FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Names returns the feature names sorted alphabetically
func (f FeatureVector) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// TableRow is one labeled training example
type TableRow struct {
	Address  string
	Features FeatureVector
	Label    *int
}

// Table is an ordered training table
type Table struct {
	Rows []TableRow
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Matrix projects every row onto columns
func (t *Table) Matrix(columns []string) ([][]float64, error) {
	out := make([][]float64, 0, t.Len())
	for _, row := range t.Rows {
		values, err := row.Features.Row(columns)
		if err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, nil
}
