// Package testutil holds fixtures shared by model and service tests.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/mikey/chain-risk/internal/core"
)

// SyntheticTable returns n labeled rows where the label is 1 exactly when the
// address has interacted with a high-risk address. Other columns are noise
// drawn from two behavioral populations.
func SyntheticTable(n int, seed int64) *core.Table {
	rng := rand.New(rand.NewSource(seed))
	table := &core.Table{Rows: make([]core.TableRow, 0, n)}

	for i := 0; i < n; i++ {
		label := i % 2
		f := RandomFeatures(rng, i%4 >= 2)
		if label == 1 {
			f[core.FeatureHighRiskInteractionCount] = float64(1 + rng.Intn(5))
		}
		l := label
		table.Rows = append(table.Rows, core.TableRow{
			Address:  fmt.Sprintf("0x%040x", i+1),
			Features: f,
			Label:    &l,
		})
	}
	return table
}

// RandomFeatures draws a complete scoring vector with no high-risk
// interactions. active selects the heavy-usage population.
func RandomFeatures(rng *rand.Rand, active bool) core.FeatureVector {
	scale := 1.0
	if active {
		scale = 20
	}
	return core.FeatureVector{
		core.FeatureEthBalance:                 rng.Float64() * 5 * scale,
		core.FeatureTokenCount:                 float64(rng.Intn(3) + int(scale)/4),
		core.FeatureHasUSDT:                    float64(rng.Intn(2)),
		core.FeatureHasUSDC:                    float64(rng.Intn(2)),
		core.FeatureTotalTokenValueUSD:         rng.Float64() * 1000 * scale,
		core.FeatureTransactionCount:           float64(rng.Intn(20)) * scale,
		core.FeatureUniqueInteractionAddresses: float64(rng.Intn(8)) * scale / 2,
		core.FeatureAvgTransactionValue:        rng.Float64(),
		core.FeatureMaxTransactionValue:        rng.Float64() * 4,
		core.FeatureDaysSinceFirstTx:           float64(30 + rng.Intn(500)),
		core.FeatureDaysSinceLastTx:            float64(rng.Intn(30)),
		core.FeatureOutgoingTxRatio:            rng.Float64(),
		core.FeatureContractInteractionCount:   float64(rng.Intn(5)) * scale,
		core.FeatureDefiInteractionCount:       float64(rng.Intn(3)) * scale,
		core.FeatureHighRiskInteractionCount:   0,
	}
}
