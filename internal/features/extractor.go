package features

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// stablecoins are the tokens counted in total_token_value_usd at a 1:1 USD peg
var stablecoins = map[string]string{
	"USDT": core.FeatureHasUSDT,
	"USDC": core.FeatureHasUSDC,
}

// Extractor builds feature vectors from chain holdings and behavioral signals
type Extractor struct {
	provider core.BalanceProvider
	behavior core.BehaviorSource
	logger   *zap.Logger
}

// NewExtractor creates a new feature extractor
func NewExtractor(provider core.BalanceProvider, behavior core.BehaviorSource, logger *zap.Logger) *Extractor {
	return &Extractor{
		provider: provider,
		behavior: behavior,
		logger:   logger,
	}
}

// Extract returns the full scoring feature vector for address
func (e *Extractor) Extract(ctx context.Context, address string) (core.FeatureVector, error) {
	holdings, err := e.provider.GetAddressBalanceAndTokens(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch holdings for %s: %w", core.ErrDataUnavailable, address, err)
	}
	if holdings == nil {
		return nil, fmt.Errorf("%w: provider returned no holdings for %s", core.ErrDataUnavailable, address)
	}

	features, err := holdingFeatures(holdings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrDataUnavailable, err)
	}

	behavior, err := e.behavior.Behavior(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch behavior for %s: %w", core.ErrDataUnavailable, address, err)
	}
	for k, v := range behavior {
		features[k] = v
	}

	if missing := features.Missing(core.ScoringFeatures()); len(missing) > 0 {
		return nil, &core.MissingFeaturesError{Missing: missing}
	}

	e.logger.Debug("Extracted features",
		zap.String("address", address),
		zap.Int("token_count", len(holdings.Tokens)),
		zap.Float64("eth_balance", holdings.EthBalance))

	return features, nil
}

func holdingFeatures(h *core.AddressHoldings) (core.FeatureVector, error) {
	features := core.FeatureVector{
		core.FeatureEthBalance:         h.EthBalance,
		core.FeatureTokenCount:         float64(len(h.Tokens)),
		core.FeatureHasUSDT:            0,
		core.FeatureHasUSDC:            0,
		core.FeatureTotalTokenValueUSD: 0,
	}

	total := decimal.Zero
	for _, tok := range h.Tokens {
		flag, ok := stablecoins[strings.ToUpper(tok.Symbol)]
		if !ok {
			continue
		}
		features[flag] = 1

		raw, err := decimal.NewFromString(tok.Balance)
		if err != nil {
			return nil, fmt.Errorf("invalid %s balance %q: %w", tok.Symbol, tok.Balance, err)
		}
		total = total.Add(raw.Shift(-tok.Decimals))
	}
	features[core.FeatureTotalTokenValueUSD] = total.InexactFloat64()

	return features, nil
}
