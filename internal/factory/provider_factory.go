package factory

import (
	"fmt"

	"github.com/mikey/chain-risk/internal/adapters/ethereum"
	"github.com/mikey/chain-risk/internal/config"
	"github.com/mikey/chain-risk/internal/core"
	"go.uber.org/zap"
)

// ProviderFactory creates chain data providers based on configuration
type ProviderFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(cfg *config.Config, logger *zap.Logger) *ProviderFactory {
	return &ProviderFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateBalanceProvider creates the configured balance provider
func (f *ProviderFactory) CreateBalanceProvider() (core.BalanceProvider, error) {
	ethCfg, err := f.cfg.GetEthereum()
	if err != nil {
		return nil, err
	}

	switch ethCfg.Provider {
	case "mock":
		f.logger.Info("Using mock chain data provider")
		return ethereum.NewMockProvider(), nil
	case "rpc":
		return ethereum.NewRPCProvider(ethCfg.RPCURL, tokens(ethCfg.Tokens), ethCfg.Timeout, f.logger)
	default:
		return nil, fmt.Errorf("unsupported ethereum provider: %s", ethCfg.Provider)
	}
}

// ProviderName returns the configured provider type
func (f *ProviderFactory) ProviderName() string {
	return f.cfg.GetString("ethereum.provider")
}

func tokens(cfgTokens []config.TokenConfig) []ethereum.Token {
	if len(cfgTokens) == 0 {
		return ethereum.DefaultTokens()
	}

	out := make([]ethereum.Token, 0, len(cfgTokens))
	for _, t := range cfgTokens {
		out = append(out, ethereum.Token{
			Symbol:   t.Symbol,
			Name:     t.Name,
			Contract: t.Contract,
			Decimals: t.Decimals,
		})
	}
	return out
}
