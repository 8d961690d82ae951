package ethereum

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mikey/chain-risk/internal/core"
)

// Well-known mainnet stablecoin contracts
const (
	USDTContract = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	USDCContract = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

// DefaultTokens returns the token list tracked when none is configured
func DefaultTokens() []Token {
	return []Token{
		{Symbol: "USDT", Name: "Tether USD", Contract: USDTContract, Decimals: 6},
		{Symbol: "USDC", Name: "USD Coin", Contract: USDCContract, Decimals: 6},
	}
}

// MockProvider serves holdings from a static table for local development
type MockProvider struct {
	holdings map[string]core.AddressHoldings
	fallback core.AddressHoldings
}

// NewMockProvider creates a provider seeded with demo holdings
func NewMockProvider() *MockProvider {
	usdt := func(raw string) core.TokenBalance {
		return core.TokenBalance{Contract: USDTContract, Symbol: "USDT", Name: "Tether USD", Decimals: 6, Balance: raw}
	}
	usdc := func(raw string) core.TokenBalance {
		return core.TokenBalance{Contract: USDCContract, Symbol: "USDC", Name: "USD Coin", Decimals: 6, Balance: raw}
	}

	return &MockProvider{
		holdings: map[string]core.AddressHoldings{
			"0x742d35cc6634c0532925a3b844bc454e4438f44e": {
				EthBalance: 1.0,
				Tokens:     []core.TokenBalance{usdt("1000000000"), usdc("2000000000")},
			},
			"0x1111111111111111111111111111111111111111": {
				EthBalance: 2.0,
				Tokens:     []core.TokenBalance{},
			},
			"0x2222222222222222222222222222222222222222": {
				EthBalance: 5.0,
				Tokens:     []core.TokenBalance{},
			},
		},
		fallback: core.AddressHoldings{
			EthBalance: 1.0,
			Tokens:     []core.TokenBalance{usdt("1000000000")},
		},
	}
}

// Set overrides the holdings served for address. Call it before serving lookups.
func (p *MockProvider) Set(address string, holdings core.AddressHoldings) {
	p.holdings[strings.ToLower(address)] = holdings
}

// GetAddressBalanceAndTokens returns the table entry for address or the fallback holdings
func (p *MockProvider) GetAddressBalanceAndTokens(ctx context.Context, address string) (*core.AddressHoldings, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidAddress, address)
	}
	key := strings.ToLower(common.HexToAddress(address).Hex())

	h, ok := p.holdings[key]
	if !ok {
		h = p.fallback
	}

	out := core.AddressHoldings{
		Address:    key,
		EthBalance: h.EthBalance,
		Tokens:     make([]core.TokenBalance, len(h.Tokens)),
	}
	copy(out.Tokens, h.Tokens)
	return &out, nil
}
