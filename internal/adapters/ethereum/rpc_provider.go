// Package ethereum provides balance providers backed by an Ethereum node or a static table.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mikey/chain-risk/internal/core"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ERC-20 ABI subset used for holdings lookups
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

// weiDecimals is the decimal precision of ETH
const weiDecimals = 18

// EthClient abstracts the go-ethereum client for testing
type EthClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Token is a tracked ERC-20 contract. A zero Decimals is read from the contract.
type Token struct {
	Symbol   string
	Name     string
	Contract string
	Decimals int32
}

// RPCProvider reads balances from an Ethereum JSON-RPC endpoint
type RPCProvider struct {
	client  EthClient
	erc20   abi.ABI
	tokens  []Token
	timeout time.Duration
	logger  *zap.Logger

	// on-chain decimals by contract, for tokens configured without them
	decimals sync.Map
}

// NewRPCProvider dials rpcURL and creates a provider tracking tokens
func NewRPCProvider(rpcURL string, tokens []Token, timeout time.Duration, logger *zap.Logger) (*RPCProvider, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	provider, err := NewRPCProviderWithClient(client, tokens, timeout, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("Connected to Ethereum RPC", zap.Int("tracked_tokens", len(tokens)))
	return provider, nil
}

// NewRPCProviderWithClient creates a provider over an existing client
func NewRPCProviderWithClient(client EthClient, tokens []Token, timeout time.Duration, logger *zap.Logger) (*RPCProvider, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	for _, t := range tokens {
		if !common.IsHexAddress(t.Contract) {
			return nil, fmt.Errorf("invalid contract address for token %s: %q", t.Symbol, t.Contract)
		}
	}

	return &RPCProvider{
		client:  client,
		erc20:   parsed,
		tokens:  tokens,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// GetAddressBalanceAndTokens returns the ETH balance and every tracked token with a non-zero balance
func (p *RPCProvider) GetAddressBalanceAndTokens(ctx context.Context, address string) (*core.AddressHoldings, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidAddress, address)
	}
	account := common.HexToAddress(address)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	wei, err := p.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ETH balance: %w", err)
	}

	holdings := &core.AddressHoldings{
		Address:    strings.ToLower(account.Hex()),
		EthBalance: decimal.NewFromBigInt(wei, -weiDecimals).InexactFloat64(),
		Tokens:     []core.TokenBalance{},
	}

	for _, token := range p.tokens {
		balance, err := p.balanceOf(ctx, token, account)
		if err != nil {
			return nil, err
		}
		if balance.Sign() == 0 {
			continue
		}
		decimals, err := p.tokenDecimals(ctx, token)
		if err != nil {
			return nil, err
		}
		holdings.Tokens = append(holdings.Tokens, core.TokenBalance{
			Contract: token.Contract,
			Symbol:   token.Symbol,
			Name:     token.Name,
			Decimals: decimals,
			Balance:  balance.String(),
		})
	}

	p.logger.Debug("Fetched holdings",
		zap.String("address", holdings.Address),
		zap.Float64("eth_balance", holdings.EthBalance),
		zap.Int("token_count", len(holdings.Tokens)))

	return holdings, nil
}

func (p *RPCProvider) balanceOf(ctx context.Context, token Token, account common.Address) (*big.Int, error) {
	data, err := p.erc20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	contract := common.HexToAddress(token.Contract)
	result, err := p.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf on %s: %w", token.Symbol, err)
	}

	values, err := p.erc20.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s balance: %w", token.Symbol, err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s balance type %T", token.Symbol, values[0])
	}
	return balance, nil
}

func (p *RPCProvider) tokenDecimals(ctx context.Context, token Token) (int32, error) {
	if token.Decimals != 0 {
		return token.Decimals, nil
	}
	if v, ok := p.decimals.Load(token.Contract); ok {
		return v.(int32), nil
	}

	data, err := p.erc20.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to pack decimals call: %w", err)
	}

	contract := common.HexToAddress(token.Contract)
	result, err := p.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to call decimals on %s: %w", token.Symbol, err)
	}

	values, err := p.erc20.Unpack("decimals", result)
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s decimals: %w", token.Symbol, err)
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected %s decimals type %T", token.Symbol, values[0])
	}

	p.decimals.Store(token.Contract, int32(d))
	p.logger.Debug("Resolved token decimals",
		zap.String("symbol", token.Symbol),
		zap.Uint8("decimals", d))
	return int32(d), nil
}

// Close releases the RPC connection
func (p *RPCProvider) Close() error {
	p.client.Close()
	return nil
}
