package features

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikey/chain-risk/internal/adapters/ethereum"
	"github.com/mikey/chain-risk/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingProvider struct{ err error }

func (f failingProvider) GetAddressBalanceAndTokens(ctx context.Context, address string) (*core.AddressHoldings, error) {
	return nil, f.err
}

type partialBehavior struct{}

func (partialBehavior) Behavior(ctx context.Context, address string) (core.FeatureVector, error) {
	return core.FeatureVector{core.FeatureTransactionCount: 1}, nil
}

func newTestExtractor() *Extractor {
	return NewExtractor(ethereum.NewMockProvider(), NewPlaceholderBehavior(), zap.NewNop())
}

func TestExtractDemoAddress(t *testing.T) {
	e := newTestExtractor()

	f, err := e.Extract(context.Background(), "0x742d35cc6634c0532925a3b844bc454e4438f44e")
	require.NoError(t, err)

	assert.Empty(t, f.Missing(core.ScoringFeatures()))
	assert.Len(t, f, len(core.ScoringFeatures()))
	assert.Equal(t, 1.0, f[core.FeatureEthBalance])
	assert.Equal(t, 2.0, f[core.FeatureTokenCount])
	assert.Equal(t, 1.0, f[core.FeatureHasUSDT])
	assert.Equal(t, 1.0, f[core.FeatureHasUSDC])
	assert.Equal(t, 3000.0, f[core.FeatureTotalTokenValueUSD])
	assert.Equal(t, 100.0, f[core.FeatureDaysSinceFirstTx])
	assert.Equal(t, 0.6, f[core.FeatureOutgoingTxRatio])
}

func TestExtractSameKeysForEveryAddress(t *testing.T) {
	e := newTestExtractor()
	ctx := context.Background()

	a, err := e.Extract(ctx, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	b, err := e.Extract(ctx, "0x742d35cc6634c0532925a3b844bc454e4438f44e")
	require.NoError(t, err)

	assert.Equal(t, a.Names(), b.Names())
	assert.Equal(t, 0.0, a[core.FeatureTokenCount])
	assert.Equal(t, 0.0, a[core.FeatureHasUSDT])
	assert.Equal(t, 2.0, a[core.FeatureEthBalance])
}

func TestExtractDataUnavailable(t *testing.T) {
	upstream := errors.New("rpc timeout")
	e := NewExtractor(failingProvider{err: upstream}, NewPlaceholderBehavior(), zap.NewNop())

	_, err := e.Extract(context.Background(), "0x1111111111111111111111111111111111111111")
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.ErrorIs(t, err, upstream)
}

func TestExtractNilHoldings(t *testing.T) {
	e := NewExtractor(failingProvider{}, NewPlaceholderBehavior(), zap.NewNop())

	var f core.FeatureVector
	var err error
	require.NotPanics(t, func() {
		f, err = e.Extract(context.Background(), "0x1111111111111111111111111111111111111111")
	})
	assert.Nil(t, f)
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
}

func TestExtractRejectsMalformedTokenBalance(t *testing.T) {
	p := ethereum.NewMockProvider()
	p.Set("0x3333333333333333333333333333333333333333", core.AddressHoldings{
		EthBalance: 1,
		Tokens:     []core.TokenBalance{{Symbol: "usdc", Decimals: 6, Balance: "lots"}},
	})
	e := NewExtractor(p, NewPlaceholderBehavior(), zap.NewNop())

	_, err := e.Extract(context.Background(), "0x3333333333333333333333333333333333333333")
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
}

func TestExtractLowerCaseSymbolAndOtherTokens(t *testing.T) {
	p := ethereum.NewMockProvider()
	p.Set("0x4444444444444444444444444444444444444444", core.AddressHoldings{
		EthBalance: 0.5,
		Tokens: []core.TokenBalance{
			{Symbol: "usdc", Decimals: 6, Balance: "2500000"},
			{Symbol: "DAI", Decimals: 18, Balance: "1000000000000000000"},
		},
	})
	e := NewExtractor(p, NewPlaceholderBehavior(), zap.NewNop())

	f, err := e.Extract(context.Background(), "0x4444444444444444444444444444444444444444")
	require.NoError(t, err)
	assert.Equal(t, 2.0, f[core.FeatureTokenCount])
	assert.Equal(t, 1.0, f[core.FeatureHasUSDC])
	assert.Equal(t, 0.0, f[core.FeatureHasUSDT])
	assert.Equal(t, 2.5, f[core.FeatureTotalTokenValueUSD])
}

func TestExtractIncompleteBehavior(t *testing.T) {
	e := NewExtractor(ethereum.NewMockProvider(), partialBehavior{}, zap.NewNop())

	_, err := e.Extract(context.Background(), "0x1111111111111111111111111111111111111111")
	require.ErrorIs(t, err, core.ErrMissingFeatures)

	var mf *core.MissingFeaturesError
	require.True(t, errors.As(err, &mf))
	assert.Contains(t, mf.Missing, core.FeatureDaysSinceFirstTx)
}

func TestBuildTable(t *testing.T) {
	e := newTestExtractor()
	addresses, labels := SampleLabels()

	table, err := e.BuildTable(context.Background(), addresses, labels)
	require.NoError(t, err)
	require.Equal(t, 10, table.Len())

	positives := 0
	for _, row := range table.Rows {
		require.NotNil(t, row.Label)
		positives += *row.Label
	}
	assert.Equal(t, 4, positives)
	assert.Equal(t, "0x742d35cc6634c0532925a3b844bc454e4438f44e", table.Rows[0].Address)
}

func TestReadLabels(t *testing.T) {
	csv := "address,risk_label\n" +
		"0x742d35Cc6634C0532925a3b844Bc454e4438f44e,1\n" +
		"0x1111111111111111111111111111111111111111, 0\n"

	addresses, labels, err := ReadLabels(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"0x742d35cc6634c0532925a3b844bc454e4438f44e",
		"0x1111111111111111111111111111111111111111",
	}, addresses)
	assert.Equal(t, 1, labels["0x742d35cc6634c0532925a3b844bc454e4438f44e"])
	assert.Equal(t, 0, labels["0x1111111111111111111111111111111111111111"])

	_, _, err = ReadLabels(strings.NewReader("0x1111111111111111111111111111111111111111,2\n"))
	assert.Error(t, err)

	_, _, err = ReadLabels(strings.NewReader("0xbad,1\n"))
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}
