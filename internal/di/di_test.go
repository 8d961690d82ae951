package di

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/mikey/chain-risk/internal/config"
	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/features"
	"github.com/mikey/chain-risk/internal/models"
	"github.com/mikey/chain-risk/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags([]string{"analyze", "-address", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", "-narrate"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "analyze", flags.Command)
	assert.True(t, flags.Narrate)

	flags, err = ParseFlags([]string{"train", "-labels", "labels.csv", "-clusters", "3", "-models", "/tmp/models"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "labels.csv", flags.Labels)
	assert.Equal(t, 3, flags.Clusters)
	assert.Equal(t, "/tmp/models", flags.ModelDir)

	flags, err = ParseFlags([]string{"train", "-seed", "0"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, flags.SeedSet)
	assert.Equal(t, int64(0), flags.Seed)

	_, err = ParseFlags(nil, io.Discard)
	assert.Error(t, err)
	_, err = ParseFlags([]string{"serve"}, io.Discard)
	assert.Error(t, err)
	_, err = ParseFlags([]string{"analyze"}, io.Discard)
	assert.Error(t, err)
}

func TestApplyFlagsSeedZero(t *testing.T) {
	cfg := config.NewFromEnv()

	applyFlags(cfg, &CLIFlags{})
	assert.Equal(t, int64(42), cfg.GetInt64("models.seed"))

	applyFlags(cfg, &CLIFlags{Seed: 0, SeedSet: true})
	assert.Equal(t, int64(0), cfg.GetInt64("models.seed"))
}

func TestCLIConfigReadsEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHAIN_RISK_MODELS_DIR", dir)
	t.Setenv("CHAIN_RISK_ETHEREUM_PROVIDER", "mock")

	container, err := BuildCLIContainer(&CLIFlags{Command: "train"})
	require.NoError(t, err)

	err = container.Invoke(func(cfg *config.Config) {
		assert.Equal(t, dir, cfg.GetString("models.dir"))
		assert.Equal(t, "mock", cfg.GetString("ethereum.provider"))
	})
	require.NoError(t, err)
}

func TestCLIContainerTrainThenAnalyze(t *testing.T) {
	flags := &CLIFlags{Command: "train", Labels: "sample", ModelDir: t.TempDir(), Clusters: 2}
	container, err := BuildCLIContainer(flags)
	require.NoError(t, err)

	err = container.Invoke(func(trainer *models.Trainer, service *core.AnalysisService) error {
		ctx := context.Background()

		_, err := service.ScoreAddress(ctx, "0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
		if !errors.Is(err, core.ErrModelNotTrained) {
			t.Errorf("expected ErrModelNotTrained before training, got %v", err)
		}

		addresses, labels := features.SampleLabels()
		report, err := trainer.Train(ctx, addresses, labels)
		if err != nil {
			return err
		}
		assert.Equal(t, len(addresses), report.Samples)
		assert.Len(t, report.ClusterMetrics.ClusterSizes, 2)

		full, err := service.AnalyzeAddress(ctx, "0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
		if err != nil {
			return err
		}
		assert.NotNil(t, full.RiskAnalysis)
		assert.NotNil(t, full.UserProfile)

		_, err = service.NarrateAddress(ctx, full.Address)
		assert.ErrorIs(t, err, core.ErrNarratorUnavailable)
		return nil
	})
	require.NoError(t, err)
}

func TestBuildContainer(t *testing.T) {
	t.Setenv("CHAIN_RISK_MODELS_DIR", t.TempDir())
	t.Setenv("CHAIN_RISK_SERVER_LISTEN_ADDRESS", "127.0.0.1:0")

	container, err := BuildContainer()
	require.NoError(t, err)

	err = container.Invoke(func(frontend ports.Frontend, registry *models.Registry) {
		assert.NotNil(t, frontend)
		assert.False(t, registry.LoadAll().RiskModel)
	})
	require.NoError(t, err)
}
