package models

import (
	"context"
	"errors"
	"testing"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type tableBuilderFunc func(ctx context.Context, addresses []string, labels map[string]int) (*core.Table, error)

func (f tableBuilderFunc) BuildTable(ctx context.Context, addresses []string, labels map[string]int) (*core.Table, error) {
	return f(ctx, addresses, labels)
}

func TestTrainerPersistsBothModels(t *testing.T) {
	registry := NewRegistry(t.TempDir(), zap.NewNop())
	builder := tableBuilderFunc(func(context.Context, []string, map[string]int) (*core.Table, error) {
		return testutil.SyntheticTable(60, 7), nil
	})

	cfg := DefaultTrainingConfig()
	cfg.Risk.NumTrees = 20
	report, err := NewTrainer(builder, registry, cfg, zap.NewNop()).Train(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 60, report.Samples)
	assert.Equal(t, 12, report.RiskMetrics.TestSamples)
	assert.NotEmpty(t, report.FeatureImportance)
	assert.Len(t, report.ClusterMetrics.ClusterSizes, 4)
	assert.FileExists(t, report.RiskArtifact)
	assert.FileExists(t, report.ClusterArtifact)

	status := registry.Status()
	assert.True(t, status.RiskModel)
	assert.True(t, status.ClusterModel)

	reloaded := NewRegistry(registry.Dir(), zap.NewNop()).LoadAll()
	assert.True(t, reloaded.RiskModel)
	assert.True(t, reloaded.ClusterModel)
}

func TestTrainerBuildFailure(t *testing.T) {
	registry := NewRegistry(t.TempDir(), zap.NewNop())
	builder := tableBuilderFunc(func(context.Context, []string, map[string]int) (*core.Table, error) {
		return nil, core.ErrDataUnavailable
	})

	_, err := NewTrainer(builder, registry, DefaultTrainingConfig(), zap.NewNop()).Train(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDataUnavailable))
	assert.False(t, registry.Status().RiskModel)
}
