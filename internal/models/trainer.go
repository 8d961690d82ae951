package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/models/clustering"
	"github.com/mikey/chain-risk/internal/models/riskscore"
	"go.uber.org/zap"
)

// TableBuilder turns labeled addresses into a training table
type TableBuilder interface {
	BuildTable(ctx context.Context, addresses []string, labels map[string]int) (*core.Table, error)
}

// TrainingConfig holds the parameters of an offline training run
type TrainingConfig struct {
	TestFraction float64
	Seed         int64
	Risk         riskscore.Params
	Clustering   clustering.Options
}

// DefaultTrainingConfig returns the standard training configuration
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		TestFraction: 0.2,
		Seed:         42,
		Risk:         riskscore.DefaultParams(),
		Clustering:   clustering.DefaultOptions(),
	}
}

// TrainingReport summarizes a finished training run
type TrainingReport struct {
	Samples           int                      `json:"samples"`
	RiskMetrics       *riskscore.Metrics       `json:"risk_metrics"`
	FeatureImportance []core.FeatureImportance `json:"feature_importance"`
	ClusterMetrics    *clustering.Metrics      `json:"cluster_metrics"`
	RiskArtifact      string                   `json:"risk_artifact"`
	ClusterArtifact   string                   `json:"cluster_artifact"`
	Duration          time.Duration            `json:"duration"`
}

// Trainer builds a table, trains both models and persists them into a registry
type Trainer struct {
	builder  TableBuilder
	registry *Registry
	cfg      TrainingConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewTrainer creates a new trainer
func NewTrainer(builder TableBuilder, registry *Registry, cfg TrainingConfig, logger *zap.Logger) *Trainer {
	return &Trainer{
		builder:  builder,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Train runs the full offline pipeline over labeled addresses
func (t *Trainer) Train(ctx context.Context, addresses []string, labels map[string]int) (*TrainingReport, error) {
	start := t.now()

	table, err := t.builder.BuildTable(ctx, addresses, labels)
	if err != nil {
		return nil, fmt.Errorf("failed to build training table: %w", err)
	}
	t.logger.Info("Training table built", zap.Int("samples", table.Len()))

	risk, riskMetrics, err := riskscore.Train(table, t.cfg.TestFraction, t.cfg.Seed, t.cfg.Risk)
	if err != nil {
		return nil, fmt.Errorf("failed to train risk model: %w", err)
	}
	t.logger.Info("Risk model trained",
		zap.Float64("accuracy", riskMetrics.Accuracy),
		zap.Float64("f1", riskMetrics.F1),
		zap.Float64("auc", riskMetrics.AUC))

	cluster, clusterMetrics, err := clustering.Train(table, t.cfg.Clustering)
	if err != nil {
		return nil, fmt.Errorf("failed to train clustering model: %w", err)
	}
	t.logger.Info("Clustering model trained",
		zap.Float64("inertia", clusterMetrics.Inertia),
		zap.Ints("cluster_sizes", clusterMetrics.ClusterSizes))

	riskPath, clusterPath, err := t.registry.PersistModels(risk, cluster, t.now())
	if err != nil {
		return nil, err
	}

	return &TrainingReport{
		Samples:           table.Len(),
		RiskMetrics:       riskMetrics,
		FeatureImportance: risk.FeatureImportance(),
		ClusterMetrics:    clusterMetrics,
		RiskArtifact:      riskPath,
		ClusterArtifact:   clusterPath,
		Duration:          t.now().Sub(start),
	}, nil
}
