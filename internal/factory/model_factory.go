package factory

import (
	"github.com/mikey/chain-risk/internal/config"
	"github.com/mikey/chain-risk/internal/models"
	"go.uber.org/zap"
)

// ModelFactory creates the model registry and training configuration
type ModelFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewModelFactory creates a new model factory
func NewModelFactory(cfg *config.Config, logger *zap.Logger) *ModelFactory {
	return &ModelFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRegistry creates a registry over the configured model directory
func (f *ModelFactory) CreateRegistry() *models.Registry {
	return models.NewRegistry(f.cfg.GetModels().Dir, f.logger.Named("models"))
}

// TrainingConfig returns the training parameters, falling back to the
// defaults for unset values
func (f *ModelFactory) TrainingConfig() models.TrainingConfig {
	modelsCfg := f.cfg.GetModels()
	tc := models.DefaultTrainingConfig()

	if modelsCfg.TestFraction > 0 {
		tc.TestFraction = modelsCfg.TestFraction
	}
	tc.Seed = modelsCfg.Seed
	tc.Clustering.Seed = modelsCfg.Seed
	if modelsCfg.Clusters > 0 {
		tc.Clustering.Clusters = modelsCfg.Clusters
	}
	if modelsCfg.Trees > 0 {
		tc.Risk.NumTrees = modelsCfg.Trees
	}
	if modelsCfg.MaxDepth > 0 {
		tc.Risk.MaxDepth = modelsCfg.MaxDepth
	}
	if modelsCfg.LearningRate > 0 {
		tc.Risk.LearningRate = modelsCfg.LearningRate
	}
	return tc
}
