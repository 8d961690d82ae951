package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/chain-risk/internal/config"
	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/explainer"
	"github.com/mikey/chain-risk/internal/factory"
	"github.com/mikey/chain-risk/internal/features"
	"github.com/mikey/chain-risk/internal/logging"
	"github.com/mikey/chain-risk/internal/models"
	"github.com/mikey/chain-risk/internal/ports"
	"github.com/mikey/chain-risk/internal/utils"
)

// BuildContainer creates and configures the dependency injection container
// for the HTTP service
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(config.New); err != nil {
		return nil, err
	}
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register analysis service
	if err := container.Provide(func(
		extractor core.FeatureExtractor,
		registry *models.Registry,
		riskExplainer core.RiskExplainer,
		cache core.CacheRepository,
		publisher core.ResultPublisher,
		narrator core.Narrator,
		cacheFactory *factory.CacheFactory,
		cfg *config.Config,
		logger *zap.Logger,
	) (*core.AnalysisService, error) {
		ttl, err := cacheFactory.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		timeout, err := cfg.GetDuration("analysis.timeout")
		if err != nil {
			return nil, err
		}
		svc := core.NewAnalysisService(
			extractor,
			registry,
			riskExplainer,
			cache,
			publisher,
			narrator,
			logger,
			cacheFactory.IsCacheEnabled(),
			ttl,
		)
		svc.SetComputeTimeout(timeout)
		return svc, nil
	}); err != nil {
		return nil, err
	}

	// Register frontend
	if err := container.Provide(factory.NewServerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ServerFactory) (ports.Frontend, error) {
		return f.CreateFrontend()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// providePipeline registers the components shared by the service and the CLI
func providePipeline(container *dig.Container) error {
	// Register factories
	for _, ctor := range []interface{}{
		factory.NewCacheFactory,
		factory.NewProviderFactory,
		factory.NewPublisherFactory,
		factory.NewTextProcessorFactory,
		factory.NewNarratorFactory,
		factory.NewModelFactory,
	} {
		if err := container.Provide(ctor); err != nil {
			return err
		}
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register chain data and feature extraction
	if err := container.Provide(func(f *factory.ProviderFactory) (core.BalanceProvider, error) {
		return f.CreateBalanceProvider()
	}); err != nil {
		return err
	}
	if err := container.Provide(func() core.BehaviorSource {
		return features.NewPlaceholderBehavior()
	}); err != nil {
		return err
	}
	if err := container.Provide(features.NewExtractor); err != nil {
		return err
	}
	if err := container.Provide(func(e *features.Extractor) core.FeatureExtractor {
		return e
	}); err != nil {
		return err
	}

	// Register models
	if err := container.Provide(func(f *factory.ModelFactory) *models.Registry {
		return f.CreateRegistry()
	}); err != nil {
		return err
	}
	if err := container.Provide(factory.CreateExplainer); err != nil {
		return err
	}
	if err := container.Provide(func(e *explainer.Explainer) core.RiskExplainer {
		return e
	}); err != nil {
		return err
	}

	// Register publisher and narrator
	if err := container.Provide(func(f *factory.PublisherFactory) (core.ResultPublisher, error) {
		return f.CreatePublisher()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.NarratorFactory) (core.Narrator, error) {
		return f.CreateNarrator()
	}); err != nil {
		return err
	}

	return nil
}
