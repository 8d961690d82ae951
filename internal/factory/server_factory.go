package factory

import (
	"github.com/mikey/chain-risk/internal/adapters/httpapi"
	"github.com/mikey/chain-risk/internal/config"
	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/models"
	"github.com/mikey/chain-risk/internal/ports"
	"go.uber.org/zap"
)

// ServerFactory creates the HTTP frontend
type ServerFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	service  *core.AnalysisService
	registry *models.Registry
	cache    core.CacheRepository
	provider *ProviderFactory
}

// NewServerFactory creates a new server factory. cache may be nil.
func NewServerFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.AnalysisService,
	registry *models.Registry,
	cache core.CacheRepository,
	provider *ProviderFactory,
) *ServerFactory {
	return &ServerFactory{
		cfg:      cfg,
		logger:   logger,
		service:  service,
		registry: registry,
		cache:    cache,
		provider: provider,
	}
}

// CreateFrontend creates the HTTP server
func (f *ServerFactory) CreateFrontend() (ports.Frontend, error) {
	serverCfg, err := f.cfg.GetServer()
	if err != nil {
		return nil, err
	}

	handler := httpapi.NewHandler(f.service, f.registry, f.cache, f.provider.ProviderName(), f.logger.Named("http"))
	return httpapi.NewServer(serverCfg, handler, f.logger.Named("http")), nil
}
