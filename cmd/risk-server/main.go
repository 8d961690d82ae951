package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/di"
	"github.com/mikey/chain-risk/internal/models"
	"github.com/mikey/chain-risk/internal/ports"
	"go.uber.org/zap"
)

func main() {
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	frontend ports.Frontend,
	registry *models.Registry,
	provider core.BalanceProvider,
	publisher core.ResultPublisher,
	narrator core.Narrator,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()

	status := registry.LoadAll()
	logger.Info("Models loaded",
		zap.String("dir", registry.Dir()),
		zap.Bool("risk_model", status.RiskModel),
		zap.Bool("cluster_model", status.ClusterModel))

	if err := frontend.Start(); err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			status := registry.Reload()
			logger.Info("Models reloaded on SIGHUP",
				zap.Bool("risk_model", status.RiskModel),
				zap.Bool("cluster_model", status.ClusterModel))
			continue
		}
		break
	}
	logger.Info("Shutting down...")

	if err := frontend.Stop(); err != nil {
		logger.Error("Failed to stop server", zap.Error(err))
	}

	for name, res := range map[string]interface{}{
		"provider":  provider,
		"publisher": publisher,
		"narrator":  narrator,
	} {
		if closer, ok := res.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close resource", zap.String("resource", name), zap.Error(err))
			}
		}
	}

	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
