package di

import (
	"flag"
	"fmt"
	"io"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/chain-risk/internal/config"
	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/factory"
	"github.com/mikey/chain-risk/internal/features"
	"github.com/mikey/chain-risk/internal/logging"
	"github.com/mikey/chain-risk/internal/models"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	Command string

	// analyze flags
	Address string
	Narrate bool

	// train flags
	Labels   string
	ModelDir string
	Clusters int
	Seed     int64
	SeedSet  bool

	// Chain data flags
	Provider string
	RPCURL   string

	// Narrator flags
	LLMProvider string

	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses the subcommand and its flags from args
func ParseFlags(args []string, output io.Writer) (*CLIFlags, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("expected a command: analyze or train")
	}

	flags := &CLIFlags{Command: args[0]}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(output)

	switch flags.Command {
	case "analyze":
		fs.StringVar(&flags.Address, "address", "", "Address to analyze")
		fs.BoolVar(&flags.Narrate, "narrate", false, "Attach an LLM-written narrative")
		fs.StringVar(&flags.LLMProvider, "llm", "", "Narrator provider (openai, gemini, bedrock)")
	case "train":
		fs.StringVar(&flags.Labels, "labels", "sample", "Labeled address CSV (address,label) or \"sample\"")
		fs.IntVar(&flags.Clusters, "clusters", 0, "Number of behavior clusters")
		fs.Int64Var(&flags.Seed, "seed", 0, "Random seed")
	default:
		return nil, fmt.Errorf("unknown command %q: expected analyze or train", flags.Command)
	}

	fs.StringVar(&flags.ModelDir, "models", "", "Model artifact directory")
	fs.StringVar(&flags.Provider, "provider", "", "Chain data provider (mock, rpc)")
	fs.StringVar(&flags.RPCURL, "rpc-url", "", "Ethereum JSON-RPC endpoint")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			flags.SeedSet = true
		}
	})
	if flags.Command == "analyze" && flags.Address == "" {
		return nil, fmt.Errorf("analyze requires -address")
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		var cfg *config.Config
		if flags.ConfigFile != "" {
			var err error
			cfg, err = config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", flags.ConfigFile))
		} else {
			cfg = config.NewFromEnv()
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register analysis service with no cache
	if err := container.Provide(func(
		extractor core.FeatureExtractor,
		registry *models.Registry,
		riskExplainer core.RiskExplainer,
		publisher core.ResultPublisher,
		narrator core.Narrator,
		cfg *config.Config,
		logger *zap.Logger,
	) (*core.AnalysisService, error) {
		timeout, err := cfg.GetDuration("analysis.timeout")
		if err != nil {
			return nil, err
		}
		svc := core.NewAnalysisService(
			extractor,
			registry,
			riskExplainer,
			nil, // No cache for CLI
			publisher,
			narrator,
			logger,
			false,
			0,
		)
		svc.SetComputeTimeout(timeout)
		return svc, nil
	}); err != nil {
		return nil, err
	}

	// Register trainer
	if err := container.Provide(func(
		extractor *features.Extractor,
		registry *models.Registry,
		modelFactory *factory.ModelFactory,
		logger *zap.Logger,
	) *models.Trainer {
		return models.NewTrainer(extractor, registry, modelFactory.TrainingConfig(), logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlags overlays explicitly set command line flags onto cfg
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	v := cfg.GetViper()

	if flags.ModelDir != "" {
		v.Set("models.dir", flags.ModelDir)
	}
	if flags.Provider != "" {
		v.Set("ethereum.provider", flags.Provider)
	}
	if flags.RPCURL != "" {
		v.Set("ethereum.rpc_url", flags.RPCURL)
	}
	if flags.LLMProvider != "" {
		v.Set("llm.provider", flags.LLMProvider)
	}
	if flags.Clusters > 0 {
		v.Set("models.clusters", flags.Clusters)
	}
	if flags.SeedSet {
		v.Set("models.seed", flags.Seed)
	}
}
