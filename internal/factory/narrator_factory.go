package factory

import (
	"fmt"

	"github.com/mikey/chain-risk/internal/config"
	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/utils"
	"go.uber.org/zap"
)

// NarratorFactory creates narrators for the configured LLM provider
type NarratorFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewNarratorFactory creates a new narrator factory
func NewNarratorFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *NarratorFactory {
	return &NarratorFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateNarrator creates a narrator based on the configuration.
// Provider "none" yields a nil narrator.
func (f *NarratorFactory) CreateNarrator() (core.Narrator, error) {
	provider := f.cfg.GetLLM().Provider

	switch provider {
	case "none", "":
		f.logger.Info("Narrator disabled")
		return nil, nil
	case "bedrock":
		return NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateNarrator()
	case "gemini":
		return NewGeminiFactory(f.cfg, f.logger, f.textProcessor).CreateNarrator()
	case "openai":
		return NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateNarrator()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
