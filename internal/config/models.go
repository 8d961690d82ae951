package config

import (
	"fmt"
	"time"
)

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// CacheConfig represents the analysis cache configuration
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
}

// TokenConfig describes an ERC-20 token the RPC provider reads
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Contract string `mapstructure:"contract"`
	Decimals int32  `mapstructure:"decimals"`
}

// EthereumConfig represents the chain data provider configuration
type EthereumConfig struct {
	Provider string
	RPCURL   string
	Timeout  time.Duration
	Tokens   []TokenConfig
}

// ModelsConfig represents model storage and training configuration
type ModelsConfig struct {
	Dir          string
	TestFraction float64
	Seed         int64
	Clusters     int
	Trees        int
	MaxDepth     int
	LearningRate float64
}

// NATSConfig represents the NATS publisher configuration
type NATSConfig struct {
	URL     string
	Subject string
}

// SMTPConfig represents the mail alert configuration
type SMTPConfig struct {
	Addr     string
	From     string
	To       []string
	Username string
	Password string
	MinLevel string
	Timeout  time.Duration
}

// PublisherConfig represents the result publisher configuration
type PublisherConfig struct {
	Type    string
	Targets []string
	NATS    NATSConfig
	SMTP    SMTPConfig
}

// LLMConfig represents the configuration for the narrator provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region        string
	ModelID       string
	MaxTokens     int
	Temperature   float32
	TopP          float32
	MaxPromptSize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey        string
	ModelName     string
	MaxTokens     int
	Temperature   float32
	TopP          float32
	MaxPromptSize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey        string
	ModelName     string
	MaxTokens     int
	Temperature   float32
	TopP          float32
	MaxPromptSize int
}

// RuleConfig is one explainer rule as written in the config file
type RuleConfig struct {
	ID          string  `mapstructure:"id"`
	Name        string  `mapstructure:"name"`
	Description string  `mapstructure:"description"`
	Feature     string  `mapstructure:"feature"`
	Threshold   float64 `mapstructure:"threshold"`
	Comparison  string  `mapstructure:"comparison"`
	Weight      int     `mapstructure:"weight"`
	Template    string  `mapstructure:"template"`
	Format      string  `mapstructure:"format"`
}

// GetServer returns the server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	cfg := ServerConfig{ListenAddress: c.GetString("server.listen_address")}

	var err error
	if cfg.ReadTimeout, err = c.GetDuration("server.read_timeout"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = c.GetDuration("server.write_timeout"); err != nil {
		return cfg, err
	}
	if cfg.IdleTimeout, err = c.GetDuration("server.idle_timeout"); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = c.GetDuration("server.shutdown_timeout"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	cfg := CacheConfig{
		Type:          c.GetString("cache.type"),
		Enabled:       c.GetBool("cache.enabled"),
		SQLitePath:    c.GetString("cache.sqlite_path"),
		MySQLDSN:      c.GetString("cache.mysql_dsn"),
		RedisAddr:     c.GetString("cache.redis.addr"),
		RedisPassword: c.GetString("cache.redis.password"),
		RedisDB:       c.GetInt("cache.redis.db"),
	}

	var err error
	if cfg.TTL, err = c.GetDuration("cache.ttl"); err != nil {
		return cfg, err
	}
	if cfg.CleanupFrequency, err = c.GetDuration("cache.cleanup_frequency"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetEthereum returns the chain data provider configuration
func (c *Config) GetEthereum() (EthereumConfig, error) {
	cfg := EthereumConfig{
		Provider: c.GetString("ethereum.provider"),
		RPCURL:   c.GetString("ethereum.rpc_url"),
	}

	var err error
	if cfg.Timeout, err = c.GetDuration("ethereum.timeout"); err != nil {
		return cfg, err
	}
	if err := c.v.UnmarshalKey("ethereum.tokens", &cfg.Tokens); err != nil {
		return cfg, fmt.Errorf("failed to decode ethereum.tokens: %w", err)
	}
	return cfg, nil
}

// GetModels returns the model configuration
func (c *Config) GetModels() ModelsConfig {
	return ModelsConfig{
		Dir:          c.GetString("models.dir"),
		TestFraction: c.GetFloat64("models.test_fraction"),
		Seed:         c.GetInt64("models.seed"),
		Clusters:     c.GetInt("models.clusters"),
		Trees:        c.GetInt("models.trees"),
		MaxDepth:     c.GetInt("models.max_depth"),
		LearningRate: c.GetFloat64("models.learning_rate"),
	}
}

// GetPublisher returns the result publisher configuration
func (c *Config) GetPublisher() PublisherConfig {
	return PublisherConfig{
		Type:    c.GetString("publisher.type"),
		Targets: c.GetStringSlice("publisher.targets"),
		NATS: NATSConfig{
			URL:     c.GetString("publisher.nats.url"),
			Subject: c.GetString("publisher.nats.subject"),
		},
		SMTP: SMTPConfig{
			Addr:     c.GetString("publisher.smtp.addr"),
			From:     c.GetString("publisher.smtp.from"),
			To:       c.GetStringSlice("publisher.smtp.to"),
			Username: c.GetString("publisher.smtp.username"),
			Password: c.GetString("publisher.smtp.password"),
			MinLevel: c.GetString("publisher.smtp.min_level"),
			Timeout:  c.v.GetDuration("publisher.smtp.timeout"),
		},
	}
}

// GetRules returns the explainer rules from the config file, or nil when
// none are configured
func (c *Config) GetRules() ([]RuleConfig, error) {
	if !c.v.IsSet("explainer.rules") {
		return nil, nil
	}

	var rules []RuleConfig
	if err := c.v.UnmarshalKey("explainer.rules", &rules); err != nil {
		return nil, fmt.Errorf("failed to decode explainer.rules: %w", err)
	}
	return rules, nil
}

// GetLLM returns the narrator provider configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:        c.GetString("bedrock.region"),
		ModelID:       c.GetString("bedrock.model_id"),
		MaxTokens:     c.GetInt("bedrock.max_tokens"),
		Temperature:   float32(c.GetFloat64("bedrock.temperature")),
		TopP:          float32(c.GetFloat64("bedrock.top_p")),
		MaxPromptSize: c.GetInt("bedrock.max_prompt_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:        c.GetString("gemini.api_key"),
		ModelName:     c.GetString("gemini.model_name"),
		MaxTokens:     c.GetInt("gemini.max_tokens"),
		Temperature:   float32(c.GetFloat64("gemini.temperature")),
		TopP:          float32(c.GetFloat64("gemini.top_p")),
		MaxPromptSize: c.GetInt("gemini.max_prompt_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:        c.GetString("openai.api_key"),
		ModelName:     c.GetString("openai.model_name"),
		MaxTokens:     c.GetInt("openai.max_tokens"),
		Temperature:   float32(c.GetFloat64("openai.temperature")),
		TopP:          float32(c.GetFloat64("openai.top_p")),
		MaxPromptSize: c.GetInt("openai.max_prompt_size"),
	}
}
