package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/chain-risk/")
	v.AddConfigPath("$HOME/.chain-risk")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit YAML file
func NewFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &Config{v: v}, nil
}

// NewFromEnv creates a configuration instance from defaults and CHAIN_RISK_* environment
// variables only, without searching for a config file
func NewFromEnv() *Config {
	_ = godotenv.Load()

	v := NewEmptyViper()
	bindEnv(v)
	return &Config{v: v}
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvPrefix("CHAIN_RISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

func setDefaults(v *viper.Viper) {
	// Analysis
	v.SetDefault("analysis.timeout", "30s")

	// Server
	v.SetDefault("server.listen_address", "0.0.0.0:8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Chain data
	v.SetDefault("ethereum.provider", "mock")
	v.SetDefault("ethereum.rpc_url", "https://eth.llamarpc.com")
	v.SetDefault("ethereum.timeout", "10s")

	// Models
	v.SetDefault("models.dir", "./models")
	v.SetDefault("models.test_fraction", 0.2)
	v.SetDefault("models.seed", 42)
	v.SetDefault("models.clusters", 4)
	v.SetDefault("models.trees", 100)
	v.SetDefault("models.max_depth", 5)
	v.SetDefault("models.learning_rate", 0.1)

	// Cache
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.cleanup_frequency", "10m")
	v.SetDefault("cache.sqlite_path", "/data/risk_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/chain_risk")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	// Publisher
	v.SetDefault("publisher.type", "none")
	v.SetDefault("publisher.targets", []string{})
	v.SetDefault("publisher.nats.url", "nats://localhost:4222")
	v.SetDefault("publisher.nats.subject", "risk.analysis")
	v.SetDefault("publisher.smtp.addr", "localhost:25")
	v.SetDefault("publisher.smtp.from", "chain-risk@localhost")
	v.SetDefault("publisher.smtp.to", []string{})
	v.SetDefault("publisher.smtp.username", "")
	v.SetDefault("publisher.smtp.password", "")
	v.SetDefault("publisher.smtp.min_level", "high")
	v.SetDefault("publisher.smtp.timeout", "10s")

	// Narrator
	v.SetDefault("llm.provider", "none")

	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 400)
	v.SetDefault("bedrock.temperature", 0.2)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_prompt_size", 4096)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 400)
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_prompt_size", 4096)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 400)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_prompt_size", 4096)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
