package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderFake   = "fake"

	StoreBolt     = "bolt"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreWeaviate = "weaviate"
)

// ErrInvalidConfig is returned by Validate for any unusable setting.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Store    StoreConfig    `mapstructure:"store"`
	Indexer  IndexerConfig  `mapstructure:"indexer"`
	Search   SearchConfig   `mapstructure:"search"`
	Server   ServerConfig   `mapstructure:"server"`
}

type ProviderConfig struct {
	Kind       string        `mapstructure:"kind"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	Credential string        `mapstructure:"credential"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Kind     string         `mapstructure:"kind"`
	Path     string         `mapstructure:"path"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Weaviate WeaviateConfig `mapstructure:"weaviate"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type WeaviateConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"api_key"`
	Class  string `mapstructure:"class"`
}

type IndexerConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	// MaxBookmarks caps the number of leaves visited per pass; 0 disables it.
	MaxBookmarks int `mapstructure:"max_bookmarks"`
}

type SearchConfig struct {
	DefaultK  int `mapstructure:"default_k"`
	OverFetch int `mapstructure:"over_fetch"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	APIToken string `mapstructure:"api_token"`
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	// Every key needs a default so that Unmarshal sees its env override.
	v.SetDefault("provider.kind", ProviderOpenAI)
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.credential", "")
	v.SetDefault("provider.dimensions", 0)
	v.SetDefault("provider.timeout", 60*time.Second)
	v.SetDefault("store.kind", StoreBolt)
	v.SetDefault("store.path", filepath.Join(home, ".bookmark-index", "embeddings.db"))
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.table", "bookmark_embeddings")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key", "bookmark-index:documents")
	v.SetDefault("store.weaviate.host", "")
	v.SetDefault("store.weaviate.class", "Bookmark")
	v.SetDefault("indexer.batch_size", 10)
	v.SetDefault("indexer.max_bookmarks", 0)
	v.SetDefault("search.default_k", 10)
	v.SetDefault("search.over_fetch", 3)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.api_token", "")
}

// LoadConfig reads configPath (if non-empty) and the environment into a
// Config. Secrets are taken from OPENAI_API_KEY, GEMINI_API_KEY and
// WEAVIATE_APIKEY when the file does not set them.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals an already populated viper instance, so that cobra
// flags bound to it take precedence over file values.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("BOOKMARK_INDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("store.weaviate.api_key", "WEAVIATE_APIKEY"); err != nil {
		return nil, fmt.Errorf("error binding env: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Provider.Credential == "" {
		config.Provider.Credential = credentialFromEnv(config.Provider.Kind)
	}

	return &config, nil
}

func credentialFromEnv(kind string) string {
	switch kind {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// Validate checks the settings that do not depend on a live backend.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderOpenAI, ProviderGemini, ProviderOllama, ProviderFake:
	default:
		return fmt.Errorf("%w: unknown provider kind %q", ErrInvalidConfig, c.Provider.Kind)
	}

	switch c.Store.Kind {
	case StoreBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the bolt store", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("%w: store.postgres.dsn is required", ErrInvalidConfig)
		}
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("%w: store.redis.addr is required", ErrInvalidConfig)
		}
	case StoreWeaviate:
		if c.Store.Weaviate.Host == "" {
			return fmt.Errorf("%w: store.weaviate.host is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store kind %q", ErrInvalidConfig, c.Store.Kind)
	}

	if c.Indexer.BatchSize <= 0 {
		return fmt.Errorf("%w: indexer.batch_size must be positive", ErrInvalidConfig)
	}
	if c.Indexer.MaxBookmarks < 0 {
		return fmt.Errorf("%w: indexer.max_bookmarks must not be negative", ErrInvalidConfig)
	}
	if c.Search.OverFetch < 1 {
		return fmt.Errorf("%w: search.over_fetch must be at least 1", ErrInvalidConfig)
	}
	return nil
}
