package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const EnvironmentProduction = "production"

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	ElasticsearchURLs     []string `envconfig:"ELASTICSEARCH_URLS" default:"http://localhost:9200"`
	ElasticsearchIndex    string   `envconfig:"ELASTICSEARCH_INDEX" default:"episodes"`
	ElasticsearchUsername string   `envconfig:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string   `envconfig:"ELASTICSEARCH_PASSWORD"`
	ElasticsearchAPIKey   string   `envconfig:"ELASTICSEARCH_API_KEY"`

	// CacheTTL overrides the per-environment defaults when set
	CacheTTL            time.Duration `envconfig:"CACHE_TTL"`
	CacheTTLProduction  time.Duration `envconfig:"CACHE_TTL_PRODUCTION" default:"1h"`
	CacheTTLDevelopment time.Duration `envconfig:"CACHE_TTL_DEVELOPMENT" default:"1m"`
	CacheSweepInterval  time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"1m"`

	CaptionFetchTimeout time.Duration `envconfig:"CAPTION_FETCH_TIMEOUT" default:"10s"`
	IndexSyncInterval   time.Duration `envconfig:"INDEX_SYNC_INTERVAL" default:"0s"`

	HighlightFragmentSize      int     `envconfig:"HIGHLIGHT_FRAGMENT_SIZE" default:"150"`
	FallbackMinimumShouldMatch string  `envconfig:"FALLBACK_MINIMUM_SHOULD_MATCH" default:"75%"`
	WordOverlapRatio           float64 `envconfig:"WORD_OVERLAP_RATIO" default:"0.5"`
	SearchSize                 int     `envconfig:"SEARCH_SIZE" default:"20"`

	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey    string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE" default:"true"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	AdminAPIKey string `envconfig:"ADMIN_API_KEY"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("PODSEEK", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// ResultCacheTTL is the active TTL policy handed to the result cache
func (c *Config) ResultCacheTTL() time.Duration {
	if c.CacheTTL > 0 {
		return c.CacheTTL
	}
	if c.IsProduction() {
		return c.CacheTTLProduction
	}
	return c.CacheTTLDevelopment
}

// HasS3 reports whether s3:// caption locations can be resolved
func (c *Config) HasS3() bool {
	return c.S3Bucket != "" || c.S3Endpoint != ""
}

func (c *Config) HasAdminKey() bool {
	return c.AdminAPIKey != ""
}
