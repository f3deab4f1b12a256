package admin

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/podseek/internal/config"
	"github.com/cloo-solutions/podseek/internal/index"
	"github.com/cloo-solutions/podseek/internal/logging"
)

func loadRuntime() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	return cfg, logging.New(level, cfg.LogFormat), nil
}

func newIndexClient(ctx context.Context, cfg *config.Config) (*index.Client, error) {
	client, err := index.New(index.Config{
		Addresses: cfg.ElasticsearchURLs,
		Index:     cfg.ElasticsearchIndex,
		Username:  cfg.ElasticsearchUsername,
		Password:  cfg.ElasticsearchPassword,
		APIKey:    cfg.ElasticsearchAPIKey,
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure search index: %w", err)
	}
	return client, nil
}
