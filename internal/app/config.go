package app

import (
	"context"

	"go.uber.org/zap"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/catalog"
)

// ServeConfig locates the configuration file.
type ServeConfig struct {
	ConfigPath string
}

// NewConfig loads and validates the configuration file.
func NewConfig(ctx context.Context, cfg ServeConfig, logger *zap.Logger) (domain.Config, error) {
	path := cfg.ConfigPath
	if path == "" {
		path = domain.DefaultConfigPath
	}
	config, err := catalog.NewLoader(logger).Load(ctx, path)
	if err != nil {
		return domain.Config{}, err
	}
	logger.Info("configuration loaded",
		zap.String("config", path),
		zap.Int("tools", len(config.Tools)),
		zap.Int("toolFiles", len(config.Catalog.ToolFiles)),
		zap.Int("mcpServers", len(config.MCPServers)),
	)
	return config, nil
}

// ValidateConfig loads the configuration without building anything.
func ValidateConfig(ctx context.Context, cfg ServeConfig, logging LoggingConfig) (domain.Config, error) {
	return NewConfig(ctx, cfg, NewLogger(logging))
}
