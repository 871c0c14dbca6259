package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors Config for the fields councild.yaml may set, except
// duration fields are plain strings ("2m", "30s") parsed with
// time.ParseDuration, the same string-then-ParseDuration convention
// tarsy's RunbooksYAMLConfig.CacheTTL uses, rather than relying on
// yaml.v3's raw int64-nanosecond decoding of time.Duration.
type yamlConfig struct {
	HTTPAddr       string               `yaml:"http_addr,omitempty"`
	StoreBackend   string               `yaml:"store_backend,omitempty"`
	DataDir        string               `yaml:"data_dir,omitempty"`
	ContextWindow  ContextWindowConfig  `yaml:"context_window,omitempty"`
	ModelTimeout   string               `yaml:"model_timeout,omitempty"`
	TitleTimeout   string               `yaml:"title_timeout,omitempty"`
	BackgroundPool BackgroundPoolConfig `yaml:"background_pool,omitempty"`
	Providers      ProvidersConfig      `yaml:"providers,omitempty"`
}

// Initialize loads, validates, and returns ready-to-use server
// configuration, the council-domain counterpart of tarsy's
// config.Initialize.
//
// Steps performed:
//  1. Start from DefaultConfig()
//  2. Load councild.yaml from configDir, if present (env-expanded)
//  3. Merge YAML overrides onto the defaults (non-zero values override)
//  4. Validate
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg := DefaultConfig()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "councild.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		var overlay yamlConfig
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, NewLoadError("councild.yaml", fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		override, err := overlay.toConfig(cfg)
		if err != nil {
			return nil, NewLoadError("councild.yaml", err)
		}
		if err := mergo.Merge(cfg, override, mergo.WithOverride); err != nil {
			return nil, NewLoadError("councild.yaml", fmt.Errorf("failed to merge config: %w", err))
		}
	case os.IsNotExist(err):
		log.Info("councild.yaml not found, using defaults", "path", path)
	default:
		return nil, NewLoadError("councild.yaml", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("configuration initialized",
		"http_addr", cfg.HTTPAddr,
		"store_backend", cfg.StoreBackend,
		"immediate_keep", cfg.ContextWindow.ImmediateKeep,
		"summary_retention", cfg.ContextWindow.SummaryRetention)

	return cfg, nil
}

// toConfig converts the YAML overlay into a Config suitable for merging
// onto defaults, carrying the base's duration values forward whenever the
// overlay left them unset so mergo.WithOverride doesn't zero them out.
func (y *yamlConfig) toConfig(base *Config) (*Config, error) {
	modelTimeout := base.ModelTimeout
	if y.ModelTimeout != "" {
		d, err := time.ParseDuration(y.ModelTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid model_timeout %q: %w", y.ModelTimeout, err)
		}
		modelTimeout = d
	}
	titleTimeout := base.TitleTimeout
	if y.TitleTimeout != "" {
		d, err := time.ParseDuration(y.TitleTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid title_timeout %q: %w", y.TitleTimeout, err)
		}
		titleTimeout = d
	}

	return &Config{
		HTTPAddr:       y.HTTPAddr,
		StoreBackend:   y.StoreBackend,
		DataDir:        y.DataDir,
		ContextWindow:  y.ContextWindow,
		ModelTimeout:   modelTimeout,
		TitleTimeout:   titleTimeout,
		BackgroundPool: y.BackgroundPool,
		Providers:      y.Providers,
	}, nil
}

func validate(cfg *Config) error {
	if cfg.StoreBackend != "json" && cfg.StoreBackend != "postgres" {
		return NewValidationError("store_backend", fmt.Errorf("must be \"json\" or \"postgres\", got %q", cfg.StoreBackend))
	}
	if cfg.ContextWindow.ImmediateKeep < 1 {
		return NewValidationError("context_window.immediate_keep", fmt.Errorf("must be >= 1"))
	}
	if cfg.ContextWindow.SummaryRetention < 1 {
		return NewValidationError("context_window.summary_retention", fmt.Errorf("must be >= 1"))
	}
	if cfg.ModelTimeout <= 0 {
		return NewValidationError("model_timeout", fmt.Errorf("must be > 0"))
	}
	if cfg.TitleTimeout <= 0 {
		return NewValidationError("title_timeout", fmt.Errorf("must be > 0"))
	}
	if cfg.BackgroundPool.Workers < 1 {
		return NewValidationError("background_pool.workers", fmt.Errorf("must be >= 1"))
	}
	if cfg.BackgroundPool.Backlog < 1 {
		return NewValidationError("background_pool.backlog", fmt.Errorf("must be >= 1"))
	}
	if cfg.StoreBackend == "json" && cfg.DataDir == "" {
		return NewValidationError("data_dir", fmt.Errorf("required when store_backend is \"json\""))
	}
	return nil
}
