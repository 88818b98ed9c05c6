// Package config loads faxtriage settings from a YAML file with
// environment overrides and hot reload.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/notyorkbot/fax-capacitor-vesper/internal/classify"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/metrics"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/providers"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/quality"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("provider", defaults.Provider)
	viper.SetDefault("render", defaults.Render)
	viper.SetDefault("selection", defaults.Selection)
	viper.SetDefault("quality", defaults.Quality)
	viper.SetDefault("classification", defaults.Classification)
	viper.SetDefault("retry", defaults.Retry)
	viper.SetDefault("pricing", defaults.Pricing)
	viper.SetDefault("practice", defaults.Practice)
	viper.SetDefault("batch", defaults.Batch)

	// Environment variables with FAXTRIAGE_ prefix
	viper.SetEnvPrefix("FAXTRIAGE")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.faxtriage")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ResolvedAPIKey returns the provider API key with ${ENV_VAR} references
// expanded.
func (c *Config) ResolvedAPIKey() string {
	return ResolveEnvVars(c.Provider.APIKey)
}

// Thresholds converts the quality section to analyzer thresholds.
func (c *Config) Thresholds() quality.Thresholds {
	return quality.Thresholds{
		BlankContrastMax:   c.Quality.BlankContrastMax,
		BlackBrightnessMax: c.Quality.BlackBrightnessMax,
		BlankBrightnessMin: c.Quality.BlankBrightnessMin,
		GoodContrastMin:    c.Quality.GoodContrastMin,
		FairContrastMin:    c.Quality.FairContrastMin,
		ExposureMin:        c.Quality.ExposureMin,
		ExposureMax:        c.Quality.ExposureMax,
	}
}

// RetryPolicy converts the retry section to a provider retry policy.
func (c *Config) RetryPolicy() providers.RetryPolicy {
	return providers.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		Delay:       c.Retry.Delay,
		MaxDelay:    c.Retry.MaxDelay,
	}
}

// PricingRates converts the pricing section to metrics pricing.
func (c *Config) PricingRates() metrics.Pricing {
	return metrics.Pricing{
		InputPer1M:  c.Pricing.InputPer1M,
		OutputPer1M: c.Pricing.OutputPer1M,
	}
}

// PracticeInfo converts the practice section for prompt construction.
func (c *Config) PracticeInfo() classify.Practice {
	return classify.Practice{
		Name:     c.Practice.Name,
		Provider: c.Practice.Provider,
		Fax:      c.Practice.Fax,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Faxtriage configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export ANTHROPIC_API_KEY=xxx OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
