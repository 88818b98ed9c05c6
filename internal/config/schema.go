package config

import "time"

// Config holds faxtriage configuration.
// Loaded from config.yaml with FAXTRIAGE_ environment overrides.
type Config struct {
	Provider       ProviderCfg       `mapstructure:"provider" yaml:"provider"`
	Render         RenderCfg         `mapstructure:"render" yaml:"render"`
	Selection      SelectionCfg      `mapstructure:"selection" yaml:"selection"`
	Quality        QualityCfg        `mapstructure:"quality" yaml:"quality"`
	Classification ClassificationCfg `mapstructure:"classification" yaml:"classification"`
	Retry          RetryCfg          `mapstructure:"retry" yaml:"retry"`
	Pricing        PricingCfg        `mapstructure:"pricing" yaml:"pricing"`
	Practice       PracticeCfg       `mapstructure:"practice" yaml:"practice"`
	Batch          BatchCfg          `mapstructure:"batch" yaml:"batch"`
}

// ProviderCfg configures the vision model provider.
type ProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "anthropic", "openai"
	Model     string  `mapstructure:"model" yaml:"model"`           // Model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url"`     // Override API endpoint
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second, 0 disables
	TimeoutS  int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// RenderCfg configures PDF rasterization.
type RenderCfg struct {
	DPI        int `mapstructure:"dpi" yaml:"dpi"`
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"` // Concurrent page renders per document
}

// SelectionCfg configures the page selection policy.
type SelectionCfg struct {
	PageCap           int `mapstructure:"page_cap" yaml:"page_cap"`
	ShortDocThreshold int `mapstructure:"short_doc_threshold" yaml:"short_doc_threshold"`
}

// QualityCfg holds pixel-statistics thresholds for page assessment.
type QualityCfg struct {
	BlankContrastMax   float64 `mapstructure:"blank_contrast_max" yaml:"blank_contrast_max"`
	BlackBrightnessMax float64 `mapstructure:"black_brightness_max" yaml:"black_brightness_max"`
	BlankBrightnessMin float64 `mapstructure:"blank_brightness_min" yaml:"blank_brightness_min"`
	GoodContrastMin    float64 `mapstructure:"good_contrast_min" yaml:"good_contrast_min"`
	FairContrastMin    float64 `mapstructure:"fair_contrast_min" yaml:"fair_contrast_min"`
	ExposureMin        float64 `mapstructure:"exposure_min" yaml:"exposure_min"`
	ExposureMax        float64 `mapstructure:"exposure_max" yaml:"exposure_max"`
}

// ClassificationCfg configures model invocation and result gating.
type ClassificationCfg struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	MaxTokens           int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature         float64 `mapstructure:"temperature" yaml:"temperature"`
}

// RetryCfg bounds retries for transient provider failures.
type RetryCfg struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay" yaml:"delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// PricingCfg sets per-token rates for cost estimation.
type PricingCfg struct {
	InputPer1M  float64 `mapstructure:"input_per_1m" yaml:"input_per_1m"`
	OutputPer1M float64 `mapstructure:"output_per_1m" yaml:"output_per_1m"`
}

// PracticeCfg identifies the receiving practice for misdirection checks.
type PracticeCfg struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Provider string `mapstructure:"provider" yaml:"provider"`
	Fax      string `mapstructure:"fax" yaml:"fax"`
}

// BatchCfg configures directory batch runs.
type BatchCfg struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"` // Concurrent documents
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderCfg{
			Type:     "anthropic",
			Model:    "claude-sonnet-4-20250514",
			APIKey:   "${ANTHROPIC_API_KEY}",
			TimeoutS: 120,
		},
		Render: RenderCfg{
			DPI: 300,
		},
		Selection: SelectionCfg{
			PageCap:           3,
			ShortDocThreshold: 5,
		},
		Quality: QualityCfg{
			BlankContrastMax:   10,
			BlackBrightnessMax: 15,
			BlankBrightnessMin: 240,
			GoodContrastMin:    50,
			FairContrastMin:    25,
			ExposureMin:        60,
			ExposureMax:        200,
		},
		Classification: ClassificationCfg{
			ConfidenceThreshold: 0.65,
			MaxTokens:           1024,
			Temperature:         0,
		},
		Retry: RetryCfg{
			MaxAttempts: 3,
			Delay:       4 * time.Second,
			MaxDelay:    10 * time.Second,
		},
		Pricing: PricingCfg{
			InputPer1M:  3.00,
			OutputPer1M: 15.00,
		},
		Practice: PracticeCfg{
			Name:     "Whispering Pines Family Medicine",
			Provider: "Dr. Evelyn Sato, DO",
			Fax:      "555-867-5309",
		},
		Batch: BatchCfg{
			MaxWorkers: 4,
		},
	}
}
