package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/notyorkbot/fax-capacitor-vesper/internal/classify"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/config"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/metrics"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/pipeline"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/providers"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/quality"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/render"
	"github.com/notyorkbot/fax-capacitor-vesper/version"
)

var (
	cfgFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "faxtriage",
	Short: "Inbound fax classification with vision-model triage",
	Long: `Faxtriage converts inbound fax PDFs into page images, assesses their
scan quality, and classifies each document with a vision model.

Every document yields a structured record with document type, priority,
extracted fields, and quality flags; unreadable or failing documents
produce a conservative fallback record instead of an error.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.faxtriage/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "json", "output format: json or yaml",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildPipeline wires the full processing stack from configuration.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, *metrics.UsageAccumulator, error) {
	classifier, err := buildClassifier(cfg)
	if err != nil {
		return nil, nil, err
	}

	validator, err := classify.NewValidator(cfg.Classification.ConfidenceThreshold)
	if err != nil {
		return nil, nil, fmt.Errorf("building validator: %w", err)
	}

	renderer := render.NewRenderer(render.Config{
		DPI:        cfg.Render.DPI,
		MaxWorkers: cfg.Render.MaxWorkers,
		Logger:     logger,
	})

	usage := metrics.NewUsageAccumulator(cfg.PricingRates())

	p, err := pipeline.New(pipeline.Config{
		Renderer:   renderer,
		Analyzer:   quality.NewAnalyzer(cfg.Thresholds()),
		Policy: pipeline.SelectionPolicy{
			PageCap:           cfg.Selection.PageCap,
			ShortDocThreshold: cfg.Selection.ShortDocThreshold,
		},
		Classifier:   classifier,
		Validator:    validator,
		Usage:        usage,
		Instructions: classify.Prompt(cfg.PracticeInfo(), cfg.Classification.ConfidenceThreshold),
		MaxTokens:    cfg.Classification.MaxTokens,
		Temperature:  cfg.Classification.Temperature,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return p, usage, nil
}

func buildClassifier(cfg *config.Config) (providers.Classifier, error) {
	apiKey := cfg.ResolvedAPIKey()
	timeout := time.Duration(cfg.Provider.TimeoutS) * time.Second

	switch cfg.Provider.Type {
	case providers.AnthropicName:
		return providers.NewAnthropicClient(providers.AnthropicConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.Provider.BaseURL,
			Model:       cfg.Provider.Model,
			MaxTokens:   cfg.Classification.MaxTokens,
			Temperature: cfg.Classification.Temperature,
			Timeout:     timeout,
			RateLimit:   cfg.Provider.RateLimit,
			Retry:       cfg.RetryPolicy(),
		}), nil
	case providers.OpenAIName:
		return providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.Provider.BaseURL,
			Model:       cfg.Provider.Model,
			MaxTokens:   cfg.Classification.MaxTokens,
			Temperature: cfg.Classification.Temperature,
			Timeout:     timeout,
			RateLimit:   cfg.Provider.RateLimit,
			Retry:       cfg.RetryPolicy(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q", cfg.Provider.Type)
	}
}
