package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/notyorkbot/fax-capacitor-vesper/internal/config"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file.pdf>",
	Short: "Classify a single fax PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		p, usage, err := buildPipeline(cfg, logger)
		if err != nil {
			return err
		}

		out := p.ProcessFile(cmd.Context(), args[0])
		if out.Record == nil {
			return out.Err
		}
		if out.Kind != "" {
			logger.Warn("classification degraded", "kind", out.Kind, "error", out.Err)
		}

		var data []byte
		switch outputFormat {
		case "yaml":
			data, err = yaml.Marshal(out.Record)
		default:
			data, err = json.MarshalIndent(out.Record, "", "  ")
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))

		snap := usage.Snapshot()
		logger.Info("usage",
			"input_tokens", snap.InputTokens,
			"output_tokens", snap.OutputTokens,
			"estimated_cost_usd", fmt.Sprintf("%.4f", snap.EstimatedCostUSD),
		)
		return nil
	},
}
