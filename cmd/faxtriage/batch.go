package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/notyorkbot/fax-capacitor-vesper/internal/batch"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/config"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/report"
)

var (
	batchResults  string
	batchExpected string
	batchWorkers  int
)

var batchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Classify every PDF in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		var exp report.Expectations
		if batchExpected != "" {
			exp, err = report.LoadExpectations(batchExpected)
			if err != nil {
				return err
			}
		}

		p, usage, err := buildPipeline(cfg, logger)
		if err != nil {
			return err
		}

		workers := cfg.Batch.MaxWorkers
		if batchWorkers > 0 {
			workers = batchWorkers
		}
		runner, err := batch.NewRunner(batch.Config{
			Pipeline:   p,
			MaxWorkers: workers,
			Logger:     logger,
		})
		if err != nil {
			return err
		}

		run, err := runner.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		snap := usage.Snapshot()
		report.WriteTable(os.Stdout, run, snap, exp)

		if batchResults != "" {
			summary := report.BuildSummary(run, cfg.Provider.Model, snap, exp)
			if err := summary.Save(batchResults); err != nil {
				return err
			}
			logger.Info("results saved", "path", batchResults)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchResults, "results", "", "write results JSON to this path")
	batchCmd.Flags().StringVar(&batchExpected, "expected", "", "YAML file mapping filename to expected type for accuracy scoring")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "concurrent documents (overrides config)")
}
