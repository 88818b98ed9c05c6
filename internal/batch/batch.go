// Package batch runs the classification pipeline over a directory of
// fax PDFs with bounded parallelism.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notyorkbot/fax-capacitor-vesper/internal/pipeline"
)

// DocumentResult pairs one input file with its pipeline outcome.
type DocumentResult struct {
	Filename string           `json:"filename"`
	Outcome  pipeline.Outcome `json:"outcome"`
}

// Run summarizes one batch invocation. Documents cancelled mid-flight are
// excluded from Results and counted in Skipped.
type Run struct {
	ID        string           `json:"run_id"`
	Directory string           `json:"directory"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Results   []DocumentResult `json:"results"`
	Skipped   int              `json:"skipped"`
}

// Config assembles a Runner.
type Config struct {
	Pipeline   *pipeline.Pipeline
	MaxWorkers int // Concurrent documents, default 4
	Logger     *slog.Logger
}

// Runner executes batch runs. Safe for reuse across runs.
type Runner struct {
	pipeline   *pipeline.Pipeline
	maxWorkers int
	logger     *slog.Logger
}

// NewRunner creates a batch runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("batch: pipeline is required")
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		pipeline:   cfg.Pipeline,
		maxWorkers: workers,
		logger:     logger.With("component", "batch"),
	}, nil
}

// ListPDFs returns the PDF files in dir, sorted by name.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run classifies every PDF in dir. A failing document never aborts the
// batch; its outcome carries a fallback record and an error kind.
func (r *Runner) Run(ctx context.Context, dir string) (*Run, error) {
	files, err := ListPDFs(dir)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.New().String(),
		Directory: dir,
		StartedAt: time.Now(),
	}

	r.logger.Info("batch started", "run_id", run.ID, "documents", len(files), "workers", r.maxWorkers)

	results := make([]DocumentResult, len(files))
	done := make([]bool, len(files))

	sem := make(chan struct{}, r.maxWorkers)
	var wg sync.WaitGroup
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			out := r.pipeline.ProcessFile(ctx, path)
			if out.Record == nil {
				// Cancelled before completion, leave the slot empty.
				return
			}
			results[i] = DocumentResult{Filename: filepath.Base(path), Outcome: out}
			done[i] = true

			r.logger.Info("document processed",
				"file", filepath.Base(path),
				"type", out.Record.DocumentType,
				"confidence", out.Record.Confidence,
				"duration", out.Duration.Round(time.Millisecond),
			)
		}(i, path)
	}
	wg.Wait()

	for i := range files {
		if done[i] {
			run.Results = append(run.Results, results[i])
		} else {
			run.Skipped++
		}
	}
	run.Duration = time.Since(run.StartedAt)

	r.logger.Info("batch finished",
		"run_id", run.ID,
		"processed", len(run.Results),
		"skipped", run.Skipped,
		"duration", run.Duration.Round(time.Millisecond),
	)

	return run, nil
}
