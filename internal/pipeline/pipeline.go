// Package pipeline wires the per-document classification flow:
// render -> quality -> selection -> classifier -> validation -> assembly.
//
// Each document is processed independently and statelessly; every failure
// path terminates in a well-formed (possibly fallback) record or a
// kind-tagged error, never a crash.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/notyorkbot/fax-capacitor-vesper/internal/classify"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/metrics"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/providers"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/quality"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/render"
)

// ErrorKind tags a per-document terminal failure for collaborators.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindDocumentUnreadable    ErrorKind = "document_unreadable"
	KindConversionError       ErrorKind = "conversion_error"
	KindFatalAPIError         ErrorKind = "fatal_api_error"
	KindTransientAPIExhausted ErrorKind = "transient_api_error_exhausted"
)

// Outcome is the result of processing one document. Record is always present
// (at least the safe fallback) except when the context was cancelled, in
// which case Err carries the cancellation and the document is excluded from
// batch results.
type Outcome struct {
	Record   *classify.Record `json:"record"`
	Kind     ErrorKind        `json:"error_kind,omitempty"`
	Err      error            `json:"-"`
	Duration time.Duration    `json:"duration"`
}

// Renderer rasterizes a PDF into page images. Satisfied by
// *render.Renderer.
type Renderer interface {
	Render(ctx context.Context, pdf []byte, limit int) (*render.Result, error)
}

// Config assembles a Pipeline from its collaborators and tunables.
type Config struct {
	Renderer   Renderer
	Analyzer   *quality.Analyzer
	Policy     SelectionPolicy
	Classifier providers.Classifier
	Validator  *classify.Validator
	Usage      *metrics.UsageAccumulator

	Instructions string // Classification prompt sent with every request
	MaxTokens    int
	Temperature  float64

	Logger *slog.Logger
}

// Pipeline processes one document at a time. It holds no per-document state
// and is safe for concurrent use by parallel batch workers.
type Pipeline struct {
	renderer   Renderer
	analyzer   *quality.Analyzer
	policy     SelectionPolicy
	classifier providers.Classifier
	validator  *classify.Validator
	usage      *metrics.UsageAccumulator

	instructions string
	maxTokens    int
	temperature  float64

	logger *slog.Logger
}

// New creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Renderer == nil {
		return nil, errors.New("pipeline: renderer is required")
	}
	if cfg.Analyzer == nil {
		return nil, errors.New("pipeline: analyzer is required")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("pipeline: classifier is required")
	}
	if cfg.Validator == nil {
		return nil, errors.New("pipeline: validator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		renderer:     cfg.Renderer,
		analyzer:     cfg.Analyzer,
		policy:       cfg.Policy.normalize(),
		classifier:   cfg.Classifier,
		validator:    cfg.Validator,
		usage:        cfg.Usage,
		instructions: cfg.Instructions,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		logger:       logger.With("component", "pipeline"),
	}, nil
}

// Process classifies one document from raw PDF bytes.
func (p *Pipeline) Process(ctx context.Context, pdf []byte) Outcome {
	start := time.Now()
	out := p.process(ctx, pdf)
	out.Duration = time.Since(start)
	return out
}

func (p *Pipeline) process(ctx context.Context, pdf []byte) Outcome {
	rendered, err := p.renderer.Render(ctx, pdf, p.policy.RenderLimit())
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Err: ctx.Err()}
		}
		kind := KindConversionError
		if errors.Is(err, render.ErrDocumentUnreadable) {
			kind = KindDocumentUnreadable
		}
		return p.failed(kind, err, classify.FlagConversionError, 0, 0)
	}

	// Per-page quality; a page whose image cannot be decoded is dropped and
	// processing continues with the rest.
	pages := make([]render.PageImage, 0, len(rendered.Pages))
	verdicts := make([]quality.PageQuality, 0, len(rendered.Pages))
	for _, page := range rendered.Pages {
		q, err := p.analyzer.Analyze(page.Data)
		if err != nil {
			p.logger.Warn("dropping undecodable page", "page", page.Index, "error", err)
			continue
		}
		pages = append(pages, page)
		verdicts = append(verdicts, q)
	}
	if len(pages) == 0 {
		return p.failed(KindConversionError,
			quality.ErrImageDecode, classify.FlagConversionError, 0, rendered.TotalPages)
	}

	sel := p.policy.Select(pages, verdicts, rendered.TotalPages)

	images := make([][]byte, len(sel.Pages))
	for i, page := range sel.Pages {
		images[i] = page.Data
	}

	req := &providers.ClassifyRequest{
		Instructions: p.instructions,
		Pages:        images,
		MaxTokens:    p.maxTokens,
		Temperature:  p.temperature,
		RequestID:    uuid.New().String(),
	}

	raw, err := p.classifier.Classify(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Err: ctx.Err()}
		}
		kind := KindFatalAPIError
		if providers.IsTransient(err) {
			kind = KindTransientAPIExhausted
		}
		out := p.failed(kind, err, classify.FlagProcessingError, len(sel.Pages), sel.TotalPages)
		out.Record.PageQuality = sel.Tier
		return out
	}

	// Usage is recorded before validation: a response that fails validation
	// still cost tokens.
	if p.usage != nil {
		p.usage.Add(raw.InputTokens, raw.OutputTokens)
	}

	result := p.validator.Validate(raw.Text)

	record := classify.Assemble(classify.AssembleInput{
		Result:         result,
		PagesProcessed: len(sel.Pages),
		TotalPages:     sel.TotalPages,
		DocumentTier:   sel.Tier,
		AllBlank:       sel.AllBlank,
	})

	p.logger.Debug("document classified",
		"type", record.DocumentType,
		"confidence", record.Confidence,
		"priority", record.Priority,
		"pages", record.PageCountProcessed,
		"quality", record.PageQuality,
		"attempts", raw.Attempts,
	)

	return Outcome{Record: record}
}

// ProcessFile classifies one document read from disk.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) Outcome {
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		out := p.failed(KindDocumentUnreadable, err, classify.FlagConversionError, 0, 0)
		out.Duration = time.Since(start)
		return out
	}

	out := p.process(ctx, data)
	out.Duration = time.Since(start)
	return out
}

// failed builds a terminal per-document outcome that still carries a
// well-formed fallback record.
func (p *Pipeline) failed(kind ErrorKind, err error, flag classify.Flag, processed, total int) Outcome {
	p.logger.Warn("document failed", "kind", kind, "error", err)
	record := classify.Assemble(classify.AssembleInput{
		Result:         classify.Fallback(flag),
		PagesProcessed: processed,
		TotalPages:     total,
		DocumentTier:   quality.TierPoor,
	})
	return Outcome{
		Record: record,
		Kind:   kind,
		Err:    err,
	}
}
