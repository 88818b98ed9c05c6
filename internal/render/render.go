// Package render converts fax PDF documents into per-page PNG images.
//
// pdfcpu parses the document and supplies the page count; each page is then
// rasterized with pdftoppm (poppler-utils), which renders page content
// correctly where pure image extraction would not.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrDocumentUnreadable indicates input that cannot be parsed as a valid PDF
// (corrupt, encrypted, or zero pages). Terminal per-document; never retried.
var ErrDocumentUnreadable = errors.New("document unreadable")

// ErrConversionFailed indicates a parseable document for which no page could
// be rendered to an image.
var ErrConversionFailed = errors.New("page conversion failed")

// PageImage is one rendered page. Immutable once produced.
type PageImage struct {
	Data   []byte // Encoded PNG bytes
	Index  int    // 0-based page index within the source document
	Width  int    // Pixels
	Height int    // Pixels
}

// Result holds the ordered rendered pages plus document-level page counts.
type Result struct {
	Pages      []PageImage
	TotalPages int
	Dropped    []int // 0-based indexes of pages that failed to render
}

// Config configures a Renderer.
type Config struct {
	DPI        int // Render resolution (default 300)
	MaxWorkers int // Concurrent page renders (default NumCPU)
	Logger     *slog.Logger
}

// Renderer converts document bytes to page images at a fixed resolution.
type Renderer struct {
	dpi        int
	maxWorkers int
	logger     *slog.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(cfg Config) *Renderer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = 300
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Renderer{
		dpi:        dpi,
		maxWorkers: workers,
		logger:     logger.With("component", "render"),
	}
}

// DPI returns the configured render resolution.
func (r *Renderer) DPI() int {
	return r.dpi
}

// Render converts document bytes into an ordered page image sequence.
// A positive limit rasterizes only the first limit pages; TotalPages still
// reports the full document length. A single page failing to render drops
// that page and continues; the document fails only when it cannot be parsed
// at all or no page renders.
func (r *Renderer) Render(ctx context.Context, pdf []byte, limit int) (*Result, error) {
	pageCount, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentUnreadable, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrDocumentUnreadable)
	}

	renderCount := pageCount
	if limit > 0 && limit < renderCount {
		renderCount = limit
	}

	// pdftoppm reads from disk; stage the document in a temp dir that also
	// receives the rendered pages.
	tmpDir, err := os.MkdirTemp("", "faxtriage-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage document: %w", err)
	}

	type pageResult struct {
		index int
		img   *PageImage
		err   error
	}

	results := make(chan pageResult, renderCount)
	sem := make(chan struct{}, r.maxWorkers)
	var wg sync.WaitGroup

	for page := 0; page < renderCount; page++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(index int) {
			defer wg.Done()
			defer func() { <-sem }()

			img, err := r.renderPage(ctx, pdfPath, tmpDir, index)
			results <- pageResult{index: index, img: img, err: err}
		}(page)
	}

	wg.Wait()
	close(results)

	pages := make([]PageImage, 0, renderCount)
	var dropped []int
	for pr := range results {
		if pr.err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("page render failed, dropping page", "page", pr.index, "error", pr.err)
			dropped = append(dropped, pr.index)
			continue
		}
		pages = append(pages, *pr.img)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages rendered (%d attempted)", ErrConversionFailed, renderCount)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	sort.Ints(dropped)

	return &Result{
		Pages:      pages,
		TotalPages: pageCount,
		Dropped:    dropped,
	}, nil
}

// RenderFile reads a document from disk and renders it.
func (r *Renderer) RenderFile(ctx context.Context, path string, limit int) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentUnreadable, err)
	}
	return r.Render(ctx, data, limit)
}

// renderPage rasterizes one page with pdftoppm.
// Flags: -png output, -f/-l bound to a single page, -r sets DPI, -singlefile
// suppresses the page-number suffix.
func (r *Renderer) renderPage(ctx context.Context, pdfPath, tmpDir string, index int) (*PageImage, error) {
	outputPrefix := filepath.Join(tmpDir, fmt.Sprintf("page_%04d", index))
	pageStr := fmt.Sprintf("%d", index+1)

	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", r.dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("rendered page is not a valid image: %w", err)
	}

	return &PageImage{
		Data:   data,
		Index:  index,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
