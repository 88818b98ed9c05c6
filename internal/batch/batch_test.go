package batch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/notyorkbot/fax-capacitor-vesper/internal/classify"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/metrics"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/pipeline"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/providers"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/quality"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/render"
)

// stubRenderer returns one synthetic good-quality page regardless of input,
// keeping batch tests independent of poppler.
type stubRenderer struct {
	pageData []byte
}

func (s *stubRenderer) Render(ctx context.Context, pdf []byte, limit int) (*render.Result, error) {
	return &render.Result{
		Pages:      []render.PageImage{{Data: s.pageData, Index: 0}},
		TotalPages: 1,
	}, nil
}

func pagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := uint8(255)
			if (x+y)%2 == 0 {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func writePDFs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF stub"), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func newTestRunner(t *testing.T, c providers.Classifier, workers int) *Runner {
	t.Helper()
	validator, err := classify.NewValidator(0.65)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	p, err := pipeline.New(pipeline.Config{
		Renderer:     &stubRenderer{pageData: pagePNG(t)},
		Analyzer:     quality.NewAnalyzer(quality.DefaultThresholds()),
		Policy:       pipeline.DefaultSelectionPolicy(),
		Classifier:   c,
		Validator:    validator,
		Usage:        metrics.NewUsageAccumulator(metrics.DefaultPricing()),
		Instructions: "classify",
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	runner, err := NewRunner(Config{Pipeline: p, MaxWorkers: workers})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner
}

func TestListPDFs(t *testing.T) {
	dir := t.TempDir()
	writePDFs(t, dir, "b.pdf", "a.PDF", "c.pdf")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := ListPDFs(dir)
	if err != nil {
		t.Fatalf("ListPDFs: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files = %v, want 3 PDFs", files)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Errorf("files not sorted: %v", files)
		}
	}
}

func TestRunProcessesAll(t *testing.T) {
	dir := t.TempDir()
	writePDFs(t, dir, "one.pdf", "two.pdf", "three.pdf")

	mock := &providers.MockClassifier{
		ResponseText: `{"document_type": "lab_result", "confidence": 0.9, "priority": "high"}`,
	}
	runner := newTestRunner(t, mock, 2)

	run, err := runner.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.ID == "" {
		t.Error("run has no ID")
	}
	if len(run.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(run.Results))
	}
	if run.Skipped != 0 {
		t.Errorf("skipped = %d, want 0", run.Skipped)
	}
	// Results keep directory order regardless of completion order.
	wantOrder := []string{"one.pdf", "three.pdf", "two.pdf"}
	for i, r := range run.Results {
		if r.Filename != wantOrder[i] {
			t.Errorf("results[%d] = %q, want %q", i, r.Filename, wantOrder[i])
		}
		if r.Outcome.Record == nil {
			t.Errorf("%s has no record", r.Filename)
		}
	}
	if mock.Calls() != 3 {
		t.Errorf("classifier calls = %d, want 3", mock.Calls())
	}
}

// A document-level failure yields a fallback record, never aborts the rest.
func TestRunSurvivesFailures(t *testing.T) {
	dir := t.TempDir()
	writePDFs(t, dir, "one.pdf", "two.pdf")

	mock := &providers.MockClassifier{
		Err: &providers.APIError{StatusCode: 401, Message: "bad key", Transient: false},
	}
	runner := newTestRunner(t, mock, 1)

	run, err := runner.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(run.Results))
	}
	for _, r := range run.Results {
		if r.Outcome.Kind != pipeline.KindFatalAPIError {
			t.Errorf("%s kind = %q, want fatal_api_error", r.Filename, r.Outcome.Kind)
		}
		if r.Outcome.Record == nil || r.Outcome.Record.DocumentType != classify.TypeOther {
			t.Errorf("%s missing fallback record", r.Filename)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writePDFs(t, dir, "one.pdf", "two.pdf", "three.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &providers.MockClassifier{
		ResponseText: `{"document_type": "other", "confidence": 0.7, "priority": "none"}`,
	}
	runner := newTestRunner(t, mock, 1)

	run, err := runner.Run(ctx, dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Results) != 0 {
		t.Errorf("results = %d, want 0 with pre-cancelled context", len(run.Results))
	}
	if run.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", run.Skipped)
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	runner := newTestRunner(t, &providers.MockClassifier{}, 1)

	run, err := runner.Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Results) != 0 || run.Skipped != 0 {
		t.Errorf("run = %+v, want empty", run)
	}
}

func TestRunMissingDirectory(t *testing.T) {
	runner := newTestRunner(t, &providers.MockClassifier{}, 1)

	if _, err := runner.Run(context.Background(), "/nonexistent/faxes"); err == nil {
		t.Error("expected error for missing directory")
	}
}
