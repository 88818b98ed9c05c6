package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/notyorkbot/fax-capacitor-vesper/internal/batch"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/classify"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/metrics"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/pipeline"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/quality"
)

func sampleRun() *batch.Run {
	record := func(dt classify.DocumentType, conf float64, flags ...string) *classify.Record {
		if flags == nil {
			flags = []string{}
		}
		return &classify.Record{
			DocumentType:       dt,
			Confidence:         conf,
			Priority:           classify.PriorityMedium,
			ExtractedFields:    map[string]any{},
			PageCountProcessed: 1,
			PageCountTotal:     1,
			PageQuality:        quality.TierGood,
			Flags:              flags,
		}
	}
	return &batch.Run{
		ID:        "run-1",
		Directory: "/tmp/faxes",
		StartedAt: time.Now(),
		Duration:  3 * time.Second,
		Results: []batch.DocumentResult{
			{Filename: "a.pdf", Outcome: pipeline.Outcome{Record: record(classify.TypeLabResult, 0.92), Duration: time.Second}},
			{Filename: "b.pdf", Outcome: pipeline.Outcome{Record: record(classify.TypeOther, 0.0, "parsing_error"), Duration: 2 * time.Second}},
		},
	}
}

func sampleUsage() metrics.Usage {
	return metrics.Usage{
		InputTokens:      2500,
		OutputTokens:     300,
		TotalTokens:      2800,
		Requests:         2,
		EstimatedCostUSD: 0.012,
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, sampleRun(), sampleUsage(), nil)

	out := buf.String()
	for _, want := range []string{"a.pdf", "lab_result", "0.92", "b.pdf", "parsing_error", "2800", "$0.0120"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Accuracy") {
		t.Error("accuracy line printed without expectations")
	}
}

func TestWriteTableScored(t *testing.T) {
	exp := Expectations{
		"a.pdf": "lab_result",
		"b.pdf": "pharmacy_request",
	}

	var buf bytes.Buffer
	WriteTable(&buf, sampleRun(), sampleUsage(), exp)

	out := buf.String()
	if !strings.Contains(out, "Accuracy: 1/2 (50.0%)") {
		t.Errorf("accuracy line missing or wrong:\n%s", out)
	}
	if !strings.Contains(out, "EXPECTED") {
		t.Errorf("expected column missing:\n%s", out)
	}
}

func TestBuildSummaryAndSave(t *testing.T) {
	exp := Expectations{"a.pdf": "lab_result", "b.pdf": "lab_result"}
	summary := BuildSummary(sampleRun(), "claude-sonnet-4-20250514", sampleUsage(), exp)

	if summary.TotalDocuments != 2 {
		t.Errorf("total = %d, want 2", summary.TotalDocuments)
	}
	if summary.Correct != 1 {
		t.Errorf("correct = %d, want 1", summary.Correct)
	}
	if summary.AccuracyPercent != 50 {
		t.Errorf("accuracy = %v, want 50", summary.AccuracyPercent)
	}

	path := filepath.Join(t.TempDir(), "results.json")
	if err := summary.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var loaded Summary
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("saved file is not valid JSON: %v", err)
	}
	if loaded.RunID != "run-1" || loaded.Model != "claude-sonnet-4-20250514" {
		t.Errorf("roundtrip lost fields: %+v", loaded)
	}
	if loaded.TokenUsage.TotalTokens != 2800 {
		t.Errorf("token usage = %+v", loaded.TokenUsage)
	}
}

func TestLoadExpectations(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "expected.yaml")
		if err := os.WriteFile(path, []byte("a.pdf: lab_result\nb.pdf: marketing_junk\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		exp, err := LoadExpectations(path)
		if err != nil {
			t.Fatalf("LoadExpectations: %v", err)
		}
		if exp["a.pdf"] != "lab_result" || exp["b.pdf"] != "marketing_junk" {
			t.Errorf("exp = %v", exp)
		}
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "expected.json")
		if err := os.WriteFile(path, []byte(`{"a.pdf": "lab_result"}`), 0o644); err != nil {
			t.Fatal(err)
		}

		exp, err := LoadExpectations(path)
		if err != nil {
			t.Fatalf("LoadExpectations: %v", err)
		}
		if exp["a.pdf"] != "lab_result" {
			t.Errorf("exp = %v", exp)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadExpectations("/nonexistent.yaml"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
