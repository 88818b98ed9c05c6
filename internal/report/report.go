// Package report renders batch results as a summary table and a
// machine-readable JSON file.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/notyorkbot/fax-capacitor-vesper/internal/batch"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/metrics"
)

// Expectations maps filename to expected document type for accuracy
// scoring. Optional; an empty map disables the Expected and Match columns.
type Expectations map[string]string

// LoadExpectations reads a filename-to-type map from a YAML (or JSON) file.
func LoadExpectations(path string) (Expectations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading expectations: %w", err)
	}
	var exp Expectations
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("parsing expectations: %w", err)
	}
	return exp, nil
}

// Summary is the JSON results document written after a batch run.
type Summary struct {
	Timestamp       string                 `json:"timestamp"`
	RunID           string                 `json:"run_id"`
	Model           string                 `json:"model"`
	TotalDocuments  int                    `json:"total_documents"`
	Skipped         int                    `json:"skipped,omitempty"`
	Correct         int                    `json:"correct_classifications,omitempty"`
	AccuracyPercent float64                `json:"accuracy_percent,omitempty"`
	TokenUsage      metrics.Usage          `json:"token_usage"`
	Results         []batch.DocumentResult `json:"results"`
}

// BuildSummary assembles the results document for a finished run.
func BuildSummary(run *batch.Run, model string, usage metrics.Usage, exp Expectations) *Summary {
	s := &Summary{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		RunID:          run.ID,
		Model:          model,
		TotalDocuments: len(run.Results),
		Skipped:        run.Skipped,
		TokenUsage:     usage,
		Results:        run.Results,
	}
	if len(exp) > 0 {
		for _, r := range run.Results {
			if expected, ok := exp[r.Filename]; ok && expected == string(r.Outcome.Record.DocumentType) {
				s.Correct++
			}
		}
		if s.TotalDocuments > 0 {
			s.AccuracyPercent = float64(s.Correct) / float64(s.TotalDocuments) * 100
		}
	}
	return s
}

// Save writes the summary as indented JSON.
func (s *Summary) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

// WriteTable renders per-document rows followed by an accuracy line when
// expectations are supplied and the token and cost footer.
func WriteTable(out io.Writer, run *batch.Run, usage metrics.Usage, exp Expectations) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	scored := len(exp) > 0
	if scored {
		fmt.Fprintln(w, "FILE\tEXPECTED\tTYPE\tMATCH\tCONF\tPRIORITY\tQUALITY\tTIME\tFLAGS")
	} else {
		fmt.Fprintln(w, "FILE\tTYPE\tCONF\tPRIORITY\tQUALITY\tTIME\tFLAGS")
	}

	correct := 0
	for _, r := range run.Results {
		rec := r.Outcome.Record
		flags := "-"
		if len(rec.Flags) > 0 {
			flags = strings.Join(rec.Flags, ",")
		}
		elapsed := r.Outcome.Duration.Round(10 * time.Millisecond)

		if scored {
			expected, ok := exp[r.Filename]
			if !ok {
				expected = "unknown"
			}
			match := "no"
			if expected == string(rec.DocumentType) {
				match = "yes"
				correct++
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
				r.Filename, expected, rec.DocumentType, match,
				rec.Confidence, rec.Priority, rec.PageQuality, elapsed, flags)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
				r.Filename, rec.DocumentType,
				rec.Confidence, rec.Priority, rec.PageQuality, elapsed, flags)
		}
	}
	w.Flush()

	if scored && len(run.Results) > 0 {
		pct := float64(correct) / float64(len(run.Results)) * 100
		fmt.Fprintf(out, "\nAccuracy: %d/%d (%.1f%%)\n", correct, len(run.Results), pct)
	}
	if run.Skipped > 0 {
		fmt.Fprintf(out, "Skipped: %d\n", run.Skipped)
	}

	fmt.Fprintf(out, "\nTokens: %d in / %d out (%d total)\n",
		usage.InputTokens, usage.OutputTokens, usage.TotalTokens)
	fmt.Fprintf(out, "Estimated cost: $%.4f across %d requests\n",
		usage.EstimatedCostUSD, usage.Requests)
}
