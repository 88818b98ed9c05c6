package classify

import "github.com/notyorkbot/fax-capacitor-vesper/internal/quality"

// Result is the validated classification fragment produced from a raw model
// response, before document-level metadata is assembled in.
type Result struct {
	DocumentType    DocumentType   `json:"document_type" yaml:"document_type"`
	Confidence      float64        `json:"confidence" yaml:"confidence"`
	Priority        Priority       `json:"priority" yaml:"priority"`
	ExtractedFields map[string]any `json:"extracted_fields" yaml:"extracted_fields"`
	IsContinuation  bool           `json:"is_continuation" yaml:"is_continuation"`
	Flags           FlagSet        `json:"flags" yaml:"flags"`
}

// Record is the final classification artifact for one document. It is
// immutable once assembled and is the contract consumed by routing and
// reporting collaborators.
type Record struct {
	DocumentType       DocumentType   `json:"document_type" yaml:"document_type"`
	Confidence         float64        `json:"confidence" yaml:"confidence"`
	Priority           Priority       `json:"priority" yaml:"priority"`
	ExtractedFields    map[string]any `json:"extracted_fields" yaml:"extracted_fields"`
	IsContinuation     bool           `json:"is_continuation" yaml:"is_continuation"`
	PageCountProcessed int            `json:"page_count_processed" yaml:"page_count_processed"`
	PageCountTotal     int            `json:"page_count_total" yaml:"page_count_total"`
	PageQuality        quality.Tier   `json:"page_quality" yaml:"page_quality"`
	Flags              []string       `json:"flags" yaml:"flags"`
}

// Fallback returns the safe result used whenever a model response cannot be
// trusted: catch-all type, zero confidence, no priority, and the given flags.
func Fallback(flags ...Flag) *Result {
	r := &Result{
		DocumentType:    TypeOther,
		Confidence:      0.0,
		Priority:        PriorityNone,
		ExtractedFields: map[string]any{},
		Flags:           FlagSet{},
	}
	for _, f := range flags {
		r.Flags = r.Flags.Add(f)
	}
	return r
}
