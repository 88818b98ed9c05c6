package classify

import (
	"testing"

	"github.com/notyorkbot/fax-capacitor-vesper/internal/quality"
)

func TestAssemble(t *testing.T) {
	result := &Result{
		DocumentType: TypeLabResult,
		Confidence:   0.92,
		Priority:     PriorityHigh,
		ExtractedFields: map[string]any{
			"patient_name": "Jane Roe",
		},
		Flags: FlagSet{},
	}

	rec := Assemble(AssembleInput{
		Result:         result,
		PagesProcessed: 3,
		TotalPages:     8,
		DocumentTier:   quality.TierFair,
	})

	if rec.DocumentType != TypeLabResult || rec.Confidence != 0.92 || rec.Priority != PriorityHigh {
		t.Errorf("classification fields not carried over: %+v", rec)
	}
	if rec.PageCountProcessed != 3 || rec.PageCountTotal != 8 {
		t.Errorf("page counts = %d/%d, want 3/8", rec.PageCountProcessed, rec.PageCountTotal)
	}
	if rec.PageQuality != quality.TierFair {
		t.Errorf("page_quality = %q, want fair", rec.PageQuality)
	}
	if len(rec.Flags) != 0 {
		t.Errorf("flags = %v, want none", rec.Flags)
	}
}

func TestAssembleNilResult(t *testing.T) {
	rec := Assemble(AssembleInput{TotalPages: 2})

	if rec.DocumentType != TypeOther || rec.Confidence != 0.0 || rec.Priority != PriorityNone {
		t.Errorf("nil result should assemble the fallback, got %+v", rec)
	}
	if rec.ExtractedFields == nil || len(rec.ExtractedFields) != 0 {
		t.Errorf("extracted_fields = %v, want empty map", rec.ExtractedFields)
	}
	if rec.PageQuality != quality.TierPoor {
		t.Errorf("page_quality = %q, want poor for zero-value tier", rec.PageQuality)
	}
	found := false
	for _, f := range rec.Flags {
		if f == string(FlagProcessingError) {
			found = true
		}
	}
	if !found {
		t.Errorf("flags = %v, want processing_error", rec.Flags)
	}
}

func TestAssembleFlagMerge(t *testing.T) {
	result := Fallback(FlagParsingError)

	rec := Assemble(AssembleInput{
		Result:         result,
		PagesProcessed: 1,
		TotalPages:     1,
		DocumentTier:   quality.TierPoor,
		ExtraFlags:     []Flag{FlagConversionError, FlagParsingError},
	})

	want := []string{"parsing_error", "conversion_error"}
	if len(rec.Flags) != len(want) {
		t.Fatalf("flags = %v, want %v", rec.Flags, want)
	}
	for i, f := range want {
		if rec.Flags[i] != f {
			t.Errorf("flags[%d] = %q, want %q", i, rec.Flags[i], f)
		}
	}
}

func TestAssembleAllBlank(t *testing.T) {
	rec := Assemble(AssembleInput{
		Result:         Fallback(),
		PagesProcessed: 2,
		TotalPages:     2,
		DocumentTier:   quality.TierPoor,
		AllBlank:       true,
	})

	has := false
	for _, f := range rec.Flags {
		if f == string(FlagIncompleteDocument) {
			has = true
		}
	}
	if !has {
		t.Errorf("all-blank document should carry incomplete_document, got %v", rec.Flags)
	}
}
