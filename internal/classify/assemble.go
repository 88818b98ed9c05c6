package classify

import "github.com/notyorkbot/fax-capacitor-vesper/internal/quality"

// AssembleInput carries everything the assembler combines into the final
// record: the validated (or fallback) classification fragment plus the
// document-level facts the model never sees authoritatively.
type AssembleInput struct {
	Result         *Result
	PagesProcessed int
	TotalPages     int
	DocumentTier   quality.Tier

	// AllBlank indicates every selected page was judged blank/black; the
	// record is flagged incomplete regardless of what the model reported.
	AllBlank bool

	// ExtraFlags are pipeline-derived flags (conversion failures and the
	// like) merged into the record.
	ExtraFlags []Flag
}

// Assemble builds the final immutable Record. It has no failure mode: with a
// fallback Result it still produces a well-formed record. The pixel-derived
// document tier is authoritative; any model-reported quality is ignored.
func Assemble(in AssembleInput) *Record {
	result := in.Result
	if result == nil {
		result = Fallback(FlagProcessingError)
	}

	flags := FlagSet{}
	for _, f := range result.Flags {
		flags = flags.Add(f)
	}
	for _, f := range in.ExtraFlags {
		flags = flags.Add(f)
	}
	if in.AllBlank && in.PagesProcessed > 0 {
		flags = flags.Add(FlagIncompleteDocument)
	}

	fields := result.ExtractedFields
	if fields == nil {
		fields = map[string]any{}
	}

	tier := in.DocumentTier
	if !tier.Valid() {
		tier = quality.TierPoor
	}

	return &Record{
		DocumentType:       result.DocumentType,
		Confidence:         result.Confidence,
		Priority:           result.Priority,
		ExtractedFields:    fields,
		IsContinuation:     result.IsContinuation,
		PageCountProcessed: in.PagesProcessed,
		PageCountTotal:     in.TotalPages,
		PageQuality:        tier,
		Flags:              flags.Strings(),
	}
}
