// Package classify defines the fax classification taxonomy, the prompt and
// response schema sent to the vision classifier, response validation, and
// final record assembly.
package classify

// DocumentType is the closed set of fax categories.
type DocumentType string

const (
	TypeLabResult               DocumentType = "lab_result"
	TypeReferralResponse        DocumentType = "referral_response"
	TypePriorAuthDecision       DocumentType = "prior_auth_decision"
	TypePharmacyRequest         DocumentType = "pharmacy_request"
	TypeInsuranceCorrespondence DocumentType = "insurance_correspondence"
	TypeRecordsRequest          DocumentType = "records_request"
	TypeMarketingJunk           DocumentType = "marketing_junk"

	// TypeOther is the catch-all: unrecognized content, orphan cover pages,
	// misdirected faxes, mixed bundles, and anything below the confidence gate.
	TypeOther DocumentType = "other"
)

// DocumentTypes lists every valid document type.
var DocumentTypes = []DocumentType{
	TypeLabResult,
	TypeReferralResponse,
	TypePriorAuthDecision,
	TypePharmacyRequest,
	TypeInsuranceCorrespondence,
	TypeRecordsRequest,
	TypeMarketingJunk,
	TypeOther,
}

// Valid reports whether t is a member of the taxonomy.
func (t DocumentType) Valid() bool {
	for _, dt := range DocumentTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// Priority is the triage priority tier.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityNone     Priority = "none"
)

// Priorities lists every valid priority tier.
var Priorities = []Priority{
	PriorityCritical,
	PriorityHigh,
	PriorityMedium,
	PriorityLow,
	PriorityNone,
}

// Valid reports whether p is a member of the priority set.
func (p Priority) Valid() bool {
	for _, pr := range Priorities {
		if p == pr {
			return true
		}
	}
	return false
}

// Flag is a diagnostic marker on a classification record.
type Flag string

const (
	FlagPossiblyMisdirected Flag = "possibly_misdirected"
	FlagIncompleteDocument  Flag = "incomplete_document"
	FlagMultiDocumentBundle Flag = "multi_document_bundle"
	FlagParsingError        Flag = "parsing_error"
	FlagConversionError     Flag = "conversion_error"
	FlagProcessingError     Flag = "processing_error"
)

// KnownFlags is the closed flag vocabulary consumers may rely on.
var KnownFlags = []Flag{
	FlagPossiblyMisdirected,
	FlagIncompleteDocument,
	FlagMultiDocumentBundle,
	FlagParsingError,
	FlagConversionError,
	FlagProcessingError,
}

// FlagSet is an ordered, duplicate-free collection of flags.
type FlagSet []Flag

// Add appends f if not already present and returns the updated set.
func (s FlagSet) Add(f Flag) FlagSet {
	if s.Has(f) {
		return s
	}
	return append(s, f)
}

// Has reports whether f is present.
func (s FlagSet) Has(f Flag) bool {
	for _, have := range s {
		if have == f {
			return true
		}
	}
	return false
}

// Strings returns the flags as plain strings for serialization.
func (s FlagSet) Strings() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = string(f)
	}
	return out
}
