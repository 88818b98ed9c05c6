package classify

import (
	"fmt"
	"strings"
)

// Practice identifies the receiving practice. The classifier uses it to judge
// whether an inbound fax was actually intended for this office.
type Practice struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Provider string `mapstructure:"provider" yaml:"provider"`
	Fax      string `mapstructure:"fax" yaml:"fax"`
}

const promptBody = `## Task
Analyze the provided fax document image(s) and:
1. Classify the document type
2. Extract key metadata fields
3. Assess priority level
4. Provide a confidence score for your classification

## Document Types
Classify into exactly ONE of the following types:
- lab_result: Blood work, pathology, imaging reports, urinalysis results
- referral_response: Specialist consultation notes, referral acknowledgments, appointment confirmations, consult reports sent back to the referring provider
- prior_auth_decision: Insurance approval, denial, or pending notices for procedures/medications/referrals
- pharmacy_request: Refill requests, formulary changes, prior auth for medications, drug interaction alerts
- insurance_correspondence: EOBs, coverage changes, claim correspondence, eligibility updates, coordination of benefits requests
- records_request: Medical records requests from other providers, attorneys, insurance companies, or patients
- marketing_junk: Vendor solicitations, equipment sales, supply catalogs, unsolicited advertisements, EHR sales pitches
- other: Anything not clearly matching the above categories, including: orphan cover pages without attached content, misdirected faxes intended for a different recipient, multi-type document bundles that don't fit a single category, or documents too illegible to classify

## Priority Levels
- critical: Critical lab values, prior auth denials near appeal deadline, STAT results
- high: Lab results with abnormal values, prior auth decisions (especially denials)
- medium: Referral responses, pharmacy requests, records requests
- low: Insurance correspondence, routine items, informational documents
- none: Marketing/junk

## Urgency Indicators
Flag any of the following if present: "CRITICAL VALUE", "STAT", "URGENT", "DENIED", "APPEAL DEADLINE", "ABNORMAL", "PANIC VALUE", specific deadline dates, "time-sensitive"

## Misdirected Fax Detection
If the document is clearly addressed to a different provider/practice, flag it as possibly misdirected. This includes documents where the TO: line names a different practice or the content is clearly intended for another provider. A document CAN be relevant to our practice even if sent FROM another provider - what matters is whether it's intended FOR us.

## Output Format
Respond with ONLY a JSON object (no markdown, no explanation, no code fences):

{
  "document_type": "string (one of the types listed above)",
  "confidence": number (0.0 to 1.0),
  "priority": "string (critical/high/medium/low/none)",
  "extracted_fields": {
    "patient_name": "string or null",
    "patient_dob": "string (YYYY-MM-DD) or null",
    "sending_provider": "string or null",
    "sending_facility": "string or null",
    "document_date": "string (YYYY-MM-DD) or null",
    "fax_origin_number": "string or null",
    "urgency_indicators": ["array of strings"] or [],
    "key_details": "string - brief summary of the document's key content"
  },
  "is_continuation": false,
  "flags": ["array of any notable issues - include 'possibly_misdirected' if applicable, 'incomplete_document' if pages appear missing, 'multi_document_bundle' if fax contains multiple distinct document types"]
}

## Rules
- If you cannot determine a field, set it to null - do not guess
- If confidence is below %.2f, set document_type to "other" regardless of your best guess
- For marketing/junk, you do not need to extract patient fields
- If the document appears to be a cover sheet followed by content, classify based on the content type described in the cover sheet
- If the document is ONLY a cover sheet with no attached content, classify as "other" and flag as "incomplete_document"
- Be conservative with critical/high priority - only assign when urgency indicators are clearly present
- If multiple pages are provided, base classification on the overall document, not individual pages`

// Prompt builds the classification instruction payload for one request.
// The confidence-gate rule is stated to the model, but enforcement happens
// locally in the validator regardless of what the model returns.
func Prompt(p Practice, confidenceThreshold float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a medical document classification system for %s", p.Name)
	var details []string
	if p.Fax != "" {
		details = append(details, "fax: "+p.Fax)
	}
	if p.Provider != "" {
		details = append(details, "provider: "+p.Provider)
	}
	if len(details) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(details, ", "))
	}
	b.WriteString(". You analyze fax documents received as images and return structured classification data.\n\n")
	fmt.Fprintf(&b, promptBody, confidenceThreshold)
	return b.String()
}
