package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema is the structural contract for classifier output. Field-level
// coercion below is still authoritative; the schema catches shape violations
// wholesale so they surface as a parsing_error flag even when individual
// coercions succeed.
const responseSchema = `{
  "type": "object",
  "required": ["document_type", "confidence", "priority"],
  "properties": {
    "document_type": {"type": "string"},
    "confidence": {"type": "number"},
    "priority": {"type": "string"},
    "extracted_fields": {"type": "object"},
    "is_continuation": {"type": "boolean"},
    "flags": {"type": "array", "items": {"type": "string"}}
  }
}`

// Validator turns raw classifier output into a trusted Result. Every field is
// type-, enum-, and range-checked; any unrecoverable problem resolves to the
// safe fallback rather than an error, so a malformed response can never abort
// a batch.
type Validator struct {
	threshold float64
	schema    *jsonschema.Schema
}

// NewValidator creates a validator enforcing the given confidence threshold.
func NewValidator(confidenceThreshold float64) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", strings.NewReader(responseSchema)); err != nil {
		return nil, fmt.Errorf("failed to load response schema: %w", err)
	}
	schema, err := compiler.Compile("response.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile response schema: %w", err)
	}
	return &Validator{
		threshold: confidenceThreshold,
		schema:    schema,
	}, nil
}

// Threshold returns the configured confidence threshold.
func (v *Validator) Threshold() float64 {
	return v.threshold
}

// Validate parses and validates raw model text. It always returns a usable
// Result; fallback results carry the parsing_error flag.
func (v *Validator) Validate(raw string) *Result {
	candidate := extractJSONCandidate(stripCodeFences(raw))
	if candidate == "" {
		return Fallback(FlagParsingError)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return Fallback(FlagParsingError)
	}

	result := &Result{
		ExtractedFields: map[string]any{},
		Flags:           FlagSet{},
	}

	// Structural check first: a shape violation is recorded even when the
	// per-field coercions below manage to recover.
	var anyDoc any
	if err := json.Unmarshal([]byte(candidate), &anyDoc); err == nil {
		if err := v.schema.Validate(anyDoc); err != nil {
			result.Flags = result.Flags.Add(FlagParsingError)
		}
	}

	// confidence: non-numeric or absent means the response cannot be trusted
	// at all. Out-of-range values are clamped.
	conf, ok := doc["confidence"].(float64)
	if !ok {
		return Fallback(FlagParsingError)
	}
	if conf < 0.0 {
		conf = 0.0
		result.Flags = result.Flags.Add(FlagParsingError)
	}
	if conf > 1.0 {
		conf = 1.0
		result.Flags = result.Flags.Add(FlagParsingError)
	}
	result.Confidence = conf

	// document_type: coerce anything outside the taxonomy to the catch-all.
	if s, ok := doc["document_type"].(string); ok && DocumentType(s).Valid() {
		result.DocumentType = DocumentType(s)
	} else {
		result.DocumentType = TypeOther
		result.Flags = result.Flags.Add(FlagParsingError)
	}

	// priority: coerce anything outside the set to none.
	if s, ok := doc["priority"].(string); ok && Priority(s).Valid() {
		result.Priority = Priority(s)
	} else {
		result.Priority = PriorityNone
		result.Flags = result.Flags.Add(FlagParsingError)
	}

	if fields, ok := doc["extracted_fields"].(map[string]any); ok {
		result.ExtractedFields = fields
	} else if _, present := doc["extracted_fields"]; present {
		result.Flags = result.Flags.Add(FlagParsingError)
	}

	if cont, ok := doc["is_continuation"].(bool); ok {
		result.IsContinuation = cont
	} else if _, present := doc["is_continuation"]; present {
		result.Flags = result.Flags.Add(FlagParsingError)
	}

	// Model-reported flags: only the known vocabulary passes through.
	if rawFlags, ok := doc["flags"].([]any); ok {
		for _, rf := range rawFlags {
			s, ok := rf.(string)
			if !ok {
				continue
			}
			for _, known := range KnownFlags {
				if Flag(s) == known {
					result.Flags = result.Flags.Add(known)
					break
				}
			}
		}
	}

	// Confidence gate: below the threshold the model's proposed type is not
	// trusted, full stop.
	if result.Confidence < v.threshold {
		result.DocumentType = TypeOther
	}

	return result
}

// stripCodeFences removes a surrounding markdown code fence, if any.
func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}

	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractJSONCandidate finds the outermost JSON object in surrounding prose.
func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	start := strings.Index(trimmed, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(trimmed, "}")
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}
