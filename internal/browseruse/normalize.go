package browseruse

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseOutput decodes the status payload's output field. The service sends
// either a JSON-encoded string or an already structured value; a string
// that is not valid JSON is returned unchanged.
func ParseOutput(raw json.RawMessage) any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return value
	}
	var inner any
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return s
	}
	return inner
}

// Normalize converts an untrusted payload into an ExtractionResult. Any
// shape mismatch yields the fallback result built from fallbackURL and
// fallbackRequest with empty data.
func Normalize(raw any, fallbackURL, fallbackRequest string) ExtractionResult {
	fallback := emptyResult(ExtractionRequest{URL: fallbackURL, Request: fallbackRequest}, notesUnexpectedShape)

	value, err := toJSONValue(raw)
	if err != nil {
		return fallback
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return fallback
	}
	result, err := validateCandidate(assembleCandidate(obj, fallbackURL, fallbackRequest))
	if err != nil {
		return fallback
	}
	return result
}

// assembleCandidate picks fields by type with no validation. A data field
// that is present but not a sequence is kept as-is so validation rejects it.
func assembleCandidate(obj map[string]any, fallbackURL, fallbackRequest string) map[string]any {
	candidate := map[string]any{
		"url":     fallbackURL,
		"request": fallbackRequest,
		"data":    []any{},
		"notes":   nil,
	}
	if s, ok := obj["url"].(string); ok {
		candidate["url"] = s
	}
	if s, ok := obj["request"].(string); ok {
		candidate["request"] = s
	}
	if data, present := obj["data"]; present && data != nil {
		candidate["data"] = data
	}
	if s, ok := obj["notes"].(string); ok {
		candidate["notes"] = s
	}
	return candidate
}

func validateCandidate(candidate map[string]any) (ExtractionResult, error) {
	schema, err := ResultSchema()
	if err != nil {
		return ExtractionResult{}, err
	}
	if err := schema.Validate(candidate); err != nil {
		return ExtractionResult{}, fmt.Errorf("result does not match schema: %w", err)
	}
	b, err := json.Marshal(candidate)
	if err != nil {
		return ExtractionResult{}, err
	}
	var result ExtractionResult
	if err := json.Unmarshal(b, &result); err != nil {
		return ExtractionResult{}, err
	}
	if result.Data == nil {
		result.Data = []map[string]any{}
	}
	return result, nil
}

// toJSONValue round-trips v through encoding/json so the validator only
// sees map[string]any, []any, string, float64, bool and nil.
func toJSONValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
