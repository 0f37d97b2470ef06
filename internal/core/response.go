package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// AnalysisSchema describes the structured reply expected for an analysis
func AnalysisSchema() *Schema {
	return &Schema{
		Type: SchemaObject,
		Properties: map[string]*Schema{
			"verdict": {
				Type:        SchemaString,
				Enum:        []string{string(VerdictSafe), string(VerdictSuspicious), string(VerdictDangerous)},
				Description: "The final verdict on the security risk.",
			},
			"overallScore": {
				Type:        SchemaNumber,
				Description: "A score from 0 (safe) to 100 (dangerous).",
			},
			"checks": {
				Type:        SchemaArray,
				Description: "A detailed breakdown of the security checks performed.",
				Items: &Schema{
					Type: SchemaObject,
					Properties: map[string]*Schema{
						"name": {
							Type:        SchemaString,
							Description: "The name of the security check.",
						},
						"description": {
							Type:        SchemaString,
							Description: "A brief explanation of the findings for this check.",
						},
						"score": {
							Type:        SchemaNumber,
							Description: "A risk score from 0 to 100 for this specific check.",
						},
					},
					PropertyOrder: []string{"name", "description", "score"},
					Required:      []string{"name", "description", "score"},
				},
			},
		},
		PropertyOrder: []string{"verdict", "overallScore", "checks"},
		Required:      []string{"verdict", "overallScore", "checks"},
	}
}

// DecodeAnalysisResult parses a raw model reply into a validated result.
// Any deviation from the schema fails with *InvalidResponseShapeError.
func DecodeAnalysisResult(raw string) (AnalysisResult, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return AnalysisResult{}, err
	}

	var result AnalysisResult

	var verdict string
	if err := decodeField(obj, "verdict", &verdict); err != nil {
		return AnalysisResult{}, err
	}
	result.Verdict = Verdict(verdict)
	if !result.Verdict.Valid() {
		return AnalysisResult{}, &InvalidResponseShapeError{Reason: fmt.Sprintf("unknown verdict %q", verdict)}
	}

	var overall float64
	if err := decodeField(obj, "overallScore", &overall); err != nil {
		return AnalysisResult{}, err
	}
	if result.OverallScore, err = toScore("overallScore", overall); err != nil {
		return AnalysisResult{}, err
	}

	var rawChecks []json.RawMessage
	if err := decodeField(obj, "checks", &rawChecks); err != nil {
		return AnalysisResult{}, err
	}
	if len(rawChecks) == 0 {
		return AnalysisResult{}, &InvalidResponseShapeError{Reason: "checks is empty"}
	}

	result.Checks = make([]CheckResult, 0, len(rawChecks))
	for i, rc := range rawChecks {
		check, err := decodeCheck(rc)
		if err != nil {
			return AnalysisResult{}, fmt.Errorf("checks[%d]: %w", i, err)
		}
		result.Checks = append(result.Checks, check)
	}

	if err := result.validate(); err != nil {
		return AnalysisResult{}, err
	}
	return result, nil
}

func decodeCheck(raw json.RawMessage) (CheckResult, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return CheckResult{}, &InvalidResponseShapeError{Reason: "check is not an object", Err: err}
	}

	var check CheckResult
	if err := decodeField(obj, "name", &check.Name); err != nil {
		return CheckResult{}, err
	}
	if err := decodeField(obj, "description", &check.Description); err != nil {
		return CheckResult{}, err
	}
	var score float64
	if err := decodeField(obj, "score", &score); err != nil {
		return CheckResult{}, err
	}
	s, err := toScore("score", score)
	if err != nil {
		return CheckResult{}, err
	}
	check.Score = s
	return check, nil
}

// decodeObject parses raw as a JSON object, falling back to the outermost
// braces when the model wrapped the object in prose or code fences. A reply
// that is valid JSON of another type is rejected, not searched for braces.
func decodeObject(raw string) (map[string]json.RawMessage, error) {
	raw = strings.TrimSpace(raw)

	var obj map[string]json.RawMessage
	err := json.Unmarshal([]byte(raw), &obj)
	if err != nil {
		if json.Valid([]byte(raw)) {
			return nil, &InvalidResponseShapeError{Reason: "reply is not a JSON object", Err: err}
		}
		jsonStart := strings.IndexByte(raw, '{')
		jsonEnd := strings.LastIndexByte(raw, '}')
		if jsonStart < 0 || jsonEnd <= jsonStart {
			return nil, &InvalidResponseShapeError{Reason: "reply contains no JSON object", Err: err}
		}
		obj = nil
		if err := json.Unmarshal([]byte(raw[jsonStart:jsonEnd+1]), &obj); err != nil {
			return nil, &InvalidResponseShapeError{Reason: "reply is not valid JSON", Err: err}
		}
	}
	if obj == nil {
		return nil, &InvalidResponseShapeError{Reason: "reply is not a JSON object"}
	}
	return obj, nil
}

// decodeField unmarshals a required, non-null field into dst
func decodeField(obj map[string]json.RawMessage, key string, dst any) error {
	raw, ok := obj[key]
	if !ok {
		return &InvalidResponseShapeError{Reason: fmt.Sprintf("missing field %q", key)}
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return &InvalidResponseShapeError{Reason: fmt.Sprintf("field %q is null", key)}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &InvalidResponseShapeError{Reason: fmt.Sprintf("field %q has the wrong type", key), Err: err}
	}
	return nil
}

func toScore(field string, v float64) (int, error) {
	rounded := math.Round(v)
	if rounded < 0 || rounded > 100 {
		return 0, &InvalidResponseShapeError{Reason: fmt.Sprintf("%s %v outside 0-100", field, v)}
	}
	return int(rounded), nil
}
