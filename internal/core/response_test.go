package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeAnalysisResultValid(t *testing.T) {
	got, err := DecodeAnalysisResult(validReply)
	if err != nil {
		t.Fatalf("DecodeAnalysisResult: %v", err)
	}
	want := AnalysisResult{
		Verdict:      VerdictSafe,
		OverallScore: 10,
		Checks:       []CheckResult{{Name: "X", Description: "Y", Score: 5}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeAnalysisResultKeepsCheckOrder(t *testing.T) {
	raw := `{"verdict":"DANGEROUS","overallScore":92.6,"checks":[
		{"name":"b","description":"second","score":90},
		{"name":"a","description":"first","score":10.4}]}`
	got, err := DecodeAnalysisResult(raw)
	if err != nil {
		t.Fatalf("DecodeAnalysisResult: %v", err)
	}
	if got.OverallScore != 93 {
		t.Errorf("overallScore = %d, want 93", got.OverallScore)
	}
	if got.Checks[0].Name != "b" || got.Checks[1].Name != "a" || got.Checks[1].Score != 10 {
		t.Errorf("checks = %+v", got.Checks)
	}
}

func TestDecodeAnalysisResultTolerantOfWrapping(t *testing.T) {
	raw := "Here is the analysis:\n```json\n" + validReply + "\n```"
	if _, err := DecodeAnalysisResult(raw); err != nil {
		t.Fatalf("DecodeAnalysisResult with fences: %v", err)
	}
}

func TestDecodeAnalysisResultRejectsBadShapes(t *testing.T) {
	tests := map[string]string{
		"missing checks":       `{"verdict":"SAFE","overallScore":10}`,
		"missing verdict":      `{"overallScore":10,"checks":[{"name":"X","description":"Y","score":5}]}`,
		"missing overallScore": `{"verdict":"SAFE","checks":[{"name":"X","description":"Y","score":5}]}`,
		"unknown verdict":      `{"verdict":"MAYBE","overallScore":10,"checks":[{"name":"X","description":"Y","score":5}]}`,
		"lower-case verdict":   `{"verdict":"safe","overallScore":10,"checks":[{"name":"X","description":"Y","score":5}]}`,
		"score as string":      `{"verdict":"SAFE","overallScore":"10","checks":[{"name":"X","description":"Y","score":5}]}`,
		"checks not array":     `{"verdict":"SAFE","overallScore":10,"checks":{"name":"X"}}`,
		"checks empty":         `{"verdict":"SAFE","overallScore":10,"checks":[]}`,
		"check missing score":  `{"verdict":"SAFE","overallScore":10,"checks":[{"name":"X","description":"Y"}]}`,
		"check name number":    `{"verdict":"SAFE","overallScore":10,"checks":[{"name":1,"description":"Y","score":5}]}`,
		"check null name":      `{"verdict":"SAFE","overallScore":10,"checks":[{"name":null,"description":"Y","score":5}]}`,
		"check not object":     `{"verdict":"SAFE","overallScore":10,"checks":["X"]}`,
		"score out of range":   `{"verdict":"SAFE","overallScore":140,"checks":[{"name":"X","description":"Y","score":5}]}`,
		"negative check score": `{"verdict":"SAFE","overallScore":10,"checks":[{"name":"X","description":"Y","score":-3}]}`,
		"null verdict":         `{"verdict":null,"overallScore":10,"checks":[{"name":"X","description":"Y","score":5}]}`,
		"array at top level":   `[{"verdict":"SAFE"}]`,
		"array of results":     `[{"verdict":"SAFE","overallScore":10,"checks":[{"name":"X","description":"Y","score":5}]}]`,
		"string of object":     `"{\"verdict\":\"SAFE\",\"overallScore\":10,\"checks\":[{\"name\":\"X\",\"description\":\"Y\",\"score\":5}]}"`,
		"not json":             `the site looks fine`,
		"truncated":            `{"verdict":"SAFE","overallScore":10,"checks":[{"name":"X"`,
		"empty":                ``,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeAnalysisResult(raw)
			var shapeErr *InvalidResponseShapeError
			if !errors.As(err, &shapeErr) {
				t.Fatalf("error = %v, want *InvalidResponseShapeError", err)
			}
		})
	}
}

func TestAnalysisSchemaRequiresAllFields(t *testing.T) {
	schema := AnalysisSchema()
	if !reflect.DeepEqual(schema.Required, []string{"verdict", "overallScore", "checks"}) {
		t.Errorf("required = %v", schema.Required)
	}
	if len(schema.Properties["verdict"].Enum) != 3 {
		t.Errorf("verdict enum = %v", schema.Properties["verdict"].Enum)
	}
	if schema.Properties["checks"].Items == nil {
		t.Fatal("checks has no item schema")
	}
	for _, key := range schema.PropertyOrder {
		if _, ok := schema.Properties[key]; !ok {
			t.Errorf("property order names unknown key %q", key)
		}
	}
}
