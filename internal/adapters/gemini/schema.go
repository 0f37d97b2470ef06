package gemini

import (
	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-phish-guard/internal/core"
)

var schemaTypes = map[core.SchemaType]genai.Type{
	core.SchemaObject:  genai.TypeObject,
	core.SchemaArray:   genai.TypeArray,
	core.SchemaString:  genai.TypeString,
	core.SchemaNumber:  genai.TypeNumber,
	core.SchemaInteger: genai.TypeInteger,
	core.SchemaBoolean: genai.TypeBoolean,
}

// toGenaiSchema converts a provider-neutral schema into its Gemini form
func toGenaiSchema(s *core.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        schemaTypes[s.Type],
		Description: s.Description,
		Enum:        append([]string(nil), s.Enum...),
		Required:    append([]string(nil), s.Required...),
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}
