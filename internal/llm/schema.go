package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const questionsSchema = `{
	"type": "object",
	"required": ["questions"],
	"properties": {
		"questions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["question"],
				"properties": {
					"question":   {"type": "string", "minLength": 1},
					"criteria":   {"type": "string"},
					"skill":      {"type": "string"},
					"difficulty": {"type": ["integer", "number", "string"]}
				}
			}
		}
	}
}`

const reportSchema = `{
	"type": "object",
	"properties": {
		"overall_score":     {"type": "number"},
		"strengths":         {"type": "array", "items": {"type": "string"}},
		"weaknesses":        {"type": "array", "items": {"type": "string"}},
		"detailed_analysis": {"type": "string"},
		"recommendations":   {"type": "string"},
		"hiring_decision":   {"type": "string"}
	}
}`

var compiledSchemas = sync.OnceValues(func() (map[string]*jsonschema.Schema, error) {
	out := make(map[string]*jsonschema.Schema, 2)
	for name, src := range map[string]string{
		"questions.schema.json": questionsSchema,
		"report.schema.json":    reportSchema,
	} {
		s, err := jsonschema.CompileString(name, src)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
})

// validate decodes payload generically and checks it against the named schema.
// It returns the decoded document so callers can fall back to lenient mapping.
func validate(name string, payload []byte) (any, error) {
	schemas, err := compiledSchemas()
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if err := schemas[name].Validate(decoded); err != nil {
		return decoded, fmt.Errorf("model output invalid: %w", err)
	}
	return decoded, nil
}
