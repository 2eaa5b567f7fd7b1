package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgallion1/citecheck/internal/record"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CandidateJSONSchema describes one generator record. It is sent to
// generators that accept structured output and used locally to explain why a
// record failed to decode.
func CandidateJSONSchema() map[string]any {
	categories := make([]string, len(record.Categories))
	for i, c := range record.Categories {
		categories[i] = string(c)
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"instruction":      map[string]any{"type": "string", "minLength": 1},
			"input":            map[string]any{"type": "string"},
			"output":           map[string]any{"type": "string", "minLength": 1},
			"page_number":      map[string]any{"type": "integer", "minimum": 1},
			"source_quote":     map[string]any{"type": "string", "minLength": 1},
			"section":          map[string]any{"type": "string"},
			"confidence_score": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"category":         map[string]any{"type": "string", "enum": categories},
		},
		"required": []string{"instruction", "output", "page_number", "source_quote"},
	}
}

func compileCandidateSchema() (*jsonschema.Schema, error) {
	raw, err := json.Marshal(CandidateJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return jsonschema.CompileString("candidate.schema.json", string(raw))
}

// schemaProblems flattens a validation error into one line per failing leaf.
func schemaProblems(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(out)
	return out
}
