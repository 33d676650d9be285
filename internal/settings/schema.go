package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func buildSchema() map[string]any {
	intRange := func(min, max int) map[string]any {
		return map[string]any{"type": "integer", "minimum": min, "maximum": max}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"apiKey": map[string]any{"type": "string"},
			"modelPriority": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"type": "string", "minLength": 1},
			},
			"turboMode":           map[string]any{"type": "boolean"},
			"parallelChunks":      intRange(1, 64),
			"batchSize":           intRange(1, 1_000_000),
			"overlapSize":         intRange(0, 1_000_000),
			"maxRetries":          intRange(0, 20),
			"retryDelay":          intRange(0, 600_000),
			"requestTimeout":      intRange(0, 3_600_000),
			"temperature":         map[string]any{"type": "number", "minimum": 0, "maximum": 2},
			"maxOutputTokens":     intRange(1, 1_000_000),
			"systemPrompt":        map[string]any{"type": "string"},
			"textTransformPrompt": map[string]any{"type": "string", "minLength": 1},
			"pdfFontSize":         map[string]any{"type": "number", "exclusiveMinimum": 0, "maximum": 96},
			"pdfLineHeight":       map[string]any{"type": "number", "exclusiveMinimum": 0, "maximum": 5},
			"pdfMargin":           map[string]any{"type": "number", "minimum": 0, "maximum": 200},
			"pdfPageNumbers":      map[string]any{"type": "boolean"},
		},
		"required": []string{"modelPriority", "batchSize", "overlapSize", "textTransformPrompt"},
	}
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(buildSchema())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("settings.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile("settings.json")
	})
	return compiled, compileErr
}

func validateSchema(data []byte) error {
	sch, err := schema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal settings: %w", err)
	}
	return sch.Validate(v)
}
