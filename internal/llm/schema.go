package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// correction is the structured reply of a correction call.
type correction struct {
	FixedText string `json:"fixed_text" jsonschema:"description=The corrected text"`
}

// split is the structured reply of a split call.
type split struct {
	Chunks []string `json:"chunks" jsonschema:"description=The input text cut into consecutive pieces"`
}

// SchemaFor reflects v's type into a self-contained JSON schema.
func SchemaFor(v any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

func mustSchema(name, field string, v any) StructuredSchema {
	schema, err := SchemaFor(v)
	if err != nil {
		panic(err)
	}
	return StructuredSchema{Name: name, Field: field, Schema: schema}
}

// CorrectionSchema is the structured contract for corrections.
var CorrectionSchema = mustSchema("fixed_text", "fixed_text", &correction{})

// SplitSchema is the structured contract for model-assisted splitting.
var SplitSchema = mustSchema("text_chunks", "chunks", &split{})
