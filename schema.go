package subconscious

import "github.com/subconscious-systems/subconscious-go/grammar"

// OutputSchema is a JSON Schema document constraining a run's answer or
// reasoning output.
type OutputSchema map[string]any

// SchemaFromStruct reflects a Go struct into a strict OutputSchema suitable
// for RunInput.AnswerFormat. The struct's json tags drive property names; all
// properties are required and additional properties are forbidden.
func SchemaFromStruct(target any) (OutputSchema, error) {
	doc, err := grammar.ResponseFormat(target)
	if err != nil {
		return nil, err
	}
	js, _ := doc["json_schema"].(map[string]any)
	schema, _ := js["schema"].(map[string]any)
	return OutputSchema(schema), nil
}

// SchemaFromRecord renders a grammar record into a strict OutputSchema.
func SchemaFromRecord(rec *grammar.Record) (OutputSchema, error) {
	doc, err := grammar.ResponseFormat(rec)
	if err != nil {
		return nil, err
	}
	js, _ := doc["json_schema"].(map[string]any)
	schema, _ := js["schema"].(map[string]any)
	return OutputSchema(schema), nil
}
