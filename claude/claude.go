// Package claude adapts grammar-built task and tool types to the Anthropic
// Messages API, so the same structured-reasoning grammars can drive Claude
// tool use directly instead of a hosted run.
package claude

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/subconscious-systems/subconscious-go/grammar"
)

// InputSchema renders a record into the strict object schema Claude accepts
// as a tool's input_schema.
func InputSchema(rec *grammar.Record) (map[string]any, error) {
	doc, err := grammar.ResponseFormat(rec)
	if err != nil {
		return nil, err
	}
	js, _ := doc["json_schema"].(map[string]any)
	schema, _ := js["schema"].(map[string]any)
	return schema, nil
}

// Tool builds an Anthropic tool definition from a raw JSON-Schema parameter
// object. The parameters are normalized into the strict dialect first.
func Tool(name, description string, parameters map[string]any) (anthropic.ToolParam, error) {
	strict, err := grammar.EnsureStrict(parameters)
	if err != nil {
		return anthropic.ToolParam{}, err
	}
	return anthropic.ToolParam{
		Name:        anthropic.F(name),
		Description: anthropic.F(description),
		InputSchema: anthropic.F[any](strict),
	}, nil
}

// TaskTool wraps a whole task grammar as a single Anthropic tool: Claude
// fills in the recursive reasoning structure as the tool input. This is the
// nested-invocation pattern, where one tool carries the entire tree rather
// than one tool per leaf operation.
func TaskTool(description string, task *grammar.Record) (anthropic.ToolParam, error) {
	schema, err := InputSchema(task)
	if err != nil {
		return anthropic.ToolParam{}, err
	}
	return anthropic.ToolParam{
		Name:        anthropic.F(task.Name),
		Description: anthropic.F(description),
		InputSchema: anthropic.F[any](schema),
	}, nil
}

// RegistryTools converts every invocation record of a registry, in
// declaration order, into an Anthropic tool. Descriptions are looked up by
// raw tool name and may be missing.
func RegistryTools(registry *grammar.ToolRegistry, descriptions map[string]string) ([]anthropic.ToolUnionUnionParam, error) {
	if registry == nil {
		return nil, nil
	}
	tools := make([]anthropic.ToolUnionUnionParam, 0, registry.Len())
	for pair := registry.Oldest(); pair != nil; pair = pair.Next() {
		params, ok := pair.Value.Field("parameters")
		if !ok || params.Type == nil || params.Type.Record == nil {
			return nil, fmt.Errorf("claude: invocation record %q has no parameter record", pair.Key)
		}
		schema, err := InputSchema(params.Type.Record)
		if err != nil {
			return nil, err
		}
		tools = append(tools, anthropic.ToolParam{
			Name:        anthropic.F(pair.Key),
			Description: anthropic.F(descriptions[pair.Key]),
			InputSchema: anthropic.F[any](schema),
		})
	}
	return tools, nil
}

// AddTool splices an extra tool definition into an already-rendered task
// schema's definitions table, without rebuilding the grammar. The schema is
// mutated in place.
func AddTool(schema map[string]any, name string, parameters map[string]any) error {
	defs, ok := schema["$defs"].(map[string]any)
	if !ok {
		return fmt.Errorf("claude: schema has no $defs to splice into")
	}
	strict, err := grammar.EnsureStrict(parameters)
	if err != nil {
		return err
	}
	grammar.SpliceToolDefs(defs, name, strict)
	return nil
}

// ForceTool is the tool choice that makes Claude invoke the named tool,
// used to guarantee a structured answer.
func ForceTool(name string) anthropic.ToolChoiceUnionParam {
	return anthropic.ToolChoiceToolParam{
		Type: anthropic.F(anthropic.ToolChoiceToolTypeTool),
		Name: anthropic.F(name),
	}
}
