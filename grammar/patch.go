package grammar

import "strings"

// Definition names of the canonical base schema template. The hosted engine's
// base reasoning schema ships these under $defs; the patcher edits them by
// name.
const (
	DefGenericTool      = "CodingTool"
	DefGenericToolParam = "CodingToolParam"
	DefToolCall         = "ToolCall"
	DefConclude         = "Conclude"
	DefEraseToolResult  = "EraseToolResult"
)

// BaseResponseFormat builds the canonical base response-format document that
// the patcher operates on: a reasoning step whose action is one of a generic
// tool call, a tool-result erasure, or a conclusion carrying the final
// answer. Patch sequences splice real tools and custom answer shapes into a
// copy of this template.
func BaseResponseFormat() map[string]any {
	params := &Record{Name: DefGenericToolParam, Fields: []Field{
		{Name: "code", Type: Text(), Description: "Input for the generic coding tool."},
	}}
	generic := &Record{Name: DefGenericTool, Fields: []Field{
		{Name: "tool_name", Type: Text()},
		{Name: "parameters", Type: RecordType(params)},
		{Name: "tool_result", Type: Any()},
	}}
	toolCall := &Record{Name: DefToolCall, Fields: []Field{
		{Name: "tool", Type: RecordType(generic)},
	}}
	erase := &Record{Name: DefEraseToolResult, Fields: []Field{
		{Name: "indices", Type: ListOf(Int()), Description: "Positions of tool results to drop from context."},
	}}
	conclude := &Record{Name: DefConclude, Fields: []Field{
		{Name: "final_answer", Type: Text()},
	}}
	root := &Record{Name: "Reasoning", Fields: []Field{
		{Name: "thought", Type: Text()},
		{Name: "action", Type: UnionOf(RecordType(toolCall), RecordType(erase), RecordType(conclude))},
	}}

	doc, err := ResponseFormat(root)
	if err != nil {
		panic(err)
	}
	return doc
}

// schemaRoot returns the inner schema of a response-format document.
func schemaRoot(doc map[string]any) map[string]any {
	js, _ := doc["json_schema"].(map[string]any)
	schema, _ := js["schema"].(map[string]any)
	return schema
}

func schemaDefs(schema map[string]any) map[string]any {
	defs, _ := schema["$defs"].(map[string]any)
	return defs
}

// SpliceTool splices one tool into a rendered response-format document: the
// generic tool-call definition is cloned, retitled to the tool's camelized
// name, its tool_name pinned to a const of the raw name, and its parameters
// pointed at a freshly inserted parameter definition. The document is
// mutated in place and returned. A document without a definitions table
// fails with an "invalid_schema" Error.
func SpliceTool(doc map[string]any, toolName string, parameters map[string]any) (map[string]any, error) {
	defs := schemaDefs(schemaRoot(doc))
	if defs == nil {
		return nil, NewError(CodeInvalidSchema, "document has no definitions table to splice into")
	}
	SpliceToolDefs(defs, toolName, parameters)
	return doc, nil
}

// SpliceToolDefs performs the splice against a bare definitions table, for
// callers patching schemas that are not wrapped in a response-format
// envelope. When the table carries no generic template a fresh invocation
// definition is synthesized instead of cloned.
func SpliceToolDefs(defs map[string]any, toolName string, parameters map[string]any) {
	camel := UnderscoreToCamel(toolName)
	paramName := camel + "Param"

	call, ok := deepCopy(defs[DefGenericTool]).(map[string]any)
	if !ok {
		call = genericToolDef()
	}
	call["title"] = camel
	callProps, _ := call["properties"].(map[string]any)
	if nameProp, ok := callProps["tool_name"].(map[string]any); ok {
		nameProp["const"] = toolName
	}
	if paramProp, ok := callProps["parameters"].(map[string]any); ok {
		paramProp["$ref"] = "#/$defs/" + paramName
	}

	params, _ := deepCopy(parameters).(map[string]any)
	params["title"] = paramName
	if props, ok := params["properties"].(map[string]any); ok {
		for key := range props {
			if prop, ok := props[key].(map[string]any); ok {
				prop["title"] = Title(key)
			}
		}
	}

	defs[paramName] = params
	defs[camel] = call
}

// genericToolDef is the invocation shape used when no template definition is
// available to clone.
func genericToolDef() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool_name":   map[string]any{"type": "string", "title": "Tool Name"},
			"parameters":  map[string]any{},
			"tool_result": map[string]any{"title": "Tool Result"},
		},
		"required":             []string{"parameters", "tool_name", "tool_result"},
		"additionalProperties": false,
	}
}

// CustomToolSchema rewrites the document's tool-call branch for the given
// tools. With no tools the branch is removed entirely: the action union drops
// every tool variant and the generic definitions are deleted, so a toolless
// schema never exposes a dangling tool-call option. With one tool the
// ToolCall definition points directly at it; with more it holds an anyOf
// over all of them. The document is mutated in place and returned. A
// document missing its definitions table or the ToolCall definition fails
// with an "invalid_schema" Error.
func CustomToolSchema(doc map[string]any, tools []ToolDescriptor) (map[string]any, error) {
	schema := schemaRoot(doc)
	defs := schemaDefs(schema)
	if defs == nil {
		return nil, NewError(CodeInvalidSchema, "document has no definitions table to splice into")
	}

	if len(tools) == 0 {
		if props, ok := schema["properties"].(map[string]any); ok {
			if action, ok := props["action"].(map[string]any); ok {
				if anyOf, ok := action["anyOf"].([]any); ok {
					kept := make([]any, 0, len(anyOf))
					for _, variant := range anyOf {
						if !refAboutTool(variant) {
							kept = append(kept, variant)
						}
					}
					action["anyOf"] = kept
				}
			}
		}
		delete(defs, DefEraseToolResult)
		delete(defs, DefGenericToolParam)
		delete(defs, DefGenericTool)
		delete(defs, DefToolCall)
		return doc, nil
	}

	refs := make([]string, 0, len(tools))
	for _, tool := range tools {
		SpliceToolDefs(defs, tool.Name, tool.Parameters)
		refs = append(refs, "#/$defs/"+UnderscoreToCamel(tool.Name))
	}

	delete(defs, DefGenericToolParam)
	delete(defs, DefGenericTool)

	toolCall, _ := defs[DefToolCall].(map[string]any)
	toolCallProps, ok := toolCall["properties"].(map[string]any)
	if !ok {
		return nil, NewError(CodeInvalidSchema, "document has no "+DefToolCall+" definition to repoint")
	}
	toolCallProps["tool"] = toolUnion(refs)
	return doc, nil
}

// toolUnion builds the tool slot schema: a single direct reference for one
// tool, an anyOf over references otherwise.
func toolUnion(refs []string) map[string]any {
	if len(refs) == 1 {
		return map[string]any{"$ref": refs[0]}
	}
	anyOf := make([]any, 0, len(refs))
	for _, ref := range refs {
		anyOf = append(anyOf, map[string]any{"$ref": ref})
	}
	return map[string]any{"anyOf": anyOf}
}

// refAboutTool reports whether a union variant references a tool definition.
func refAboutTool(variant any) bool {
	m, ok := variant.(map[string]any)
	if !ok {
		return false
	}
	ref, _ := m["$ref"].(string)
	return strings.Contains(ref, "Tool")
}

// SpliceAnswerShape merges a caller-provided custom schema into the document
// and repoints the conclusion's final_answer at it. The custom schema's own
// $defs are merged first-writer-wins: names already present in the document
// are kept as-is. The document is mutated in place and returned. A document
// without a definitions table fails with an "invalid_schema" Error.
func SpliceAnswerShape(doc map[string]any, name string, custom map[string]any) (map[string]any, error) {
	defs := schemaDefs(schemaRoot(doc))
	if defs == nil {
		return nil, NewError(CodeInvalidSchema, "document has no definitions table to splice into")
	}

	if customDefs, ok := custom["$defs"].(map[string]any); ok {
		for k, v := range customDefs {
			if _, exists := defs[k]; !exists {
				defs[k] = v
			}
		}
	}

	title, _ := custom["title"].(string)
	if title == "" {
		title = name
	}
	required, ok := custom["required"]
	if !ok {
		required = []any{}
	}
	defs[name] = map[string]any{
		"type":                 "object",
		"title":                title,
		"properties":           custom["properties"],
		"required":             required,
		"additionalProperties": false,
	}

	if conclude, ok := defs[DefConclude].(map[string]any); ok {
		if props, ok := conclude["properties"].(map[string]any); ok {
			props["final_answer"] = map[string]any{"$ref": "#/$defs/" + name}
		}
	}
	return doc, nil
}

// deepCopy clones a JSON-shaped value.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
