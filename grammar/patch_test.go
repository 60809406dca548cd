package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "What to search for."},
		},
		"required":             []any{"query"},
		"additionalProperties": false,
	}
}

func TestBaseResponseFormat(t *testing.T) {
	doc := BaseResponseFormat()

	assert.Equal(t, "json_schema", doc["type"])
	schema := unwrap(t, doc)
	defs := schema["$defs"].(map[string]any)

	for _, name := range []string{DefGenericTool, DefGenericToolParam, DefToolCall, DefConclude, DefEraseToolResult} {
		assert.Contains(t, defs, name)
	}

	action := schema["properties"].(map[string]any)["action"].(map[string]any)
	anyOf := action["anyOf"].([]any)
	require.Len(t, anyOf, 3)
}

func TestSpliceTool(t *testing.T) {
	doc, err := SpliceTool(BaseResponseFormat(), "web_search", searchParams())
	require.NoError(t, err)
	defs := schemaDefs(schemaRoot(doc))

	tool, ok := defs["WebSearchTool"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "WebSearchTool", tool["title"])

	props := tool["properties"].(map[string]any)
	assert.Equal(t, "web_search", props["tool_name"].(map[string]any)["const"])
	assert.Equal(t, "#/$defs/WebSearchToolParam", props["parameters"].(map[string]any)["$ref"])

	params, ok := defs["WebSearchToolParam"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "WebSearchToolParam", params["title"])
	query := params["properties"].(map[string]any)["query"].(map[string]any)
	assert.Equal(t, "Query", query["title"])

	// The generic template is untouched.
	generic := defs[DefGenericTool].(map[string]any)
	_, pinned := generic["properties"].(map[string]any)["tool_name"].(map[string]any)["const"]
	assert.False(t, pinned)
}

func TestSpliceToolDoesNotMutateInput(t *testing.T) {
	params := searchParams()
	_, err := SpliceTool(BaseResponseFormat(), "web_search", params)
	require.NoError(t, err)

	assert.NotContains(t, params, "title")
	assert.NotContains(t, params["properties"].(map[string]any)["query"].(map[string]any), "title")
}

func TestCustomToolSchemaNoTools(t *testing.T) {
	doc, err := CustomToolSchema(BaseResponseFormat(), nil)
	require.NoError(t, err)
	schema := unwrap(t, doc)
	defs := schema["$defs"].(map[string]any)

	for _, name := range []string{DefGenericTool, DefGenericToolParam, DefToolCall, DefEraseToolResult} {
		assert.NotContains(t, defs, name)
	}
	assert.Contains(t, defs, DefConclude)

	// The action union is reduced to the conclusion alone.
	action := schema["properties"].(map[string]any)["action"].(map[string]any)
	anyOf := action["anyOf"].([]any)
	require.Len(t, anyOf, 1)
	assert.Equal(t, "#/$defs/"+DefConclude, anyOf[0].(map[string]any)["$ref"])
}

func TestCustomToolSchemaSingleTool(t *testing.T) {
	doc, err := CustomToolSchema(BaseResponseFormat(), []ToolDescriptor{
		{Name: "web_search", Parameters: searchParams()},
	})
	require.NoError(t, err)
	defs := schemaDefs(schemaRoot(doc))

	assert.NotContains(t, defs, DefGenericTool)
	assert.NotContains(t, defs, DefGenericToolParam)
	assert.Contains(t, defs, "WebSearchTool")

	// One tool means a direct reference, no union.
	toolCall := defs[DefToolCall].(map[string]any)
	tool := toolCall["properties"].(map[string]any)["tool"].(map[string]any)
	assert.Equal(t, map[string]any{"$ref": "#/$defs/WebSearchTool"}, tool)
}

func TestCustomToolSchemaMultipleTools(t *testing.T) {
	doc, err := CustomToolSchema(BaseResponseFormat(), []ToolDescriptor{
		{Name: "web_search", Parameters: searchParams()},
		{Name: "fetch_url", Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string"},
			},
		}},
	})
	require.NoError(t, err)
	defs := schemaDefs(schemaRoot(doc))

	toolCall := defs[DefToolCall].(map[string]any)
	tool := toolCall["properties"].(map[string]any)["tool"].(map[string]any)
	anyOf := tool["anyOf"].([]any)
	require.Len(t, anyOf, 2)
	assert.Equal(t, map[string]any{"$ref": "#/$defs/WebSearchTool"}, anyOf[0])
	assert.Equal(t, map[string]any{"$ref": "#/$defs/FetchUrlTool"}, anyOf[1])
}

func TestSpliceAnswerShape(t *testing.T) {
	custom := map[string]any{
		"title": "WeatherReport",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
			"temp": map[string]any{"type": "number"},
		},
		"required": []any{"city", "temp"},
		"$defs": map[string]any{
			"Unit": map[string]any{"type": "string"},
		},
	}

	doc, err := SpliceAnswerShape(BaseResponseFormat(), "WeatherReport", custom)
	require.NoError(t, err)
	defs := schemaDefs(schemaRoot(doc))

	inserted, ok := defs["WeatherReport"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", inserted["type"])
	assert.Equal(t, false, inserted["additionalProperties"])
	assert.Equal(t, []any{"city", "temp"}, inserted["required"])

	// Nested definitions ride along.
	assert.Contains(t, defs, "Unit")

	conclude := defs[DefConclude].(map[string]any)
	answer := conclude["properties"].(map[string]any)["final_answer"].(map[string]any)
	assert.Equal(t, "#/$defs/WeatherReport", answer["$ref"])
}

func TestSpliceAnswerShapeKeepsExistingDefs(t *testing.T) {
	doc := BaseResponseFormat()

	custom := map[string]any{
		"properties": map[string]any{"v": map[string]any{"type": "string"}},
		"$defs": map[string]any{
			// Collides with a definition already in the document.
			DefConclude: map[string]any{"type": "string"},
		},
	}
	_, err := SpliceAnswerShape(doc, "Shape", custom)
	require.NoError(t, err)

	// First writer wins: the document's own object definition survives, not
	// the colliding string shape, aside from the final_answer repoint.
	kept := schemaDefs(schemaRoot(doc))[DefConclude].(map[string]any)
	assert.Equal(t, "object", kept["type"])
	answer := kept["properties"].(map[string]any)["final_answer"].(map[string]any)
	assert.Equal(t, "#/$defs/Shape", answer["$ref"])
}

func TestPatchRejectsDocWithoutDefs(t *testing.T) {
	bare := func() map[string]any {
		return map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"schema": map[string]any{"type": "object"},
			},
		}
	}

	_, err := SpliceTool(bare(), "web_search", searchParams())
	var gerr Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, CodeInvalidSchema, gerr.Code)

	_, err = CustomToolSchema(bare(), []ToolDescriptor{{Name: "web_search", Parameters: searchParams()}})
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, CodeInvalidSchema, gerr.Code)

	_, err = SpliceAnswerShape(bare(), "Shape", map[string]any{"properties": map[string]any{}})
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, CodeInvalidSchema, gerr.Code)
}

func TestCustomToolSchemaMissingToolCall(t *testing.T) {
	doc := BaseResponseFormat()
	delete(schemaDefs(schemaRoot(doc)), DefToolCall)

	_, err := CustomToolSchema(doc, []ToolDescriptor{{Name: "web_search", Parameters: searchParams()}})
	var gerr Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, CodeInvalidSchema, gerr.Code)
}
