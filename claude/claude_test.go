package claude

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subconscious-systems/subconscious-go/grammar"
)

func descriptor(name, prop string) grammar.ToolDescriptor {
	return grammar.ToolDescriptor{
		Name: name,
		Parameters: map[string]any{
			"properties": map[string]any{
				prop: map[string]any{"type": "string"},
			},
		},
	}
}

func TestInputSchema(t *testing.T) {
	task, err := grammar.NewTaskWithDepth("Plan", 2, nil, "")
	require.NoError(t, err)

	schema, err := InputSchema(task)
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	assert.Contains(t, schema["$defs"].(map[string]any), "PlanLV2")
}

func TestTool(t *testing.T) {
	tool, err := Tool("web_search", "Search the web.", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "web_search", tool.Name.Value)
	assert.Equal(t, "Search the web.", tool.Description.Value)

	schema := tool.InputSchema.Value.(map[string]any)
	assert.Equal(t, false, schema["additionalProperties"])
	assert.Equal(t, []string{"query"}, schema["required"])
}

func TestTaskTool(t *testing.T) {
	_, task, err := grammar.NewToolkit([]grammar.ToolDescriptor{descriptor("search_web", "query")}, "agent_task")
	require.NoError(t, err)

	tool, err := TaskTool("Run the agent task.", task)
	require.NoError(t, err)

	assert.Equal(t, "AgentTaskTool", tool.Name.Value)
	schema := tool.InputSchema.Value.(map[string]any)
	assert.Contains(t, schema["$defs"].(map[string]any), "SearchWebTool")
}

func TestRegistryTools(t *testing.T) {
	registry, _, err := grammar.NewToolkit([]grammar.ToolDescriptor{
		descriptor("search_web", "query"),
		descriptor("fetch_url", "url"),
	}, "")
	require.NoError(t, err)

	tools, err := RegistryTools(registry, map[string]string{
		"search_web": "Search the web.",
	})
	require.NoError(t, err)
	require.Len(t, tools, 2)

	// Declaration order and raw names survive the conversion; the schema is
	// the parameter record, not the invocation envelope.
	first := tools[0].(anthropic.ToolParam)
	assert.Equal(t, "search_web", first.Name.Value)
	assert.Equal(t, "Search the web.", first.Description.Value)
	schema := first.InputSchema.Value.(map[string]any)
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.NotContains(t, props, "tool_name")

	second := tools[1].(anthropic.ToolParam)
	assert.Equal(t, "fetch_url", second.Name.Value)
	assert.Equal(t, "", second.Description.Value)
}

func TestRegistryToolsNil(t *testing.T) {
	tools, err := RegistryTools(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, tools)
}

func TestAddTool(t *testing.T) {
	task, err := grammar.NewTaskWithDepth("Host", 2, nil, "")
	require.NoError(t, err)
	schema, err := InputSchema(task)
	require.NoError(t, err)

	err = AddTool(schema, "late_tool", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"arg": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)

	defs := schema["$defs"].(map[string]any)
	assert.Contains(t, defs, "LateToolToolParam")

	// A schema without definitions cannot be patched.
	err = AddTool(map[string]any{"type": "object"}, "x", map[string]any{})
	assert.Error(t, err)
}
