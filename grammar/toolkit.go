package grammar

import (
	"log"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ToolDescriptor declares one tool: a unique name plus its parameter schema
// in JSON-Schema object form ({"properties": {...}}). Descriptors are
// declared once when building a toolkit and never mutated afterwards.
type ToolDescriptor struct {
	Name       string
	Parameters map[string]any
}

// ToolRegistry maps raw tool names to their invocation record types,
// preserving declaration order.
type ToolRegistry = orderedmap.OrderedMap[string, *Record]

// BuildToolParams builds the parameter record for a tool. Every property of
// the spec becomes a required field resolved through ResolveType; property
// descriptions are carried onto the fields. Properties are visited in sorted
// name order so output is deterministic for map-typed input.
func BuildToolParams(typeName string, parameters map[string]any) *Record {
	rec := &Record{Name: typeName + "Params"}

	props, _ := parameters["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec, _ := props[name].(map[string]any)
		desc, _ := spec["description"].(string)
		rec.Fields = append(rec.Fields, Field{
			Name:        name,
			Type:        ResolveType(spec),
			Description: desc,
		})
	}
	return rec
}

// BuildTool builds both record types for a tool: the parameter record and the
// invocation record. The invocation record has three fields: tool_name (a
// const pinned to the tool's raw name), parameters (the parameter record),
// and tool_result (unconstrained, filled in by the execution layer after the
// tool runs, never by the model).
func BuildTool(name string, parameters map[string]any) (params *Record, invocation *Record) {
	typeName := UnderscoreToCamel(name)
	params = BuildToolParams(typeName, parameters)
	invocation = &Record{Name: typeName, Fields: []Field{
		{Name: "tool_name", Type: Literal(name)},
		{Name: "parameters", Type: RecordType(params)},
		{Name: "tool_result", Type: Any()},
	}}
	return params, invocation
}

// NewToolkit builds the invocation record for every descriptor and one
// aggregate task record ("OmniTask" unless taskName is given) whose tooluse
// slot accepts any of them, at a fixed depth of 3.
//
// The registry is keyed by each tool's raw declared name in declaration
// order. Duplicate raw names overwrite the earlier registration with a
// warning; camelized type-name collisions are warned about but not resolved.
func NewToolkit(tools []ToolDescriptor, taskName string) (*ToolRegistry, *Record, error) {
	registry := orderedmap.New[string, *Record]()
	invocations := make([]*Record, 0, len(tools))
	camelSeen := make(map[string]string, len(tools))

	for _, tool := range tools {
		_, invocation := BuildTool(tool.Name, tool.Parameters)

		if _, exists := registry.Get(tool.Name); exists {
			log.Printf("Warning: Duplicate tool name '%s' in toolkit. Overwriting.", tool.Name)
		}
		if prior, ok := camelSeen[invocation.Name]; ok && prior != tool.Name {
			log.Printf("Warning: Tools '%s' and '%s' share the type name '%s'.", prior, tool.Name, invocation.Name)
		}
		camelSeen[invocation.Name] = tool.Name

		registry.Set(tool.Name, invocation)
		invocations = append(invocations, invocation)
	}

	name := "OmniTask"
	if taskName != "" {
		name = UnderscoreToCamel(taskName)
	}

	task, err := NewTaskWithDepth(name, 3, invocations, "")
	if err != nil {
		return nil, nil, err
	}
	return registry, task, nil
}
