package grammar

import "strconv"

// NewTaskWithDepth builds a recursive task tree type with a bounded nesting
// depth. The result is a finite tower of record types, one per depth level:
// the leaf level (named "{name}LV{depth}" when depth > 1) has no subtasks
// field, and each level above it holds an optional list of the level below.
// Only the top-level record, named exactly name, is returned; the
// intermediate levels stay reachable through its subtasks field.
//
// thought pins the top-level thought field to a fixed literal; when empty the
// field accepts free text. All lower levels always accept free text.
//
// When tools is non-empty every level carries a tooluse field typed as an
// optional union over the given tool invocation records; when tools is empty
// the field is omitted from every level.
//
// depth must be at least 1; lower values fail with an "invalid_depth" Error.
func NewTaskWithDepth(name string, depth int, tools []*Record, thought string) (*Record, error) {
	if depth < 1 {
		return nil, NewError(CodeInvalidDepth, "depth must be at least 1")
	}

	topThought := Text()
	if thought != "" {
		topThought = Literal(thought)
	}

	if depth == 1 {
		fields := []Field{{Name: "thought", Type: topThought}}
		if len(tools) > 0 {
			fields = append(fields, Field{Name: "tooluse", Type: tooluseType(tools)})
		}
		fields = append(fields, Field{Name: "conclusion", Type: Text()})
		return &Record{Name: name, Fields: fields}, nil
	}

	// Bottom-up: the leaf level carries the deepest LV suffix, intermediate
	// levels count down to LV2, and the top level takes the bare name.
	prev := levelRecord(name+"LV"+strconv.Itoa(depth), Text(), tools, nil)
	for i := depth - 1; i > 1; i-- {
		prev = levelRecord(name+"LV"+strconv.Itoa(i), Text(), tools, prev)
	}
	return levelRecord(name, topThought, tools, prev), nil
}

// levelRecord builds one depth level. subtask is nil for the leaf level.
func levelRecord(name string, thought *Type, tools []*Record, subtask *Record) *Record {
	fields := []Field{{Name: "thought", Type: thought}}
	if len(tools) > 0 {
		fields = append(fields, Field{Name: "tooluse", Type: tooluseType(tools)})
	}
	if subtask != nil {
		fields = append(fields, Field{Name: "subtasks", Type: Optional(ListOf(RecordType(subtask)))})
	}
	fields = append(fields, Field{Name: "conclusion", Type: Text()})
	return &Record{Name: name, Fields: fields}
}

func tooluseType(tools []*Record) *Type {
	variants := make([]*Type, 0, len(tools))
	for _, t := range tools {
		variants = append(variants, RecordType(t))
	}
	return Optional(UnionOf(variants...))
}

// BaseTask is the shared depth-3 task grammar returned for flex tasks that
// declare no tools.
var BaseTask = mustTask("BaseTask", 3)

func mustTask(name string, depth int) *Record {
	r, err := NewTaskWithDepth(name, depth, nil, "")
	if err != nil {
		panic(err)
	}
	return r
}

// TaskSpec declares a single task grammar for NewTask.
type TaskSpec struct {
	// Name is the record name and schema title.
	Name string
	// Thought pins the thought field to a fixed literal; empty means free text.
	Thought string
	// Tools are the invocation records the task may use.
	Tools []*Record
	// Subtasks overrides the subtasks field with an explicit type.
	Subtasks *Type
	// Depth bounds the nesting. Defaults to 1 when zero.
	Depth int
	// Flex requests a deep default grammar: depth 5 when tools are given and
	// no explicit Subtasks type is set, the shared BaseTask otherwise.
	Flex bool
}

// NewTask builds a task record from a declarative spec.
func NewTask(spec TaskSpec) (*Record, error) {
	depth := spec.Depth
	if depth == 0 {
		depth = 1
	}

	// Flex only applies when the caller has not pinned the subtasks type.
	if spec.Flex && spec.Subtasks == nil {
		if spec.Tools == nil {
			return BaseTask, nil
		}
		return NewTaskWithDepth(spec.Name, 5, spec.Tools, spec.Thought)
	}

	thought := Text()
	if spec.Thought != "" {
		thought = Literal(spec.Thought)
	}

	switch {
	case spec.Tools == nil && spec.Subtasks == nil:
		return NewTaskWithDepth(spec.Name, depth, nil, spec.Thought)

	case spec.Tools == nil:
		return &Record{Name: spec.Name, Fields: []Field{
			{Name: "thought", Type: thought},
			{Name: "subtasks", Type: spec.Subtasks},
			{Name: "conclusion", Type: Text()},
		}}, nil

	case spec.Subtasks == nil:
		return &Record{Name: spec.Name, Fields: []Field{
			{Name: "thought", Type: thought},
			{Name: "tooluse", Type: requiredUnion(spec.Tools)},
			{Name: "conclusion", Type: Text()},
		}}, nil

	default:
		return &Record{Name: spec.Name, Fields: []Field{
			{Name: "thought", Type: thought},
			{Name: "tooluse", Type: requiredUnion(spec.Tools)},
			{Name: "subtasks", Type: spec.Subtasks},
			{Name: "conclusion", Type: Text()},
		}}, nil
	}
}

// requiredUnion is the tooluse type used by explicitly declared tasks: the
// union is not nullable there, unlike the optional tooluse of depth towers.
func requiredUnion(tools []*Record) *Type {
	variants := make([]*Type, 0, len(tools))
	for _, t := range tools {
		variants = append(variants, RecordType(t))
	}
	return UnionOf(variants...)
}

// NewThread pairs a reasoning type with an answer type into the top-level
// grammar handed to the renderer. The reasoning type must be a list of task
// records or a union of such lists; anything else fails with an
// "invalid_reasoning_type" Error.
func NewThread(reasoning, answer *Type) (*Record, error) {
	if !validReasoningType(reasoning) {
		return nil, NewError(CodeInvalidReasoningType, "reasoning type must be a list of task records or a union of such lists")
	}
	return &Record{Name: "thread", Fields: []Field{
		{Name: "reasoning", Type: reasoning},
		{Name: "answer", Type: answer},
	}}, nil
}

func validReasoningType(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindList:
		return true
	case KindUnion:
		for _, v := range t.Variants {
			if v == nil || v.Kind != KindList {
				return false
			}
		}
		return len(t.Variants) > 0
	}
	return false
}
