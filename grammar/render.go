package grammar

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

// ResponseFormat renders a response-format target into the structured-output
// constraint shape the API expects:
//
//	{"type": "json_schema", "json_schema": {"schema": <strict schema>, "name": <name>, "strict": true}}
//
// The target is either a *Record built by this package or a struct (a
// pointer to one works too), which is reflected into JSON Schema. Anything
// else fails with an "unsupported_type" Error.
func ResponseFormat(target any) (map[string]any, error) {
	var (
		name   string
		schema map[string]any
	)

	switch t := target.(type) {
	case *Record:
		name = t.Name
		schema = renderSchema(t)
	default:
		rt := reflect.TypeOf(target)
		for rt != nil && rt.Kind() == reflect.Pointer {
			rt = rt.Elem()
		}
		if rt == nil || rt.Kind() != reflect.Struct {
			return nil, NewError(CodeUnsupportedType, fmt.Sprintf("unsupported response format type %T", target))
		}
		name = rt.Name()
		var err error
		schema, err = reflectSchema(target)
		if err != nil {
			return nil, err
		}
	}

	strict, err := EnsureStrict(schema)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"schema": strict,
			"name":   name,
			"strict": true,
		},
	}, nil
}

// reflectSchema reflects a struct into a plain schema document.
func reflectSchema(target any) (map[string]any, error) {
	reflector := jsonschema.Reflector{ExpandedStruct: true}
	raw, err := json.Marshal(reflector.Reflect(target))
	if err != nil {
		return nil, fmt.Errorf("marshaling reflected schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decoding reflected schema: %w", err)
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	return schema, nil
}

// renderSchema emits the naive (pre-strict) schema document for a record:
// the root record inline, every referenced record under $defs.
func renderSchema(root *Record) map[string]any {
	defs := map[string]any{}
	collectDefs(root, root, defs, map[*Record]bool{root: true})

	doc := recordSchema(root)
	if len(defs) > 0 {
		doc["$defs"] = defs
	}
	return doc
}

// collectDefs walks the record graph depth-first and registers every record
// other than the root under $defs.
func collectDefs(root, rec *Record, defs map[string]any, seen map[*Record]bool) {
	for _, f := range rec.Fields {
		collectTypeDefs(root, f.Type, defs, seen)
	}
}

func collectTypeDefs(root *Record, t *Type, defs map[string]any, seen map[*Record]bool) {
	if t == nil {
		return
	}
	switch t.Kind {
	case KindList, KindOptional:
		collectTypeDefs(root, t.Elem, defs, seen)
	case KindUnion:
		for _, v := range t.Variants {
			collectTypeDefs(root, v, defs, seen)
		}
	case KindRecord:
		if t.Record == nil || seen[t.Record] {
			return
		}
		seen[t.Record] = true
		defs[t.Record.Name] = recordSchema(t.Record)
		collectDefs(root, t.Record, defs, seen)
	}
}

// recordSchema emits one record as an object schema. Required lists every
// field: optionality lives in the field types.
func recordSchema(r *Record) map[string]any {
	props := map[string]any{}
	required := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		props[f.Name] = fieldSchema(f)
		required = append(required, f.Name)
	}
	return map[string]any{
		"title":      r.Name,
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// fieldSchema emits one property schema. Bare record references get no title
// so they survive strict rendering as refs; a description forces siblings
// onto the ref, which the strict pass then inlines.
func fieldSchema(f Field) map[string]any {
	schema := typeSchema(f.Type)
	if f.Description != "" {
		schema["description"] = f.Description
	}
	if _, isRef := schema["$ref"]; !isRef {
		schema["title"] = Title(f.Name)
	}
	return schema
}

func typeSchema(t *Type) map[string]any {
	if t == nil {
		return map[string]any{}
	}
	switch t.Kind {
	case KindText:
		return map[string]any{"type": "string"}
	case KindBool:
		return map[string]any{"type": "boolean"}
	case KindFloat:
		return map[string]any{"type": "number"}
	case KindInt:
		return map[string]any{"type": "integer"}
	case KindNull:
		return map[string]any{"type": "null"}
	case KindLiteral:
		return map[string]any{"const": t.Value, "type": "string"}
	case KindList:
		return map[string]any{"type": "array", "items": typeSchema(t.Elem)}
	case KindOptional:
		variants := []*Type{t.Elem}
		if t.Elem != nil && t.Elem.Kind == KindUnion {
			variants = t.Elem.Variants
		}
		anyOf := make([]any, 0, len(variants)+1)
		for _, v := range variants {
			anyOf = append(anyOf, typeSchema(v))
		}
		anyOf = append(anyOf, map[string]any{"type": "null"})
		return map[string]any{"anyOf": anyOf}
	case KindUnion:
		anyOf := make([]any, 0, len(t.Variants))
		for _, v := range t.Variants {
			anyOf = append(anyOf, typeSchema(v))
		}
		return map[string]any{"anyOf": anyOf}
	case KindRecord:
		return map[string]any{"$ref": "#/$defs/" + t.Record.Name}
	}
	return map[string]any{}
}

// EnsureStrict mutates the given schema document into the strict dialect the
// API expects: every object forbids additional properties and requires every
// listed property, length-one allOf entries are merged into their parent,
// null defaults are stripped, and refs carrying sibling keys are resolved
// against the document root and inlined. Running it on an already-strict
// document is a no-op.
func EnsureStrict(doc map[string]any) (map[string]any, error) {
	return ensureStrict(doc, doc)
}

func ensureStrict(schema map[string]any, root map[string]any) (map[string]any, error) {
	for _, defsKey := range []string{"$defs", "definitions"} {
		if defs, ok := schema[defsKey]; ok {
			defsMap, ok := defs.(map[string]any)
			if !ok {
				return nil, NewError(CodeInvalidSchema, fmt.Sprintf("expected %s to be an object", defsKey))
			}
			for name, def := range defsMap {
				defSchema, ok := def.(map[string]any)
				if !ok {
					return nil, NewError(CodeInvalidSchema, fmt.Sprintf("expected %s.%s to be an object", defsKey, name))
				}
				normalized, err := ensureStrict(defSchema, root)
				if err != nil {
					return nil, err
				}
				defsMap[name] = normalized
			}
		}
	}

	if schema["type"] == "object" {
		if _, ok := schema["additionalProperties"]; !ok {
			schema["additionalProperties"] = false
		}
	}

	// object types
	// { "type": "object", "properties": { "a": {...} } }
	if props, ok := schema["properties"].(map[string]any); ok {
		required := make([]string, 0, len(props))
		for key := range props {
			required = append(required, key)
		}
		sort.Strings(required)
		schema["required"] = required

		for key, prop := range props {
			propSchema, ok := prop.(map[string]any)
			if !ok {
				return nil, NewError(CodeInvalidSchema, fmt.Sprintf("expected property %q to be an object", key))
			}
			normalized, err := ensureStrict(propSchema, root)
			if err != nil {
				return nil, err
			}
			props[key] = normalized
		}
	}

	// arrays
	// { "type": "array", "items": {...} }
	if items, ok := schema["items"].(map[string]any); ok {
		normalized, err := ensureStrict(items, root)
		if err != nil {
			return nil, err
		}
		schema["items"] = normalized
	}

	// unions
	if anyOf, ok := schema["anyOf"].([]any); ok {
		for i, variant := range anyOf {
			variantSchema, ok := variant.(map[string]any)
			if !ok {
				return nil, NewError(CodeInvalidSchema, fmt.Sprintf("expected anyOf entry %d to be an object", i))
			}
			normalized, err := ensureStrict(variantSchema, root)
			if err != nil {
				return nil, err
			}
			anyOf[i] = normalized
		}
	}

	// intersections: a single entry is merged into the parent, then the whole
	// node is normalized again since merging can surface un-normalized keys.
	// More than one entry is normalized per-entry without merging.
	if allOf, ok := schema["allOf"].([]any); ok {
		if len(allOf) == 1 {
			entry, ok := allOf[0].(map[string]any)
			if !ok {
				return nil, NewError(CodeInvalidSchema, "expected allOf entry to be an object")
			}
			delete(schema, "allOf")
			for k, v := range entry {
				schema[k] = v
			}
			return ensureStrict(schema, root)
		}
		for i, entry := range allOf {
			entrySchema, ok := entry.(map[string]any)
			if !ok {
				return nil, NewError(CodeInvalidSchema, fmt.Sprintf("expected allOf entry %d to be an object", i))
			}
			normalized, err := ensureStrict(entrySchema, root)
			if err != nil {
				return nil, err
			}
			allOf[i] = normalized
		}
	}

	// A null default is meaningless once nullability is expressed in the type.
	if v, ok := schema["default"]; ok && v == nil {
		delete(schema, "default")
	}

	// A $ref cannot carry sibling keys (e.g. a description alongside it), so
	// the ref is resolved and inlined, with the node's own keys winning on
	// conflict. A bare $ref is left untouched.
	if ref, ok := schema["$ref"]; ok && len(schema) > 1 {
		refStr, ok := ref.(string)
		if !ok {
			return nil, NewError(CodeMalformedReference, fmt.Sprintf("expected $ref to be a string, got %T", ref))
		}
		resolved, err := resolveRef(root, refStr)
		if err != nil {
			return nil, err
		}
		for k, v := range resolved {
			if _, exists := schema[k]; !exists {
				schema[k] = v
			}
		}
		delete(schema, "$ref")
		// The inlined content may not be normalized yet.
		return ensureStrict(schema, root)
	}

	return schema, nil
}

// resolveRef resolves a local "#/..." pointer against the document root.
func resolveRef(root map[string]any, ref string) (map[string]any, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, NewError(CodeMalformedReference, fmt.Sprintf("unexpected $ref format %q; does not start with #/", ref))
	}

	resolved := root
	for _, key := range strings.Split(ref[2:], "/") {
		value, ok := resolved[key]
		if !ok {
			return nil, NewError(CodeUnresolvedReference, fmt.Sprintf("cannot resolve %q: missing key %q", ref, key))
		}
		next, ok := value.(map[string]any)
		if !ok {
			return nil, NewError(CodeUnresolvedReference, fmt.Sprintf("encountered non-object entry while resolving %q", ref))
		}
		resolved = next
	}
	return resolved, nil
}
