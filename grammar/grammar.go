package grammar

import "strings"

// Kind discriminates the semantic value types a grammar field can hold.
type Kind int

const (
	// KindAny places no constraint on the value.
	KindAny Kind = iota
	// KindText is free-form text.
	KindText
	// KindBool is a boolean.
	KindBool
	// KindFloat is a floating point number.
	KindFloat
	// KindInt is an integer.
	KindInt
	// KindNull is the JSON null type.
	KindNull
	// KindLiteral is a single fixed string value.
	KindLiteral
	// KindList is an ordered sequence of an element type.
	KindList
	// KindOptional wraps a type that may also be null.
	KindOptional
	// KindUnion is exactly one of a set of alternatives.
	KindUnion
	// KindRecord references a named record type.
	KindRecord
)

// Type is a structural value type. Types are plain values: builders assemble
// them from tool and task declarations, and the renderer flattens them into
// JSON Schema. A Type never owns the Record it references.
type Type struct {
	Kind     Kind
	Value    string  // literal value for KindLiteral
	Elem     *Type   // element type for KindList, inner type for KindOptional
	Variants []*Type // alternatives for KindUnion
	Record   *Record // target for KindRecord
}

// Field is one named slot of a Record. Field order within a Record is
// declaration order.
type Field struct {
	Name        string
	Type        *Type
	Description string
}

// Record is a named structural record type with ordered fields. Every field
// is required; optionality is expressed in the field's Type, never by
// omitting the field.
type Record struct {
	Name   string
	Fields []Field
}

// Field returns the field with the given name, if present.
func (r *Record) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Type constructors.

func Any() *Type   { return &Type{Kind: KindAny} }
func Text() *Type  { return &Type{Kind: KindText} }
func Bool() *Type  { return &Type{Kind: KindBool} }
func Float() *Type { return &Type{Kind: KindFloat} }
func Int() *Type   { return &Type{Kind: KindInt} }
func Null() *Type  { return &Type{Kind: KindNull} }

// Literal is a type accepting exactly one string value.
func Literal(value string) *Type { return &Type{Kind: KindLiteral, Value: value} }

// ListOf is an ordered sequence of elem.
func ListOf(elem *Type) *Type { return &Type{Kind: KindList, Elem: elem} }

// Optional wraps t so the value may also be null.
func Optional(t *Type) *Type { return &Type{Kind: KindOptional, Elem: t} }

// UnionOf is exactly one of the given alternatives, in order.
func UnionOf(variants ...*Type) *Type { return &Type{Kind: KindUnion, Variants: variants} }

// RecordType references the given record.
func RecordType(r *Record) *Type { return &Type{Kind: KindRecord, Record: r} }

// typeMap resolves a primitive type name or an array descriptor to a semantic
// type. Unknown names resolve to Any: tool specs originate from third parties
// and unfamiliar JSON-Schema type names must not break grammar construction.
func typeMap(t any) *Type {
	switch v := t.(type) {
	case string:
		switch v {
		case "string":
			return Text()
		case "boolean":
			return Bool()
		case "number":
			return Float()
		case "integer":
			return Int()
		case "null":
			return Null()
		}
		return Any()
	case map[string]any:
		// for example: {"type": "array", "items": {"type": "string"}}
		if v["type"] == "array" {
			item := "any"
			if items, ok := v["items"].(map[string]any); ok {
				if it, ok := items["type"].(string); ok {
					item = it
				}
			}
			return ListOf(typeMap(item))
		}
	}
	return Any()
}

// ResolveType resolves one property spec from a tool's parameter schema into
// a semantic type.
//
// An "anyOf" spec resolves using only the first listed alternative, wrapped
// optional. A "type" holding a list (the JSON-Schema nullable shorthand, e.g.
// ["string","null"]) resolves to the first non-null entry, wrapped optional;
// if every entry is null the result falls back to optional text.
func ResolveType(spec map[string]any) *Type {
	if anyOf, ok := spec["anyOf"].([]any); ok && len(anyOf) > 0 {
		return Optional(typeMap(anyOf[0]))
	}
	if alts, ok := spec["type"].([]any); ok {
		for _, alt := range alts {
			if alt != "null" {
				return Optional(typeMap(alt))
			}
		}
		return Optional(Text())
	}
	return typeMap(spec["type"])
}

// UnderscoreToCamel converts a tool id to its schema type name: underscore
// components are title-cased, joined, and suffixed with "Tool". For example
// "web_search" becomes "WebSearchTool". No collision check is performed; two
// ids that camelize identically are the caller's problem.
func UnderscoreToCamel(toolName string) string {
	components := append(strings.Split(toolName, "_"), "Tool")
	var sb strings.Builder
	for _, c := range components {
		sb.WriteString(titleCase(c))
	}
	return sb.String()
}

// titleCase uppercases the first rune and lowercases the rest.
func titleCase(word string) string {
	if word == "" {
		return ""
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}

// capitalize uppercases the first rune and leaves the rest untouched.
func capitalize(word string) string {
	if word == "" {
		return ""
	}
	return strings.ToUpper(word[:1]) + word[1:]
}

// Title derives a human-readable title from a snake_case or camelCase name:
// tokens are split and each gets a capital first letter, joined by spaces.
func Title(phrase string) string {
	var words []string
	if strings.Contains(phrase, "_") {
		words = strings.Split(phrase, "_")
	} else {
		words = strings.Split(decamelize(phrase), "_")
	}
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// decamelize converts camelCase to snake_case.
func decamelize(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
