package domain

import "strings"

// FieldType is the declared storage type of a model field.
type FieldType string

const (
	TypeString   FieldType = "String"
	TypeNumber   FieldType = "Number"
	TypeBoolean  FieldType = "Boolean"
	TypeDate     FieldType = "Date"
	TypeMixed    FieldType = "Mixed"
	TypeObjectID FieldType = "ObjectID"
	TypeArray    FieldType = "Array"
)

// ModelDescriptor describes a registered record type.
type ModelDescriptor struct {
	Name   string            `json:"name" yaml:"name"`
	Fields []FieldDescriptor `json:"fields" yaml:"fields"`
}

// FieldDescriptor describes one field path of a model. Ref names the model
// an ObjectID field points to. Array fields carry their element type in Elem;
// the reference target of an array may live on the field or on Elem.
type FieldDescriptor struct {
	Path string           `json:"path" yaml:"path"`
	Type FieldType        `json:"type" yaml:"type"`
	Ref  string           `json:"ref,omitempty" yaml:"ref,omitempty"`
	Elem *FieldDescriptor `json:"elem,omitempty" yaml:"elem,omitempty"`
}

// IsArray reports whether the field holds a list of values.
func (f FieldDescriptor) IsArray() bool {
	return f.Type == TypeArray || f.Elem != nil
}

// Field returns the descriptor for path, if the model declares it.
func (m ModelDescriptor) Field(path string) (FieldDescriptor, bool) {
	for _, f := range m.Fields {
		if f.Path == path {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// ParseFieldType normalizes a declared type name. The bracket form "[T]"
// declares an array of T and returns the element descriptor as well.
// Unknown names map to TypeMixed.
func ParseFieldType(s string) (FieldType, *FieldDescriptor) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		inner, nested := ParseFieldType(s[1 : len(s)-1])
		return TypeArray, &FieldDescriptor{Type: inner, Elem: nested}
	}

	switch strings.ToLower(s) {
	case "string":
		return TypeString, nil
	case "number", "int", "integer", "float":
		return TypeNumber, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "date", "datetime":
		return TypeDate, nil
	case "objectid", "ref":
		return TypeObjectID, nil
	case "array":
		return TypeArray, nil
	default:
		return TypeMixed, nil
	}
}
