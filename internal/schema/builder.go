package schema

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/contentgraph/internal/language"
)

func NewSchema(description string) *Schema {
	return &Schema{Types: make(map[string]*Type), Description: description}
}

func (s *Schema) SetQueryType(name string) *Schema    { s.QueryType = name; return s }
func (s *Schema) SetMutationType(name string) *Schema { s.MutationType = name; return s }

func (s *Schema) AddType(t *Type) *Schema {
	if s.Types == nil {
		s.Types = make(map[string]*Type)
	}
	s.Types[t.Name] = t
	return s
}

// Field returns the field definition typeName.fieldName, or nil.
func (s *Schema) Field(typeName, fieldName string) *Field {
	t := s.Types[typeName]
	if t == nil {
		return nil
	}
	return t.Field(fieldName)
}

// ObjectFields calls fn for every field of every object type.
func (s *Schema) ObjectFields(fn func(t *Type, f *Field)) {
	for _, t := range s.Types {
		if t.Kind != TypeKindObject {
			continue
		}
		for _, f := range t.Fields {
			fn(t, f)
		}
	}
}

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

func (t *Type) AddField(f *Field) *Type           { t.Fields = append(t.Fields, f); return t }
func (t *Type) AddEnumValue(v *EnumValue) *Type   { t.EnumValues = append(t.EnumValues, v); return t }
func (t *Type) AddInputField(v *InputValue) *Type { t.InputFields = append(t.InputFields, v); return t }

func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func NewField(name, description string, typ *TypeRef) *Field {
	return &Field{Name: name, Description: description, Type: typ}
}

func (f *Field) SetAsync(async bool) *Field         { f.Async = async; return f }
func (f *Field) AddArgument(arg *InputValue) *Field { f.Arguments = append(f.Arguments, arg); return f }

func (f *Field) Deprecate(reason string) *Field {
	f.IsDeprecated = true
	f.DeprecationReason = reason
	return f
}

func NewEnumValue(name, description string) *EnumValue {
	return &EnumValue{Name: name, Description: description}
}

func NewInputValue(name, description string, typ *TypeRef) *InputValue {
	return &InputValue{Name: name, Description: description, Type: typ}
}

func (v *InputValue) SetDefault(val any) *InputValue { v.DefaultValue = val; return v }

// BuildFromSDL validates sdl with gqlparser and converts it into an executable
// Schema. Introspection types and meta fields are left out.
func BuildFromSDL(name, sdl string) (*Schema, error) {
	doc, err := language.LoadSchema(name, sdl)
	if err != nil {
		return nil, err
	}
	s := NewSchema("")
	s.AST = doc
	if doc.Query != nil {
		s.SetQueryType(doc.Query.Name)
	}
	if doc.Mutation != nil {
		s.SetMutationType(doc.Mutation.Name)
	}
	for typeName, def := range doc.Types {
		if strings.HasPrefix(typeName, "__") {
			continue
		}
		t, err := buildType(def)
		if err != nil {
			return nil, err
		}
		s.AddType(t)
	}
	return s, nil
}

func buildType(def *ast.Definition) (*Type, error) {
	var kind TypeKind
	switch def.Kind {
	case ast.Object:
		kind = TypeKindObject
	case ast.Scalar:
		kind = TypeKindScalar
	case ast.Enum:
		kind = TypeKindEnum
	case ast.InputObject:
		kind = TypeKindInputObject
	case ast.Interface:
		kind = TypeKindInterface
	case ast.Union:
		kind = TypeKindUnion
	default:
		return nil, fmt.Errorf("type %s: unsupported kind %s", def.Name, def.Kind)
	}
	t := NewType(def.Name, kind, def.Description)
	switch kind {
	case TypeKindObject, TypeKindInterface:
		for _, fd := range def.Fields {
			if strings.HasPrefix(fd.Name, "__") {
				continue
			}
			f, err := buildField(fd)
			if err != nil {
				return nil, fmt.Errorf("type %s: %w", def.Name, err)
			}
			t.AddField(f)
		}
	case TypeKindEnum:
		for _, ev := range def.EnumValues {
			t.AddEnumValue(NewEnumValue(ev.Name, ev.Description))
		}
	case TypeKindInputObject:
		for _, fd := range def.Fields {
			t.AddInputField(NewInputValue(fd.Name, fd.Description, buildTypeRef(fd.Type)))
		}
	}
	return t, nil
}

func buildField(fd *ast.FieldDefinition) (*Field, error) {
	f := NewField(fd.Name, fd.Description, buildTypeRef(fd.Type))
	if d := fd.Directives.ForName("deprecated"); d != nil {
		reason := "No longer supported"
		if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
			reason = arg.Value.Raw
		}
		f.Deprecate(reason)
	}
	for _, ad := range fd.Arguments {
		in := NewInputValue(ad.Name, ad.Description, buildTypeRef(ad.Type))
		if ad.DefaultValue != nil {
			v, err := ad.DefaultValue.Value(nil)
			if err != nil {
				return nil, fmt.Errorf("field %s argument %s: %w", fd.Name, ad.Name, err)
			}
			in.SetDefault(v)
		}
		f.AddArgument(in)
	}
	return f, nil
}

func buildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return NonNullType(buildTypeRef(&ast.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return NamedType(t.NamedType)
	}
	return ListType(buildTypeRef(t.Elem))
}
