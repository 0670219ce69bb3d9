package executor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	language "github.com/hanpama/contentgraph/internal/language"
	schema "github.com/hanpama/contentgraph/internal/schema"
)

// coerceVariableValues coerces variable values according to their types
func coerceVariableValues(
	s *schema.Schema,
	operation *language.OperationDefinition,
	variableValues map[string]any,
) (map[string]any, error) {
	if variableValues == nil {
		variableValues = make(map[string]any)
	}
	coerced := make(map[string]any)
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		t := varDef.Type
		val, ok := variableValues[name]
		if !ok {
			if v2, ok2 := variableValues[strings.TrimPrefix(name, "$")]; ok2 {
				val = v2
				ok = true
			}
		}
		if !ok {
			if varDef.DefaultValue != nil {
				val = astValueToGo(varDef.DefaultValue)
			} else if t.NonNull {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t.String())
			} else {
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, t.String())
		}
		cv, err := coerceValue(s, val, typeRefFromAST(t))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %v", name, t.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues coerces argument values for a field. It reports false
// when any argument failed; the errors are already recorded at path.
func coerceArgumentValues(
	state *executionState,
	fieldDef *schema.Field,
	arguments language.ArgumentList,
	path Path,
) (map[string]any, bool) {
	coerced := make(map[string]any)
	ok := true
	for _, argDef := range fieldDef.Arguments {
		name := argDef.Name
		arg := arguments.ForName(name)
		if arg == nil || (arg.Value.Kind == language.Variable && !hasVariable(state.variableValues, arg.Value.Raw)) {
			if argDef.DefaultValue != nil {
				coerced[name] = argDef.DefaultValue
			} else if schema.IsNonNull(argDef.Type) {
				state.addError(fmt.Sprintf("argument '%s' of required type %s was not provided", name, argDef.Type), path)
				ok = false
			}
			continue
		}
		val := valueFromASTWithVars(arg.Value, state.variableValues)
		cv, err := coerceValue(state.schema, val, argDef.Type)
		if err != nil {
			state.addError(fmt.Sprintf("argument '%s' cannot be coerced: %v", name, err), path)
			ok = false
			continue
		}
		coerced[name] = cv
	}
	return coerced, ok
}

func hasVariable(variableValues map[string]any, name string) bool {
	if _, ok := variableValues[name]; ok {
		return true
	}
	_, ok := variableValues[strings.TrimPrefix(name, "$")]
	return ok
}

// valueFromASTWithVars converts an AST value to a runtime value with variable substitution
func valueFromASTWithVars(value *language.Value, variableValues map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		name := value.Raw
		if v, ok := variableValues[name]; ok {
			return v
		}
		if v, ok := variableValues[strings.TrimPrefix(name, "$")]; ok {
			return v
		}
		return nil
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = valueFromASTWithVars(c.Value, variableValues)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any, len(value.Children))
		for _, f := range value.Children {
			m[f.Name] = valueFromASTWithVars(f.Value, variableValues)
		}
		return m
	default:
		return astValueToGo(value)
	}
}

// astValueToGo converts an AST value to a Go value
func astValueToGo(value *language.Value) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.IntValue:
		iv, _ := strconv.Atoi(value.Raw)
		return iv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.NullValue:
		return nil
	case language.EnumValue:
		return value.Raw
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = astValueToGo(c.Value)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any)
		for _, f := range value.Children {
			m[f.Name] = astValueToGo(f.Value)
		}
		return m
	default:
		return nil
	}
}

// coerceValue coerces a value to the specified GraphQL input type
func coerceValue(s *schema.Schema, value any, targetType *schema.TypeRef) (any, error) {
	if schema.IsNonNull(targetType) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type %s", targetType)
		}
		return coerceValue(s, value, schema.Unwrap(targetType))
	}
	if value == nil {
		return nil, nil
	}
	if schema.IsList(targetType) {
		return coerceListValue(s, value, targetType)
	}

	namedType := schema.GetNamedType(targetType)
	switch namedType {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	}

	var typeDef *schema.Type
	if s != nil {
		typeDef = s.Types[namedType]
	}
	if typeDef == nil {
		// custom scalars are handed to the runtime as-is
		return value, nil
	}
	switch typeDef.Kind {
	case schema.TypeKindEnum:
		return coerceEnumValue(typeDef, value)
	case schema.TypeKindInputObject:
		return coerceInputObject(s, typeDef, value)
	default:
		return value, nil
	}
}

// coerceListValue coerces a value to a list
func coerceListValue(s *schema.Schema, value any, listType *schema.TypeRef) (any, error) {
	innerType := schema.Unwrap(listType)
	if slice, ok := value.([]any); ok {
		coercedSlice := make([]any, len(slice))
		for i, item := range slice {
			coercedItem, err := coerceValue(s, item, innerType)
			if err != nil {
				return nil, err
			}
			coercedSlice[i] = coercedItem
		}
		return coercedSlice, nil
	}

	// Single value becomes a list of one
	coercedItem, err := coerceValue(s, value, innerType)
	if err != nil {
		return nil, err
	}
	return []any{coercedItem}, nil
}

func coerceEnumValue(t *schema.Type, value any) (any, error) {
	name, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("enum %s expects a name, got %T", t.Name, value)
	}
	for _, ev := range t.EnumValues {
		if ev.Name == name {
			return name, nil
		}
	}
	return nil, fmt.Errorf("value %q does not exist in enum %s", name, t.Name)
}

func coerceInputObject(s *schema.Schema, t *schema.Type, value any) (any, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("input object %s expects an object, got %T", t.Name, value)
	}
	known := make(map[string]struct{}, len(t.InputFields))
	out := make(map[string]any, len(t.InputFields))
	for _, f := range t.InputFields {
		known[f.Name] = struct{}{}
		v, present := fields[f.Name]
		if !present {
			if f.DefaultValue != nil {
				out[f.Name] = f.DefaultValue
			} else if schema.IsNonNull(f.Type) {
				return nil, fmt.Errorf("required field '%s' of %s was not provided", f.Name, t.Name)
			}
			continue
		}
		cv, err := coerceValue(s, v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field '%s': %v", f.Name, err)
		}
		out[f.Name] = cv
	}
	for name := range fields {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("field '%s' is not defined by %s", name, t.Name)
		}
	}
	return out, nil
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case float32:
		f := float64(v)
		if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
			return int(f), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to String", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
