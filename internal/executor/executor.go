package executor

import (
	"context"
	"fmt"
	"reflect"

	language "github.com/hanpama/contentgraph/internal/language"
	schema "github.com/hanpama/contentgraph/internal/schema"
)

type Path []PathElement

type PathElement any

// executionState holds the state of one request. It is owned by a single
// ExecuteRequest call and never shared.
type executionState struct {
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	context        context.Context
	pending        []asyncTask
	errors         []GraphQLError
	// nullability of every response position, keyed by pathToString
	nonNull map[string]bool
	// prefixes of paths that have been nullified (tombstoned)
	nullifiedPrefix map[string]struct{}
	// set when a Non-Null violation reaches the root
	dataNull bool
}

// asyncTask represents a pending async field resolution
type asyncTask struct {
	Task         AsyncResolveTask
	ResponsePath Path
	FieldType    *schema.TypeRef
	Fields       []*language.Field
}

type asyncPending struct{}

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// Schema returns the schema the executor was built with.
func (e *Executor) Schema() *schema.Schema { return e.schema }

func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation := getOperation(document, operationName)
	if operation == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: "operation not found"}}}
	}

	coercedVariableValues, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	default:
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("unsupported operation type: %s", operation.Operation)}}}
	}

	if rootType == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("root type not found for %s operation", operation.Operation)}}}
	}

	state := &executionState{
		runtime:         e.runtime,
		schema:          e.schema,
		document:        document,
		variableValues:  coercedVariableValues,
		context:         ctx,
		errors:          []GraphQLError{},
		nonNull:         make(map[string]bool),
		nullifiedPrefix: make(map[string]struct{}),
	}

	responseRoot := make(map[string]any)
	rootFields := collectFields(state, rootType, operation.SelectionSet).orderedFields()

	if operation.Operation == language.Mutation {
		// Root mutation fields are executed serially: each one, including its
		// nested selections, completes before the next starts.
		for _, cf := range rootFields {
			if !executeCollectedField(state, rootType, initialValue, cf, Path{}, responseRoot) {
				break
			}
			drainAsyncTasks(state, responseRoot)
			if state.dataNull {
				break
			}
		}
	} else {
		for _, cf := range rootFields {
			if !executeCollectedField(state, rootType, initialValue, cf, Path{}, responseRoot) {
				break
			}
		}
		drainAsyncTasks(state, responseRoot)
	}

	if state.dataNull {
		return &ExecutionResult{Data: nil, Errors: state.errors}
	}
	return &ExecutionResult{Data: responseRoot, Errors: state.errors}
}

// executeSelectionSet executes a selection set without flushing. It returns
// nil when a Non-Null field of the object resolved to null.
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) map[string]any {
	groupedFields := collectFields(state, objectType, selectionSet)
	resultMap := make(map[string]any, len(groupedFields.fields))

	for _, cf := range groupedFields.orderedFields() {
		if !executeCollectedField(state, objectType, objectValue, cf, path, resultMap) {
			state.markNullifiedPrefix(path)
			return nil
		}
	}
	return resultMap
}

// executeCollectedField resolves one response key into resultMap. It reports
// false when a Non-Null field produced null and the enclosing object must be
// nulled as well.
func executeCollectedField(state *executionState, objectType *schema.Type, objectValue any, cf collectedField, path Path, resultMap map[string]any) bool {
	responseName := cf.ResponseName
	fields := cf.Fields
	fieldPath := appendPath(path, responseName)

	if fields[0].Name == "__typename" {
		resultMap[responseName] = objectType.Name
		return true
	}

	fieldDef := objectType.Field(fields[0].Name)
	if fieldDef == nil {
		state.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", fields[0].Name, objectType.Name), fieldPath)
		return true
	}
	state.recordNullability(fieldPath, schema.IsNonNull(fieldDef.Type))

	fieldResult := executeField(state, objectType, fieldDef, objectValue, fields, fieldPath)
	if _, ok := fieldResult.(asyncPending); ok {
		// placeholder keeps response key order; the batch fills it in place
		resultMap[responseName] = nil
		return true
	}

	if isNullish(fieldResult) {
		if schema.IsNonNull(fieldDef.Type) {
			if len(path) == 0 {
				state.dataNull = true
			}
			return false
		}
		resultMap[responseName] = nil
		return true
	}
	resultMap[responseName] = fieldResult
	return true
}

func executeField(state *executionState, objectType *schema.Type, fieldDef *schema.Field, objectValue any, fields []*language.Field, path Path) any {
	argumentValues, ok := coerceArgumentValues(state, fieldDef, fields[0].Arguments, path)
	if !ok {
		return nil
	}

	if !fieldDef.Async {
		resolvedValue := resolveSyncField(state, objectType.Name, fieldDef.Name, objectValue, argumentValues, path)
		return completeValue(state, fieldDef.Type, fields, resolvedValue, path)
	}

	state.pending = append(state.pending, asyncTask{
		Task: AsyncResolveTask{
			ObjectType: objectType.Name,
			Field:      fieldDef.Name,
			Source:     objectValue,
			Args:       argumentValues,
		},
		ResponsePath: path,
		FieldType:    fieldDef.Type,
		Fields:       fields,
	})
	return asyncPending{}
}

// drainAsyncTasks runs batches until no async work is left.
func drainAsyncTasks(state *executionState, responseRoot map[string]any) {
	for len(state.pending) > 0 && !state.dataNull {
		tasks, results := flushAsyncTasks(state)
		for i, at := range tasks {
			var res AsyncResolveResult
			if i < len(results) {
				res = results[i]
			} else {
				res = AsyncResolveResult{Error: fmt.Errorf("runtime returned %d results for %d tasks", len(results), len(tasks))}
			}
			completeAsyncField(state, at, res, responseRoot)
		}
	}
}

// flushAsyncTasks flushes tasks and returns results (filtered by tombstones)
func flushAsyncTasks(state *executionState) ([]asyncTask, []AsyncResolveResult) {
	filtered := make([]asyncTask, 0, len(state.pending))
	for _, at := range state.pending {
		if state.hasNullifiedPrefix(at.ResponsePath) {
			continue
		}
		filtered = append(filtered, at)
	}
	state.pending = nil
	if len(filtered) == 0 {
		return nil, nil
	}

	tasks := make([]AsyncResolveTask, len(filtered))
	for i, at := range filtered {
		tasks[i] = at.Task
	}
	results := state.runtime.BatchResolveAsync(state.context, tasks)
	return filtered, results
}

// completeAsyncField completes a single async result, with non-null propagation and pruning
func completeAsyncField(state *executionState, at asyncTask, res AsyncResolveResult, responseRoot map[string]any) {
	path := at.ResponsePath
	if state.dataNull || state.hasNullifiedPrefix(path) {
		return
	}

	if res.Error != nil {
		state.errors = append(state.errors, locatedError(res.Error, path))
		if schema.IsNonNull(at.FieldType) {
			state.nullifyNearest(responseRoot, path)
			return
		}
		setValueAtPath(responseRoot, path, nil)
		return
	}

	completed := completeValue(state, at.FieldType, at.Fields, res.Value, path)
	if isNullish(completed) {
		if schema.IsNonNull(at.FieldType) {
			state.nullifyNearest(responseRoot, path)
			return
		}
		setValueAtPath(responseRoot, path, nil)
		return
	}
	setValueAtPath(responseRoot, path, completed)
}

// completeValue completes a value
func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path)), path)
			}
			return nil
		}
		return completeValue(state, schema.Unwrap(fieldType), fields, result, path)
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, fields, result, path)
	}
	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.Types[namedType]
	if typeObj == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", namedType), path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := state.runtime.SerializeLeafValue(state.context, namedType, result)
		if err != nil {
			state.errors = append(state.errors, locatedError(err, path))
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return executeSelectionSet(state, typeObj, mergeSelectionSets(fields), result, path)
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path)
		return nil
	}
}

// completeListValue completes a list value
func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice {
			state.addError(fmt.Sprintf("Expected list value, got %T", result), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	itemNonNull := schema.IsNonNull(inner)
	completed := make([]any, len(items))
	for i, item := range items {
		p := appendPath(path, i)
		state.recordNullability(p, itemNonNull)
		v := completeValue(state, inner, fields, item, p)
		if itemNonNull && isNullish(v) {
			// a null item nullifies the whole list; error already recorded
			state.markNullifiedPrefix(path)
			return nil
		}
		completed[i] = v
	}
	return completed
}

func pathToString(path Path) string {
	result := ""
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				result += "."
			}
			result += v
		case int:
			result += fmt.Sprintf("[%d]", v)
		}
	}
	return result
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

func (s *executionState) recordNullability(p Path, nonNull bool) {
	s.nonNull[pathToString(p)] = nonNull
}

// nullifyNearest writes null at the closest nullable ancestor of p and drops
// any work queued beneath it. With no nullable ancestor the whole data
// payload becomes null.
func (s *executionState) nullifyNearest(responseRoot map[string]any, p Path) {
	s.markNullifiedPrefix(p)
	for i := len(p) - 1; i > 0; i-- {
		ancestor := p[:i]
		s.markNullifiedPrefix(ancestor)
		if s.nonNull[pathToString(ancestor)] {
			continue
		}
		setValueAtPath(responseRoot, ancestor, nil)
		return
	}
	s.dataNull = true
}

// Prefix tombstone helpers
func (s *executionState) markNullifiedPrefix(p Path) {
	key := pathToString(p)
	if key != "" {
		s.nullifiedPrefix[key] = struct{}{}
	}
}

func (s *executionState) hasNullifiedPrefix(p Path) bool {
	if len(s.nullifiedPrefix) == 0 {
		return false
	}
	for i := 1; i <= len(p); i++ {
		if _, ok := s.nullifiedPrefix[pathToString(p[:i])]; ok {
			return true
		}
	}
	return false
}

// getOperation retrieves the operation from the document
func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" && len(document.Operations) == 1 {
		return document.Operations[0]
	}
	for _, op := range document.Operations {
		if op.Name == operationName {
			return op
		}
	}
	return nil
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return schema.ListType(typeRefFromAST(t.Elem))
	}
	return nil
}

func (s *executionState) addError(message string, path Path) {
	s.errors = append(s.errors, GraphQLError{Message: message, Path: path})
}

// hasErrorAtPath reports whether an error with the given path already exists.
func (s *executionState) hasErrorAtPath(path Path) bool {
	for _, err := range s.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}

func resolveSyncField(state *executionState, objectType string, fieldName string, source any, args map[string]any, path Path) any {
	value, err := state.runtime.ResolveSync(state.context, objectType, fieldName, source, args)
	if err != nil {
		state.errors = append(state.errors, locatedError(err, path))
		return nil
	}
	return value
}

// setValueAtPath writes value into the response tree. Missing intermediate
// objects are created; a null ancestor stops the write.
func setValueAtPath(responseRoot map[string]any, path Path, value any) {
	if len(path) == 0 {
		return
	}
	current := any(responseRoot)
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return
			}
			next, exists := m[e]
			if !exists {
				next = make(map[string]any)
				m[e] = next
			}
			current = next
		case int:
			slice, ok := current.([]any)
			if !ok || e >= len(slice) {
				return
			}
			current = slice[e]
		}
	}
	switch fe := path[len(path)-1].(type) {
	case string:
		if m, ok := current.(map[string]any); ok {
			m[fe] = value
		}
	case int:
		if slice, ok := current.([]any); ok && fe < len(slice) {
			slice[fe] = value
		}
	}
}

// mergeSelectionSets merges selection sets from multiple fields
func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
