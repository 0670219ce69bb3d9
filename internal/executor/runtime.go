package executor

import (
	"context"
)

// Runtime defines the host integration surface for field resolution, batching
// and leaf-value serialization used by the Executor.
//
// General contract
//   - The Executor performs a breadth-first execution. At each depth it drains all
//     synchronous fields first via ResolveSync, then calls BatchResolveAsync ONCE
//     with all async tasks collected at that depth. The next depth does not begin
//     until BatchResolveAsync returns and those results are completed.
//   - For mutation operations the Executor drains every root field (and its
//     nested work) before starting the next one, so a batch never holds two
//     root mutation tasks.
//   - Errors returned from any method are converted into located GraphQL errors.
//     If the field's return type is Non-Null, the Executor propagates the null to
//     the nearest nullable ancestor.
//   - Implementations must be safe for concurrent use. The Executor is invoked
//     concurrently for different requests.
//   - Implementations must not mutate source or args values.
//
// Object/field identifiers
//   - objectType is the GraphQL type name (e.g. "Post").
//   - field is the GraphQL field name on that type (e.g. "comments").
//   - For root fields, objectType is the root type name ("Query" or "Mutation").
//   - source is the parent object value (the initial value for root fields).
//   - args is the map of argument names to already-coerced Go values.
type Runtime interface {
	// ResolveSync resolves a synchronous field value immediately.
	//
	// Called only for fields declared as sync (Async == false). Return (nil, nil)
	// to produce a GraphQL null for nullable fields.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one execution depth of async field tasks.
	//
	// Requirements:
	// - Return len(results) == len(tasks).
	// - results[i] corresponds to tasks[i].
	// - Return independent errors per element without failing the whole batch.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// SerializeLeafValue serializes a scalar or enum value to a JSON-safe Go
	// value. For enums, return the symbolic name as string.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

type AsyncResolveTask struct {
	// ObjectType is the parent GraphQL object type name for the field.
	ObjectType string
	// Field is the GraphQL field name to resolve.
	Field string
	// Source is the parent object value.
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
}

type AsyncResolveResult struct {
	// Value is the resolved raw value prior to completion, or nil on error.
	Value any
	// Error contains a failure specific to this element; other elements in the
	// same batch are unaffected.
	Error error
}
