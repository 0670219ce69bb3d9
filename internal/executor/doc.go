// Package executor implements a breadth-first, batch-friendly GraphQL executor
// with explicit runtime hooks for synchronous resolution, depth-wise batching of
// asynchronous work, and leaf serialization.
//
// # Overview
//
// The executor follows a level-by-level (BFS) execution model designed to:
//   - Expand synchronous (projection) fields immediately without adding batch depth.
//   - Collect asynchronous (store-backed) fields encountered at the current depth
//     and resolve them in a single call to Runtime.BatchResolveAsync.
//   - Complete values for lists, leaves and objects, including Non-Null
//     null-propagation to the nearest nullable ancestor.
//   - Accumulate located errors while allowing partial success.
//
// Only object, scalar, enum and input object types are supported. The schema
// has no interfaces or unions, so fragment type conditions match by name.
//
// # Preparation
//
// Before execution, the executor:
//  1. Chooses the operation (by name or by uniqueness when unnamed).
//  2. Coerces variables against the operation's variable definitions. Errors
//     here stop execution and produce a result without data.
//  3. Determines the root object type (Query or Mutation) and collects the
//     root selection set.
//
// Documents are expected to be validated against the schema by the caller.
//
// # Execution Model
//
// The schema conveys the sync/async classification through schema.Field.Async.
// Sync fields are resolved through Runtime.ResolveSync and completed at once.
// Async fields are queued as AsyncResolveTask values and a nil placeholder is
// written at their response key so output order follows the selection.
//
// Once the sync frontier is exhausted the queued tasks are handed to
// Runtime.BatchResolveAsync in one call. Completing those results may queue the
// next depth of tasks. For a graph with asynchronous depth d, a query invokes
// BatchResolveAsync exactly d times.
//
// Mutation operations execute root fields serially. Each root field, together
// with every nested batch it produces, is drained before the next root field is
// collected, so two mutations of one request never share a batch.
//
// # Errors and Partial Success
//
// Errors are accumulated as located GraphQL errors (message, path and optional
// extensions). A resolver error that implements ExtendedError contributes its
// extensions. For a Non-Null field, a null result or an error nulls the
// nearest nullable ancestor and marks that path as a tombstone; queued tasks
// below a tombstone are dropped before the next batch. When no nullable
// ancestor exists the whole data payload is null.
package executor
