// Package resolvers binds every field of the content schema to a resolver
// and exposes the table to the executor as a Runtime.
package resolvers

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/contentgraph/internal/docstore"
	"github.com/hanpama/contentgraph/internal/executor"
	"github.com/hanpama/contentgraph/internal/schema"
	"github.com/hanpama/contentgraph/internal/viewer"
)

//go:embed schema.graphql
var SDL string

// DefaultMaxConcurrency bounds the resolvers run at once for one batch.
const DefaultMaxConcurrency = 16

type options struct {
	now            func() time.Time
	maxConcurrency int
}

// Option configures Build.
type Option func(*options)

// WithClock replaces the clock used to stamp createdAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMaxConcurrency bounds concurrent resolvers per batch. Values below one
// select DefaultMaxConcurrency.
func WithMaxConcurrency(n int) Option {
	return func(o *options) { o.maxConcurrency = n }
}

func defaultClock() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// Build loads the schema, binds the resolver table and marks store-backed
// fields as async. A field without a binding, or a binding without a field,
// is an error.
func Build(store docstore.Store, opts ...Option) (*schema.Schema, *Runtime, error) {
	o := options{now: defaultClock, maxConcurrency: DefaultMaxConcurrency}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxConcurrency < 1 {
		o.maxConcurrency = DefaultMaxConcurrency
	}
	sch, err := schema.BuildFromSDL("schema.graphql", SDL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load schema")
	}
	table := NewTable(store, o.now)
	if err := bind(sch, table); err != nil {
		return nil, nil, err
	}
	return sch, &Runtime{table: table, maxConcurrency: o.maxConcurrency}, nil
}

// bind checks that table covers sch exactly and sets each field's async flag.
func bind(sch *schema.Schema, table Table) error {
	var problems []string
	seen := make(map[FieldKey]bool, len(table))
	sch.ObjectFields(func(t *schema.Type, f *schema.Field) {
		key := FieldKey{Type: t.Name, Field: f.Name}
		b, ok := table[key]
		if !ok {
			problems = append(problems, "missing binding for "+key.String())
			return
		}
		seen[key] = true
		f.SetAsync(b.Kind.Async())
	})
	for key := range table {
		if !seen[key] {
			problems = append(problems, "binding for unknown field "+key.String())
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return errors.Errorf("resolver table does not match schema: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Runtime implements executor.Runtime over a Table. The viewer is read from
// the context of each call.
type Runtime struct {
	table          Table
	maxConcurrency int
}

var _ executor.Runtime = (*Runtime)(nil)

func (rt *Runtime) resolve(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	b, ok := rt.table[FieldKey{Type: objectType, Field: field}]
	if !ok {
		return nil, errors.Errorf("no resolver for %s.%s", objectType, field)
	}
	return b.Resolve(ctx, viewer.FromContext(ctx), source, args)
}

func (rt *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	return rt.resolve(ctx, objectType, field, source, args)
}

// BatchResolveAsync runs the tasks of one depth concurrently. Each task's
// failure stays with that task.
func (rt *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 1 {
		v, err := rt.resolve(ctx, tasks[0].ObjectType, tasks[0].Field, tasks[0].Source, tasks[0].Args)
		results[0] = executor.AsyncResolveResult{Value: v, Error: err}
		return results
	}
	var g errgroup.Group
	g.SetLimit(rt.maxConcurrency)
	for i, task := range tasks {
		g.Go(func() error {
			v, err := rt.resolve(ctx, task.ObjectType, task.Field, task.Source, task.Args)
			results[i] = executor.AsyncResolveResult{Value: v, Error: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (rt *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	switch typeName {
	case "Time":
		t, ok := value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("Time cannot represent %T", value)
		}
		return t.UTC().Format(time.RFC3339Nano), nil
	case "ID", "String":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%s cannot represent %T", typeName, value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %T", value)
	case "Int":
		switch n := value.(type) {
		case int, int32, int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("Int cannot represent %v", n)
			}
			return int64(n), nil
		}
		return nil, fmt.Errorf("Int cannot represent %T", value)
	case "Float":
		switch n := value.(type) {
		case float64, float32, int, int64:
			return n, nil
		}
		return nil, fmt.Errorf("Float cannot represent %T", value)
	}
	return value, nil
}
