package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/contentgraph/internal/eventbus"
	events "github.com/hanpama/contentgraph/internal/events"
	reqid "github.com/hanpama/contentgraph/internal/reqid"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches bus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(ctx context.Context, bus *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, errors.Wrap(err, "otlp exporter")
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	detach := Attach(bus, tp.Tracer("contentgraph"))
	return func(ctx context.Context) error {
		detach()
		return tp.Shutdown(ctx)
	}, nil
}

// Attach turns lifecycle events on bus into spans created by tracer.
// HTTP and GraphQL spans are keyed by request id; store spans by OpID and
// parented to the GraphQL span of the same request.
func Attach(bus *eventbus.Bus, tracer trace.Tracer) (detach func()) {
	s := &subscriber{tracer: tracer}
	return s.register(bus)
}

type subscriber struct {
	tracer     trace.Tracer
	httpSpans  sync.Map // rid -> trace.Span
	gqlSpans   sync.Map // rid -> trace.Span
	storeSpans sync.Map // op id -> trace.Span
}

func (s *subscriber) parent(ctx context.Context, rid string) context.Context {
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func (s *subscriber) register(bus *eventbus.Bus) func() {
	var unsubs []func()
	add := func(u func()) { unsubs = append(unsubs, u) }

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request")
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
			attribute.String("http.request_id", rid),
		)
		s.httpSpans.Store(rid, span)
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.httpSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		if e.Status >= 500 {
			span.SetStatus(codes.Error, "")
		}
		span.End()
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.GraphQLStart) {
		rid, _ := reqid.FromContext(ctx)
		parent := ctx
		if v, ok := s.httpSpans.Load(rid); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "graphql.operation")
		span.SetAttributes(
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.String("graphql.operation.type", e.OperationType),
		)
		s.gqlSpans.Store(rid, span)
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.GraphQLFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.gqlSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
		span.End()
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.StoreStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, rid), "store."+e.Op)
		span.SetAttributes(
			semconv.DBOperationKey.String(e.Op),
			semconv.DBSQLTableKey.String(e.Collection),
		)
		s.storeSpans.Store(e.OpID, span)
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.StoreFinish) {
		v, ok := s.storeSpans.LoadAndDelete(e.OpID)
		if !ok {
			return
		}
		span := v.(trace.Span)
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End()
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
