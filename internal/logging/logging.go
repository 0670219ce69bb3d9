// Package logging builds the process logger and turns lifecycle events into
// log lines.
package logging

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	docstore "github.com/hanpama/contentgraph/internal/docstore"
	eventbus "github.com/hanpama/contentgraph/internal/eventbus"
	events "github.com/hanpama/contentgraph/internal/events"
	reqid "github.com/hanpama/contentgraph/internal/reqid"
)

// New builds a logger writing to stderr. format is "json" or "console".
func New(level, format string) (*zap.Logger, error) {
	return NewWithSyncer(level, format, zapcore.Lock(os.Stderr))
}

func NewWithSyncer(level, format string, ws zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(cfg)
	case "console":
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	return zap.New(zapcore.NewCore(enc, ws, lvl)), nil
}

// Subscribe writes an access line per HTTP request and debug lines per
// GraphQL operation and store operation. Failed store operations log at
// warn, except lookups of missing documents.
func Subscribe(bus *eventbus.Bus, logger *zap.Logger) (unsubscribe func()) {
	access := logger.Named("http")
	gql := logger.Named("graphql")
	store := logger.Named("store")

	unsubs := []func(){
		eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPFinish) {
			access.Info("request",
				zap.String("method", e.Request.Method),
				zap.String("path", e.Request.URL.Path),
				zap.Int("status", e.Status),
				zap.Duration("duration", e.Duration),
				requestID(ctx),
			)
		}),
		eventbus.Subscribe(bus, func(ctx context.Context, e events.GraphQLFinish) {
			if ce := gql.Check(zapcore.DebugLevel, "operation"); ce != nil {
				ce.Write(
					zap.String("type", e.OperationType),
					zap.String("name", e.OperationName),
					zap.Int("errors", len(e.Errors)),
					zap.Duration("duration", e.Duration),
					requestID(ctx),
				)
			}
		}),
		eventbus.Subscribe(bus, func(ctx context.Context, e events.StoreFinish) {
			fields := []zap.Field{
				zap.String("op", e.Op),
				zap.String("collection", e.Collection),
				zap.Duration("duration", e.Duration),
				requestID(ctx),
			}
			if e.Err != nil && !errors.Is(e.Err, docstore.ErrNotFound) {
				store.Warn("operation failed", append(fields, zap.Error(e.Err))...)
				return
			}
			store.Debug("operation", fields...)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func requestID(ctx context.Context) zap.Field {
	if rid, ok := reqid.FromContext(ctx); ok {
		return zap.String("request_id", rid)
	}
	return zap.Skip()
}
