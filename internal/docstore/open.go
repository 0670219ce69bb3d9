package docstore

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	eventbus "github.com/hanpama/contentgraph/internal/eventbus"
)

// Drivers accepted by Open.
const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	BadgerDir   string
	PostgresURL string
	SQLitePath  string
	// CacheItems enables the FindOne cache when positive.
	CacheItems int64
}

// Open opens the configured backend and layers the read cache and event
// instrumentation on top. Failures wrap ErrUnavailable.
func Open(ctx context.Context, opts Options, logger *zap.Logger, bus *eventbus.Bus) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case DriverBadger, "":
		s, err = OpenBadger(opts.BadgerDir, logger)
	case DriverPostgres:
		s, err = OpenPostgres(ctx, opts.PostgresURL)
	case DriverSQLite:
		s, err = OpenSQLite(ctx, opts.SQLitePath)
	default:
		return nil, errors.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if opts.CacheItems > 0 {
		c, err := NewCached(s, opts.CacheItems)
		if err != nil {
			s.Close()
			return nil, err
		}
		s = c
	}
	return Instrument(s, bus), nil
}
