package docstore

import (
	"context"
	"sync/atomic"
	"time"

	eventbus "github.com/hanpama/contentgraph/internal/eventbus"
	events "github.com/hanpama/contentgraph/internal/events"
)

// Instrumented publishes StoreStart and StoreFinish around every operation
// of the wrapped Store.
type Instrumented struct {
	store Store
	bus   *eventbus.Bus
	seq   atomic.Uint64
}

// Instrument wraps s so that its operations are reported on bus.
func Instrument(s Store, bus *eventbus.Bus) *Instrumented {
	return &Instrumented{store: s, bus: bus}
}

func (i *Instrumented) observe(ctx context.Context, op, collection string) func(error) {
	id := i.seq.Add(1)
	start := time.Now()
	eventbus.Publish(ctx, i.bus, events.StoreStart{OpID: id, Op: op, Collection: collection})
	return func(err error) {
		eventbus.Publish(ctx, i.bus, events.StoreFinish{
			OpID:       id,
			Op:         op,
			Collection: collection,
			Err:        err,
			Duration:   time.Since(start),
		})
	}
}

func (i *Instrumented) FindOne(ctx context.Context, collection, id string) (doc Document, err error) {
	done := i.observe(ctx, "find_one", collection)
	defer func() { done(err) }()
	return i.store.FindOne(ctx, collection, id)
}

func (i *Instrumented) Find(ctx context.Context, collection string, filter Filter, sort Sort) (docs []Document, err error) {
	done := i.observe(ctx, "find", collection)
	defer func() { done(err) }()
	return i.store.Find(ctx, collection, filter, sort)
}

func (i *Instrumented) InsertOne(ctx context.Context, collection string, doc Document) (id string, err error) {
	done := i.observe(ctx, "insert_one", collection)
	defer func() { done(err) }()
	return i.store.InsertOne(ctx, collection, doc)
}

func (i *Instrumented) Close() error { return i.store.Close() }
