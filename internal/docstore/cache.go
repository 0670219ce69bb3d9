package docstore

import (
	"context"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
)

// Cached serves FindOne from a ristretto cache in front of another Store.
// Documents are never updated after insertion, so positive lookups stay
// valid for the life of the process.
type Cached struct {
	Store
	cache *ristretto.Cache[string, Document]
}

// NewCached wraps s with a cache holding at most maxItems documents.
func NewCached(s Store, maxItems int64) (*Cached, error) {
	if maxItems <= 0 {
		return nil, errors.Errorf("cache size must be positive, got %d", maxItems)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, Document]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
		// cost counts documents, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create document cache")
	}
	return &Cached{Store: s, cache: cache}, nil
}

func (c *Cached) FindOne(ctx context.Context, collection, id string) (Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	canonical, err := CanonicalID(id)
	if err != nil {
		return nil, err
	}
	key := collection + "/" + canonical
	if doc, ok := c.cache.Get(key); ok {
		return doc.Clone(), nil
	}
	doc, err := c.Store.FindOne(ctx, collection, canonical)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, doc.Clone(), 1)
	return doc, nil
}

// Wait blocks until pending cache writes are applied.
func (c *Cached) Wait() { c.cache.Wait() }

func (c *Cached) Close() error {
	c.cache.Close()
	return c.Store.Close()
}
