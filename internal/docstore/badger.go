package docstore

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Badger stores documents in an embedded badger database. Keys are
// "<collection>/" followed by the 16 id bytes; values are protobuf Structs.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens the database in dir, or an in-memory database when dir
// is empty.
func OpenBadger(dir string, logger *zap.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.WithLogger(badgerLogger{logger.Named("badger").Sugar()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, unavailable("open badger", err)
	}
	return &Badger{db: db}, nil
}

func badgerKey(collection string, id uuid.UUID) []byte {
	key := make([]byte, 0, len(collection)+1+len(id))
	key = append(key, collection...)
	key = append(key, '/')
	return append(key, id[:]...)
}

func (b *Badger) FindOne(ctx context.Context, collection, id string) (Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	uid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var doc Document
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(collection, uid))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			d, err := unmarshalProto(uid, val)
			doc = d
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "%s/%s", collection, FormatID(uid))
	}
	if err != nil {
		return nil, unavailable("find one", err)
	}
	return doc, nil
}

func (b *Badger) Find(ctx context.Context, collection string, filter Filter, sort Sort) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	if err := checkSort(sort); err != nil {
		return nil, err
	}
	prefix := []byte(collection + "/")
	docs := []Document{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			uid, err := uuid.FromBytes(item.Key()[len(prefix):])
			if err != nil {
				return errors.Wrapf(err, "corrupt key %q", item.Key())
			}
			var doc Document
			if err := item.Value(func(val []byte) error {
				d, err := unmarshalProto(uid, val)
				doc = d
				return err
			}); err != nil {
				return err
			}
			if matches(doc, filter) {
				docs = append(docs, doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("find", err)
	}
	sortDocuments(docs, sort)
	return docs, nil
}

func (b *Badger) InsertOne(ctx context.Context, collection string, doc Document) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	body, createdAt, err := encodeBody(doc)
	if err != nil {
		return "", err
	}
	val, err := marshalProto(body, createdAt)
	if err != nil {
		return "", err
	}
	uid, err := NewID()
	if err != nil {
		return "", err
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(collection, uid), val)
	}); err != nil {
		return "", unavailable("insert one", err)
	}
	return FormatID(uid), nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger's internal logging to zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) { l.Warnf(format, args...) }
