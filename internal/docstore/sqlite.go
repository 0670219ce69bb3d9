package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLite stores each collection in its own table with the body as JSON text
// and the creation time as unix nanoseconds.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database at path; ":memory:" gives a private
// in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, unavailable("open sqlite", err)
	}
	// a single connection keeps ":memory:" databases and writes consistent
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("open sqlite", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	for _, c := range []string{Posts, Comments, Users} {
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
				id TEXT PRIMARY KEY,
				created_at INTEGER NOT NULL,
				doc TEXT NOT NULL
			);`, c),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_created_at_idx ON %s(created_at);`, c, c),
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return unavailable("migrate sqlite", err)
			}
		}
	}
	return nil
}

func (s *SQLite) FindOne(ctx context.Context, collection, id string) (Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	uid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var (
		createdAt int64
		raw       string
	)
	q := fmt.Sprintf(`SELECT created_at, doc FROM %s WHERE id = ?`, collection)
	err = s.db.QueryRowContext(ctx, q, FormatID(uid)).Scan(&createdAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%s/%s", collection, FormatID(uid))
	}
	if err != nil {
		return nil, unavailable("find one", err)
	}
	return unmarshalJSON(uid, time.Unix(0, createdAt).UTC(), []byte(raw))
}

func (s *SQLite) Find(ctx context.Context, collection string, filter Filter, sort Sort) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	if err := checkSort(sort); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT id, created_at, doc FROM %s`, collection)
	var (
		conds []string
		args  []any
	)
	for k, v := range filter {
		conds = append(conds, fmt.Sprintf(`json_extract(doc, '$.%s') = ?`, k))
		args = append(args, sqliteArg(v))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderClause(sort)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("find", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var (
			id        string
			createdAt int64
			raw       string
		)
		if err := rows.Scan(&id, &createdAt, &raw); err != nil {
			return nil, unavailable("find", err)
		}
		uid, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt id %q", id)
		}
		doc, err := unmarshalJSON(uid, time.Unix(0, createdAt).UTC(), []byte(raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("find", err)
	}
	if sort.Field != "" && sort.Field != KeyID && sort.Field != KeyCreatedAt {
		sortDocuments(docs, sort)
	}
	return docs, nil
}

// sqliteArg maps a filter value onto what json_extract yields for it.
func sqliteArg(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	if ev, err := encodeValue(v); err == nil {
		return ev
	}
	return v
}

func (s *SQLite) InsertOne(ctx context.Context, collection string, doc Document) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	body, createdAt, err := encodeBody(doc)
	if err != nil {
		return "", err
	}
	raw, err := marshalJSON(body)
	if err != nil {
		return "", errors.Wrap(err, "encode document")
	}
	uid, err := NewID()
	if err != nil {
		return "", err
	}
	q := fmt.Sprintf(`INSERT INTO %s(id, created_at, doc) VALUES(?, ?, ?)`, collection)
	if _, err := s.db.ExecContext(ctx, q, FormatID(uid), createdAt.UnixNano(), string(raw)); err != nil {
		return "", unavailable("insert one", err)
	}
	return FormatID(uid), nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
