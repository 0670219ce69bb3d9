package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Postgres stores each collection in its own table with the body in a jsonb
// column.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to url and creates the collection tables.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, unavailable("parse postgres url", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, unavailable("connect postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping postgres", err)
	}
	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	for _, c := range []string{Posts, Comments, Users} {
		table := pgx.Identifier{c}.Sanitize()
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id uuid PRIMARY KEY,
				created_at timestamptz NOT NULL,
				doc jsonb NOT NULL
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (created_at)`, pgx.Identifier{c + "_created_at_idx"}.Sanitize(), table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (doc jsonb_path_ops)`, pgx.Identifier{c + "_doc_idx"}.Sanitize(), table),
		}
		for _, s := range stmts {
			if _, err := p.pool.Exec(ctx, s); err != nil {
				return unavailable("migrate postgres", err)
			}
		}
	}
	return nil
}

func (p *Postgres) FindOne(ctx context.Context, collection, id string) (Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	uid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT created_at, doc FROM %s WHERE id = $1`, pgx.Identifier{collection}.Sanitize())
	var (
		createdAt time.Time
		raw       []byte
	)
	err = p.pool.QueryRow(ctx, q, pgtype.UUID{Bytes: uid, Valid: true}).Scan(&createdAt, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%s/%s", collection, FormatID(uid))
	}
	if err != nil {
		return nil, unavailable("find one", err)
	}
	return unmarshalJSON(uid, createdAt, raw)
}

func (p *Postgres) Find(ctx context.Context, collection string, filter Filter, sort Sort) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	if err := checkSort(sort); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT id, created_at, doc FROM %s`, pgx.Identifier{collection}.Sanitize())
	var args []any
	if len(filter) > 0 {
		enc, err := encodeValue(map[string]any(filter))
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(enc)
		if err != nil {
			return nil, errors.Wrap(err, "encode filter")
		}
		q += ` WHERE doc @> $1`
		args = append(args, json.RawMessage(b))
	}
	q += orderClause(sort)

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, unavailable("find", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var (
			id        pgtype.UUID
			createdAt time.Time
			raw       []byte
		)
		if err := rows.Scan(&id, &createdAt, &raw); err != nil {
			return nil, unavailable("find", err)
		}
		doc, err := unmarshalJSON(uuid.UUID(id.Bytes), createdAt, raw)
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

// orderClause pushes id and createdAt ordering down to SQL; other fields are
// sorted after decoding.
func orderClause(s Sort) string {
	dir := " ASC"
	if s.Descending {
		dir = " DESC"
	}
	switch s.Field {
	case KeyCreatedAt:
		return " ORDER BY created_at" + dir + ", id" + dir
	case "", KeyID:
		return " ORDER BY id" + dir
	}
	return " ORDER BY id ASC"
}

func (p *Postgres) InsertOne(ctx context.Context, collection string, doc Document) (string, error) {
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
	q := fmt.Sprintf(`INSERT INTO %s (id, created_at, doc) VALUES ($1, $2, $3)`, pgx.Identifier{collection}.Sanitize())
	if _, err := p.pool.Exec(ctx, q, pgtype.UUID{Bytes: uid, Valid: true}, createdAt, json.RawMessage(raw)); err != nil {
		return "", unavailable("insert one", err)
	}
	return FormatID(uid), nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
