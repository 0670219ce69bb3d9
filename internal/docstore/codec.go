package docstore

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// dateKey marks an encoded time.Time inside a stored body.
const dateKey = "$date"

// encodeBody splits doc into its JSON-safe body and creation time. The id is
// never part of the body.
func encodeBody(doc Document) (map[string]any, time.Time, error) {
	createdAt := now()
	body := make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case KeyID:
			continue
		case KeyCreatedAt:
			t, ok := v.(time.Time)
			if !ok {
				return nil, time.Time{}, errors.Wrapf(ErrUnsupportedValue, "%s must be a time, got %T", KeyCreatedAt, v)
			}
			createdAt = t.UTC().Truncate(time.Microsecond)
			continue
		}
		ev, err := encodeValue(v)
		if err != nil {
			return nil, time.Time{}, errors.Wrapf(err, "field %q", k)
		}
		body[k] = ev
	}
	return body, createdAt, nil
}

func encodeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case time.Time:
		return map[string]any{dateKey: t.UTC().Format(time.RFC3339Nano)}, nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			ev, err := encodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			ev, err := encodeValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case Document:
		return encodeValue(map[string]any(t))
	}
	return nil, errors.Wrapf(ErrUnsupportedValue, "%T", v)
}

func decodeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if s, ok := t[dateKey].(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
					return ts.UTC()
				}
			}
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = decodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = decodeValue(e)
		}
		return out
	}
	return v
}

// assemble builds the returned Document from stored parts.
func assemble(id uuid.UUID, createdAt time.Time, body map[string]any) Document {
	doc := make(Document, len(body)+2)
	for k, v := range body {
		doc[k] = decodeValue(v)
	}
	doc[KeyID] = FormatID(id)
	doc[KeyCreatedAt] = createdAt.UTC()
	return doc
}

// marshalProto encodes a body and its creation time as a protobuf Struct.
func marshalProto(body map[string]any, createdAt time.Time) ([]byte, error) {
	m := make(map[string]any, len(body)+1)
	for k, v := range body {
		m[k] = v
	}
	m[KeyCreatedAt] = map[string]any{dateKey: createdAt.UTC().Format(time.RFC3339Nano)}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(ErrUnsupportedValue, err.Error())
	}
	return proto.Marshal(s)
}

func unmarshalProto(id uuid.UUID, data []byte) (Document, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	body := s.AsMap()
	createdAt, _ := decodeValue(body[KeyCreatedAt]).(time.Time)
	delete(body, KeyCreatedAt)
	return assemble(id, createdAt, body), nil
}

func marshalJSON(body map[string]any) ([]byte, error) {
	return json.Marshal(body)
}

func unmarshalJSON(id uuid.UUID, createdAt time.Time, data []byte) (Document, error) {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	return assemble(id, createdAt, body), nil
}

// matches reports whether doc satisfies filter. Numbers compare as float64.
func matches(doc Document, filter Filter) bool {
	for k, want := range filter {
		ew, err := encodeValue(want)
		if err != nil {
			return false
		}
		if doc[k] != ew {
			return false
		}
	}
	return true
}

// sortDocuments orders docs in place; ties fall back to id order.
func sortDocuments(docs []Document, s Sort) {
	field := s.Field
	if field == "" {
		field = KeyID
	}
	sort.SliceStable(docs, func(i, j int) bool {
		c := compareValues(docs[i][field], docs[j][field])
		if c == 0 {
			c = strings.Compare(docs[i].ID(), docs[j].ID())
		}
		if s.Descending {
			return c > 0
		}
		return c < 0
	})
}

// compareValues orders values of the same kind; nil sorts first.
func compareValues(a, b any) int {
	switch x := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	if b == nil {
		return 1
	}
	return 0
}
