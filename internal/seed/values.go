package seed

import (
	"context"
	"fmt"

	"github.com/johnwards/docseed/internal/domain"
)

// materialize loads every Source found in v, recursing through records and
// lists, so the result can be hashed and written. Maps are rebuilt as
// domain.Record and lists as []any; v itself is left untouched.
func materialize(ctx context.Context, v any) (any, error) {
	switch val := v.(type) {
	case domain.Source:
		loaded, err := val.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load source: %w", err)
		}
		return materialize(ctx, loaded)
	case domain.Record:
		return materializeRecord(ctx, val)
	case map[string]any:
		return materializeRecord(ctx, val)
	case []domain.Record:
		out := make([]any, 0, len(val))
		for _, rec := range val {
			m, err := materializeRecord(ctx, rec)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	case []map[string]any:
		out := make([]any, 0, len(val))
		for _, rec := range val {
			m, err := materializeRecord(ctx, rec)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			m, err := materialize(ctx, item)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return v, nil
	}
}

func materializeRecord(ctx context.Context, rec map[string]any) (domain.Record, error) {
	out := make(domain.Record, len(rec))
	for field, v := range rec {
		m, err := materialize(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		out[field] = m
	}
	return out, nil
}

// normalize turns the value of a child array into the records Many seeds.
// Nil entries are dropped, one level of nested lists is flattened and scalar
// entries become records carrying only an identifier.
func normalize(ctx context.Context, data any) ([]domain.Record, error) {
	loaded, err := materialize(ctx, data)
	if err != nil {
		return nil, err
	}

	var out []domain.Record
	switch val := loaded.(type) {
	case nil:
		return nil, nil
	case []any:
		for _, item := range val {
			if nested, ok := item.([]any); ok {
				for _, inner := range nested {
					out = appendItem(out, inner)
				}
				continue
			}
			out = appendItem(out, item)
		}
	default:
		out = appendItem(out, val)
	}
	return out, nil
}

func appendItem(out []domain.Record, item any) []domain.Record {
	switch val := item.(type) {
	case nil:
		return out
	case domain.Record:
		return append(out, val)
	case string:
		if val == "" {
			return out
		}
	case []any:
		// Deeper nesting than one level is not a reference list.
		return out
	}
	return append(out, domain.Record{domain.IDField: item})
}
