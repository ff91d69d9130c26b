package domain

import "context"

// IDField is the field that carries a record's persisted identifier.
const IDField = "_id"

// Record is a seed or persisted document: field name to scalar, nested
// Record, or list of values.
type Record map[string]any

// ID returns the persisted identifier, if the record carries one.
func (r Record) ID() (any, bool) {
	id, ok := r[IDField]
	if !ok || id == nil {
		return nil, false
	}
	if s, isStr := id.(string); isStr && s == "" {
		return nil, false
	}
	return id, true
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Without returns a shallow copy of r minus the named fields.
func (r Record) Without(fields ...string) Record {
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// AsRecord converts the map shapes produced by decoders into a Record.
func AsRecord(v any) (Record, bool) {
	switch val := v.(type) {
	case Record:
		return val, true
	case map[string]any:
		return Record(val), true
	default:
		return nil, false
	}
}

// Source produces seed data on demand. Load may return a single record, a
// list of records, or nil for no data.
type Source interface {
	Load(ctx context.Context) (any, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (any, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) (any, error) {
	return f(ctx)
}

// StaticSource returns a Source that always yields v.
func StaticSource(v any) Source {
	return SourceFunc(func(context.Context) (any, error) {
		return v, nil
	})
}
