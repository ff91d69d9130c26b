package seed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnwards/docseed/internal/domain"
	"github.com/johnwards/docseed/internal/graph"
	"github.com/johnwards/docseed/internal/registry"
	"github.com/johnwards/docseed/internal/store"
	"github.com/johnwards/docseed/internal/testhelpers"
)

// countingStore records every write passed to the wrapped store.
type countingStore struct {
	store.DocumentStore

	mu        sync.Mutex
	upserts   []upsertCall
	setFields []domain.Record
	failOn    string
}

type upsertCall struct {
	model string
	data  domain.Record
}

func (c *countingStore) Upsert(ctx context.Context, model string, criteria, data domain.Record) (domain.Record, error) {
	c.mu.Lock()
	c.upserts = append(c.upserts, upsertCall{model: model, data: data.Clone()})
	fail := c.failOn == model
	c.mu.Unlock()

	if fail {
		return nil, errors.New("constraint violation")
	}
	return c.DocumentStore.Upsert(ctx, model, criteria, data)
}

func (c *countingStore) SetFields(ctx context.Context, model, id string, fields domain.Record) (domain.Record, error) {
	c.mu.Lock()
	c.setFields = append(c.setFields, fields.Clone())
	c.mu.Unlock()
	return c.DocumentStore.SetFields(ctx, model, id, fields)
}

func (c *countingStore) writes(model string) []upsertCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []upsertCall
	for _, call := range c.upserts {
		if call.model == model {
			out = append(out, call)
		}
	}
	return out
}

func ref(path, model string) domain.FieldDescriptor {
	return domain.FieldDescriptor{Path: path, Type: domain.TypeObjectID, Ref: model}
}

func refs(path, model string) domain.FieldDescriptor {
	return domain.FieldDescriptor{
		Path: path,
		Type: domain.TypeArray,
		Elem: &domain.FieldDescriptor{Type: domain.TypeObjectID, Ref: model},
	}
}

func text(path string) domain.FieldDescriptor {
	return domain.FieldDescriptor{Path: path, Type: domain.TypeString}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg, err := registry.New(
		domain.ModelDescriptor{Name: "Simple", Fields: []domain.FieldDescriptor{text("first")}},
		domain.ModelDescriptor{Name: "SimpleRef", Fields: []domain.FieldDescriptor{
			ref("start", "SimpleRef"),
			ref("last", "SimpleRef"),
			text("first"),
			refs("kids", "SimpleRef"),
		}},
		domain.ModelDescriptor{Name: "OtherRef", Fields: []domain.FieldDescriptor{
			ref("start", "Simple"),
			ref("last", "Simple"),
			text("first"),
			refs("kids", "Simple"),
		}},
	)
	require.NoError(t, err)
	return reg
}

func setupEngine(t *testing.T) (*Engine, *countingStore) {
	t.Helper()

	docs := &countingStore{DocumentStore: store.NewSQLiteDocumentStore(testhelpers.NewMigratedDB(t))}
	return NewEngine(testRegistry(t), docs), docs
}

func TestSingle(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds a flat record", func(t *testing.T) {
		e, docs := setupEngine(t)

		seeded, err := e.Single(ctx, "Simple", domain.Record{"first": "Ana"}, nil)
		require.NoError(t, err)

		id, ok := seeded.ID()
		require.True(t, ok)
		assert.Equal(t, "Ana", seeded["first"])
		assert.Len(t, docs.writes("Simple"), 1)
		assert.Equal(t, 1, e.Cache().Len())

		stored, err := docs.Get(ctx, "Simple", id.(string))
		require.NoError(t, err)
		assert.Equal(t, "Ana", stored["first"])
	})

	t.Run("same content twice writes once", func(t *testing.T) {
		e, docs := setupEngine(t)

		first, err := e.Single(ctx, "Simple", domain.Record{"first": "Ana"}, nil)
		require.NoError(t, err)
		repeat, err := e.Single(ctx, "Simple", domain.Record{"first": "Ana"}, nil)
		require.NoError(t, err)

		assert.Equal(t, first[domain.IDField], repeat[domain.IDField])
		assert.Len(t, docs.writes("Simple"), 1)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		e, _ := setupEngine(t)

		data := domain.Record{"first": "X", "start": domain.Record{"first": "Y"}}
		_, err := e.Single(ctx, "SimpleRef", data, nil)
		require.NoError(t, err)

		_, hasID := data.ID()
		assert.False(t, hasID)
		assert.Equal(t, domain.Record{"first": "Y"}, data["start"])
	})

	t.Run("unknown model fails", func(t *testing.T) {
		e, docs := setupEngine(t)

		_, err := e.Single(ctx, "Ghost", domain.Record{"first": "X"}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownModel)
		assert.Empty(t, docs.writes("Ghost"))
	})

	t.Run("large integers are distinct content", func(t *testing.T) {
		e, docs := setupEngine(t)

		a, err := e.Single(ctx, "Simple", domain.Record{"first": "N", "n": int64(9007199254740993)}, nil)
		require.NoError(t, err)
		b, err := e.Single(ctx, "Simple", domain.Record{"first": "N", "n": int64(9007199254740992)}, nil)
		require.NoError(t, err)

		assert.NotEqual(t, a[domain.IDField], b[domain.IDField])
		assert.Len(t, docs.writes("Simple"), 2)

		stored, err := docs.Get(ctx, "Simple", a[domain.IDField].(string))
		require.NoError(t, err)
		assert.Equal(t, int64(9007199254740993), stored["n"])
	})

	t.Run("array fields are not match criteria", func(t *testing.T) {
		e, docs := setupEngine(t)

		a, err := e.Single(ctx, "Simple", domain.Record{"first": "A", "tags": []any{"x"}}, nil)
		require.NoError(t, err)
		b, err := e.Single(ctx, "Simple", domain.Record{"first": "A", "tags": []any{"y"}}, nil)
		require.NoError(t, err)

		assert.Equal(t, a[domain.IDField], b[domain.IDField])
		assert.Len(t, docs.writes("Simple"), 2)

		n, err := docs.Count(ctx, "Simple")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("same content for different models does not collide", func(t *testing.T) {
		e, docs := setupEngine(t)

		a, err := e.Single(ctx, "Simple", domain.Record{"first": "X"}, nil)
		require.NoError(t, err)
		b, err := e.Single(ctx, "OtherRef", domain.Record{"first": "X"}, nil)
		require.NoError(t, err)

		assert.NotEqual(t, a[domain.IDField], b[domain.IDField])
		assert.Len(t, docs.writes("OtherRef"), 1)
	})
}

func TestSingleParentReferences(t *testing.T) {
	ctx := context.Background()

	t.Run("self parent is seeded before the owner", func(t *testing.T) {
		e, docs := setupEngine(t)

		seeded, err := e.Single(ctx, "SimpleRef", domain.Record{
			"first": "Owner",
			"start": domain.Record{"first": "Start"},
		}, nil)
		require.NoError(t, err)

		writes := docs.writes("SimpleRef")
		require.Len(t, writes, 2)
		assert.Equal(t, "Start", writes[0].data["first"])
		assert.Equal(t, seeded["start"], writes[1].data["start"])
		assert.IsType(t, "", seeded["start"])
	})

	t.Run("reused object collapses to one record", func(t *testing.T) {
		e, docs := setupEngine(t)

		shared := domain.Record{"first": "X"}
		seeded, err := e.Single(ctx, "SimpleRef", domain.Record{
			"first": "Owner",
			"start": shared,
			"last":  shared,
		}, nil)
		require.NoError(t, err)

		assert.NotEmpty(t, seeded["start"])
		assert.Equal(t, seeded["start"], seeded["last"])
		assert.Len(t, docs.writes("SimpleRef"), 2)
	})

	t.Run("cross model parents collapse", func(t *testing.T) {
		e, docs := setupEngine(t)

		seeded, err := e.Single(ctx, "OtherRef", domain.Record{
			"first": "Owner",
			"start": domain.Record{"first": "X"},
			"last":  domain.Record{"first": "X"},
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, seeded["start"], seeded["last"])
		assert.Len(t, docs.writes("Simple"), 1)
	})

	t.Run("identifier values are kept", func(t *testing.T) {
		e, docs := setupEngine(t)

		seeded, err := e.Single(ctx, "OtherRef", domain.Record{"first": "Owner", "start": "existing-id"}, nil)
		require.NoError(t, err)

		assert.Equal(t, "existing-id", seeded["start"])
		assert.Empty(t, docs.writes("Simple"))
	})

	t.Run("sources are loaded before resolution", func(t *testing.T) {
		e, docs := setupEngine(t)

		seeded, err := e.Single(ctx, "OtherRef", domain.Record{
			"first": "Owner",
			"start": domain.StaticSource(domain.Record{"first": "Lazy"}),
		}, nil)
		require.NoError(t, err)

		writes := docs.writes("Simple")
		require.Len(t, writes, 1)
		assert.Equal(t, "Lazy", writes[0].data["first"])
		assert.NotEmpty(t, seeded["start"])
	})
}

func TestSingleChildReferences(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate self children collapse", func(t *testing.T) {
		e, _ := setupEngine(t)

		seeded, err := e.Single(ctx, "SimpleRef", domain.Record{
			"first": "Y",
			"kids":  []any{domain.Record{"first": "Z"}, domain.Record{"first": "Z"}},
		}, nil)
		require.NoError(t, err)

		assert.Len(t, seeded["kids"], 1)
	})

	t.Run("children are linked after the owner write", func(t *testing.T) {
		e, docs := setupEngine(t)

		seeded, err := e.Single(ctx, "OtherRef", domain.Record{
			"first": "Owner",
			"start": domain.Record{"first": "Parent"},
			"kids":  []any{domain.Record{"first": "K1"}, domain.Record{"first": "K2"}},
		}, nil)
		require.NoError(t, err)

		owner := docs.writes("OtherRef")
		require.Len(t, owner, 1)
		assert.NotEmpty(t, owner[0].data["start"])
		assert.NotContains(t, owner[0].data, "kids")

		require.Len(t, docs.setFields, 1)
		assert.Len(t, docs.setFields[0]["kids"], 2)
		assert.Len(t, seeded["kids"], 2)
		assert.Len(t, docs.writes("Simple"), 3)
	})

	t.Run("children persist on the stored record", func(t *testing.T) {
		e, docs := setupEngine(t)

		seeded, err := e.Single(ctx, "OtherRef", domain.Record{
			"first": "Owner",
			"kids":  []domain.Record{{"first": "K1"}},
		}, nil)
		require.NoError(t, err)

		id, _ := seeded.ID()
		stored, err := docs.Get(ctx, "OtherRef", id.(string))
		require.NoError(t, err)
		assert.Equal(t, seeded["kids"], stored["kids"])
	})

	t.Run("nil and scalar entries", func(t *testing.T) {
		e, docs := setupEngine(t)

		seeded, err := e.Single(ctx, "OtherRef", domain.Record{
			"first": "Owner",
			"kids":  []any{nil, "known-id", domain.Record{"first": "K"}, "known-id"},
		}, nil)
		require.NoError(t, err)

		kids, ok := seeded["kids"].([]any)
		require.True(t, ok)
		assert.Len(t, kids, 2)
		assert.Contains(t, kids, "known-id")
		assert.Len(t, docs.writes("Simple"), 1)
	})
}

func TestSinglePreIdentified(t *testing.T) {
	ctx := context.Background()
	e, docs := setupEngine(t)

	given := domain.Record{domain.IDField: "pre-1", "first": "Known"}
	seeded, err := e.Single(ctx, "Simple", given, nil)
	require.NoError(t, err)
	assert.Equal(t, "pre-1", seeded[domain.IDField])
	assert.Empty(t, docs.writes("Simple"))

	again, err := e.Single(ctx, "Simple", domain.Record{"first": "Known"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pre-1", again[domain.IDField])
	assert.Empty(t, docs.writes("Simple"))
}

func TestSingleOverride(t *testing.T) {
	ctx := context.Background()
	e, docs := setupEngine(t)

	// Without child refs, kids is written with the owner as plain data.
	seeded, err := e.Single(ctx, "SimpleRef", domain.Record{
		"first": "Owner",
		"kids":  []any{"a", "b"},
	}, &graph.Node{SelfChildRefs: []string{}})
	require.NoError(t, err)

	assert.Empty(t, docs.setFields)
	writes := docs.writes("SimpleRef")
	require.Len(t, writes, 1)
	assert.Equal(t, []any{"a", "b"}, writes[0].data["kids"])
	assert.Equal(t, []any{"a", "b"}, seeded["kids"])
}

func TestSingleErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("store failure propagates without owner write", func(t *testing.T) {
		e, docs := setupEngine(t)
		docs.failOn = "Simple"

		_, err := e.Single(ctx, "OtherRef", domain.Record{
			"first": "Owner",
			"start": domain.Record{"first": "Broken"},
		}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "constraint violation")
		assert.Empty(t, docs.writes("OtherRef"))
	})

	t.Run("source failure propagates", func(t *testing.T) {
		e, docs := setupEngine(t)

		boom := domain.SourceFunc(func(context.Context) (any, error) {
			return nil, errors.New("source unavailable")
		})
		_, err := e.Single(ctx, "OtherRef", domain.Record{"first": "Owner", "start": boom}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source unavailable")
		assert.Empty(t, docs.writes("OtherRef"))
	})

	t.Run("failed record is not cached", func(t *testing.T) {
		e, docs := setupEngine(t)
		docs.failOn = "Simple"

		_, err := e.Single(ctx, "Simple", domain.Record{"first": "X"}, nil)
		require.Error(t, err)
		assert.Equal(t, 0, e.Cache().Len())
	})
}

func TestMany(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicates resolve to the first occurrence", func(t *testing.T) {
		e, docs := setupEngine(t)

		data := domain.Record{"first": "Dup"}
		seeded, err := e.Many(ctx, "Simple", []any{data, data}, nil)
		require.NoError(t, err)

		require.Len(t, seeded, 2)
		assert.Equal(t, seeded[0][domain.IDField], seeded[1][domain.IDField])
		assert.Len(t, docs.writes("Simple"), 1)
	})

	t.Run("keeps input order", func(t *testing.T) {
		e, _ := setupEngine(t)

		seeded, err := e.Many(ctx, "Simple", []map[string]any{{"first": "A"}, {"first": "B"}, {"first": "C"}}, nil)
		require.NoError(t, err)

		require.Len(t, seeded, 3)
		assert.Equal(t, "A", seeded[0]["first"])
		assert.Equal(t, "B", seeded[1]["first"])
		assert.Equal(t, "C", seeded[2]["first"])
	})

	t.Run("single record and source inputs", func(t *testing.T) {
		e, _ := setupEngine(t)

		one, err := e.Many(ctx, "Simple", domain.Record{"first": "Solo"}, nil)
		require.NoError(t, err)
		assert.Len(t, one, 1)

		lazy, err := e.Many(ctx, "Simple", domain.StaticSource([]any{nil, domain.Record{"first": "L"}}), nil)
		require.NoError(t, err)
		assert.Len(t, lazy, 1)
	})

	t.Run("nil yields nothing", func(t *testing.T) {
		e, docs := setupEngine(t)

		seeded, err := e.Many(ctx, "Simple", nil, nil)
		require.NoError(t, err)
		assert.Empty(t, seeded)
		assert.Empty(t, docs.writes("Simple"))
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		e, docs := setupEngine(t)
		docs.failOn = "Simple"

		_, err := e.Many(ctx, "Simple", []any{domain.Record{"first": "A"}, domain.Record{"first": "B"}}, nil)
		require.Error(t, err)
		assert.Len(t, docs.writes("Simple"), 1)
	})
}

func TestNestedUserGraph(t *testing.T) {
	ctx := context.Background()

	reg, err := registry.New(domain.ModelDescriptor{Name: "User", Fields: []domain.FieldDescriptor{
		ref("parent", "User"),
		ref("guardian", "User"),
		text("username"),
		text("email"),
		{Path: "children", Type: domain.TypeArray, Ref: "User", Elem: &domain.FieldDescriptor{Type: domain.TypeObjectID}},
		refs("kids", "User"),
	}})
	require.NoError(t, err)

	docs := &countingStore{DocumentStore: store.NewSQLiteDocumentStore(testhelpers.NewMigratedDB(t))}
	e := NewEngine(reg, docs)

	joe := domain.Record{"username": "Good Joe", "email": "goodjoe@seed.test"}
	seeded, err := e.Many(ctx, "User", []any{
		domain.Record{
			"parent":   joe,
			"guardian": joe.Clone(),
			"username": "owner",
			"email":    "owner@seed.test",
			"children": []any{
				domain.Record{"username": "c1", "email": "c1@seed.test"},
				domain.Record{"username": "c2", "email": "c2@seed.test"},
			},
			"kids": []any{
				domain.Record{"username": "k1", "email": "k1@seed.test"},
			},
		},
		domain.Record{"username": "gi chan", "email": "gichan@seed.test"},
		domain.Record{"username": "gi chan", "email": "gichan@seed.test"},
	}, nil)
	require.NoError(t, err)

	require.Len(t, seeded, 3)
	assert.Equal(t, seeded[0]["parent"], seeded[0]["guardian"])
	assert.Len(t, seeded[0]["children"], 2)
	assert.Len(t, seeded[0]["kids"], 1)
	assert.Equal(t, seeded[1][domain.IDField], seeded[2][domain.IDField])

	// joe, owner, two children, one kid, gi chan
	n, err := docs.Count(ctx, "User")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}
