package seed

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/johnwards/docseed/internal/ctxlog"
	"github.com/johnwards/docseed/internal/digest"
	"github.com/johnwards/docseed/internal/domain"
	"github.com/johnwards/docseed/internal/graph"
	"github.com/johnwards/docseed/internal/registry"
	"github.com/johnwards/docseed/internal/store"
)

// ErrUnknownModel is returned when a record is seeded for a model the
// registry does not hold.
var ErrUnknownModel = registry.ErrUnknownModel

// Engine seeds nested records into a DocumentStore, resolving references
// through the model graph and writing identical content at most once per
// Cache lifetime.
type Engine struct {
	registry *registry.Registry
	docs     store.DocumentStore
	cache    *Cache

	// flights collapses concurrent resolutions of the same content key.
	// Followers receive the leader's result, including an error caused by
	// cancellation of the leader's context.
	flights singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache makes the engine share c instead of owning a fresh cache.
func WithCache(c *Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// NewEngine creates an Engine over the models of reg writing to docs.
func NewEngine(reg *registry.Registry, docs store.DocumentStore, opts ...Option) *Engine {
	e := &Engine{registry: reg, docs: docs}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = NewCache()
	}
	return e
}

// Cache returns the dedup cache the engine writes to.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// Node returns the effective graph node for model: the node computed from
// the registry with override merged over it.
func (e *Engine) Node(model string, override *graph.Node) graph.Node {
	node, _ := graph.Find(graph.Build(e.registry.Models()), model)
	return node.Merge(override)
}

// Single seeds one record of model and returns the persisted record.
//
// A record that already carries an identifier is registered in the cache and
// returned without a write. A record whose content was seeded earlier in the
// run is returned with the cached identifier. Otherwise parent references are
// resolved first, the record is upserted, and child references are resolved
// and written onto the stored record.
func (e *Engine) Single(ctx context.Context, model string, data domain.Record, override *graph.Node) (domain.Record, error) {
	logger := ctxlog.FromContext(ctx)

	if _, err := e.registry.Lookup(model); err != nil {
		return nil, fmt.Errorf("seed %s: %w", model, err)
	}

	loaded, err := materialize(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", model, err)
	}
	rec, _ := loaded.(domain.Record)
	if rec == nil {
		rec = domain.Record{}
	}

	key, err := digest.Record(model, rec)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", model, err)
	}

	if id, ok := rec.ID(); ok {
		if len(rec) > 1 {
			e.cache.Put(key, id)
		}
		logger.Debug("record already identified", "model", model, "id", id)
		return rec, nil
	}

	if id, ok := e.cache.Get(key); ok {
		logger.Debug("record already seeded", "model", model, "id", id)
		return withID(rec, id), nil
	}

	node := e.Node(model, override)
	v, err, _ := e.flights.Do(key, func() (any, error) {
		if id, ok := e.cache.Get(key); ok {
			return withID(rec, id), nil
		}
		saved, err := e.resolve(ctx, node, rec)
		if err != nil {
			return nil, err
		}
		id, _ := saved.ID()
		e.cache.Put(key, id)
		logger.Debug("seeded record", "model", model, "id", id)
		return saved, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(domain.Record).Clone(), nil
}

// Many seeds every record in data sequentially, in input order, so that
// duplicate siblings collapse onto the first occurrence. data may be a
// record, a list of records, or a domain.Source; nil entries are dropped and
// scalar entries are treated as existing identifiers.
func (e *Engine) Many(ctx context.Context, model string, data any, override *graph.Node) ([]domain.Record, error) {
	items, err := normalize(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", model, err)
	}

	out := make([]domain.Record, 0, len(items))
	for _, item := range items {
		rec, err := e.Single(ctx, model, item, override)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// resolve runs the pre-save, self-write and post-save steps for an
// uncached record.
func (e *Engine) resolve(ctx context.Context, node graph.Node, rec domain.Record) (domain.Record, error) {
	model := node.Model
	work := rec.Clone()

	parents, err := e.resolveParents(ctx, node, work)
	if err != nil {
		return nil, err
	}
	for path, id := range parents {
		work[path] = id
	}

	childPaths := presentPaths(work, childEdges(node))
	criteria := work.Without(childPaths...)
	for field, v := range criteria {
		if field == domain.IDField || isArray(v) {
			delete(criteria, field)
		}
	}

	saved, err := e.docs.Upsert(ctx, model, criteria, work.Without(childPaths...))
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", model, err)
	}

	if len(childPaths) == 0 {
		return saved, nil
	}

	children, err := e.resolveChildren(ctx, node, work)
	if err != nil {
		return nil, err
	}

	id, _ := saved.ID()
	saved, err = e.docs.SetFields(ctx, model, fmt.Sprint(id), children)
	if err != nil {
		return nil, fmt.Errorf("link %s children: %w", model, err)
	}
	return saved, nil
}

// resolveParents seeds every present parent and self-parent reference
// concurrently and returns the identifier for each path.
func (e *Engine) resolveParents(ctx context.Context, node graph.Node, work domain.Record) (map[string]any, error) {
	var mu sync.Mutex
	ids := make(map[string]any)

	g, gctx := errgroup.WithContext(ctx)
	for _, edge := range parentEdges(node) {
		nested, ok := domain.AsRecord(work[edge.Path])
		if !ok {
			// Not a nested record; the value is kept as an identifier.
			continue
		}
		g.Go(func() error {
			saved, err := e.Single(gctx, edge.Model, nested, nil)
			if err != nil {
				return fmt.Errorf("resolve %s.%s: %w", node.Model, edge.Path, err)
			}
			id, _ := saved.ID()
			mu.Lock()
			ids[edge.Path] = id
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// resolveChildren seeds every present child and self-child array
// concurrently and returns the de-duplicated identifiers for each path.
func (e *Engine) resolveChildren(ctx context.Context, node graph.Node, work domain.Record) (domain.Record, error) {
	var mu sync.Mutex
	fields := domain.Record{}

	g, gctx := errgroup.WithContext(ctx)
	for _, edge := range childEdges(node) {
		v, ok := work[edge.Path]
		if !ok || v == nil {
			continue
		}
		g.Go(func() error {
			seeded, err := e.Many(gctx, edge.Model, v, nil)
			if err != nil {
				return fmt.Errorf("resolve %s.%s: %w", node.Model, edge.Path, err)
			}
			ids := uniqueIDs(seeded)
			mu.Lock()
			fields[edge.Path] = ids
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fields, nil
}

// parentEdges lists parent and self-parent references as edges; self edges
// target the node's own model.
func parentEdges(node graph.Node) []graph.Edge {
	edges := append([]graph.Edge(nil), node.ParentRefs...)
	for _, path := range node.SelfParentRefs {
		edges = append(edges, graph.Edge{Path: path, Model: node.Model})
	}
	return edges
}

func childEdges(node graph.Node) []graph.Edge {
	edges := append([]graph.Edge(nil), node.ChildRefs...)
	for _, path := range node.SelfChildRefs {
		edges = append(edges, graph.Edge{Path: path, Model: node.Model})
	}
	return edges
}

func presentPaths(rec domain.Record, edges []graph.Edge) []string {
	var paths []string
	for _, edge := range edges {
		if v, ok := rec[edge.Path]; ok && v != nil {
			paths = append(paths, edge.Path)
		}
	}
	return paths
}

func withID(rec domain.Record, id any) domain.Record {
	out := rec.Clone()
	out[domain.IDField] = id
	return out
}

func uniqueIDs(records []domain.Record) []any {
	seen := make(map[string]bool, len(records))
	ids := make([]any, 0, len(records))
	for _, rec := range records {
		id, ok := rec.ID()
		if !ok {
			continue
		}
		k := fmt.Sprint(id)
		if seen[k] {
			continue
		}
		seen[k] = true
		ids = append(ids, id)
	}
	return ids
}

func isArray(v any) bool {
	if v == nil {
		return false
	}
	kind := reflect.TypeOf(v).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}
