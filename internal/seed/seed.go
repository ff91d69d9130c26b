package seed

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/johnwards/docseed/internal/ctxlog"
	"github.com/johnwards/docseed/internal/domain"
	"github.com/johnwards/docseed/internal/graph"
	"github.com/johnwards/docseed/internal/registry"
	"github.com/johnwards/docseed/internal/store"
)

// RunOptions configures a full seeding run.
type RunOptions struct {
	Registry  *registry.Registry
	Documents store.DocumentStore

	// Runs records the run outcome when set.
	Runs store.RunStore

	// Seeds maps model names to their seed data.
	Seeds map[string]domain.Source

	Environment string
	// SeedPath is only used for logging.
	SeedPath string

	// Disabled skips the run entirely.
	Disabled bool
}

// Result holds the records persisted for one model.
type Result struct {
	Model   string
	Records []domain.Record
}

// Run seeds every model that has seed data, in descending graph score, so
// unreferenced models go first. A fresh Cache is used for the run and
// discarded afterwards. Seed data that fails to load is logged and skipped;
// any other failure stops the run and is returned without partial results.
func Run(ctx context.Context, opts RunOptions) ([]Result, error) {
	logger := ctxlog.FromContext(ctx)

	if opts.Disabled {
		logger.Info("seeding disabled", "environment", opts.Environment)
		return nil, nil
	}
	if opts.Registry == nil || opts.Documents == nil {
		return nil, fmt.Errorf("seed run: registry and document store are required")
	}

	logger.Info("start seeding", "environment", opts.Environment)
	if opts.SeedPath != "" {
		logger.Info("seeding from", "path", opts.SeedPath)
	}

	var run *domain.SeedRun
	if opts.Runs != nil {
		var err error
		run, err = opts.Runs.Start(ctx, opts.Environment)
		if err != nil {
			return nil, err
		}
	}

	results, count, err := seedAll(ctx, opts)

	if run != nil {
		if _, ferr := opts.Runs.Finish(ctx, run.ID, count, err); ferr != nil && err == nil {
			err = ferr
		}
	}
	if err != nil {
		return nil, err
	}

	logger.Info("finish seeding", "environment", opts.Environment, "models", len(results), "records", count)
	return results, nil
}

func seedAll(ctx context.Context, opts RunOptions) ([]Result, int, error) {
	logger := ctxlog.FromContext(ctx)

	cache := NewCache()
	defer cache.Clear()
	engine := NewEngine(opts.Registry, opts.Documents, WithCache(cache))

	nodes := graph.Build(opts.Registry.Models())
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.Model] = true
	}
	for _, name := range slices.Sorted(maps.Keys(opts.Seeds)) {
		if !known[name] {
			logger.Warn("no model registered for seed data", "model", name)
		}
	}

	var (
		results []Result
		count   int
	)
	for _, node := range nodes {
		src, ok := opts.Seeds[node.Model]
		if !ok || src == nil {
			continue
		}

		data, err := src.Load(ctx)
		if err != nil {
			logger.Warn("load seed data", "model", node.Model, "error", err)
			continue
		}
		if data == nil {
			continue
		}

		records, err := engine.Many(ctx, node.Model, data, nil)
		if err != nil {
			return nil, count, err
		}

		logger.Info("seeded model", "model", node.Model, "score", node.Score, "records", len(records))
		results = append(results, Result{Model: node.Model, Records: records})
		count += len(records)
	}
	return results, count, nil
}
