// Package main provides the docseed CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/johnwards/docseed/internal/config"
	"github.com/johnwards/docseed/internal/ctxlog"
	"github.com/johnwards/docseed/internal/database"
	"github.com/johnwards/docseed/internal/graph"
	"github.com/johnwards/docseed/internal/registry"
	"github.com/johnwards/docseed/internal/seed"
	"github.com/johnwards/docseed/internal/seedfile"
	"github.com/johnwards/docseed/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newRootCmd(config.Load()).ExecuteContext(ctx)
}

func newRootCmd(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "docseed",
		Short:         "Seed nested records into a document store in reference order",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := ctxlog.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			slog.SetDefault(logger)
			cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database")
	flags.StringVar(&cfg.ModelsPath, "models", cfg.ModelsPath, "Directory of model descriptor files")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")

	root.AddCommand(newSeedCmd(&cfg), newGraphCmd(&cfg), newModelsCmd(&cfg), newRunsCmd(&cfg))
	return root
}

func newSeedCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the current environment's data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&cfg.SeedsPath, "seeds", cfg.SeedsPath, "Root directory of seed files")
	cmd.Flags().StringVar(&cfg.Environment, "env", cfg.Environment, "Environment whose seeds are loaded")
	cmd.Flags().StringVar(&cfg.Suffix, "suffix", cfg.Suffix, "File name suffix of seed files")
	cmd.Flags().BoolVar(&cfg.Disabled, "disabled", cfg.Disabled, "Skip seeding")
	return cmd
}

func runSeed(ctx context.Context, cfg *config.Config, out io.Writer) error {
	s, closeDB, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeDB()

	reg, err := loadRegistry(cfg.ModelsPath)
	if err != nil {
		return err
	}
	if err := reg.Persist(ctx, s.Models); err != nil {
		return fmt.Errorf("persist models: %w", err)
	}

	seeds, err := seedfile.Discover(cfg.SeedsPath, cfg.Environment, cfg.Suffix)
	if err != nil {
		return fmt.Errorf("discover seeds: %w", err)
	}

	results, err := seed.Run(ctx, seed.RunOptions{
		Registry:    reg,
		Documents:   s.Documents,
		Runs:        s.Runs,
		Seeds:       seeds,
		Environment: cfg.Environment,
		SeedPath:    filepath.Join(cfg.SeedsPath, cfg.Environment),
		Disabled:    cfg.Disabled,
	})
	if err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "MODEL\tRECORDS")
	for _, r := range results {
		_, _ = fmt.Fprintf(tw, "%s\t%d\n", r.Model, len(r.Records))
	}
	return tw.Flush()
}

func newGraphCmd(cfg *config.Config) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print each model's score and reference classes",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(cfg.ModelsPath)
			if err != nil {
				return err
			}
			return printGraph(cmd.OutOrStdout(), graph.Build(reg.Models()), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printGraph(out io.Writer, nodes []graph.Node, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "MODEL\tSCORE\tPARENTS\tCHILDREN\tSELF PARENTS\tSELF CHILDREN")
	for _, n := range nodes {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			n.Model, n.Score,
			formatEdges(n.ParentRefs), formatEdges(n.ChildRefs),
			formatPaths(n.SelfParentRefs), formatPaths(n.SelfChildRefs))
	}
	return tw.Flush()
}

func formatEdges(edges []graph.Edge) string {
	if len(edges) == 0 {
		return "-"
	}
	parts := make([]string, len(edges))
	for i, e := range edges {
		parts[i] = e.Path + "->" + e.Model
	}
	return strings.Join(parts, ",")
}

func formatPaths(paths []string) string {
	if len(paths) == 0 {
		return "-"
	}
	return strings.Join(paths, ",")
}

func newModelsCmd(cfg *config.Config) *cobra.Command {
	var stored bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List registered model descriptors",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				reg *registry.Registry
				err error
			)
			if stored {
				s, closeDB, oerr := openStore(cmd.Context(), cfg.DBPath)
				if oerr != nil {
					return oerr
				}
				defer closeDB()
				reg, err = registry.FromStore(cmd.Context(), s.Models)
			} else {
				reg, err = loadRegistry(cfg.ModelsPath)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "MODEL\tFIELD\tTYPE\tREF")
			for _, m := range reg.Models() {
				for _, f := range m.Fields {
					typ, ref := string(f.Type), f.Ref
					if f.Elem != nil {
						typ = "[" + string(f.Elem.Type) + "]"
						if ref == "" {
							ref = f.Elem.Ref
						}
					}
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, f.Path, typ, ref)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "List descriptors persisted by the last seed run")
	return cmd
}

func newRunsCmd(cfg *config.Config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent seeding runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeDB, err := openStore(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer closeDB()

			runs, err := s.Runs.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tENV\tSTATUS\tRECORDS\tSTARTED\tERROR")
			for _, r := range runs {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.Environment, r.Status, r.RecordCount, r.StartedAt, r.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func openStore(ctx context.Context, dsn string) (*store.Store, func(), error) {
	db, err := database.Open(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return store.New(db), func() { _ = db.Close() }, nil
}

func loadRegistry(dir string) (*registry.Registry, error) {
	models, err := registry.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	reg, err := registry.New(models...)
	if err != nil {
		return nil, fmt.Errorf("register models: %w", err)
	}
	return reg, nil
}
