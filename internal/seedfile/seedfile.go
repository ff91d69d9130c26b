// Package seedfile discovers per-environment seed data files and exposes
// them as lazily loaded sources keyed by model name.
package seedfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jinzhu/inflection"
	"gopkg.in/yaml.v3"

	"github.com/johnwards/docseed/internal/domain"
)

// DefaultSuffix ends every seed file name, as in UsersSeed.yaml.
const DefaultSuffix = "Seed"

// Pattern returns the glob matching seed files that end in suffix.
func Pattern(suffix string) string {
	return "**/*" + suffix + ".{yaml,yml,json}"
}

// Discover finds the seed files below root/env and groups them by model.
// A missing environment directory yields no seeds.
func Discover(root, env, suffix string) (map[string]domain.Source, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	dir := filepath.Join(root, env)

	seeds := make(map[string]domain.Source)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return seeds, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), Pattern(suffix))
	if err != nil {
		return nil, fmt.Errorf("glob seeds in %s: %w", dir, err)
	}
	sort.Strings(matches)

	grouped := make(map[string][]string)
	for _, rel := range matches {
		base := filepath.Base(rel)
		stem := strings.TrimSuffix(strings.TrimSuffix(base, filepath.Ext(base)), suffix)
		name := ModelName(stem)
		if name == "" {
			continue
		}
		grouped[name] = append(grouped[name], filepath.Join(dir, filepath.FromSlash(rel)))
	}
	for name, paths := range grouped {
		seeds[name] = Files(paths...)
	}
	return seeds, nil
}

// ModelName turns a seed file stem into a singular PascalCase model name:
// users becomes User and user_roles becomes UserRole.
func ModelName(stem string) string {
	parts := strings.FieldsFunc(stem, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for _, p := range parts {
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	if b.Len() == 0 {
		return ""
	}
	return inflection.Singular(b.String())
}

// FileSource reads seed data from one or more files when loaded.
type FileSource struct {
	Paths []string
}

// Files returns a Source reading the given files in order.
func Files(paths ...string) *FileSource {
	return &FileSource{Paths: paths}
}

// Load decodes every YAML document of every file. Top-level lists are
// concatenated; any other document counts as one record. Nil is returned
// when the files hold no data.
func (s *FileSource) Load(ctx context.Context) (any, error) {
	var items []any
	for _, path := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := decodeFile(path)
		if err != nil {
			return nil, err
		}
		items = append(items, loaded...)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func decodeFile(path string) ([]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var items []any
	dec := yaml.NewDecoder(f)
	for {
		var doc any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
		}

		switch val := normalize(doc).(type) {
		case nil:
		case []any:
			items = append(items, val...)
		default:
			items = append(items, val)
		}
	}
	return items, nil
}

// normalize converts decoded mappings into domain.Record, stringifying
// non-string keys.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		rec := make(domain.Record, len(val))
		for k, item := range val {
			rec[k] = normalize(item)
		}
		return rec
	case map[any]any:
		rec := make(domain.Record, len(val))
		for k, item := range val {
			rec[fmt.Sprint(k)] = normalize(item)
		}
		return rec
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
