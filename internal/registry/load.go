package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"

	"github.com/johnwards/docseed/internal/domain"
)

// DescriptorPattern matches model descriptor files below a directory.
const DescriptorPattern = "**/*.{yaml,yml,json,hcl}"

// yamlFile accepts either a list of models or a single model per document.
type yamlFile struct {
	Models []yamlModel `yaml:"models"`
	yamlModel `yaml:",inline"`
}

type yamlModel struct {
	Name   string      `yaml:"name"`
	Fields []yamlField `yaml:"fields"`
}

type yamlField struct {
	Path  string     `yaml:"path"`
	Type  string     `yaml:"type"`
	Ref   string     `yaml:"ref"`
	Items *yamlField `yaml:"items"`
}

type hclFile struct {
	Models []hclModel `hcl:"model,block"`
}

type hclModel struct {
	Name   string     `hcl:"name,label"`
	Fields []hclField `hcl:"field,block"`
}

type hclField struct {
	Path  string   `hcl:"path,label"`
	Type  string   `hcl:"type"`
	Ref   string   `hcl:"ref,optional"`
	Items *hclItem `hcl:"items,block"`
}

type hclItem struct {
	Type string `hcl:"type"`
	Ref  string `hcl:"ref,optional"`
}

// LoadDir reads every descriptor file below dir, sorted by path.
func LoadDir(dir string) ([]domain.ModelDescriptor, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), DescriptorPattern)
	if err != nil {
		return nil, fmt.Errorf("glob descriptors in %s: %w", dir, err)
	}
	sort.Strings(matches)

	var models []domain.ModelDescriptor
	for _, rel := range matches {
		loaded, err := LoadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		models = append(models, loaded...)
	}
	return models, nil
}

// LoadFile reads model descriptors from a YAML, JSON or HCL file.
func LoadFile(path string) ([]domain.ModelDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return decodeHCL(path, data)
	default:
		return decodeYAML(path, data)
	}
}

func decodeYAML(path string, data []byte) ([]domain.ModelDescriptor, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing descriptor file %s: %w", path, err)
	}

	raw := file.Models
	if file.Name != "" {
		raw = append(raw, file.yamlModel)
	}

	models := make([]domain.ModelDescriptor, 0, len(raw))
	for _, m := range raw {
		if m.Name == "" {
			return nil, fmt.Errorf("parsing descriptor file %s: model without name", path)
		}
		desc := domain.ModelDescriptor{Name: m.Name}
		for _, f := range m.Fields {
			desc.Fields = append(desc.Fields, yamlToField(f))
		}
		models = append(models, desc)
	}
	return models, nil
}

func yamlToField(f yamlField) domain.FieldDescriptor {
	t, elem := domain.ParseFieldType(f.Type)
	if f.Items != nil {
		item := yamlToField(*f.Items)
		elem = &item
		t = domain.TypeArray
	}
	return domain.FieldDescriptor{Path: f.Path, Type: t, Ref: f.Ref, Elem: elem}
}

func decodeHCL(path string, data []byte) ([]domain.ModelDescriptor, error) {
	var file hclFile
	if err := hclsimple.Decode(path, data, nil, &file); err != nil {
		return nil, fmt.Errorf("parsing descriptor file %s: %w", path, err)
	}

	models := make([]domain.ModelDescriptor, 0, len(file.Models))
	for _, m := range file.Models {
		desc := domain.ModelDescriptor{Name: m.Name}
		for _, f := range m.Fields {
			t, elem := domain.ParseFieldType(f.Type)
			if f.Items != nil {
				itemType, nested := domain.ParseFieldType(f.Items.Type)
				elem = &domain.FieldDescriptor{Type: itemType, Ref: f.Items.Ref, Elem: nested}
				t = domain.TypeArray
			}
			desc.Fields = append(desc.Fields, domain.FieldDescriptor{Path: f.Path, Type: t, Ref: f.Ref, Elem: elem})
		}
		models = append(models, desc)
	}
	return models, nil
}
