// Package graph classifies the reference fields of registered models and
// orders models by how many references they declare.
package graph

import (
	"sort"

	"github.com/johnwards/docseed/internal/domain"
)

// BaseScore is the score of a model that declares no references.
const BaseScore = 1000

// Edge is a reference from a field path to another model.
type Edge struct {
	Path  string `json:"path"`
	Model string `json:"modelName"`
}

// Node holds the classified references of one model. A nil slice in a Node
// used as an override means "not overridden".
type Node struct {
	Model          string   `json:"modelName"`
	ParentRefs     []Edge   `json:"parentRefs"`
	ChildRefs      []Edge   `json:"childRefs"`
	SelfParentRefs []string `json:"selfParentRefs"`
	SelfChildRefs  []string `json:"selfChildRefs"`
	Score          int      `json:"score"`
}

// RefCount is the total number of reference edges across all four classes.
func (n Node) RefCount() int {
	return len(n.ParentRefs) + len(n.ChildRefs) + len(n.SelfParentRefs) + len(n.SelfChildRefs)
}

// Merge returns n with every non-nil reference set of override replacing
// the discovered one. The score is recomputed.
func (n Node) Merge(override *Node) Node {
	if override == nil {
		return n
	}
	out := n
	if override.ParentRefs != nil {
		out.ParentRefs = override.ParentRefs
	}
	if override.ChildRefs != nil {
		out.ChildRefs = override.ChildRefs
	}
	if override.SelfParentRefs != nil {
		out.SelfParentRefs = override.SelfParentRefs
	}
	if override.SelfChildRefs != nil {
		out.SelfChildRefs = override.SelfChildRefs
	}
	out.Score = Score(out)
	return out
}

// Score is BaseScore minus the number of reference edges of n.
func Score(n Node) int {
	return BaseScore - n.RefCount()
}

// Build classifies every model's fields and returns one Node per distinct
// model name, sorted by descending score. Ties are ordered by model name so
// that runs are reproducible. References to unregistered models are dropped.
func Build(models []domain.ModelDescriptor) []Node {
	known := make(map[string]bool, len(models))
	unique := make([]domain.ModelDescriptor, 0, len(models))
	for _, m := range models {
		if m.Name == "" || known[m.Name] {
			continue
		}
		known[m.Name] = true
		unique = append(unique, m)
	}

	nodes := make([]Node, 0, len(unique))
	for _, m := range unique {
		n := Node{
			Model:          m.Name,
			ParentRefs:     ParentRefs(m, known),
			ChildRefs:      ChildRefs(m, known),
			SelfParentRefs: SelfParentRefs(m, known),
			SelfChildRefs:  SelfChildRefs(m, known),
		}
		n.Score = Score(n)
		nodes = append(nodes, n)
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Score != nodes[j].Score {
			return nodes[i].Score > nodes[j].Score
		}
		return nodes[i].Model < nodes[j].Model
	})

	return nodes
}

// Find returns the node for model, or an empty node with the base score if
// the model is not part of the graph.
func Find(nodes []Node, model string) (Node, bool) {
	for _, n := range nodes {
		if n.Model == model {
			return n, true
		}
	}
	return Node{Model: model, Score: BaseScore}, false
}

// ParentRefs returns single-valued references from m to other known models.
func ParentRefs(m domain.ModelDescriptor, known map[string]bool) []Edge {
	edges := []Edge{}
	for _, f := range m.Fields {
		if ref, ok := singleRef(f, known); ok && ref != m.Name {
			edges = append(edges, Edge{Path: f.Path, Model: ref})
		}
	}
	return edges
}

// ChildRefs returns array-valued references from m to other known models.
func ChildRefs(m domain.ModelDescriptor, known map[string]bool) []Edge {
	edges := []Edge{}
	for _, f := range m.Fields {
		if ref, ok := arrayRef(f, known); ok && ref != m.Name {
			edges = append(edges, Edge{Path: f.Path, Model: ref})
		}
	}
	return edges
}

// SelfParentRefs returns the paths of single-valued references from m to m.
func SelfParentRefs(m domain.ModelDescriptor, known map[string]bool) []string {
	paths := []string{}
	for _, f := range m.Fields {
		if ref, ok := singleRef(f, known); ok && ref == m.Name {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// SelfChildRefs returns the paths of array-valued references from m to m.
func SelfChildRefs(m domain.ModelDescriptor, known map[string]bool) []string {
	paths := []string{}
	for _, f := range m.Fields {
		if ref, ok := arrayRef(f, known); ok && ref == m.Name {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// singleRef reports the target of a non-array ObjectID field.
func singleRef(f domain.FieldDescriptor, known map[string]bool) (string, bool) {
	if f.IsArray() || f.Type != domain.TypeObjectID {
		return "", false
	}
	return f.Ref, f.Ref != "" && known[f.Ref]
}

// arrayRef reports the target of an array whose elements are ObjectIDs. The
// target may be declared on the field or on its element. An array without an
// element type that carries a ref on the field holds ObjectIDs.
func arrayRef(f domain.FieldDescriptor, known map[string]bool) (string, bool) {
	if f.Elem == nil {
		if f.Type != domain.TypeArray {
			return "", false
		}
		return f.Ref, f.Ref != "" && known[f.Ref]
	}
	if f.Elem.Type != domain.TypeObjectID {
		return "", false
	}
	ref := f.Ref
	if ref == "" {
		ref = f.Elem.Ref
	}
	return ref, ref != "" && known[ref]
}
