// Package registry holds the explicit set of model descriptors shared by the
// graph builder and the seeding engine.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/johnwards/docseed/internal/domain"
	"github.com/johnwards/docseed/internal/store"
)

// ErrUnknownModel is returned when a model name is not registered.
var ErrUnknownModel = errors.New("unknown model")

// Registry maps model names to descriptors, keeping registration order.
type Registry struct {
	mu     sync.RWMutex
	models map[string]domain.ModelDescriptor
	order  []string
}

// New creates a Registry holding the given descriptors.
func New(models ...domain.ModelDescriptor) (*Registry, error) {
	r := &Registry{models: make(map[string]domain.ModelDescriptor)}
	for _, m := range models {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds desc, replacing any descriptor already registered under the
// same name.
func (r *Registry) Register(desc domain.ModelDescriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("register model: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[desc.Name]; !exists {
		r.order = append(r.order, desc.Name)
	}
	r.models[desc.Name] = desc
	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (domain.ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.models[name]
	if !ok {
		return domain.ModelDescriptor{}, fmt.Errorf("%q: %w", name, ErrUnknownModel)
	}
	return desc, nil
}

// Models returns all descriptors in registration order.
func (r *Registry) Models() []domain.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ModelDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// Names returns the registered model names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Persist saves every registered descriptor to ms.
func (r *Registry) Persist(ctx context.Context, ms store.ModelStore) error {
	for _, m := range r.Models() {
		if err := ms.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// FromStore builds a Registry from the descriptors persisted in ms.
func FromStore(ctx context.Context, ms store.ModelStore) (*Registry, error) {
	models, err := ms.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registered models: %w", err)
	}
	return New(models...)
}
