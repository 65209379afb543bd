package command

import (
	"slices"

	"github.com/KevinKickass/OpenVNA/internal/types"
)

// Registry maps property names to descriptors, keeping registration order.
type Registry struct {
	byName map[string]*Descriptor
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

func (r *Registry) Register(d *Descriptor) error {
	if _, exists := r.byName[d.Name]; exists {
		return &types.ConfigurationError{Op: "register " + d.Name, Reason: "duplicate property"}
	}
	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// MustLookup returns a ConfigurationError for properties the profile
// does not define.
func (r *Registry) MustLookup(name string) (*Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, &types.ConfigurationError{Op: "property " + name, Reason: "not supported by this instrument"}
	}
	return d, nil
}

// Names lists registered properties in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

func (r *Registry) Len() int {
	return len(r.order)
}
