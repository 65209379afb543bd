// Package command binds property names to instrument command templates
// and validators, and dispatches typed gets and sets over a session.
package command

import (
	"fmt"

	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/KevinKickass/OpenVNA/internal/validators"
)

// Descriptor binds one property to its query and write templates.
// Either template may be empty for write-only or read-only properties.
// A Descriptor is immutable once registered.
type Descriptor struct {
	Name      string
	Query     string
	Write     string
	Doc       string
	Validator validators.Validator
}

func (d *Descriptor) Readable() bool { return d.Query != "" }
func (d *Descriptor) Writable() bool { return d.Write != "" }

// FromDefinition compiles a profile command entry.
func FromDefinition(def types.CommandDefinition) (*Descriptor, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("command without name")
	}
	if def.Query == "" && def.Write == "" {
		return nil, fmt.Errorf("command %s: neither query nor write template", def.Name)
	}

	v, err := validators.FromSpec(def.Validator)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", def.Name, err)
	}

	return &Descriptor{
		Name:      def.Name,
		Query:     def.Query,
		Write:     def.Write,
		Doc:       def.Doc,
		Validator: v,
	}, nil
}
