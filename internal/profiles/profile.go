// Package profiles loads instrument profiles: the per-vendor command
// tables and global commands that parameterize the generic engine.
package profiles

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/KevinKickass/OpenVNA/internal/command"
	"github.com/KevinKickass/OpenVNA/internal/types"
)

// DefaultModel is the models entry used for unlisted models.
const DefaultModel = "default"

// Profile is a compiled, read-only profile shared by every instrument of
// its family.
type Profile struct {
	Definition *types.InstrumentProfileDefinition
	Commands   *command.Registry
	byteOrder  binary.ByteOrder
}

// Compile builds the descriptor registry and checks cross-field rules the
// schema cannot express.
func Compile(def *types.InstrumentProfileDefinition) (*Profile, error) {
	registry := command.NewRegistry()
	for _, cd := range def.Commands {
		d, err := command.FromDefinition(cd)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", def.Profile.ID, err)
		}
		if err := registry.Register(d); err != nil {
			return nil, fmt.Errorf("profile %s: %w", def.Profile.ID, err)
		}
	}

	if _, ok := def.Models[DefaultModel]; !ok {
		return nil, fmt.Errorf("profile %s: missing %q model entry", def.Profile.ID, DefaultModel)
	}

	vf := def.ValueFormat
	if _, ok := vf.Select[types.FormatText]; !ok {
		return nil, fmt.Errorf("profile %s: no text value format", def.Profile.ID)
	}
	if _, ok := vf.Select[vf.Fastest]; !ok {
		return nil, fmt.Errorf("profile %s: fastest format %s has no select command", def.Profile.ID, vf.Fastest)
	}

	if def.Sweep.Strategy == types.SweepForceSingle {
		if _, ok := registry.Lookup("sweep_mode"); !ok {
			return nil, fmt.Errorf("profile %s: force_single sweep needs a sweep_mode command", def.Profile.ID)
		}
	}

	seen := make(map[int]bool)
	for _, ch := range def.Channels {
		if seen[ch.Index] {
			return nil, fmt.Errorf("profile %s: duplicate channel %d", def.Profile.ID, ch.Index)
		}
		seen[ch.Index] = true
	}

	var order binary.ByteOrder = binary.LittleEndian
	if strings.EqualFold(vf.ByteOrder.Order, "big") {
		order = binary.BigEndian
	}

	return &Profile{Definition: def, Commands: registry, byteOrder: order}, nil
}

func (p *Profile) ID() string {
	return p.Definition.Profile.ID
}

// Model returns the parameters for model and whether the model is listed.
func (p *Profile) Model(model string) (types.ModelInfo, bool) {
	if info, ok := p.Definition.Models[model]; ok && model != DefaultModel {
		return info, true
	}
	return p.Definition.Models[DefaultModel], false
}

// ParseModel extracts the model name from an identification string.
func (p *Profile) ParseModel(id string) string {
	field := p.Definition.Identify.ModelField
	if field < 0 {
		return strings.TrimSpace(id)
	}
	parts := strings.Split(id, ",")
	if field >= len(parts) {
		return strings.TrimSpace(id)
	}
	return strings.TrimSpace(parts[field])
}

// ByteOrder is the endianness forced before binary transfers.
func (p *Profile) ByteOrder() binary.ByteOrder {
	return p.byteOrder
}

// FormatForReply maps a format query reply to a value format.
func (p *Profile) FormatForReply(reply string) (types.ValueFormat, bool) {
	f, ok := p.Definition.ValueFormat.Replies[strings.TrimSpace(reply)]
	return f, ok
}

// SinglePortQuery returns the bulk query for one reflection parameter.
func (p *Profile) SinglePortQuery(port int) (string, bool) {
	for _, q := range p.Definition.Network.Single {
		if q.Port == port {
			return q.Query, true
		}
	}
	return "", false
}

// FullQuery returns the bulk query for the full port pair.
func (p *Profile) FullQuery() (string, bool) {
	q := p.Definition.Network.Full
	return q, q != ""
}

func (p *Profile) Action(name string) (string, bool) {
	cmd, ok := p.Definition.Actions[name]
	return cmd, ok
}
