package validators

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenVNA/internal/types"
)

// FromSpec builds a validator from its profile description.
func FromSpec(spec types.ValidatorSpec) (Validator, error) {
	bounds := Bounds{Min: spec.Min, Max: spec.Max, Exclusive: spec.Exclusive}

	switch spec.Type {
	case "int":
		return NewInt(bounds), nil
	case "float":
		return NewFloat(bounds), nil
	case "freq":
		if bounds.Min == nil {
			bounds.Min = AtLeast(0).Min
		}
		return &Freq{Bounds: bounds}, nil
	case "bool":
		return booleanFromSpec(spec)
	case "set":
		if len(spec.Allowed) == 0 {
			return nil, fmt.Errorf("set validator needs allowed values")
		}
		return NewIntSet(spec.Allowed...), nil
	case "enum":
		return enumFromSpec(spec)
	default:
		return nil, fmt.Errorf("unknown validator type: %q", spec.Type)
	}
}

func booleanFromSpec(spec types.ValidatorSpec) (Validator, error) {
	b := NewBoolean()
	if spec.True != "" {
		b.True = spec.True
	}
	if spec.False != "" {
		b.False = spec.False
	}
	if spec.TrueSetting != "" {
		b.TrueSetting = spec.TrueSetting
	}
	if spec.FalseSetting != "" {
		b.FalseSetting = spec.FalseSetting
	}
	for _, t := range []string{b.True, b.TrueSetting} {
		for _, f := range []string{b.False, b.FalseSetting} {
			if strings.EqualFold(t, f) {
				return nil, fmt.Errorf("boolean token %q used for both true and false", t)
			}
		}
	}
	return b, nil
}

func enumFromSpec(spec types.ValidatorSpec) (Validator, error) {
	if len(spec.Values) == 0 {
		return nil, fmt.Errorf("enum validator needs values")
	}

	switch spec.Kind {
	case "sweep_mode":
		pairs := make(map[types.SweepMode]string, len(spec.Values))
		for name, token := range spec.Values {
			pairs[types.SweepMode(name)] = token
		}
		return enumOf(pairs)
	case "sweep_type":
		pairs := make(map[types.SweepType]string, len(spec.Values))
		for name, token := range spec.Values {
			pairs[types.SweepType(name)] = token
		}
		return enumOf(pairs)
	case "number":
		pairs := make(map[float64]string, len(spec.Values))
		for name, token := range spec.Values {
			f, err := strconv.ParseFloat(name, 64)
			if err != nil {
				return nil, fmt.Errorf("enum value %q is not a number", name)
			}
			pairs[f] = token
		}
		return enumOf(pairs)
	case "", "string":
		return enumOf(spec.Values)
	default:
		return nil, fmt.Errorf("unknown enum kind: %q", spec.Kind)
	}
}

func enumOf[T comparable](pairs map[T]string) (Validator, error) {
	e, err := NewEnum(pairs)
	if err != nil {
		return nil, err
	}
	return e, nil
}
