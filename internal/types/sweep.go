package types

import (
	"fmt"
	"strings"
)

type FrequencyUnit string

const (
	UnitHz  FrequencyUnit = "Hz"
	UnitKHz FrequencyUnit = "kHz"
	UnitMHz FrequencyUnit = "MHz"
	UnitGHz FrequencyUnit = "GHz"
)

// Multiplier returns the factor converting the unit to Hz.
func (u FrequencyUnit) Multiplier() float64 {
	switch u {
	case UnitKHz:
		return 1e3
	case UnitMHz:
		return 1e6
	case UnitGHz:
		return 1e9
	default:
		return 1
	}
}

// ParseFrequencyUnit accepts unit names case-insensitively ("hz", "GHZ", ...).
func ParseFrequencyUnit(s string) (FrequencyUnit, error) {
	for _, u := range []FrequencyUnit{UnitHz, UnitKHz, UnitMHz, UnitGHz} {
		if strings.EqualFold(s, string(u)) {
			return u, nil
		}
	}
	return "", fmt.Errorf("unknown frequency unit: %q", s)
}

// FrequencySweep is the start/stop/points triple of a channel.
type FrequencySweep struct {
	Start  float64       `json:"start"`
	Stop   float64       `json:"stop"`
	Points int           `json:"points"`
	Unit   FrequencyUnit `json:"unit"`
}

func NewFrequencySweep(start, stop float64, points int, unit FrequencyUnit) (FrequencySweep, error) {
	f := FrequencySweep{Start: start, Stop: stop, Points: points, Unit: unit}
	if err := f.Validate(); err != nil {
		return FrequencySweep{}, err
	}
	return f, nil
}

func (f FrequencySweep) Validate() error {
	if f.Points <= 0 {
		return &ValidationError{Value: f.Points, Domain: "point count > 0"}
	}
	if f.StartHz() > f.StopHz() {
		return &ValidationError{Value: f.Start, Domain: fmt.Sprintf("start <= stop (%v %s)", f.Stop, f.unit())}
	}
	return nil
}

func (f FrequencySweep) unit() FrequencyUnit {
	if f.Unit == "" {
		return UnitHz
	}
	return f.Unit
}

func (f FrequencySweep) StartHz() float64 { return f.Start * f.unit().Multiplier() }
func (f FrequencySweep) StopHz() float64  { return f.Stop * f.unit().Multiplier() }

// Axis returns the linearly spaced frequency points in Hz.
func (f FrequencySweep) Axis() []float64 {
	if f.Points <= 0 {
		return nil
	}
	axis := make([]float64, f.Points)
	start, stop := f.StartHz(), f.StopHz()
	if f.Points == 1 {
		axis[0] = start
		return axis
	}
	step := (stop - start) / float64(f.Points-1)
	for i := range axis {
		axis[i] = start + float64(i)*step
	}
	axis[f.Points-1] = stop
	return axis
}

// SweepMode is the trigger state of a channel. Which modes exist and
// their tokens are profile data.
type SweepMode string

const (
	SweepModeHold       SweepMode = "hold"
	SweepModeSingle     SweepMode = "single"
	SweepModeContinuous SweepMode = "continuous"
	SweepModeGroups     SweepMode = "groups"
	SweepModeResume     SweepMode = "resume" // continue from the current point
)

type SweepType string

const (
	SweepTypeLinear  SweepType = "linear"
	SweepTypeLog     SweepType = "log"
	SweepTypeSegment SweepType = "segment"
	SweepTypePower   SweepType = "power"
)

// ValueFormat is the wire encoding of bulk numeric transfers.
type ValueFormat string

const (
	FormatText     ValueFormat = "text"
	FormatBinary32 ValueFormat = "binary32"
	FormatBinary64 ValueFormat = "binary64"
)

// Width returns the byte width of one binary word, 0 for text.
func (f ValueFormat) Width() int {
	switch f {
	case FormatBinary32:
		return 4
	case FormatBinary64:
		return 8
	default:
		return 0
	}
}

func (f ValueFormat) IsBinary() bool {
	return f.Width() > 0
}

func ParseValueFormat(s string) (ValueFormat, error) {
	switch ValueFormat(strings.ToLower(s)) {
	case FormatText:
		return FormatText, nil
	case FormatBinary32:
		return FormatBinary32, nil
	case FormatBinary64:
		return FormatBinary64, nil
	}
	return "", fmt.Errorf("unknown value format: %q", s)
}
