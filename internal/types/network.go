package types

import (
	"encoding/json"
	"fmt"
)

// MeasurementResult is one acquired S-parameter dataset.
// S is indexed [frequency][port_out][port_in]; Ports labels both port axes.
type MeasurementResult struct {
	Frequency FrequencySweep
	Axis      []float64
	Ports     []int
	S         [][][]complex128
}

// NewMeasurementResult allocates a zeroed tensor sized for the sweep and ports.
func NewMeasurementResult(freq FrequencySweep, ports []int) *MeasurementResult {
	axis := freq.Axis()
	n := len(ports)
	s := make([][][]complex128, len(axis))
	for f := range s {
		s[f] = make([][]complex128, n)
		for o := range s[f] {
			s[f][o] = make([]complex128, n)
		}
	}
	return &MeasurementResult{
		Frequency: freq,
		Axis:      axis,
		Ports:     append([]int(nil), ports...),
		S:         s,
	}
}

func (m *MeasurementResult) NPoints() int { return len(m.Axis) }
func (m *MeasurementResult) NPorts() int  { return len(m.Ports) }

// Param returns S[out][in] across all frequency points, ports being
// positions in m.Ports.
func (m *MeasurementResult) Param(out, in int) []complex128 {
	values := make([]complex128, len(m.S))
	for f := range m.S {
		values[f] = m.S[f][out][in]
	}
	return values
}

// Wire form: complex numbers as [re, im] pairs.
type measurementJSON struct {
	Frequency FrequencySweep   `json:"frequency"`
	Axis      []float64        `json:"axis_hz"`
	Ports     []int            `json:"ports"`
	S         [][][][2]float64 `json:"s"`
}

func (m *MeasurementResult) MarshalJSON() ([]byte, error) {
	out := measurementJSON{
		Frequency: m.Frequency,
		Axis:      m.Axis,
		Ports:     m.Ports,
		S:         make([][][][2]float64, len(m.S)),
	}
	for f, matrix := range m.S {
		out.S[f] = make([][][2]float64, len(matrix))
		for o, row := range matrix {
			out.S[f][o] = make([][2]float64, len(row))
			for i, v := range row {
				out.S[f][o][i] = [2]float64{real(v), imag(v)}
			}
		}
	}
	return json.Marshal(out)
}

func (m *MeasurementResult) UnmarshalJSON(data []byte) error {
	var in measurementJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.S) != len(in.Axis) {
		return fmt.Errorf("measurement has %d frequency points but %d matrices", len(in.Axis), len(in.S))
	}
	m.Frequency = in.Frequency
	m.Axis = in.Axis
	m.Ports = in.Ports
	m.S = make([][][]complex128, len(in.S))
	for f, matrix := range in.S {
		if len(matrix) != len(in.Ports) {
			return fmt.Errorf("point %d: expected %d rows, got %d", f, len(in.Ports), len(matrix))
		}
		m.S[f] = make([][]complex128, len(matrix))
		for o, row := range matrix {
			m.S[f][o] = make([]complex128, len(row))
			for i, v := range row {
				m.S[f][o][i] = complex(v[0], v[1])
			}
		}
	}
	return nil
}
