package vna

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/KevinKickass/OpenVNA/internal/types"
)

// QueryValues runs a bulk query and decodes the reply according to the
// cached value format and the profile's byte order.
func (i *Instrument) QueryValues(ctx context.Context, cmd string) ([]float64, error) {
	f := i.format
	if !f.IsBinary() {
		reply, err := i.Query(ctx, cmd)
		if err != nil {
			return nil, err
		}
		values, err := parseText(reply)
		if err != nil {
			return nil, &types.ProtocolError{Command: cmd, Err: err}
		}
		return values, nil
	}

	raw, err := i.transport.QueryRaw(ctx, cmd)
	if err != nil {
		return nil, err
	}
	values, err := i.decodeBinary(raw, f.Width())
	if err != nil {
		return nil, &types.ProtocolError{Command: cmd, Err: err}
	}
	return values, nil
}

// QueryComplexValues reads interleaved real/imaginary pairs.
func (i *Instrument) QueryComplexValues(ctx context.Context, cmd string) ([]complex128, error) {
	values, err := i.QueryValues(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if len(values)%2 != 0 {
		return nil, &types.ProtocolError{Command: cmd, Err: fmt.Errorf("odd value count %d for complex data", len(values))}
	}

	out := make([]complex128, len(values)/2)
	for k := range out {
		out[k] = complex(values[2*k], values[2*k+1])
	}
	return out, nil
}

func parseText(reply string) ([]float64, error) {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	values := make([]float64, len(fields))
	for k, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %q is not a number", k, field)
		}
		values[k] = v
	}
	return values, nil
}

func (i *Instrument) decodeBinary(raw []byte, width int) ([]float64, error) {
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("payload of %d bytes is not a multiple of %d", len(raw), width)
	}

	order := i.profile.ByteOrder()
	values := make([]float64, len(raw)/width)
	for k := range values {
		word := raw[k*width : (k+1)*width]
		if width == 4 {
			values[k] = float64(math.Float32frombits(order.Uint32(word)))
		} else {
			values[k] = math.Float64frombits(order.Uint64(word))
		}
	}
	return values, nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// parseIndex accepts "1", "+1" and "1.0".
func parseIndex(s string) (int, bool) {
	f, err := strconv.ParseFloat(trimmed(s), 64)
	if err != nil || f != math.Trunc(f) || f < 1 {
		return 0, false
	}
	return int(f), true
}
