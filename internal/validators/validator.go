// Package validators converts between native Go values and the textual
// tokens instruments put on the wire.
package validators

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenVNA/internal/types"
)

// Validator is a stateless codec over a declared domain. For every native
// value v in the domain, Decode(Encode(v)) == v.
type Validator interface {
	// Encode rejects out-of-domain values with a *types.ValidationError.
	Encode(v any) (string, error)
	// Decode rejects malformed or non-member tokens with a *types.ValidationError.
	Decode(token string) (any, error)
	// Domain describes the accepted values, for error messages and docs.
	Domain() string
}

// Bounds is an optional numeric interval.
type Bounds struct {
	Min       *float64
	Max       *float64
	Exclusive bool
}

func Between(lo, hi float64) Bounds {
	return Bounds{Min: &lo, Max: &hi}
}

func StrictlyBetween(lo, hi float64) Bounds {
	return Bounds{Min: &lo, Max: &hi, Exclusive: true}
}

func AtLeast(lo float64) Bounds {
	return Bounds{Min: &lo}
}

func (b Bounds) contains(x float64) bool {
	if math.IsNaN(x) {
		return false
	}
	if b.Min != nil {
		if b.Exclusive && x <= *b.Min || !b.Exclusive && x < *b.Min {
			return false
		}
	}
	if b.Max != nil {
		if b.Exclusive && x >= *b.Max || !b.Exclusive && x > *b.Max {
			return false
		}
	}
	return true
}

func (b Bounds) String() string {
	left, right := "[", "]"
	if b.Exclusive {
		left, right = "(", ")"
	}
	lo, hi := "-inf", "+inf"
	if b.Min != nil {
		lo = strconv.FormatFloat(*b.Min, 'g', -1, 64)
	}
	if b.Max != nil {
		hi = strconv.FormatFloat(*b.Max, 'g', -1, 64)
	}
	return left + lo + ", " + hi + right
}

func reject(v any, domain string) error {
	return &types.ValidationError{Value: v, Domain: domain}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// parseInt accepts plain integers and integral floats ("1.01E+02").
func parseInt(token string) (int, bool) {
	token = strings.TrimSpace(token)
	if i, err := strconv.Atoi(token); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return toInt(f)
}

func quoted(tokens []string) string {
	q := make([]string, len(tokens))
	for i, t := range tokens {
		q[i] = fmt.Sprintf("%q", t)
	}
	return strings.Join(q, ", ")
}
