package validators

import (
	"slices"
	"strconv"
	"strings"
)

// IntSet accepts only the listed integers.
type IntSet struct {
	allowed []int
}

func NewIntSet(allowed ...int) *IntSet {
	s := slices.Clone(allowed)
	slices.Sort(s)
	return &IntSet{allowed: slices.Compact(s)}
}

func (v *IntSet) Encode(x any) (string, error) {
	i, ok := toInt(x)
	if !ok || !slices.Contains(v.allowed, i) {
		return "", reject(x, v.Domain())
	}
	return strconv.Itoa(i), nil
}

func (v *IntSet) Decode(token string) (any, error) {
	i, ok := parseInt(token)
	if !ok || !slices.Contains(v.allowed, i) {
		return nil, reject(token, v.Domain())
	}
	return i, nil
}

func (v *IntSet) Domain() string {
	parts := make([]string, len(v.allowed))
	for i, a := range v.allowed {
		parts[i] = strconv.Itoa(a)
	}
	return "one of {" + strings.Join(parts, ", ") + "}"
}

// Allowed returns the accepted values in ascending order.
func (v *IntSet) Allowed() []int {
	return slices.Clone(v.allowed)
}
