package validators

import (
	"strconv"
	"strings"
)

// Int validates integers within optional bounds. Native type is int.
type Int struct {
	Bounds Bounds
}

func NewInt(b Bounds) *Int {
	return &Int{Bounds: b}
}

func (v *Int) Encode(x any) (string, error) {
	i, ok := toInt(x)
	if !ok || !v.Bounds.contains(float64(i)) {
		return "", reject(x, v.Domain())
	}
	return strconv.Itoa(i), nil
}

func (v *Int) Decode(token string) (any, error) {
	i, ok := parseInt(token)
	if !ok || !v.Bounds.contains(float64(i)) {
		return nil, reject(token, v.Domain())
	}
	return i, nil
}

func (v *Int) Domain() string {
	return "integer in " + v.Bounds.String()
}

// Float validates real numbers within optional bounds. Native type is float64.
type Float struct {
	Bounds Bounds
}

func NewFloat(b Bounds) *Float {
	return &Float{Bounds: b}
}

func (v *Float) Encode(x any) (string, error) {
	f, ok := toFloat(x)
	if !ok || !v.Bounds.contains(f) {
		return "", reject(x, v.Domain())
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

func (v *Float) Decode(token string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil || !v.Bounds.contains(f) {
		return nil, reject(token, v.Domain())
	}
	return f, nil
}

func (v *Float) Domain() string {
	return "number in " + v.Bounds.String()
}
