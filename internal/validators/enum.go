package validators

import (
	"fmt"
	"sort"
	"strings"
)

// Enum maps native values to arbitrary wire tokens through an explicit
// table, independent of declaration order.
type Enum[T comparable] struct {
	toToken  map[T]string
	toNative map[string]T
}

// NewEnum fails when two native values share a token, including tokens
// that differ only in case since Decode ignores case.
func NewEnum[T comparable](pairs map[T]string) (*Enum[T], error) {
	e := &Enum[T]{
		toToken:  make(map[T]string, len(pairs)),
		toNative: make(map[string]T, len(pairs)),
	}
	folded := make(map[string]T, len(pairs))
	for native, token := range pairs {
		key := strings.ToLower(token)
		if other, dup := folded[key]; dup {
			return nil, fmt.Errorf("token %q bound to both %v and %v", token, other, native)
		}
		folded[key] = native
		e.toToken[native] = token
		e.toNative[token] = native
	}
	return e, nil
}

func MustEnum[T comparable](pairs map[T]string) *Enum[T] {
	e, err := NewEnum(pairs)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Enum[T]) Encode(v any) (string, error) {
	native, ok := e.native(v)
	if !ok {
		return "", reject(v, e.Domain())
	}
	return e.toToken[native], nil
}

func (e *Enum[T]) Decode(token string) (any, error) {
	token = strings.TrimSpace(token)
	if native, ok := e.toNative[token]; ok {
		return native, nil
	}
	for t, native := range e.toNative {
		if strings.EqualFold(t, token) {
			return native, nil
		}
	}
	return nil, reject(token, e.Domain())
}

func (e *Enum[T]) Domain() string {
	names := make([]string, 0, len(e.toToken))
	for native := range e.toToken {
		names = append(names, fmt.Sprint(native))
	}
	sort.Strings(names)
	return "one of {" + strings.Join(names, ", ") + "}"
}

// native resolves v to a member, accepting numbers for numeric enums and
// member names given as strings.
func (e *Enum[T]) native(v any) (T, bool) {
	if t, ok := v.(T); ok {
		_, member := e.toToken[t]
		return t, member
	}
	var zero T
	if _, numeric := any(zero).(float64); numeric {
		if f, ok := toFloat(v); ok {
			t := any(f).(T)
			_, member := e.toToken[t]
			return t, member
		}
	}
	if s, ok := v.(string); ok {
		for t := range e.toToken {
			if strings.EqualFold(fmt.Sprint(t), s) {
				return t, true
			}
		}
	}
	return zero, false
}
