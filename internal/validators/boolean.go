package validators

import (
	"strconv"
	"strings"
)

// Boolean maps true/false to the tokens an instrument replies with and the
// tokens it expects in settings. Decode accepts either spelling, ignoring case.
type Boolean struct {
	True         string
	False        string
	TrueSetting  string
	FalseSetting string
}

// NewBoolean returns the common SCPI spelling: replies 1/0, settings ON/OFF.
func NewBoolean() *Boolean {
	return &Boolean{True: "1", False: "0", TrueSetting: "ON", FalseSetting: "OFF"}
}

func (v *Boolean) Encode(x any) (string, error) {
	var b bool
	switch t := x.(type) {
	case bool:
		b = t
	case string:
		parsed, err := strconv.ParseBool(t)
		if err != nil {
			return "", reject(x, v.Domain())
		}
		b = parsed
	default:
		return "", reject(x, v.Domain())
	}
	if b {
		return v.TrueSetting, nil
	}
	return v.FalseSetting, nil
}

func (v *Boolean) Decode(token string) (any, error) {
	token = strings.TrimSpace(token)
	switch {
	case strings.EqualFold(token, v.True), strings.EqualFold(token, v.TrueSetting):
		return true, nil
	case strings.EqualFold(token, v.False), strings.EqualFold(token, v.FalseSetting):
		return false, nil
	}
	return nil, reject(token, v.Domain())
}

func (v *Boolean) Domain() string {
	return "boolean (" + quoted([]string{v.True, v.TrueSetting}) + " | " + quoted([]string{v.False, v.FalseSetting}) + ")"
}
