package validators

import (
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenVNA/internal/types"
)

// Freq validates frequencies. The native value is float64 Hz; Encode also
// accepts strings with a unit suffix such as "1.5 GHz" or "100kHz".
type Freq struct {
	Bounds Bounds
}

// NewFreq returns a frequency validator rejecting negative values.
func NewFreq() *Freq {
	return &Freq{Bounds: AtLeast(0)}
}

func (v *Freq) Encode(x any) (string, error) {
	hz, ok := toFloat(x)
	if s, isString := x.(string); isString {
		hz, ok = ParseFrequency(s)
	}
	if !ok || !v.Bounds.contains(hz) {
		return "", reject(x, v.Domain())
	}
	return strconv.FormatFloat(hz, 'f', -1, 64), nil
}

func (v *Freq) Decode(token string) (any, error) {
	hz, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil || !v.Bounds.contains(hz) {
		return nil, reject(token, v.Domain())
	}
	return hz, nil
}

func (v *Freq) Domain() string {
	return "frequency [Hz] in " + v.Bounds.String()
}

// ParseFrequency converts "2.4 GHz", "100kHz" or "1e6" to Hz.
func ParseFrequency(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	split := len(s)
	for split > 0 {
		c := s[split-1]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			split--
			continue
		}
		break
	}
	number, suffix := strings.TrimSpace(s[:split]), s[split:]
	// An exponent marker belongs to the number ("1e" is never a unit).
	if strings.HasSuffix(number, "e") || strings.HasSuffix(number, "E") {
		return 0, false
	}
	f, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, false
	}
	if suffix == "" {
		return f, true
	}
	unit, err := types.ParseFrequencyUnit(suffix)
	if err != nil {
		return 0, false
	}
	return f * unit.Multiplier(), true
}
