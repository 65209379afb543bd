package validators

import (
	"testing"

	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		validator Validator
		values    []any
	}{
		{"int unbounded", NewInt(Bounds{}), []any{-5, 0, 1, 100, 20001}},
		{"int inclusive", NewInt(Between(1, 999)), []any{1, 500, 999}},
		{"int exclusive", NewInt(StrictlyBetween(0, 10)), []any{1, 9}},
		{"float", NewFloat(Bounds{}), []any{0.0, 1.0, -2.5, 1e-12, 3.14159}},
		{"freq", NewFreq(), []any{0.0, 100.0, 1.5e9, 300e3, 12.5}},
		{"bool scpi", NewBoolean(), []any{true, false}},
		{"bool anritsu", &Boolean{True: "1", False: "0", TrueSetting: "N", FalseSetting: "F"}, []any{true, false}},
		{"set", NewIntSet(51, 101, 201, 401, 801, 1601), []any{51, 101, 1601}},
		{"enum sweep mode", MustEnum(map[types.SweepMode]string{
			types.SweepModeHold:       "HLD",
			types.SweepModeSingle:     "SING",
			types.SweepModeContinuous: "SWP",
		}), []any{types.SweepModeHold, types.SweepModeSingle, types.SweepModeContinuous}},
		{"enum numeric", MustEnum(map[float64]string{10: "1", 1000: "3", 30000: "A"}), []any{10.0, 1000.0, 30000.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.values {
				token, err := tt.validator.Encode(v)
				require.NoError(t, err, "encode %v", v)

				got, err := tt.validator.Decode(token)
				require.NoError(t, err, "decode %q", token)
				assert.Equal(t, v, got)
			}
		})
	}
}

func TestEncodeRejectsOutOfDomain(t *testing.T) {
	tests := []struct {
		name      string
		validator Validator
		value     any
	}{
		{"below inclusive min", NewInt(Between(1, 999)), 0},
		{"above inclusive max", NewInt(Between(1, 999)), 1000},
		{"exclusive bound itself", NewInt(StrictlyBetween(0, 10)), 10},
		{"non-integral int", NewInt(Bounds{}), 1.5},
		{"wrong type", NewInt(Bounds{}), "ten"},
		{"negative freq", NewFreq(), -1.0},
		{"bad freq unit", NewFreq(), "10 parsecs"},
		{"bool from int", NewBoolean(), 1},
		{"not in set", NewIntSet(51, 101), 100},
		{"not in enum", MustEnum(map[types.SweepMode]string{types.SweepModeHold: "HOLD"}), types.SweepModeGroups},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validator.Encode(tt.value)
			require.Error(t, err)

			var verr *types.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.value, verr.Value)
			assert.NotEmpty(t, verr.Domain)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name      string
		validator Validator
		token     string
	}{
		{"int garbage", NewInt(Bounds{}), "abc"},
		{"int out of range", NewInt(Between(1, 4095)), "5000"},
		{"float garbage", NewFloat(Bounds{}), "1.2.3"},
		{"bool unknown", NewBoolean(), "MAYBE"},
		{"set non-member", NewIntSet(51, 101), "77"},
		{"enum unknown", MustEnum(map[string]string{"a": "A"}), "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validator.Decode(tt.token)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestBooleanAcceptsAlternateSpellings(t *testing.T) {
	v := NewBoolean()
	for _, token := range []string{"1", "ON", "on", " On\n"} {
		got, err := v.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, true, got, token)
	}
	for _, token := range []string{"0", "OFF", "off"} {
		got, err := v.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, false, got, token)
	}
}

func TestIntDecodesScientificNotation(t *testing.T) {
	v := NewInt(Bounds{})
	got, err := v.Decode("+2.01000000E+02")
	require.NoError(t, err)
	assert.Equal(t, 201, got)
}

func TestFreqUnits(t *testing.T) {
	v := NewFreq()
	tests := map[string]string{
		"1 GHz":  "1000000000",
		"2.4GHz": "2400000000",
		"100kHz": "100000",
		"10 MHz": "10000000",
		"1e6":    "1000000",
		"50 hz":  "50",
	}
	for in, want := range tests {
		got, err := v.Encode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestEnumTokensAreNotPositional(t *testing.T) {
	v := MustEnum(map[types.SweepType]string{
		types.SweepTypeSegment: "SEGM",
		types.SweepTypeLinear:  "LIN",
	})

	token, err := v.Encode(types.SweepTypeLinear)
	require.NoError(t, err)
	assert.Equal(t, "LIN", token)

	token, err = v.Encode("segment")
	require.NoError(t, err)
	assert.Equal(t, "SEGM", token)

	got, err := v.Decode("lin")
	require.NoError(t, err)
	assert.Equal(t, types.SweepTypeLinear, got)
}

func TestNewEnumRejectsSharedToken(t *testing.T) {
	tests := []struct {
		name  string
		pairs map[string]string
	}{
		{"same token", map[string]string{"a": "X", "b": "X"}},
		{"tokens differ only in case", map[string]string{"a": "Lin", "b": "LIN"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnum(tt.pairs)
			assert.Error(t, err)
		})
	}
}

func TestEnumDecodeIgnoresCase(t *testing.T) {
	v := MustEnum(map[types.SweepType]string{types.SweepTypeLinear: "LIN", types.SweepTypeLog: "LOG"})

	for i := 0; i < 10; i++ {
		got, err := v.Decode("lin")
		require.NoError(t, err)
		assert.Equal(t, types.SweepTypeLinear, got)
	}
}

func TestFromSpec(t *testing.T) {
	lo, hi := 1.0, 4095.0

	t.Run("int bounds", func(t *testing.T) {
		v, err := FromSpec(types.ValidatorSpec{Type: "int", Min: &lo, Max: &hi})
		require.NoError(t, err)
		_, err = v.Encode(4096)
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("numeric enum", func(t *testing.T) {
		v, err := FromSpec(types.ValidatorSpec{Type: "enum", Kind: "number", Values: map[string]string{"1000": "3"}})
		require.NoError(t, err)
		token, err := v.Encode(1000)
		require.NoError(t, err)
		assert.Equal(t, "3", token)
	})

	t.Run("sweep mode enum", func(t *testing.T) {
		v, err := FromSpec(types.ValidatorSpec{Type: "enum", Kind: "sweep_mode", Values: map[string]string{"hold": "HLD"}})
		require.NoError(t, err)
		got, err := v.Decode("HLD")
		require.NoError(t, err)
		assert.Equal(t, types.SweepModeHold, got)
	})

	t.Run("bool overrides", func(t *testing.T) {
		v, err := FromSpec(types.ValidatorSpec{Type: "bool", TrueSetting: "SWAVG", FalseSetting: "PTAVG"})
		require.NoError(t, err)
		token, err := v.Encode(false)
		require.NoError(t, err)
		assert.Equal(t, "PTAVG", token)
	})

	t.Run("ambiguous bool", func(t *testing.T) {
		_, err := FromSpec(types.ValidatorSpec{Type: "bool", TrueSetting: "0"})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := FromSpec(types.ValidatorSpec{Type: "complex"})
		assert.Error(t, err)
	})
}
