package protocol

import (
	"testing"

	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTicker(t *testing.T) {
	t.Run("uppercases_and_keeps_original", func(t *testing.T) {
		normalized, original, err := NormalizeTicker("ordi")
		require.NoError(t, err)
		assert.Equal(t, "ORDI", normalized)
		assert.Equal(t, "ordi", original)
	})

	t.Run("allows_digits_and_underscore", func(t *testing.T) {
		normalized, _, err := NormalizeTicker("a_b_12")
		require.NoError(t, err)
		assert.Equal(t, "A_B_12", normalized)
	})

	t.Run("rejects_invalid", func(t *testing.T) {
		for _, raw := range []string{"", "toolongtick", "ab-c", "ab c", "abé", "ab.c"} {
			_, _, err := NormalizeTicker(raw)
			assert.Error(t, err, "ticker %q", raw)
		}
	})

	t.Run("max_length_boundary", func(t *testing.T) {
		_, _, err := NormalizeTicker("12345678")
		assert.NoError(t, err)
		_, _, err = NormalizeTicker("123456789")
		assert.Error(t, err)
	})
}

func TestParseAmount(t *testing.T) {
	t.Run("scales_to_base_units", func(t *testing.T) {
		amount, err := ParseAmount("1.5", 2)
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(150), amount)
	})

	t.Run("zero_decimals", func(t *testing.T) {
		amount, err := ParseAmount("21000000", 0)
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(21000000), amount)
	})

	t.Run("max_human_units", func(t *testing.T) {
		amount, err := ParseAmount("18446744073709551615", 18)
		require.NoError(t, err)
		assert.Equal(t, "18446744073709551615000000000000000000", amount.String())
	})

	t.Run("over_max_human_units_rejected", func(t *testing.T) {
		_, err := ParseAmount("18446744073709551616", 18)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("too_many_decimal_places_rejected", func(t *testing.T) {
		_, err := ParseAmount("1.123", 2)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("non_canonical_rejected", func(t *testing.T) {
		for _, raw := range []string{"", "+1", "-1", "1e5", "01", "1.", ".5", "1..2", "1,000", " 1"} {
			_, err := ParseAmount(raw, 18)
			assert.ErrorIs(t, err, ErrInvalidAmount, "amount %q", raw)
		}
	})

	t.Run("zero_allowed_by_parser", func(t *testing.T) {
		amount, err := ParseAmount("0", 18)
		require.NoError(t, err)
		assert.True(t, amount.IsZero())
	})
}

func TestParseDecimals(t *testing.T) {
	t.Run("empty_uses_default", func(t *testing.T) {
		decimals, err := ParseDecimals("")
		require.NoError(t, err)
		assert.Equal(t, DefaultDecimals, decimals)
	})

	t.Run("valid_range", func(t *testing.T) {
		for raw, expected := range map[string]uint16{"0": 0, "8": 8, "18": 18} {
			decimals, err := ParseDecimals(raw)
			require.NoError(t, err)
			assert.Equal(t, expected, decimals)
		}
	})

	t.Run("invalid_rejected", func(t *testing.T) {
		for _, raw := range []string{"19", "100", "08", "-1", "1.5", "a"} {
			_, err := ParseDecimals(raw)
			assert.Error(t, err, "decimals %q", raw)
		}
	})
}
