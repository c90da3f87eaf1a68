package protocol

import (
	"math"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/shopspring/decimal"
)

const (
	// MaxDecimals is the largest supported token precision.
	MaxDecimals uint16 = 18

	// DefaultDecimals is used when a deploy omits the "dec" field.
	DefaultDecimals uint16 = 18

	// MaxTickerLength is the byte length limit of a normalized ticker.
	MaxTickerLength = 8
)

var (
	ErrInvalidTicker = errors.New("invalid ticker")
	ErrInvalidAmount = errors.New("invalid amount")

	// maxHumanUnits caps the integer part of any amount at 2^64-1 whole units.
	maxHumanUnits = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)
)

// NormalizeTicker validates and normalizes a raw ticker to its canonical
// uppercase form. The original casing is preserved separately for display.
func NormalizeTicker(raw string) (normalized string, original string, err error) {
	original = strings.TrimSpace(raw)
	if len(original) == 0 || len(original) > MaxTickerLength {
		return "", "", errors.Wrapf(ErrInvalidTicker, "ticker length must be 1-%d bytes", MaxTickerLength)
	}
	for i := 0; i < len(original); i++ {
		c := original[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return "", "", errors.Wrapf(ErrInvalidTicker, "ticker contains invalid byte %q", c)
		}
	}
	return strings.ToUpper(original), original, nil
}

// ParseAmount parses a canonical decimal string into exact base units.
//
// Canonical form: no sign, no exponent, no leading zeros ("0" itself and
// "0.x" are allowed), at most `decimals` fractional digits, and at most
// 2^64-1 whole units. The result is value * 10^decimals.
func ParseAmount(raw string, decimals uint16) (uint128.Uint128, error) {
	if decimals > MaxDecimals {
		return uint128.Zero, errors.Wrapf(ErrInvalidAmount, "decimals %d exceeds maximum %d", decimals, MaxDecimals)
	}
	if err := validateCanonicalNumber(raw, decimals); err != nil {
		return uint128.Zero, errors.WithStack(err)
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return uint128.Zero, errors.Wrapf(ErrInvalidAmount, "unparsable amount %q", raw)
	}
	if value.GreaterThan(maxHumanUnits) {
		return uint128.Zero, errors.Wrapf(ErrInvalidAmount, "amount %q exceeds maximum supported value", raw)
	}

	baseUnits := value.Shift(int32(decimals))
	if !baseUnits.IsInteger() {
		return uint128.Zero, errors.Wrapf(ErrInvalidAmount, "amount %q has more than %d decimal places", raw, decimals)
	}

	bigValue := baseUnits.BigInt()
	if bigValue.Sign() < 0 || bigValue.BitLen() > 127 {
		return uint128.Zero, errors.Wrapf(ErrInvalidAmount, "amount %q out of range", raw)
	}
	result, err := uint128.FromBig(bigValue)
	if err != nil {
		return uint128.Zero, errors.Wrapf(ErrInvalidAmount, "amount %q out of range", raw)
	}
	return result, nil
}

// ParseDecimals parses the "dec" deploy field. Empty input yields the
// protocol default.
func ParseDecimals(raw string) (uint16, error) {
	if raw == "" {
		return DefaultDecimals, nil
	}
	if len(raw) > 2 || (len(raw) > 1 && raw[0] == '0') {
		return 0, errors.Wrapf(ErrInvalidAmount, "invalid decimals %q", raw)
	}
	value := uint16(0)
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, errors.Wrapf(ErrInvalidAmount, "invalid decimals %q", raw)
		}
		value = value*10 + uint16(raw[i]-'0')
	}
	if value > MaxDecimals {
		return 0, errors.Wrapf(ErrInvalidAmount, "decimals %d exceeds maximum %d", value, MaxDecimals)
	}
	return value, nil
}

// validateCanonicalNumber enforces the canonical textual form of amounts.
func validateCanonicalNumber(raw string, decimals uint16) error {
	if raw == "" {
		return errors.Wrap(ErrInvalidAmount, "empty amount")
	}

	intPart, fracPart, hasFrac := strings.Cut(raw, ".")
	if intPart == "" {
		return errors.Wrapf(ErrInvalidAmount, "amount %q has no integer part", raw)
	}
	if hasFrac && fracPart == "" {
		return errors.Wrapf(ErrInvalidAmount, "amount %q has trailing decimal point", raw)
	}
	if hasFrac && len(fracPart) > int(decimals) {
		return errors.Wrapf(ErrInvalidAmount, "amount %q has more than %d decimal places", raw, decimals)
	}
	for _, part := range []string{intPart, fracPart} {
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return errors.Wrapf(ErrInvalidAmount, "amount %q contains non-digit characters", raw)
			}
		}
	}
	if len(intPart) > 1 && intPart[0] == '0' {
		return errors.Wrapf(ErrInvalidAmount, "amount %q has leading zeros", raw)
	}
	return nil
}
