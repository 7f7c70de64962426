package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var fixedPointPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// ParseUnits converts a human-readable non-negative decimal string into an integer amount in
// the smallest unit, e.g. ParseUnits("1.5", 6) => 1500000. Signs, exponents and fractions
// with more significant digits than decimals are rejected.
func ParseUnits(value string, decimals int32) (*big.Int, error) {
	s := strings.TrimSpace(value)
	if !fixedPointPattern.MatchString(s) {
		return nil, fmt.Errorf("invalid fixed-point number %q", value)
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid fixed-point number %q: %w", value, err)
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%q has more than %d fractional digits", value, decimals)
	}
	return shifted.BigInt(), nil
}

// FormatUnits renders an integer amount as a decimal string with at most displayDigits
// fractional digits. Extra digits are truncated, never rounded; trailing zeros are trimmed
// down to a single fractional digit.
// Example: amount=1234567891, decimals=6, displayDigits=5 => "1234.56789"
func FormatUnits(amount *big.Int, decimals, displayDigits int) string {
	if amount == nil {
		return "0.0"
	}
	if decimals <= 0 {
		return amount.String()
	}

	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	intPart, fracPart := new(big.Int).QuoRem(abs, divisor, new(big.Int))

	frac := fracPart.String()
	frac = strings.Repeat("0", decimals-len(frac)) + frac
	if displayDigits >= 0 && len(frac) > displayDigits {
		frac = frac[:displayDigits]
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		frac = "0"
	}

	out := intPart.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// FormatBigInt converts a big.Int value to a human-readable string, keeping every
// significant fractional digit.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0.0", nil
	}
	if decimals == 0 {
		return amount.String(), nil
	}
	formatted := FormatUnits(amount, int(decimals), int(decimals))
	return strings.TrimSuffix(formatted, ".0"), nil
}
