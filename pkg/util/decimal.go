package util

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseDecimal converts a decimal string like "0.05" into an integer scaled by
// 10^decimals. All amount math downstream is exact integer math; this is the
// single place where human-readable numbers cross into fixed point.
func ParseDecimal(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty decimal string")
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("malformed decimal %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > int(decimals) {
		return nil, fmt.Errorf("decimal %q has more than %d fractional digits", s, decimals)
	}
	// Right-pad the fraction to the target scale.
	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))

	out, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("malformed decimal %q", s)
	}
	if neg {
		out.Neg(out)
	}
	return out, nil
}

// FormatDecimal renders a fixed-point integer back as a decimal string,
// trimming trailing zeros. Inverse of ParseDecimal for display purposes only.
func FormatDecimal(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Abs(v)
	if v.Sign() < 0 {
		sign = "-"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	q, r := new(big.Int).QuoRem(abs, scale, new(big.Int))
	if r.Sign() == 0 {
		return sign + q.String()
	}
	frac := strings.TrimRight(fmt.Sprintf("%0*s", decimals, r.String()), "0")
	return sign + q.String() + "." + frac
}
