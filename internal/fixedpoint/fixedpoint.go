// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixedpoint implements the Decimal(12) fixed-point representation
// used for every USDT price and volume value in the pipeline. All
// arithmetic is exact integer arithmetic over *uint256.Int; no floating
// point is used anywhere in this package or its callers.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Scale is the number of fractional digits a Decimal(12) value carries.
const Scale = 12

// ErrDivisionByZero is returned by MulDiv when the divisor is zero; callers
// treat this as "pool not priceable" per spec.md §4.4, not as a fatal error.
var ErrDivisionByZero = errors.New("fixedpoint: division by zero")

var pow10Table [39]*uint256.Int

func init() {
	v := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := range pow10Table {
		pow10Table[i] = v.Clone()
		v = new(uint256.Int).Mul(v, ten)
	}
}

// Pow10 returns 10^n as a *uint256.Int. n must be small enough that the
// result fits in 256 bits (n <= 38 for any value this package is asked to
// scale, well above the spec's 0-30 decimals range plus the 12-digit scale).
func Pow10(n uint8) *uint256.Int {
	if int(n) >= len(pow10Table) {
		return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
	}
	return pow10Table[n].Clone()
}

// ScaleFactor is 10^12, the Decimal(12) scale factor.
func ScaleFactor() *uint256.Int { return Pow10(Scale) }

// One is the fixed-point encoding of the real number 1.
func One() *uint256.Int { return ScaleFactor() }

// MulDiv computes floor(a*b/c) exactly. The fast path multiplies within a
// single 256-bit word; when that would overflow (reserves with many
// decimals can produce intermediate products beyond 256 bits) it falls back
// to arbitrary-precision integers, per spec.md §4.4's allowance for "at
// least 192-bit, or arbitrary-precision integers". Returns ErrDivisionByZero
// if c is zero.
func MulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	if c.IsZero() {
		return nil, ErrDivisionByZero
	}
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if !overflow {
		return new(uint256.Int).Div(product, c), nil
	}
	ab := new(big.Int).Mul(a.ToBig(), b.ToBig())
	ab.Div(ab, c.ToBig())
	result, overflowed := uint256.FromBig(ab)
	if overflowed {
		// Genuinely impossible for any quantity this pipeline deals with;
		// spec.md §4.4 treats this as a fatal implementation bug.
		panic(fmt.Sprintf("fixedpoint: MulDiv result overflows 256 bits: %s", ab.String()))
	}
	return result, nil
}

// MulDiv3x2 computes floor((a*b*c)/(d*e)) as a single undivided fraction,
// never rounding an intermediate product. Unlike MulDiv there is no 256-bit
// fast path: a triple product routinely exceeds 256 bits long before the
// final quotient does, so this always goes through arbitrary-precision
// integers.
func MulDiv3x2(a, b, c, d, e *uint256.Int) (*uint256.Int, error) {
	den := new(big.Int).Mul(d.ToBig(), e.ToBig())
	if den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	num := new(big.Int).Mul(a.ToBig(), b.ToBig())
	num.Mul(num, c.ToBig())
	num.Div(num, den)
	result, overflow := uint256.FromBig(num)
	if overflow {
		panic(fmt.Sprintf("fixedpoint: MulDiv3x2 result overflows 256 bits: %s", num.String()))
	}
	return result, nil
}

// FormatDecimal12 renders v (an integer whose real value is v/10^12) as a
// decimal string with exactly 12 fractional digits, e.g. "1.000000000000".
func FormatDecimal12(v *uint256.Int) string {
	s := v.Dec()
	if len(s) <= Scale {
		s = strings.Repeat("0", Scale-len(s)+1) + s
	}
	intPart := s[:len(s)-Scale]
	fracPart := s[len(s)-Scale:]
	return intPart + "." + fracPart
}

// ParseDecimal12 parses a Decimal(12) string back into its integer
// representation. Accepts strings with 0 to 12 fractional digits; shorter
// fractional parts are zero-padded on the right.
func ParseDecimal12(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("fixedpoint: empty decimal string")
	}
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if len(fracPart) > Scale {
		return nil, fmt.Errorf("fixedpoint: %q has more than %d fractional digits", s, Scale)
	}
	if !hasDot {
		fracPart = ""
	}
	fracPart = fracPart + strings.Repeat("0", Scale-len(fracPart))
	digits := intPart + fracPart
	if digits == "" {
		digits = "0"
	}
	v, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("fixedpoint: invalid decimal string %q: %w", s, err)
	}
	return v, nil
}

// ZeroPrice is the sentinel "no price" string used for volume-only rows.
const ZeroPrice = "0"

// IsZeroPrice reports whether a price string is the zero sentinel.
func IsZeroPrice(p string) bool {
	return p == "" || p == ZeroPrice || p == "0.000000000000"
}
