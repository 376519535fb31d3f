// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestFormatDecimal12(t *testing.T) {
	cases := []struct {
		in   *uint256.Int
		want string
	}{
		{uint256.NewInt(1_000_000_000_000), "1.000000000000"},
		{uint256.NewInt(500_000_000), "0.000500000000"},
		{uint256.NewInt(0), "0.000000000000"},
		{uint256.NewInt(1), "0.000000000001"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, FormatDecimal12(c.in))
	}
}

func TestParseDecimal12RoundTrip(t *testing.T) {
	for _, s := range []string{"1.000000000000", "0.000500000000", "5000.000000000000"} {
		v, err := ParseDecimal12(s)
		require.NoError(t, err)
		require.Equal(t, s, FormatDecimal12(v))
	}
}

func TestParseDecimal12NoFraction(t *testing.T) {
	v, err := ParseDecimal12("42")
	require.NoError(t, err)
	require.Equal(t, "42.000000000000", FormatDecimal12(v))
}

func TestMulDivExact(t *testing.T) {
	// usdtReserve * 10^12 * 10^12 / (usdtHubReserve * 10^usdtDecimals),
	// the LRNA price of a balanced pool: reserve 1e6, hub 1e12, 6 decimals.
	a := uint256.NewInt(1_000_000)                 // usdtReserve
	b := Pow10(24)                                 // 10^12 formula factor times the Decimal(12) scale
	c := uint256.NewInt(1_000_000_000_000_000_000) // usdtHubReserve(1e12) * 10^usdtDecimals(6)
	got, err := MulDiv(a, b, c)
	require.NoError(t, err)
	require.Equal(t, "1.000000000000", FormatDecimal12(got))
}

func TestMulDivDivisionByZero(t *testing.T) {
	_, err := MulDiv(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(0))
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestMulDivOverflowFallsBackToBigInt(t *testing.T) {
	max := new(uint256.Int).Sub(
		new(uint256.Int).Exp(uint256.NewInt(2), uint256.NewInt(200)),
		uint256.NewInt(1),
	)
	got, err := MulDiv(max, max, max)
	require.NoError(t, err)
	require.Equal(t, max.String(), got.String())
}

func TestIsZeroPrice(t *testing.T) {
	require.True(t, IsZeroPrice("0"))
	require.True(t, IsZeroPrice("0.000000000000"))
	require.False(t, IsZeroPrice("1.000000000000"))
}
