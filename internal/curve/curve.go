// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package curve implements the Stableswap invariant math (Newton's method
// solvers for D and Y) and the constant-product (XYK) and Omnipool anchor
// formulas used by internal/price. All arithmetic is exact, fixed-width
// integer arithmetic over *uint256.Int — see spec.md §4.4.
package curve

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/galacticcouncil/hydration-indexer/internal/fixedpoint"
)

// ErrNotPriceable signals that a pool cannot currently be priced (division
// by zero, zero reserve, or a degenerate swap amount). Per spec.md §4.4
// this is never fatal: the caller drops the pool from this block's prices
// and continues.
var ErrNotPriceable = errors.New("curve: pool not priceable")

const (
	maxDIterations = 64
	maxYIterations = 128
	convergence    = 1
)

// CalculateD solves for the Stableswap invariant D given the current
// reserves and amplification coefficient. Returns 0 if any reserve is zero
// (spec.md §8 invariant 7).
func CalculateD(reserves []*uint256.Int, amp *uint256.Int) *uint256.Int {
	n := uint64(len(reserves))
	sum := uint256.NewInt(0)
	for _, r := range reserves {
		if r.IsZero() {
			return uint256.NewInt(0)
		}
		sum = new(uint256.Int).Add(sum, r)
	}

	nU := uint256.NewInt(n)
	ann := new(uint256.Int).Mul(amp, nPowN(n))

	d := sum.Clone()
	for i := 0; i < maxDIterations; i++ {
		dPrev := d.Clone()

		dProd := d.Clone()
		for _, r := range reserves {
			denom := new(uint256.Int).Mul(r, nU)
			dProd = mulDivOrZero(dProd, d, denom)
		}

		annSum := new(uint256.Int).Mul(ann, sum)
		numerator := new(uint256.Int).Add(annSum, new(uint256.Int).Mul(dProd, nU))
		numerator = new(uint256.Int).Mul(numerator, d)

		annMinus1 := new(uint256.Int).Sub(ann, uint256.NewInt(1))
		nPlus1 := uint256.NewInt(n + 1)
		denominator := new(uint256.Int).Add(
			new(uint256.Int).Mul(annMinus1, d),
			new(uint256.Int).Mul(nPlus1, dProd),
		)
		if denominator.IsZero() {
			return uint256.NewInt(0)
		}
		d = new(uint256.Int).Div(numerator, denominator)

		if withinThreshold(d, dPrev) {
			return d
		}
	}
	return d
}

// CalculateY solves for the reserve of the asset at targetIndex that
// preserves the invariant D, given every other reserve. reserves[targetIndex]
// is not read.
func CalculateY(reserves []*uint256.Int, amp *uint256.Int, targetIndex int, d *uint256.Int) (*uint256.Int, error) {
	n := uint64(len(reserves))
	nU := uint256.NewInt(n)
	ann := new(uint256.Int).Mul(amp, nPowN(n))
	if ann.IsZero() {
		return nil, ErrNotPriceable
	}

	c := d.Clone()
	sumOthers := uint256.NewInt(0)
	for i, r := range reserves {
		if i == targetIndex {
			continue
		}
		if r.IsZero() {
			return nil, ErrNotPriceable
		}
		denom := new(uint256.Int).Mul(r, nU)
		c = mulDivOrZero(c, d, denom)
		sumOthers = new(uint256.Int).Add(sumOthers, r)
	}
	annN := new(uint256.Int).Mul(ann, nU)
	c = mulDivOrZero(c, d, annN)

	b := new(uint256.Int).Add(sumOthers, new(uint256.Int).Div(d, ann))

	y := d.Clone()
	for i := 0; i < maxYIterations; i++ {
		yPrev := y.Clone()

		ySquared, overflow := new(uint256.Int).MulOverflow(y, y)
		numerator := new(uint256.Int)
		if overflow {
			numerator = bigMulAdd(y, y, c)
		} else {
			numerator = new(uint256.Int).Add(ySquared, c)
		}

		twoY := new(uint256.Int).Mul(y, uint256.NewInt(2))
		denomPlusB := new(uint256.Int).Add(twoY, b)
		if denomPlusB.Cmp(d) < 0 {
			return nil, ErrNotPriceable
		}
		denominator := new(uint256.Int).Sub(denomPlusB, d)
		if denominator.IsZero() {
			return nil, ErrNotPriceable
		}
		y = new(uint256.Int).Div(numerator, denominator)

		if withinThreshold(y, yPrev) {
			return y, nil
		}
	}
	return y, nil
}

// SpotPrice approximates the marginal exchange rate of asset "in" in units
// of asset "out" by simulating a 0.01%-of-reserve swap and re-solving for
// the invariant-preserving balance of "out". Result is Decimal(12)-scaled.
func SpotPrice(reserves []*uint256.Int, amp *uint256.Int, in, out int, decimalsIn, decimalsOut uint8) (*uint256.Int, error) {
	if reserves[in].IsZero() || reserves[out].IsZero() {
		return nil, ErrNotPriceable
	}
	d := CalculateD(reserves, amp)
	if d.IsZero() {
		return nil, ErrNotPriceable
	}

	swap := new(uint256.Int).Div(reserves[in], uint256.NewInt(10_000))
	if swap.IsZero() {
		return nil, ErrNotPriceable
	}

	newReserves := make([]*uint256.Int, len(reserves))
	copy(newReserves, reserves)
	newReserves[in] = new(uint256.Int).Add(reserves[in], swap)

	newY, err := CalculateY(newReserves, amp, out, d)
	if err != nil {
		return nil, err
	}
	if newY.Cmp(reserves[out]) >= 0 {
		return nil, ErrNotPriceable
	}
	received := new(uint256.Int).Sub(reserves[out], newY)
	if received.IsZero() {
		return nil, ErrNotPriceable
	}

	numerator, err := fixedpoint.MulDiv(received, fixedpoint.Pow10(decimalsIn), fixedpoint.Pow10(decimalsOut))
	if err != nil {
		return nil, ErrNotPriceable
	}
	price, err := fixedpoint.MulDiv(numerator, fixedpoint.Pow10(fixedpoint.Scale), swap)
	if err != nil {
		return nil, ErrNotPriceable
	}
	return price, nil
}

// nPowN returns n^n as a *uint256.Int.
func nPowN(n uint64) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(n), uint256.NewInt(n))
}

// mulDivOrZero returns floor(a*b/c), or zero if c is zero (matching the
// Stableswap formulas' treatment of degenerate pools as non-priceable
// rather than letting a panic escape the fixpoint loop).
func mulDivOrZero(a, b, c *uint256.Int) *uint256.Int {
	if c.IsZero() {
		return uint256.NewInt(0)
	}
	v, err := fixedpoint.MulDiv(a, b, c)
	if err != nil {
		return uint256.NewInt(0)
	}
	return v
}

// bigMulAdd computes x*x+c without overflowing 256 bits by falling back to
// arbitrary-precision integers, mirroring fixedpoint.MulDiv's overflow path.
func bigMulAdd(x, _, c *uint256.Int) *uint256.Int {
	xb := x.ToBig()
	xb.Mul(xb, xb)
	xb.Add(xb, c.ToBig())
	v, overflow := uint256.FromBig(xb)
	if overflow {
		panic("curve: y-iteration intermediate overflows 256 bits")
	}
	return v
}

func withinThreshold(a, b *uint256.Int) bool {
	var diff uint256.Int
	if a.Cmp(b) >= 0 {
		diff.Sub(a, b)
	} else {
		diff.Sub(b, a)
	}
	return diff.Cmp(uint256.NewInt(convergence)) <= 0
}
