// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package price resolves a per-block USDT PriceMap from the pool state
// produced by internal/poolstate: anchor USDT at 1, derive an LRNA price
// from the Omnipool, price every Omnipool asset against it, then propagate
// prices through XYK and Stableswap pools to a fixpoint.
package price

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/galacticcouncil/hydration-indexer/internal/curve"
	"github.com/galacticcouncil/hydration-indexer/internal/fixedpoint"
	"github.com/galacticcouncil/hydration-indexer/internal/poolstate"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

const maxPropagationIterations = 10

// DecimalsLookup resolves an asset's native decimals, typically backed by
// internal/registry's cache.
type DecimalsLookup func(asset types.AssetId) (types.Decimals, bool)

// Resolve computes the PriceMap for one block from its pool state.
// usdtAsset identifies which AssetId is USDT, anchored at 1.0. blockHeight
// is used to interpolate each Stableswap pool's current amplification.
func Resolve(state poolstate.Result, usdtAsset types.AssetId, blockHeight types.BlockHeight, decimalsOf DecimalsLookup) types.PriceMap {
	prices := make(types.PriceMap)
	priceInt := make(map[types.AssetId]*uint256.Int)

	one := fixedpoint.One()
	prices[usdtAsset] = fixedpoint.FormatDecimal12(one)
	priceInt[usdtAsset] = one

	if lrnaPrice := resolveLRNAPrice(state, usdtAsset, decimalsOf); lrnaPrice != nil {
		applyOmnipoolPrices(state, lrnaPrice, decimalsOf, prices, priceInt)
	}

	propagate(state, blockHeight, decimalsOf, prices, priceInt)

	return prices
}

// resolveLRNAPrice implements spec.md §4.4's LRNA pricing rule: prefer USDT
// directly in the Omnipool; otherwise fall back to the most liquid
// stablecoin-backed Stableswap LP token that is itself an Omnipool asset.
func resolveLRNAPrice(state poolstate.Result, usdtAsset types.AssetId, decimalsOf DecimalsLookup) *uint256.Int {
	if usdt, ok := state.OmnipoolAssets[usdtAsset]; ok && usdt.Priceable() {
		decimals, ok := decimalsOf(usdtAsset)
		if !ok {
			return nil
		}
		return lrnaPriceFromReserves(usdt.Reserve, usdt.HubReserve, decimals)
	}

	var bestLPAsset types.AssetId
	var bestHub *uint256.Int
	found := false
	for _, pool := range state.StableswapPools {
		if !containsAsset(pool.Assets, usdtAsset) {
			continue
		}
		lpAssetID := types.AssetId(pool.PoolID)
		lpState, ok := state.OmnipoolAssets[lpAssetID]
		if !ok || !lpState.Priceable() {
			continue
		}
		if !found || lpState.HubReserve.Cmp(bestHub) > 0 {
			bestLPAsset = lpAssetID
			bestHub = lpState.HubReserve
			found = true
		}
	}
	if !found {
		return nil
	}
	lpState := state.OmnipoolAssets[bestLPAsset]
	decimals, ok := decimalsOf(bestLPAsset)
	if !ok {
		return nil
	}
	// The LP token is treated as worth exactly 1 USDT.
	return lrnaPriceFromReserves(lpState.Reserve, lpState.HubReserve, decimals)
}

// lrnaPriceFromReserves computes (usdtReserve * 10^12) / (usdtHubReserve * 10^decimals)
// and returns it as a Decimal(12) integer (the ratio times a further 10^12,
// so a balanced pool yields 1.000000000000), in a single division so
// intermediate rounding matches the formula exactly, falling back to
// arbitrary-precision integers if the divisor itself overflows 256 bits
// (reserves with many decimals on a very deep pool).
func lrnaPriceFromReserves(reserve, hubReserve *uint256.Int, decimals types.Decimals) *uint256.Int {
	if reserve == nil || hubReserve == nil || hubReserve.IsZero() {
		return nil
	}
	divisor, overflow := new(uint256.Int).MulOverflow(hubReserve, fixedpoint.Pow10(uint8(decimals)))
	if !overflow {
		v, err := fixedpoint.MulDiv(reserve, fixedpoint.Pow10(2*fixedpoint.Scale), divisor)
		if err != nil {
			return nil
		}
		return v
	}

	divisorBig := new(big.Int).Mul(hubReserve.ToBig(), fixedpoint.Pow10(uint8(decimals)).ToBig())
	numerator := new(big.Int).Mul(reserve.ToBig(), fixedpoint.Pow10(2*fixedpoint.Scale).ToBig())
	numerator.Div(numerator, divisorBig)
	v, overflowed := uint256.FromBig(numerator)
	if overflowed {
		panic("price: lrna price computation overflows 256 bits")
	}
	return v
}

// applyOmnipoolPrices implements the Omnipool anchor-pricing formula for
// every Omnipool asset with positive reserve and known decimals.
func applyOmnipoolPrices(state poolstate.Result, lrnaPrice *uint256.Int, decimalsOf DecimalsLookup, prices types.PriceMap, priceInt map[types.AssetId]*uint256.Int) {
	for assetID, asset := range state.OmnipoolAssets {
		if _, already := prices[assetID]; already {
			continue
		}
		if !asset.Priceable() {
			continue
		}
		decimals, ok := decimalsOf(assetID)
		if !ok {
			continue
		}
		// Invariant 2: (hubReserve*10^decimals*lrnaPrice)/(reserve*10^12) as
		// one fraction, bit-exact — not two sequential divisions, which
		// would truncate the intermediate whenever hubReserve*10^decimals
		// doesn't divide evenly by 10^12.
		numerator, err := fixedpoint.MulDiv3x2(asset.HubReserve, fixedpoint.Pow10(uint8(decimals)), lrnaPrice, asset.Reserve, fixedpoint.ScaleFactor())
		if err != nil {
			continue
		}
		priceInt[assetID] = numerator
		prices[assetID] = fixedpoint.FormatDecimal12(numerator)
	}
}

// propagate runs the bounded XYK/Stableswap fixpoint described in
// spec.md §4.4.
func propagate(state poolstate.Result, blockHeight types.BlockHeight, decimalsOf DecimalsLookup, prices types.PriceMap, priceInt map[types.AssetId]*uint256.Int) {
	for i := 0; i < maxPropagationIterations; i++ {
		added := false

		for _, pool := range state.XYKPools {
			if propagateXYK(pool, decimalsOf, priceInt, prices) {
				added = true
			}
		}
		for _, pool := range state.StableswapPools {
			if propagateStableswap(pool, blockHeight, decimalsOf, priceInt, prices) {
				added = true
			}
		}

		if !added {
			return
		}
	}
}

func propagateXYK(pool types.XYKPool, decimalsOf DecimalsLookup, priceInt map[types.AssetId]*uint256.Int, prices types.PriceMap) bool {
	if !pool.Priceable() {
		return false
	}
	priceA, hasA := priceInt[pool.AssetA]
	priceB, hasB := priceInt[pool.AssetB]
	if hasA == hasB {
		return false
	}
	decimalsA, okA := decimalsOf(pool.AssetA)
	decimalsB, okB := decimalsOf(pool.AssetB)
	if !okA || !okB {
		return false
	}

	if hasA {
		derived, err := derivePairPrice(pool.ReserveA, pool.ReserveB, decimalsB, decimalsA, priceA)
		if err != nil {
			return false
		}
		priceInt[pool.AssetB] = derived
		prices[pool.AssetB] = fixedpoint.FormatDecimal12(derived)
		return true
	}

	derived, err := derivePairPrice(pool.ReserveB, pool.ReserveA, decimalsA, decimalsB, priceB)
	if err != nil {
		return false
	}
	priceInt[pool.AssetA] = derived
	prices[pool.AssetA] = fixedpoint.FormatDecimal12(derived)
	return true
}

// derivePairPrice computes price[unknown] = (reserveKnown * 10^decimalsUnknown * priceKnown) / (reserveUnknown * 10^decimalsKnown).
func derivePairPrice(reserveKnown, reserveUnknown *uint256.Int, decimalsUnknown, decimalsKnown types.Decimals, priceKnown *uint256.Int) (*uint256.Int, error) {
	numerator, err := fixedpoint.MulDiv(reserveKnown, fixedpoint.Pow10(uint8(decimalsUnknown)), fixedpoint.Pow10(uint8(decimalsKnown)))
	if err != nil {
		return nil, err
	}
	numerator, err = fixedpoint.MulDiv(numerator, priceKnown, reserveUnknown)
	if err != nil {
		return nil, err
	}
	return numerator, nil
}

func propagateStableswap(pool types.StableswapPool, blockHeight types.BlockHeight, decimalsOf DecimalsLookup, priceInt map[types.AssetId]*uint256.Int, prices types.PriceMap) bool {
	if len(pool.Assets) != len(pool.Reserves) || len(pool.Assets) < 2 {
		return false
	}
	refIdx := -1
	for i, assetID := range pool.Assets {
		if _, ok := priceInt[assetID]; ok {
			refIdx = i
			break
		}
	}
	if refIdx == -1 {
		return false
	}
	refAsset := pool.Assets[refIdx]
	refPrice := priceInt[refAsset]
	refDecimals, ok := decimalsOf(refAsset)
	if !ok {
		return false
	}

	added := false
	amp := poolstate.CurrentAmplification(pool.Ramp, blockHeight)
	for i, assetID := range pool.Assets {
		if i == refIdx {
			continue
		}
		if _, already := priceInt[assetID]; already {
			continue
		}
		decimals, ok := decimalsOf(assetID)
		if !ok {
			continue
		}
		spot, err := curve.SpotPrice(pool.Reserves, amp, i, refIdx, uint8(decimals), uint8(refDecimals))
		if err != nil {
			continue
		}
		derived, err := fixedpoint.MulDiv(spot, refPrice, fixedpoint.ScaleFactor())
		if err != nil {
			continue
		}
		priceInt[assetID] = derived
		prices[assetID] = fixedpoint.FormatDecimal12(derived)
		added = true
	}
	return added
}

func containsAsset(assets []types.AssetId, target types.AssetId) bool {
	for _, a := range assets {
		if a == target {
			return true
		}
	}
	return false
}
