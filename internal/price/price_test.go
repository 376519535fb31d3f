// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package price

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/galacticcouncil/hydration-indexer/internal/fixedpoint"
	"github.com/galacticcouncil/hydration-indexer/internal/poolstate"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

const (
	usdt types.AssetId = 10
	hdx  types.AssetId = 0
	dot  types.AssetId = 5
)

func fixedDecimals(m map[types.AssetId]types.Decimals) DecimalsLookup {
	return func(a types.AssetId) (types.Decimals, bool) {
		d, ok := m[a]
		return d, ok
	}
}

func TestResolveAnchorsUSDTAtOne(t *testing.T) {
	state := poolstate.Result{}
	decimals := fixedDecimals(map[types.AssetId]types.Decimals{usdt: 6})
	prices := Resolve(state, usdt, 1, decimals)
	require.Equal(t, "1.000000000000", prices[usdt])
}

func TestResolveOmnipoolBalancedUSDTPoolPricesHDX(t *testing.T) {
	// Balanced pool scenario from spec.md §8: USDT and HDX both in the
	// Omnipool with equal hub reserves, USDT has 6 decimals, HDX has 12.
	state := poolstate.Result{
		OmnipoolAssets: map[types.AssetId]types.OmnipoolAssetState{
			usdt: {AssetID: usdt, HubReserve: scaled(1_000_000, 12), Reserve: scaled(1_000_000, 6)},
			hdx:  {AssetID: hdx, HubReserve: scaled(1_000_000, 12), Reserve: scaled(10_000_000, 12)},
		},
	}
	decimals := fixedDecimals(map[types.AssetId]types.Decimals{usdt: 6, hdx: 12})
	prices := Resolve(state, usdt, 1, decimals)

	require.Equal(t, "1.000000000000", prices[usdt])
	require.Contains(t, prices, hdx)
	// HDX has 10x the reserve of USDT at equal hub reserve, so it should
	// price at roughly 1/10th of a USDT.
	hdxPrice, err := fixedpoint.ParseDecimal12(prices[hdx])
	require.NoError(t, err)
	want, err := fixedpoint.ParseDecimal12("0.100000000000")
	require.NoError(t, err)
	require.Equal(t, want, hdxPrice)
}

func TestResolveXYKPropagatesPriceAcrossCrossDecimalPool(t *testing.T) {
	state := poolstate.Result{
		OmnipoolAssets: map[types.AssetId]types.OmnipoolAssetState{
			usdt: {AssetID: usdt, HubReserve: scaled(1_000_000, 12), Reserve: scaled(1_000_000, 6)},
		},
		XYKPools: map[types.AccountId]types.XYKPool{
			{1}: {PoolAccount: types.AccountId{1}, AssetA: usdt, AssetB: dot,
				ReserveA: scaled(500, 6), ReserveB: scaled(100, 10)},
		},
	}
	decimals := fixedDecimals(map[types.AssetId]types.Decimals{usdt: 6, dot: 10})
	prices := Resolve(state, usdt, 1, decimals)

	require.Equal(t, "1.000000000000", prices[usdt])
	require.Contains(t, prices, dot)
	dotPrice, err := fixedpoint.ParseDecimal12(prices[dot])
	require.NoError(t, err)
	want, err := fixedpoint.ParseDecimal12("5.000000000000")
	require.NoError(t, err)
	require.Equal(t, want, dotPrice)
}

func TestResolveSkipsOmnipoolWhenNoUSDTAnchorAvailable(t *testing.T) {
	state := poolstate.Result{
		XYKPools: map[types.AccountId]types.XYKPool{
			{1}: {PoolAccount: types.AccountId{1}, AssetA: usdt, AssetB: dot,
				ReserveA: scaled(500, 6), ReserveB: scaled(100, 10)},
		},
	}
	decimals := fixedDecimals(map[types.AssetId]types.Decimals{usdt: 6, dot: 10})
	prices := Resolve(state, usdt, 1, decimals)

	require.Equal(t, "1.000000000000", prices[usdt])
	require.Contains(t, prices, dot)
}

func scaled(v uint64, decimals uint8) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), fixedpoint.Pow10(decimals))
}
