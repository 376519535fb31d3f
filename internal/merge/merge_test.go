// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merge

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/galacticcouncil/hydration-indexer/internal/swap"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

func TestRowsEmitsPricedAssetWithZeroVolumes(t *testing.T) {
	prices := types.PriceMap{1: "1.000000000000"}
	rows := Rows(100, prices, nil)
	require.Len(t, rows, 1)
	require.Equal(t, "1.000000000000", rows[0].UsdtPrice)
	require.Equal(t, "0", rows[0].NativeVolumeBuy)
}

func TestRowsEmitsVolumeOnlyAssetWithZeroPrice(t *testing.T) {
	volumes := map[types.AssetId]swap.Contribution{
		2: {
			NativeVolumeBuy:  uint256.NewInt(10),
			NativeVolumeSell: uint256.NewInt(0),
			UsdtVolumeBuy:    uint256.NewInt(0),
			UsdtVolumeSell:   uint256.NewInt(0),
		},
	}
	rows := Rows(100, types.PriceMap{}, volumes)
	require.Len(t, rows, 1)
	require.Equal(t, "0", rows[0].UsdtPrice)
	require.Equal(t, "10", rows[0].NativeVolumeBuy)
}

func TestRowsAreStablyOrderedByAssetId(t *testing.T) {
	prices := types.PriceMap{5: "1.0", 1: "2.0", 3: "3.0"}
	rows := Rows(1, prices, nil)
	require.Len(t, rows, 3)
	require.Equal(t, types.AssetId(1), rows[0].AssetID)
	require.Equal(t, types.AssetId(3), rows[1].AssetID)
	require.Equal(t, types.AssetId(5), rows[2].AssetID)
}

func TestRowsMergesPricedAndVolumeForSameAsset(t *testing.T) {
	prices := types.PriceMap{7: "4.000000000000"}
	volumes := map[types.AssetId]swap.Contribution{
		7: {
			NativeVolumeBuy:  uint256.NewInt(1),
			NativeVolumeSell: uint256.NewInt(2),
			UsdtVolumeBuy:    uint256.NewInt(4_000_000_000_000),
			UsdtVolumeSell:   uint256.NewInt(8_000_000_000_000),
		},
	}
	rows := Rows(1, prices, volumes)
	require.Len(t, rows, 1)
	require.Equal(t, "4.000000000000", rows[0].UsdtPrice)
	require.Equal(t, "4.000000000000", rows[0].UsdtVolumeBuy)
	require.Equal(t, "8.000000000000", rows[0].UsdtVolumeSell)
}
