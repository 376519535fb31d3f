// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package merge combines a block's PriceMap and aggregated swap volumes
// into the final set of PriceRows, per spec.md §4.6.
package merge

import (
	"sort"

	"github.com/galacticcouncil/hydration-indexer/internal/fixedpoint"
	"github.com/galacticcouncil/hydration-indexer/internal/swap"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// Rows produces the final, stably-ordered set of PriceRows for one block:
// one row per asset that has either a price or recorded volume. Assets
// with a price but no volume get zeroed volume fields; assets with volume
// but no price get price "0".
func Rows(blockHeight types.BlockHeight, prices types.PriceMap, volumes map[types.AssetId]swap.Contribution) []types.PriceRow {
	assetSet := make(map[types.AssetId]struct{}, len(prices)+len(volumes))
	for asset := range prices {
		assetSet[asset] = struct{}{}
	}
	for asset := range volumes {
		assetSet[asset] = struct{}{}
	}

	assets := make([]types.AssetId, 0, len(assetSet))
	for asset := range assetSet {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })

	rows := make([]types.PriceRow, 0, len(assets))
	for _, asset := range assets {
		price, hasPrice := prices[asset]
		if !hasPrice {
			price = fixedpoint.ZeroPrice
		}
		contribution, hasVolume := volumes[asset]
		row := types.PriceRow{
			AssetID:          asset,
			BlockHeight:      blockHeight,
			UsdtPrice:        price,
			NativeVolumeBuy:  "0",
			NativeVolumeSell: "0",
			UsdtVolumeBuy:    "0",
			UsdtVolumeSell:   "0",
		}
		if hasVolume {
			row.NativeVolumeBuy = contribution.NativeVolumeBuy.Dec()
			row.NativeVolumeSell = contribution.NativeVolumeSell.Dec()
			row.UsdtVolumeBuy = fixedpoint.FormatDecimal12(contribution.UsdtVolumeBuy)
			row.UsdtVolumeSell = fixedpoint.FormatDecimal12(contribution.UsdtVolumeSell)
		}
		rows = append(rows, row)
	}
	return rows
}
