// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package swap decodes swap events into bidirectional volume contributions
// and aggregates them per block, per spec.md §4.5. Six event shapes across
// three pallets are supported, each with multiple schema versions keyed by
// runtime spec version; decoding tries newest-to-oldest and uses the first
// version whose decoder succeeds.
package swap

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/fixedpoint"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// Decoded is the pallet-agnostic normalized form of one swap event.
type Decoded struct {
	AssetIn   types.AssetId
	AssetOut  types.AssetId
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

// decodeFunc attempts to decode one event's Fields into a Decoded swap. It
// returns ok=false if the event's shape does not match this version.
type decodeFunc func(fields map[string]any) (Decoded, bool)

// versionedDecoder pairs a decoder with the minimum spec version it applies
// to; entries in a pallet's table are tried newest-first.
type versionedDecoder struct {
	minSpecVersion uint32
	decode         decodeFunc
}

// eventKey identifies one (pallet, event name) pair.
type eventKey struct {
	pallet string
	name   string
}

// decoderTable is newest-first per eventKey, matching spec.md §8's catalog:
// Omnipool at 115/170/201, XYK and Stableswap at 183.
var decoderTable = map[eventKey][]versionedDecoder{
	{"Omnipool", "SellExecuted"}: {
		{201, decodeDirect},
		{170, decodeDirect},
		{115, decodeDirect},
	},
	{"Omnipool", "BuyExecuted"}: {
		{201, decodeDirect},
		{170, decodeDirect},
		{115, decodeDirect},
	},
	{"XYK", "SellExecuted"}: {
		{183, decodeXYKSell},
	},
	{"XYK", "BuyExecuted"}: {
		{183, decodeXYKBuy},
	},
	{"Stableswap", "SellExecuted"}: {
		{183, decodeDirect},
	},
	{"Stableswap", "BuyExecuted"}: {
		{183, decodeDirect},
	},
}

// decodeDirect handles the common (assetIn, assetOut, amountIn, amountOut)
// shape shared by Omnipool and Stableswap swap events across their schema
// versions.
func decodeDirect(fields map[string]any) (Decoded, bool) {
	assetIn, ok1 := assetField(fields, "assetIn")
	assetOut, ok2 := assetField(fields, "assetOut")
	amountIn, ok3 := amountField(fields, "amountIn")
	amountOut, ok4 := amountField(fields, "amountOut")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Decoded{}, false
	}
	return Decoded{AssetIn: assetIn, AssetOut: assetOut, AmountIn: amountIn, AmountOut: amountOut}, true
}

// decodeXYKSell handles XYK.SellExecuted's (assetIn, assetOut, amount,
// salePrice) shape: amount is what's sold (amountIn), salePrice is what's
// received (amountOut).
func decodeXYKSell(fields map[string]any) (Decoded, bool) {
	assetIn, ok1 := assetField(fields, "assetIn")
	assetOut, ok2 := assetField(fields, "assetOut")
	amount, ok3 := amountField(fields, "amount")
	salePrice, ok4 := amountField(fields, "salePrice")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Decoded{}, false
	}
	return Decoded{AssetIn: assetIn, AssetOut: assetOut, AmountIn: amount, AmountOut: salePrice}, true
}

// decodeXYKBuy handles XYK.BuyExecuted's (assetIn, assetOut, buyPrice,
// amount) shape: buyPrice is what's paid in (amountIn), amount is what's
// bought (amountOut).
func decodeXYKBuy(fields map[string]any) (Decoded, bool) {
	assetIn, ok1 := assetField(fields, "assetIn")
	assetOut, ok2 := assetField(fields, "assetOut")
	buyPrice, ok3 := amountField(fields, "buyPrice")
	amount, ok4 := amountField(fields, "amount")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Decoded{}, false
	}
	return Decoded{AssetIn: assetIn, AssetOut: assetOut, AmountIn: buyPrice, AmountOut: amount}, true
}

// Decode attempts to decode one swap event, trying every schema version at
// or below the event's runtime spec version, newest first. ok is false if
// the event is not a recognized swap event, or no decoder matched.
func Decode(ev blocksource.Event, specVersion uint32) (Decoded, bool) {
	decoders, ok := decoderTable[eventKey{ev.Pallet, ev.Name}]
	if !ok {
		return Decoded{}, false
	}
	for _, vd := range decoders {
		if specVersion < vd.minSpecVersion {
			continue
		}
		if decoded, ok := vd.decode(ev.Fields); ok {
			return decoded, true
		}
	}
	return Decoded{}, false
}

func assetField(fields map[string]any, key string) (types.AssetId, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case types.AssetId:
		return t, true
	case uint32:
		return types.AssetId(t), true
	default:
		return 0, false
	}
}

func amountField(fields map[string]any, key string) (*uint256.Int, bool) {
	v, ok := fields[key]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case *uint256.Int:
		return t, true
	case uint256.Int:
		return &t, true
	default:
		return nil, false
	}
}

// Contribution is one asset's aggregated volume for the block, in native
// units and USDT-denominated units.
type Contribution struct {
	NativeVolumeBuy  *uint256.Int
	NativeVolumeSell *uint256.Int
	UsdtVolumeBuy    *uint256.Int
	UsdtVolumeSell   *uint256.Int
}

func zeroContribution() Contribution {
	return Contribution{
		NativeVolumeBuy:  uint256.NewInt(0),
		NativeVolumeSell: uint256.NewInt(0),
		UsdtVolumeBuy:    uint256.NewInt(0),
		UsdtVolumeSell:   uint256.NewInt(0),
	}
}

// Aggregator accumulates per-asset volume contributions across all swaps in
// a block.
type Aggregator struct {
	byAsset map[types.AssetId]Contribution
}

// NewAggregator builds an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{byAsset: make(map[types.AssetId]Contribution)}
}

// PriceLookup resolves an asset's current 12-decimal price as an integer,
// or false if no price is known for it this block.
type PriceLookup func(asset types.AssetId) (*uint256.Int, bool)

// DecimalsLookup resolves an asset's native decimals.
type DecimalsLookup func(asset types.AssetId) (types.Decimals, bool)

// Add folds one decoded swap into the aggregator as two bidirectional
// contributions, per spec.md §4.5.
func (a *Aggregator) Add(swap Decoded, priceOf PriceLookup, decimalsOf DecimalsLookup) {
	a.addSell(swap.AssetIn, swap.AmountIn, priceOf, decimalsOf)
	a.addBuy(swap.AssetOut, swap.AmountOut, priceOf, decimalsOf)
}

func (a *Aggregator) addSell(asset types.AssetId, amount *uint256.Int, priceOf PriceLookup, decimalsOf DecimalsLookup) {
	c := a.byAsset[asset]
	if c.NativeVolumeSell == nil {
		c = zeroContribution()
	}
	c.NativeVolumeSell = new(uint256.Int).Add(c.NativeVolumeSell, amount)
	c.UsdtVolumeSell = new(uint256.Int).Add(c.UsdtVolumeSell, volumeUsdt(amount, asset, priceOf, decimalsOf))
	a.byAsset[asset] = c
}

func (a *Aggregator) addBuy(asset types.AssetId, amount *uint256.Int, priceOf PriceLookup, decimalsOf DecimalsLookup) {
	c := a.byAsset[asset]
	if c.NativeVolumeBuy == nil {
		c = zeroContribution()
	}
	c.NativeVolumeBuy = new(uint256.Int).Add(c.NativeVolumeBuy, amount)
	c.UsdtVolumeBuy = new(uint256.Int).Add(c.UsdtVolumeBuy, volumeUsdt(amount, asset, priceOf, decimalsOf))
	a.byAsset[asset] = c
}

// volumeUsdt converts a native amount into its Decimal(12) USDT value:
// (amount * priceInt) / 10^decimals. Returns zero if no price is known.
func volumeUsdt(amount *uint256.Int, asset types.AssetId, priceOf PriceLookup, decimalsOf DecimalsLookup) *uint256.Int {
	priceInt, ok := priceOf(asset)
	if !ok || priceInt == nil || priceInt.IsZero() {
		return uint256.NewInt(0)
	}
	decimals, ok := decimalsOf(asset)
	if !ok {
		return uint256.NewInt(0)
	}
	v, err := fixedpoint.MulDiv(amount, priceInt, fixedpoint.Pow10(uint8(decimals)))
	if err != nil {
		return uint256.NewInt(0)
	}
	return v
}

// Volumes returns the aggregated per-asset contributions collected so far.
func (a *Aggregator) Volumes() map[types.AssetId]Contribution {
	return a.byAsset
}

// String renders a Decoded swap for logging/debugging.
func (d Decoded) String() string {
	return fmt.Sprintf("swap(in=%d amountIn=%s out=%d amountOut=%s)", d.AssetIn, d.AmountIn, d.AssetOut, d.AmountOut)
}
