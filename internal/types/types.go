// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types holds the core value types shared by every pipeline stage:
// chain identifiers and the five row shapes written to the store.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// BigAmount is the exact-integer type used for every reserve, hub-reserve,
// native amount and fixed-point price/volume value in the data model. It is
// an alias for *uint256.Int's underlying type so callers can pass a
// *types.BigAmount anywhere a *uint256.Int is expected and vice versa.
type BigAmount = uint256.Int

// AssetId identifies a tradeable asset on chain.
type AssetId uint32

// BlockHeight identifies a block by its height.
type BlockHeight uint32

// Decimals is the number of fractional digits a native asset amount uses.
type Decimals uint8

// AccountId is an opaque 32-byte chain account identifier.
type AccountId [32]byte

// Hex renders the account as a 0x-prefixed hex string for external interfaces.
func (a AccountId) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a AccountId) String() string { return a.Hex() }

// PriceRow is the primary output record, keyed by (AssetID, BlockHeight).
type PriceRow struct {
	AssetID         AssetId     `db:"asset_id"`
	BlockHeight     BlockHeight `db:"block_height"`
	UsdtPrice       string      `db:"usdt_price"`
	NativeVolumeBuy string      `db:"native_volume_buy"`
	NativeVolumeSell string     `db:"native_volume_sell"`
	UsdtVolumeBuy   string      `db:"usdt_volume_buy"`
	UsdtVolumeSell  string      `db:"usdt_volume_sell"`
}

// BlockRow is emitted once per processed block.
type BlockRow struct {
	BlockHeight    BlockHeight `db:"block_height"`
	BlockTimestamp int64       `db:"block_timestamp"`
	SpecVersion    uint32      `db:"spec_version"`
}

// RuntimeUpgradeRow is emitted when a block's spec version differs from the
// previous block's.
type RuntimeUpgradeRow struct {
	BlockHeight     BlockHeight `db:"block_height"`
	SpecVersion     uint32      `db:"spec_version"`
	PrevSpecVersion uint32      `db:"prev_spec_version"`
}

// AssetRow is emitted on first discovery of an asset or when its metadata
// changes.
type AssetRow struct {
	AssetID  AssetId  `db:"asset_id"`
	Symbol   string   `db:"symbol"`
	Name     string   `db:"name"`
	Decimals Decimals `db:"decimals"`
}

// CheckpointID names one of the two checkpoint identities the store tracks.
type CheckpointID string

const (
	// CheckpointMain is the main pipeline's checkpoint.
	CheckpointMain CheckpointID = "main"
	// CheckpointReplay is the optional volume-only replay pass's checkpoint.
	CheckpointReplay CheckpointID = "replay"
)

// Checkpoint records the highest finalized block fully flushed to the store.
type Checkpoint struct {
	ID        CheckpointID `db:"id"`
	LastBlock BlockHeight  `db:"last_block"`
	UpdatedAt int64        `db:"updated_at"`
}

// AssetMeta is the registry's view of one asset's metadata.
type AssetMeta struct {
	Symbol   string
	Name     string
	Decimals Decimals
}

// Equal reports whether two AssetMeta values carry identical symbol, name
// and decimals.
func (m AssetMeta) Equal(o AssetMeta) bool {
	return m.Symbol == o.Symbol && m.Name == o.Name && m.Decimals == o.Decimals
}

func (a AssetId) String() string { return fmt.Sprintf("%d", uint32(a)) }

// PriceMap is the canonical per-block USDT price snapshot: AssetID -> a
// Decimal(12) price string. One PriceMap is produced per block.
type PriceMap map[AssetId]string

// OmnipoolAssetState is one asset's state inside the Omnipool.
type OmnipoolAssetState struct {
	AssetID         AssetId
	HubReserve      *BigAmount // LRNA reserves, 12-decimal native
	Reserve         *BigAmount // token reserve from the sovereign account
	Shares          *BigAmount
	ProtocolShares  *BigAmount
	Cap             *BigAmount
	Tradable        uint32 // bitflags
}

// Priceable reports whether the asset state satisfies spec.md §3's pricing
// invariant: hubReserve > 0 and reserve > 0.
func (s OmnipoolAssetState) Priceable() bool {
	return s.HubReserve != nil && s.Reserve != nil && !s.HubReserve.IsZero() && !s.Reserve.IsZero()
}

// XYKPool is a constant-product two-asset pool.
type XYKPool struct {
	PoolAccount AccountId
	AssetA      AssetId
	AssetB      AssetId
	ReserveA    *BigAmount
	ReserveB    *BigAmount
}

// Priceable reports whether both reserves are positive.
func (p XYKPool) Priceable() bool {
	return p.ReserveA != nil && p.ReserveB != nil && !p.ReserveA.IsZero() && !p.ReserveB.IsZero()
}

// AmplificationRamp describes the linear ramp of a Stableswap pool's
// amplification coefficient over block height.
type AmplificationRamp struct {
	RampStart  uint64
	RampEnd    uint64
	BlockStart BlockHeight
	BlockEnd   BlockHeight
}

// StableswapPool is a Curve-style multi-asset invariant pool.
type StableswapPool struct {
	PoolID   uint32
	Assets   []AssetId
	Reserves []*BigAmount
	Ramp     AmplificationRamp
	Fee      uint32
}

