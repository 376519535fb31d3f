// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package changedetect decides, for each block, whether the cached pool
// composition and reserve carry-forward from the previous block is safe or
// whether a block must be fully re-read. It also derives the deterministic
// sovereign accounts pool reserves are held in.
package changedetect

import (
	"encoding/binary"
	"sync"

	"github.com/OneOfOne/xxhash"

	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// poolAffectingPallets is the fixed set of pallets whose raw storage writes
// can change pool composition or reserves in a way events alone would not
// surface, e.g. a sudo-issued System.set_storage call during a runtime
// migration.
var poolAffectingPallets = []string{"Omnipool", "Tokens", "XYK", "Stableswap"}

// twox128 hashes data the same way the runtime hashes storage map prefixes:
// xxHash64 with seed 0 and xxHash64 with seed 1, each digest written
// little-endian and concatenated for 16 bytes total. This is Substrate's
// "TwoX128" algorithm used for non-cryptographic storage key prefixes.
// github.com/cespare/xxhash/v2 only exposes the unseeded Sum64, so this
// package uses OneOfOne/xxhash's Checksum64S instead, which takes the seed
// parameter TwoX128 actually needs.
func twox128(data []byte) [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint64(out[0:8], xxhash.Checksum64S(data, 0))
	binary.LittleEndian.PutUint64(out[8:16], xxhash.Checksum64S(data, 1))
	return out
}

var pelletPrefixesOnce sync.Once
var pelletPrefixes map[[16]byte]string

func palletPrefixes() map[[16]byte]string {
	pelletPrefixesOnce.Do(func() {
		pelletPrefixes = make(map[[16]byte]string, len(poolAffectingPallets))
		for _, name := range poolAffectingPallets {
			pelletPrefixes[twox128([]byte(name))] = name
		}
	})
	return pelletPrefixes
}

// IsPoolAffectingStorageKey reports whether a raw storage key's first 16
// bytes match the twox128 hash of one of the pool-affecting pallet names.
func IsPoolAffectingStorageKey(key []byte) bool {
	if len(key) < 16 {
		return false
	}
	var prefix [16]byte
	copy(prefix[:], key[:16])
	_, ok := palletPrefixes()[prefix]
	return ok
}

var (
	omnipoolAccountOnce sync.Once
	omnipoolAccount     types.AccountId

	stableAccountMu sync.Mutex
	stableAccounts  = map[uint32]types.AccountId{}
)

// OmnipoolAccount returns the Omnipool's sovereign account:
// "modl" || "omnipool" || zero-padding to 32 bytes. Computed once.
func OmnipoolAccount() types.AccountId {
	omnipoolAccountOnce.Do(func() {
		omnipoolAccount = modlAccount("omnipool", nil)
	})
	return omnipoolAccount
}

// StableswapPoolAccount returns the deterministic sovereign sub-account for
// a Stableswap pool: the first 12 bytes of "modl" || "stblpool" || zero,
// followed by the pool id as a little-endian u32, followed by 16 zero
// bytes. Results are memoized per pool id.
func StableswapPoolAccount(poolID uint32) types.AccountId {
	stableAccountMu.Lock()
	defer stableAccountMu.Unlock()
	if acct, ok := stableAccounts[poolID]; ok {
		return acct
	}
	var idBytes [4]byte
	binary.LittleEndian.PutUint32(idBytes[:], poolID)
	acct := modlAccount("stblpool", idBytes[:])
	stableAccounts[poolID] = acct
	return acct
}

// modlAccount builds a 32-byte PalletId-style derived account: the 4-byte
// "modl" prefix, the 8-byte (zero-padded) pallet id, an optional suffix
// (e.g. an encoded sub-id), and zero padding out to 32 bytes. No hashing is
// involved, matching spec.md's "No hashing" derivation rule.
func modlAccount(palletID string, suffix []byte) types.AccountId {
	var acct types.AccountId
	copy(acct[0:4], []byte("modl"))
	idField := make([]byte, 8)
	copy(idField, []byte(palletID))
	copy(acct[4:12], idField)
	copy(acct[12:], suffix)
	return acct
}

// KnownSovereignAccounts is the set of accounts whose Tokens.Transfer
// involvement forces a full re-read of the block, per spec.md's decision
// rule item (c).
type KnownSovereignAccounts struct {
	set map[types.AccountId]struct{}
}

// NewKnownSovereignAccounts builds the initial set from the Omnipool
// account plus every currently cached XYK and Stableswap pool account.
func NewKnownSovereignAccounts(xykAccounts []types.AccountId, stableswapPoolIDs []uint32) *KnownSovereignAccounts {
	k := &KnownSovereignAccounts{set: make(map[types.AccountId]struct{})}
	k.set[OmnipoolAccount()] = struct{}{}
	for _, a := range xykAccounts {
		k.set[a] = struct{}{}
	}
	for _, id := range stableswapPoolIDs {
		k.set[StableswapPoolAccount(id)] = struct{}{}
	}
	return k
}

// Contains reports whether account is a known pool sovereign account.
func (k *KnownSovereignAccounts) Contains(account types.AccountId) bool {
	_, ok := k.set[account]
	return ok
}

// Add records a newly discovered pool sovereign account, called by the
// incremental composition updater when a new XYK or Stableswap pool is
// created.
func (k *KnownSovereignAccounts) Add(account types.AccountId) {
	k.set[account] = struct{}{}
}

// Remove drops a pool sovereign account, called when a pool is destroyed.
func (k *KnownSovereignAccounts) Remove(account types.AccountId) {
	delete(k.set, account)
}

// Decision is the outcome of evaluating a block against the carry-forward
// rule.
type Decision struct {
	// MustFullyProcess is true if the block cannot be safely carried
	// forward and every cached pool must be re-read.
	MustFullyProcess bool
	// InvalidateCache is true if the reason for full processing is severe
	// enough (a raw storage write via sudo) that the pool composition
	// cache itself must be invalidated and re-bootstrapped, not merely
	// re-read.
	InvalidateCache bool
	// Reason is a short, stable machine-readable tag for observability.
	Reason string
}

const (
	ReasonCompositionChanged = "composition_changed"
	ReasonSudoStorageWrite   = "sudo_storage_write"
	ReasonSovereignTransfer  = "sovereign_transfer"
	ReasonNoPriorSnapshot    = "no_prior_snapshot"
	ReasonCarryForward       = "carry_forward"
)

// Evaluate applies spec.md's carry-forward decision rule to one block.
func Evaluate(block blocksource.Block, compositionChanged bool, known *KnownSovereignAccounts, hasPriorSnapshot bool) Decision {
	if compositionChanged {
		return Decision{MustFullyProcess: true, Reason: ReasonCompositionChanged}
	}
	for _, call := range block.Calls {
		if call.Pallet != "System" || call.Name != "set_storage" {
			continue
		}
		if setStorageTouchesPoolPallet(call) {
			return Decision{MustFullyProcess: true, InvalidateCache: true, Reason: ReasonSudoStorageWrite}
		}
	}
	for _, ev := range block.Events {
		if ev.Pallet != "Tokens" || ev.Name != "Transfer" {
			continue
		}
		if from, ok := accountField(ev.Fields, "from"); ok && known.Contains(from) {
			return Decision{MustFullyProcess: true, Reason: ReasonSovereignTransfer}
		}
		if to, ok := accountField(ev.Fields, "to"); ok && known.Contains(to) {
			return Decision{MustFullyProcess: true, Reason: ReasonSovereignTransfer}
		}
	}
	if !hasPriorSnapshot {
		return Decision{MustFullyProcess: true, Reason: ReasonNoPriorSnapshot}
	}
	return Decision{MustFullyProcess: false, Reason: ReasonCarryForward}
}

// setStorageTouchesPoolPallet inspects a System.set_storage call's "items"
// field (a slice of (key, value) byte-pairs) for any key matching a
// pool-affecting pallet's twox128 prefix.
func setStorageTouchesPoolPallet(call blocksource.Call) bool {
	items, ok := call.Fields["items"]
	if !ok {
		return false
	}
	pairs, ok := items.([][2][]byte)
	if !ok {
		return false
	}
	for _, kv := range pairs {
		if IsPoolAffectingStorageKey(kv[0]) {
			return true
		}
	}
	return false
}

// accountField extracts a types.AccountId from an event's field map,
// tolerating both the native [32]byte representation and a raw byte slice
// as the external decoder may produce either.
func accountField(fields map[string]any, key string) (types.AccountId, bool) {
	v, ok := fields[key]
	if !ok {
		return types.AccountId{}, false
	}
	switch t := v.(type) {
	case types.AccountId:
		return t, true
	case [32]byte:
		return types.AccountId(t), true
	case []byte:
		if len(t) != 32 {
			return types.AccountId{}, false
		}
		var acct types.AccountId
		copy(acct[:], t)
		return acct, true
	default:
		return types.AccountId{}, false
	}
}
