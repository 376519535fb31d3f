// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package changedetect

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

func hexString(b [16]byte) string { return hex.EncodeToString(b[:]) }

func TestOmnipoolAccountIsDeterministicAndDistinctFromStableswap(t *testing.T) {
	a1 := OmnipoolAccount()
	a2 := OmnipoolAccount()
	require.Equal(t, a1, a2)

	s1 := StableswapPoolAccount(1)
	require.NotEqual(t, a1, s1)
}

func TestStableswapPoolAccountsDistinctAcrossPoolIds(t *testing.T) {
	a := StableswapPoolAccount(1)
	b := StableswapPoolAccount(2)
	require.NotEqual(t, a, b)
	require.Equal(t, a, StableswapPoolAccount(1), "memoized result must be stable")
}

func TestTwox128MatchesKnownSubstrateVectors(t *testing.T) {
	// Well-known twox128("System") and twox128("Balances") storage-prefix
	// vectors, reproducible against any Substrate-based chain's metadata.
	require.Equal(t, "26aa394eea5630e07c48ae0c9558cef7", hexString(twox128([]byte("System"))))
	require.Equal(t, "c2261276cc9d1f8598ea4b6a74b15c2f", hexString(twox128([]byte("Balances"))))
}

func TestIsPoolAffectingStorageKeyMatchesOmnipoolNotBalances(t *testing.T) {
	omniPrefix := twox128([]byte("Omnipool"))
	balancesPrefix := twox128([]byte("Balances"))

	require.True(t, IsPoolAffectingStorageKey(omniPrefix[:]))
	require.False(t, IsPoolAffectingStorageKey(balancesPrefix[:]))
}

func TestEvaluateCompositionChangedForcesFullProcessing(t *testing.T) {
	known := NewKnownSovereignAccounts(nil, nil)
	d := Evaluate(blocksource.Block{}, true, known, true)
	require.True(t, d.MustFullyProcess)
	require.Equal(t, ReasonCompositionChanged, d.Reason)
}

func TestEvaluateNoPriorSnapshotForcesFullProcessing(t *testing.T) {
	known := NewKnownSovereignAccounts(nil, nil)
	d := Evaluate(blocksource.Block{}, false, known, false)
	require.True(t, d.MustFullyProcess)
	require.Equal(t, ReasonNoPriorSnapshot, d.Reason)
}

func TestEvaluateCarryForwardWhenNothingChanged(t *testing.T) {
	known := NewKnownSovereignAccounts(nil, nil)
	d := Evaluate(blocksource.Block{}, false, known, true)
	require.False(t, d.MustFullyProcess)
	require.Equal(t, ReasonCarryForward, d.Reason)
}

func TestEvaluateSovereignTransferForcesFullProcessing(t *testing.T) {
	xyk := types.AccountId{1, 2, 3}
	known := NewKnownSovereignAccounts([]types.AccountId{xyk}, nil)
	block := blocksource.Block{
		Events: []blocksource.Event{
			{Pallet: "Tokens", Name: "Transfer", Fields: map[string]any{
				"from": types.AccountId{9, 9, 9},
				"to":   xyk,
			}},
		},
	}
	d := Evaluate(block, false, known, true)
	require.True(t, d.MustFullyProcess)
	require.Equal(t, ReasonSovereignTransfer, d.Reason)
}

func TestEvaluateSudoStorageWriteTriggersCacheInvalidation(t *testing.T) {
	known := NewKnownSovereignAccounts(nil, nil)
	omniPrefix := twox128([]byte("Omnipool"))
	block := blocksource.Block{
		Calls: []blocksource.Call{
			{Pallet: "System", Name: "set_storage", Fields: map[string]any{
				"items": [][2][]byte{{append(omniPrefix[:], []byte{1, 2, 3, 4}...), []byte("value")}},
			}},
		},
	}
	d := Evaluate(block, false, known, true)
	require.True(t, d.MustFullyProcess)
	require.True(t, d.InvalidateCache)
	require.Equal(t, ReasonSudoStorageWrite, d.Reason)
}

func TestEvaluateBalancesSudoWriteDoesNotTriggerInvalidation(t *testing.T) {
	known := NewKnownSovereignAccounts(nil, nil)
	balancesPrefix := twox128([]byte("Balances"))
	block := blocksource.Block{
		Calls: []blocksource.Call{
			{Pallet: "System", Name: "set_storage", Fields: map[string]any{
				"items": [][2][]byte{{append(balancesPrefix[:], []byte{1, 2, 3, 4}...), []byte("value")}},
			}},
		},
	}
	d := Evaluate(block, false, known, true)
	require.False(t, d.MustFullyProcess)
	require.Equal(t, ReasonCarryForward, d.Reason)
}

func TestKnownSovereignAccountsAddRemove(t *testing.T) {
	k := NewKnownSovereignAccounts(nil, nil)
	acct := types.AccountId{4, 5, 6}
	require.False(t, k.Contains(acct))
	k.Add(acct)
	require.True(t, k.Contains(acct))
	k.Remove(acct)
	require.False(t, k.Contains(acct))
}
