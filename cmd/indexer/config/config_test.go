// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestBuildConfigDefaults(t *testing.T) {
	fs := BuildFlagSet()
	v, err := BuildViper(fs, nil)
	require.NoError(t, err)

	cfg, err := BuildConfig(v)
	require.NoError(t, err)

	require.Equal(t, uint32(0), cfg.FromBlock)
	require.False(t, cfg.DetectGaps)
	require.Equal(t, "indexer", cfg.MetricsNamespace)
	require.Equal(t, 1, cfg.FlushEveryBlocks)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestBuildConfigFlagsOverrideDefaults(t *testing.T) {
	fs := BuildFlagSet()
	v, err := BuildViper(fs, []string{
		"--from-block=100",
		"--to-block=200",
		"--detect-gaps",
		"--usdt-asset=7",
		"--log-level=debug",
	})
	require.NoError(t, err)

	cfg, err := BuildConfig(v)
	require.NoError(t, err)

	require.Equal(t, uint32(100), cfg.FromBlock)
	require.Equal(t, uint32(200), cfg.ToBlock)
	require.True(t, cfg.DetectGaps)
	require.Equal(t, uint32(7), cfg.USDTAsset)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestBuildViperEnvOverridesUnsetFlag(t *testing.T) {
	t.Setenv("HYDRATION_INDEXER_RPC_ENDPOINT", "wss://example.invalid")
	t.Setenv("HYDRATION_INDEXER_FLUSH_EVERY_BLOCKS", "25")

	fs := BuildFlagSet()
	v, err := BuildViper(fs, nil)
	require.NoError(t, err)

	cfg, err := BuildConfig(v)
	require.NoError(t, err)

	require.Equal(t, "wss://example.invalid", cfg.RPCEndpoint)
	require.Equal(t, 25, cfg.FlushEveryBlocks)
}

func TestBuildViperFlagTakesPrecedenceOverEnv(t *testing.T) {
	t.Setenv("HYDRATION_INDEXER_RPC_ENDPOINT", "wss://example.invalid")

	fs := BuildFlagSet()
	v, err := BuildViper(fs, []string{"--rpc-endpoint=wss://override.invalid"})
	require.NoError(t, err)

	cfg, err := BuildConfig(v)
	require.NoError(t, err)

	require.Equal(t, "wss://override.invalid", cfg.RPCEndpoint)
}

func TestBuildViperHelpFlagReturnsErrHelp(t *testing.T) {
	fs := BuildFlagSet()
	_, err := BuildViper(fs, []string{"--help"})
	require.True(t, errors.Is(err, pflag.ErrHelp))
}
