// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config builds the indexer binary's Config from flags and
// environment variables, following cmd/simulator's BuildFlagSet /
// BuildViper / BuildConfig split: a pflag.FlagSet defines the surface,
// viper binds flags and environment together, and BuildConfig resolves
// the typed Config cast (via spf13/cast) out of the bound viper instance.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names, also used as viper keys.
const (
	FromBlockKey        = "from-block"
	ToBlockKey          = "to-block"
	RollbackToBlockKey  = "rollback-to-block"
	DetectGapsKey       = "detect-gaps"
	RPCEndpointKey      = "rpc-endpoint"
	StoreEndpointKey    = "store-endpoint"
	StorePasswordKey    = "store-password"
	MetricsAddrKey      = "metrics-addr"
	MetricsNamespaceKey = "metrics-namespace"
	FlushEveryBlocksKey = "flush-every-blocks"
	USDTAssetKey        = "usdt-asset"
	LogLevelKey         = "log-level"
	LogFileKey          = "log-file"
)

// EnvPrefix namespaces every environment variable this binary reads, per
// spec.md §6's "RPC endpoint URL, store HTTP endpoint, store password"
// environment-only configuration surface.
const EnvPrefix = "HYDRATION_INDEXER"

// BuildFlagSet declares every CLI flag. This flag set parses the arguments
// itself (ContinueOnError, so --help/-h surfaces as pflag.ErrHelp to
// cmd/indexer/main.go), and viper binds the same names to environment
// variables.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("indexer", pflag.ContinueOnError)
	fs.Uint32(FromBlockKey, 0, "start at this height, ignoring the checkpoint")
	fs.Uint32(ToBlockKey, 0, "stop after this height (0 = follow chain head)")
	fs.Uint32(RollbackToBlockKey, 0, "delete rows at height >= N, reset checkpoint to N-1, and exit")
	fs.Bool(DetectGapsKey, false, "scan the prices table for missing heights and exit")
	fs.String(RPCEndpointKey, "", "archive gateway / live-follow RPC endpoint URL")
	fs.String(StoreEndpointKey, "", "analytical store HTTP endpoint")
	fs.String(StorePasswordKey, "", "analytical store password")
	fs.String(MetricsAddrKey, "", "address to serve Prometheus metrics on, empty disables")
	fs.String(MetricsNamespaceKey, "indexer", "namespace prefix for exported metrics")
	fs.Int(FlushEveryBlocksKey, 1, "flush buffered rows every N processed blocks")
	fs.Uint32(USDTAssetKey, 0, "on-chain asset id of USDT, the pricing anchor")
	fs.String(LogLevelKey, "info", "log level: trace, debug, info, warn, error")
	fs.String(LogFileKey, "", "rotate logs to this file instead of stderr")
	return fs
}

// BuildViper binds fs to a fresh viper.Viper, reading HYDRATION_INDEXER_*
// environment variables as overrides for any flag left at its default.
func BuildViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}
	return v, nil
}

// Config is the indexer binary's resolved configuration.
type Config struct {
	FromBlock        uint32
	ToBlock          uint32
	RollbackToBlock  uint32
	DetectGaps       bool
	RPCEndpoint      string
	StoreEndpoint    string
	StorePassword    string
	MetricsAddr      string
	MetricsNamespace string
	FlushEveryBlocks int
	USDTAsset        uint32
	LogLevel         string
	LogFile          string
}

// BuildConfig resolves a Config from a bound viper.Viper, using
// spf13/cast the way cmd/simulator's config.BuildConfig resolves typed
// fields from viper's untyped Get.
func BuildConfig(v *viper.Viper) (Config, error) {
	return Config{
		FromBlock:        uint32(cast.ToUint64(v.Get(FromBlockKey))),
		ToBlock:          uint32(cast.ToUint64(v.Get(ToBlockKey))),
		RollbackToBlock:  uint32(cast.ToUint64(v.Get(RollbackToBlockKey))),
		DetectGaps:       cast.ToBool(v.Get(DetectGapsKey)),
		RPCEndpoint:      cast.ToString(v.Get(RPCEndpointKey)),
		StoreEndpoint:    cast.ToString(v.Get(StoreEndpointKey)),
		StorePassword:    cast.ToString(v.Get(StorePasswordKey)),
		MetricsAddr:      cast.ToString(v.Get(MetricsAddrKey)),
		MetricsNamespace: cast.ToString(v.Get(MetricsNamespaceKey)),
		FlushEveryBlocks: cast.ToInt(v.Get(FlushEveryBlocksKey)),
		USDTAsset:        uint32(cast.ToUint64(v.Get(USDTAssetKey))),
		LogLevel:         cast.ToString(v.Get(LogLevelKey)),
		LogFile:          cast.ToString(v.Get(LogFileKey)),
	}, nil
}
