// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"

	"github.com/galacticcouncil/hydration-indexer/cmd/indexer/app"
	"github.com/galacticcouncil/hydration-indexer/cmd/indexer/config"
	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/pipeline"
	"github.com/galacticcouncil/hydration-indexer/internal/store"
)

// productionWiring builds the Wiring this binary actually runs with.
//
// The archive-gateway client (blocksource.Source) and the analytical-store
// HTTP client (store.Store) are genuine external collaborators that
// spec.md §1 places out of scope: no client for either exists anywhere in
// this module's dependency surface to ground a real implementation on.
// NewSource and NewStore below fail loudly rather than silently no-op, so
// a deployer discovers the gap at startup instead of at the first flush.
// Swapping in a real client means implementing blocksource.Source and
// store.Store against the deployment's actual gateway and store, and
// replacing these two functions; internal/pipeline does not change.
func productionWiring() app.Wiring {
	return app.Wiring{
		NewSource: func(ctx context.Context, cfg config.Config) (blocksource.Source, error) {
			if cfg.RPCEndpoint == "" {
				return nil, fmt.Errorf("no RPC endpoint configured (set --rpc-endpoint or %s_RPC_ENDPOINT)", config.EnvPrefix)
			}
			return nil, fmt.Errorf("no archive-gateway block source is wired into this build")
		},
		NewStore: func(ctx context.Context, cfg config.Config) (store.Store, error) {
			if cfg.StoreEndpoint == "" {
				return nil, fmt.Errorf("no store endpoint configured (set --store-endpoint or %s_STORE_ENDPOINT)", config.EnvPrefix)
			}
			return nil, fmt.Errorf("no analytical-store client is wired into this build")
		},
		Decoders: pipeline.Decoders{},
	}
}
