// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package engine

import (
	"math/big"
	"time"

	"github.com/gridrun/tracenet/reset"
	"github.com/gridrun/tracenet/scan"
	"github.com/gridrun/tracenet/tracenet"
)

// Config groups everything the engine needs beyond its storage handles.
type Config struct {
	Tiers        [tracenet.TierCount]tracenet.TierParams
	LockDuration uint64
	Scan         scan.Config
	Reset        reset.Config
	// BoostAuthority is the address whose signatures authorize boost grants.
	BoostAuthority tracenet.Address
	// Treasury receives the treasury share of every cascade.
	Treasury tracenet.Address
	// Now supplies the engine clock in unix seconds. Defaults to wall time.
	Now func() uint64
}

// DefaultConfig returns mainnet parameters.
func DefaultConfig() *Config {
	return &Config{
		Tiers:        tracenet.DefaultTiers(),
		LockDuration: tracenet.LockDuration,
		Scan: scan.Config{
			SubmissionWindow: tracenet.SubmissionWindow,
			SeedRetention:    tracenet.SeedRetention,
			MaxBatch:         tracenet.MaxDeathBatch,
		},
		Reset: reset.Config{
			Window:           tracenet.ResetWindow,
			BaseExtension:    tracenet.ResetBaseExtension,
			ExtensionDivisor: new(big.Int).Set(tracenet.ResetExtensionDivisor),
			PenaltyBps:       tracenet.ResetPenaltyBps,
		},
	}
}

func (c *Config) now() uint64 {
	if c.Now != nil {
		return c.Now()
	}
	return uint64(time.Now().Unix())
}
