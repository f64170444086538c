// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package config loads protocol parameters from an optional YAML file layered
// over the built-in mainnet defaults.
package config

import (
	"math/big"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/gridrun/tracenet/engine"
	"github.com/gridrun/tracenet/tracenet"
)

// Tier is the YAML form of one tier's parameters. Stake amounts are decimal
// strings in base units.
type Tier struct {
	Name         string `yaml:"name"`
	DeathRateBps uint64 `yaml:"deathRateBps"`
	YieldRateBps uint64 `yaml:"yieldRateBps"`
	MinStake     string `yaml:"minStake"`
	MaxPositions uint64 `yaml:"maxPositions"`
	ScanInterval uint64 `yaml:"scanInterval"`
}

// Config is the YAML form of the protocol parameters.
type Config struct {
	LockDuration     uint64 `yaml:"lockDuration"`
	SubmissionWindow uint64 `yaml:"submissionWindow"`
	SeedRetention    uint64 `yaml:"seedRetention"`
	MaxDeathBatch    int    `yaml:"maxDeathBatch"`

	ResetWindow           uint64 `yaml:"resetWindow"`
	ResetBaseExtension    uint64 `yaml:"resetBaseExtension"`
	ResetExtensionDivisor string `yaml:"resetExtensionDivisor"`
	ResetPenaltyBps       uint64 `yaml:"resetPenaltyBps"`

	BoostAuthority string `yaml:"boostAuthority"`
	Treasury       string `yaml:"treasury"`

	Tiers []Tier `yaml:"tiers"`
}

// Default returns the YAML form of the mainnet defaults.
func Default() *Config {
	c := &Config{
		LockDuration:          tracenet.LockDuration,
		SubmissionWindow:      tracenet.SubmissionWindow,
		SeedRetention:         tracenet.SeedRetention,
		MaxDeathBatch:         tracenet.MaxDeathBatch,
		ResetWindow:           tracenet.ResetWindow,
		ResetBaseExtension:    tracenet.ResetBaseExtension,
		ResetExtensionDivisor: tracenet.ResetExtensionDivisor.String(),
		ResetPenaltyBps:       tracenet.ResetPenaltyBps,
	}
	for _, p := range tracenet.DefaultTiers() {
		c.Tiers = append(c.Tiers, Tier{
			Name:         p.Name,
			DeathRateBps: p.DeathRateBps,
			YieldRateBps: p.YieldRateBps,
			MinStake:     p.MinStake.String(),
			MaxPositions: p.MaxPositions,
			ScanInterval: p.ScanInterval,
		})
	}
	return c
}

// Load reads path and overlays it on the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	return c, nil
}

// Engine converts the YAML form into the engine's config, validating amounts
// and addresses.
func (c *Config) Engine() (*engine.Config, error) {
	if len(c.Tiers) != tracenet.TierCount {
		return nil, errors.Errorf("config needs exactly %d tiers, got %d", tracenet.TierCount, len(c.Tiers))
	}
	ec := engine.DefaultConfig()
	ec.LockDuration = c.LockDuration
	ec.Scan.SubmissionWindow = c.SubmissionWindow
	ec.Scan.SeedRetention = c.SeedRetention
	ec.Scan.MaxBatch = c.MaxDeathBatch
	ec.Reset.Window = c.ResetWindow
	ec.Reset.BaseExtension = c.ResetBaseExtension
	ec.Reset.PenaltyBps = c.ResetPenaltyBps

	if c.ResetExtensionDivisor != "" {
		divisor, ok := new(big.Int).SetString(c.ResetExtensionDivisor, 10)
		if !ok || divisor.Sign() <= 0 {
			return nil, errors.Errorf("invalid resetExtensionDivisor %q", c.ResetExtensionDivisor)
		}
		ec.Reset.ExtensionDivisor = divisor
	}

	for i, t := range c.Tiers {
		minStake, ok := new(big.Int).SetString(t.MinStake, 10)
		if !ok || minStake.Sign() <= 0 {
			return nil, errors.Errorf("tier %s: invalid minStake %q", t.Name, t.MinStake)
		}
		if t.DeathRateBps > tracenet.BpsDenominator {
			return nil, errors.Errorf("tier %s: deathRateBps %d out of range", t.Name, t.DeathRateBps)
		}
		ec.Tiers[i] = tracenet.TierParams{
			Name:         t.Name,
			DeathRateBps: t.DeathRateBps,
			YieldRateBps: t.YieldRateBps,
			MinStake:     minStake,
			MaxPositions: t.MaxPositions,
			ScanInterval: t.ScanInterval,
		}
	}

	if c.BoostAuthority != "" {
		addr, err := tracenet.ParseAddress(c.BoostAuthority)
		if err != nil {
			return nil, errors.Wrap(err, "invalid boostAuthority")
		}
		ec.BoostAuthority = *addr
	}
	if c.Treasury != "" {
		addr, err := tracenet.ParseAddress(c.Treasury)
		if err != nil {
			return nil, errors.Wrap(err, "invalid treasury")
		}
		ec.Treasury = *addr
	}
	return ec, nil
}
