// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tracenet

import "math/big"

// Tier is one of the five fixed risk levels.
type Tier uint8

// The five risk tiers, ordered from safest to deadliest.
const (
	TierVault Tier = iota
	TierProxy
	TierSubnet
	TierDarknet
	TierBlackIce

	TierCount = 5
)

func (t Tier) String() string {
	switch t {
	case TierVault:
		return "vault"
	case TierProxy:
		return "proxy"
	case TierSubnet:
		return "subnet"
	case TierDarknet:
		return "darknet"
	case TierBlackIce:
		return "blackice"
	default:
		return "unknown"
	}
}

// Valid returns whether t names an existing tier.
func (t Tier) Valid() bool {
	return t < TierCount
}

// Constants of the protocol.
const (
	// BpsDenominator basis point denominator for all rate math.
	BpsDenominator uint64 = 10000

	// LockDuration seconds a position stays locked after jack-in or add-stake.
	LockDuration uint64 = 24 * 3600

	// SubmissionWindow seconds after scan execution during which finalization is premature.
	SubmissionWindow uint64 = 10 * 60

	// SeedRetention seconds after scan execution beyond which death proofs can no
	// longer be verified against the seed source; a scan not finalized by then expires.
	SeedRetention uint64 = 3600

	// MaxDeathBatch bounds the number of candidates in one submitDeaths call.
	MaxDeathBatch = 256

	// Cascade split of dead capital, in bps. The upstream share is itself split
	// half to the next higher-risk tier, half to the burn sink.
	CascadeSameLevelBps uint64 = 6000
	CascadeUpstreamBps  uint64 = 3000
	CascadeTreasuryBps  uint64 = 1000

	// System reset timer.
	ResetWindow          uint64 = 72 * 3600 // full doomsday window
	ResetBaseExtension   uint64 = 600       // seconds bought by any deposit
	ResetPenaltyBps      uint64 = 500       // flat 5% haircut when the timer fires
	MaxDeathReductionBps uint64 = 3500      // cap on folded death-reduction boosts
	MaxYieldBoostBps     uint64 = 10000     // cap on folded yield-multiplier boosts

	// SecondsPerYear used by the continuous yield accrual.
	SecondsPerYear uint64 = 365 * 24 * 3600
)

var (
	// RewardScale fixed-point scale of accRewardsPerShare (1e18).
	RewardScale = big.NewInt(1e18)

	// ResetExtensionDivisor scales deposit size into extra doomsday seconds:
	// one extra second per this many base units deposited.
	ResetExtensionDivisor = new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))
)

// TierParams static parameters of one risk tier.
type TierParams struct {
	Name         string
	DeathRateBps uint64 // probability a position dies per scan
	YieldRateBps uint64 // annualized continuous emission rate
	MinStake     *big.Int
	MaxPositions uint64 // 0 means uncapped
	ScanInterval uint64 // seconds between scheduled trace scans; 0 disables scans
}

// DefaultTiers the mainnet tier table. The vault tier is scan-immune by
// construction (zero death rate, no schedule).
func DefaultTiers() [TierCount]TierParams {
	return [TierCount]TierParams{
		TierVault:    {Name: "vault", DeathRateBps: 0, YieldRateBps: 300, MinStake: big.NewInt(1e18), MaxPositions: 0, ScanInterval: 0},
		TierProxy:    {Name: "proxy", DeathRateBps: 500, YieldRateBps: 1200, MinStake: big.NewInt(1e18), MaxPositions: 0, ScanInterval: 24 * 3600},
		TierSubnet:   {Name: "subnet", DeathRateBps: 1500, YieldRateBps: 3000, MinStake: new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)), MaxPositions: 0, ScanInterval: 12 * 3600},
		TierDarknet:  {Name: "darknet", DeathRateBps: 3000, YieldRateBps: 6500, MinStake: new(big.Int).Mul(big.NewInt(50), big.NewInt(1e18)), MaxPositions: 10000, ScanInterval: 6 * 3600},
		TierBlackIce: {Name: "blackice", DeathRateBps: 5000, YieldRateBps: 15000, MinStake: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)), MaxPositions: 1000, ScanInterval: 3 * 3600},
	}
}
