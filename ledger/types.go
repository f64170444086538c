// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"

	"github.com/gridrun/tracenet/tracenet"
)

// Position is one runner's stake record. A dead position keeps its record
// (Alive=false, zeroed balances) until the owner jacks in again; for capital
// purposes it no longer exists.
type Position struct {
	Amount      *big.Int
	Tier        tracenet.Tier
	EntryTime   uint64
	LastAddTime uint64
	// RewardDebt snapshots accRewardsPerShare at last settlement; pending
	// rewards are amount * (acc - debt) / SCALE.
	RewardDebt *big.Int
	Claimable  *big.Int
	Alive      bool
	// StreakBase is the tier's finalized-scan count at entry; the ghost streak
	// is finalizedScans - streakBase, so surviving a scan needs no per-position
	// write.
	StreakBase uint64
	// ResetEpoch is the last system-reset epoch settled into Amount.
	ResetEpoch uint64
}

// TierState per-tier aggregate state.
type TierState struct {
	TotalStaked *big.Int
	AliveCount  uint64
	// AccRewardsPerShare accumulated rewards per staked base unit, scaled by
	// RewardScale. Monotonically non-decreasing.
	AccRewardsPerShare *big.Int
	NextScanTime       uint64
	FinalizedScans     uint64
	// PendingBank holds credits that arrived while the tier had no stake;
	// they fold into the next credit once stake exists.
	PendingBank *big.Int
	// RewardPool tracks credited-but-unpaid rewards (claim settlement draws
	// from it; floor-division dust stays here and is never negative).
	RewardPool *big.Int
	// LastAccrual is the timestamp of the last continuous-yield accrual.
	LastAccrual uint64
	// TotalEmitted audit counter of continuous yield minted into RewardPool.
	TotalEmitted *big.Int
}

// EpochCut records, per tier, the accumulator value and penalty rate at the
// moment a system-reset epoch ended. Settlement walks these to apply each
// missed penalty at the right point of the reward stream.
type EpochCut struct {
	Acc        *big.Int
	PenaltyBps uint64
}

func newTierState() *TierState {
	return &TierState{
		TotalStaked:        new(big.Int),
		AccRewardsPerShare: new(big.Int),
		PendingBank:        new(big.Int),
		RewardPool:         new(big.Int),
		TotalEmitted:       new(big.Int),
	}
}

// GhostStreak returns the effective consecutive-survival count of a position
// given its tier's finalized-scan counter.
func (p *Position) GhostStreak(finalizedScans uint64) uint64 {
	if !p.Alive || finalizedScans < p.StreakBase {
		return 0
	}
	return finalizedScans - p.StreakBase
}
