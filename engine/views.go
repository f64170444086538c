// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package engine

import (
	"math/big"

	"github.com/gridrun/tracenet/boost"
	"github.com/gridrun/tracenet/eventdb"
	"github.com/gridrun/tracenet/reset"
	"github.com/gridrun/tracenet/scan"
	"github.com/gridrun/tracenet/tracenet"
)

// PositionView is the settled read-only snapshot of one position.
type PositionView struct {
	Tier        tracenet.Tier
	Amount      *big.Int
	Claimable   *big.Int
	EntryTime   uint64
	LastAddTime uint64
	UnlockTime  uint64
	Alive       bool
	GhostStreak uint64
}

// TierView is the aggregate snapshot of one tier.
type TierView struct {
	Params         tracenet.TierParams
	TotalStaked    *big.Int
	AliveCount     uint64
	RewardPool     *big.Int
	TotalEmitted   *big.Int
	NextScanTime   uint64
	FinalizedScans uint64
}

// Position returns the user's settled position view. Lazy reset penalties and
// pending rewards are folded in without writing anything back.
func (e *Engine) Position(user tracenet.Address) (*PositionView, error) {
	e.resetMu.Lock()
	epoch, err := e.timer.Epoch()
	e.resetMu.Unlock()
	if err != nil {
		return nil, err
	}

	pos, err := e.ldgr.GetPosition(user, epoch)
	if err != nil {
		return nil, err
	}
	view := &PositionView{
		Tier:        pos.Tier,
		Amount:      pos.Amount,
		Claimable:   pos.Claimable,
		EntryTime:   pos.EntryTime,
		LastAddTime: pos.LastAddTime,
		UnlockTime:  pos.LastAddTime + e.cfg.LockDuration,
		Alive:       pos.Alive,
	}
	if pos.Alive {
		ts, err := e.ldgr.GetTierState(pos.Tier)
		if err != nil {
			return nil, err
		}
		view.GhostStreak = pos.GhostStreak(ts.FinalizedScans)
	}
	return view, nil
}

// PendingRewards returns what a claim would pay right now, bonus excluded.
func (e *Engine) PendingRewards(user tracenet.Address) (*big.Int, error) {
	e.resetMu.Lock()
	epoch, err := e.timer.Epoch()
	e.resetMu.Unlock()
	if err != nil {
		return nil, err
	}
	return e.ldgr.PendingRewards(user, epoch)
}

// TierState returns the aggregate snapshot of a tier.
func (e *Engine) TierState(tier tracenet.Tier) (*TierView, error) {
	ts, err := e.ldgr.GetTierState(tier)
	if err != nil {
		return nil, err
	}
	return &TierView{
		Params:         e.ldgr.TierParams(tier),
		TotalStaked:    ts.TotalStaked,
		AliveCount:     ts.AliveCount,
		RewardPool:     ts.RewardPool,
		TotalEmitted:   ts.TotalEmitted,
		NextScanTime:   ts.NextScanTime,
		FinalizedScans: ts.FinalizedScans,
	}, nil
}

// CurrentScan returns the active or most recently resolved scan of a tier.
func (e *Engine) CurrentScan(tier tracenet.Tier) (*scan.Scan, error) {
	return e.mach.Current(tier)
}

// ResetState returns the doomsday timer snapshot.
func (e *Engine) ResetState() (*reset.State, error) {
	e.resetMu.Lock()
	defer e.resetMu.Unlock()
	return e.timer.Get()
}

// Boosts returns the user's active boosts.
func (e *Engine) Boosts(user tracenet.Address) ([]boost.Boost, error) {
	e.boostMu.Lock()
	defer e.boostMu.Unlock()
	return e.boosts.Active(user, e.cfg.now())
}

// TotalBurned returns the cumulative capital burned by cascades.
func (e *Engine) TotalBurned() (*big.Int, error) {
	return e.dist.TotalBurned()
}

// TotalTreasury returns the cumulative capital routed to the treasury.
func (e *Engine) TotalTreasury() (*big.Int, error) {
	return e.dist.TotalTreasury()
}

// Events queries the append-only event records.
func (e *Engine) Events(filter *eventdb.Filter) ([]*eventdb.Event, error) {
	if e.events == nil {
		return nil, nil
	}
	return e.events.Filter(filter)
}

// Tiers returns the static tier table.
func (e *Engine) Tiers() [tracenet.TierCount]tracenet.TierParams {
	return e.cfg.Tiers
}
