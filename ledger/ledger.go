// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger owns Position and TierState records and implements the
// share-based yield accounting. All reward math is floor-dividing fixed-point
// scaled by RewardScale; dust stays in the tier's reward pool and is never
// negative.
package ledger

import (
	"math/big"

	"github.com/gridrun/tracenet/log"
	"github.com/gridrun/tracenet/store"
	"github.com/gridrun/tracenet/tracenet"
)

var logger = log.WithContext("pkg", "ledger")

var bpsDenom = new(big.Int).SetUint64(tracenet.BpsDenominator)

// Ledger is the single writer of position and tier state. Scan, cascade and
// reset components mutate capital only through its methods, which is what
// keeps the conservation invariant at one choke point.
type Ledger struct {
	repo         *repository
	tiers        [tracenet.TierCount]tracenet.TierParams
	lockDuration uint64
}

// New creates a ledger bound to the given storage context.
func New(ctx *store.Context, tiers [tracenet.TierCount]tracenet.TierParams, lockDuration uint64) *Ledger {
	return &Ledger{
		repo:         newRepository(ctx),
		tiers:        tiers,
		lockDuration: lockDuration,
	}
}

// TierParams returns the static parameters of a tier.
func (l *Ledger) TierParams(tier tracenet.Tier) tracenet.TierParams {
	return l.tiers[tier]
}

// GetTierState returns the tier aggregate record.
func (l *Ledger) GetTierState(tier tracenet.Tier) (*TierState, error) {
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}
	return l.repo.getTierState(tier)
}

// GetPosition returns a settled read-only view of a position: lazy reset
// penalties and pending rewards are folded in without writing anything back.
func (l *Ledger) GetPosition(user tracenet.Address, epoch uint64) (*Position, error) {
	pos, ok, err := l.repo.getPosition(user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPosition
	}
	if !pos.Alive {
		return pos, nil
	}
	ts, err := l.repo.getTierState(pos.Tier)
	if err != nil {
		return nil, err
	}
	if err := l.settle(pos, ts, epoch); err != nil {
		return nil, err
	}
	return pos, nil
}

// PendingRewards returns the claimable rewards of a position after settlement,
// without mutating state.
func (l *Ledger) PendingRewards(user tracenet.Address, epoch uint64) (*big.Int, error) {
	pos, err := l.GetPosition(user, epoch)
	if err != nil {
		return nil, err
	}
	if !pos.Alive {
		return new(big.Int), nil
	}
	return pos.Claimable, nil
}

// JackIn creates a new position. A record left behind by a death is replaced;
// an alive position in any tier rejects with ErrPositionExists.
func (l *Ledger) JackIn(user tracenet.Address, amount *big.Int, tier tracenet.Tier, now, epoch uint64) error {
	if !tier.Valid() {
		return ErrInvalidTier
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	params := l.tiers[tier]
	if amount.Cmp(params.MinStake) < 0 {
		return ErrBelowMinimum
	}

	existing, ok, err := l.repo.getPosition(user)
	if err != nil {
		return err
	}
	if ok && existing.Alive {
		return ErrPositionExists
	}

	ts, err := l.repo.getTierState(tier)
	if err != nil {
		return err
	}
	if params.MaxPositions > 0 && ts.AliveCount >= params.MaxPositions {
		return ErrCapacityExceeded
	}

	pos := &Position{
		Amount:      new(big.Int).Set(amount),
		Tier:        tier,
		EntryTime:   now,
		LastAddTime: now,
		// owes nothing retroactively
		RewardDebt: new(big.Int).Set(ts.AccRewardsPerShare),
		Claimable:  new(big.Int),
		Alive:      true,
		StreakBase: ts.FinalizedScans,
		ResetEpoch: epoch,
	}
	ts.TotalStaked.Add(ts.TotalStaked, amount)
	ts.AliveCount++

	if err := l.repo.setPosition(user, pos); err != nil {
		return err
	}
	if err := l.repo.setTierState(tier, ts); err != nil {
		return err
	}
	logger.Debug("jack in", "user", user, "tier", tier, "amount", amount)
	return nil
}

// AddStake settles then grows an alive position, restarting its lock period.
func (l *Ledger) AddStake(user tracenet.Address, amount *big.Int, now, epoch uint64) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pos, ts, err := l.loadAlive(user)
	if err != nil {
		return err
	}
	if err := l.settle(pos, ts, epoch); err != nil {
		return err
	}
	pos.Amount.Add(pos.Amount, amount)
	pos.LastAddTime = now
	ts.TotalStaked.Add(ts.TotalStaked, amount)

	if err := l.repo.setPosition(user, pos); err != nil {
		return err
	}
	return l.repo.setTierState(pos.Tier, ts)
}

// ClaimRewards settles and pays out accumulated rewards, leaving the position
// in place.
func (l *Ledger) ClaimRewards(user tracenet.Address, epoch uint64) (*big.Int, error) {
	pos, ts, err := l.loadAlive(user)
	if err != nil {
		return nil, err
	}
	if err := l.settle(pos, ts, epoch); err != nil {
		return nil, err
	}
	rewards := pos.Claimable
	pos.Claimable = new(big.Int)
	ts.RewardPool.Sub(ts.RewardPool, rewards)

	if err := l.repo.setPosition(user, pos); err != nil {
		return nil, err
	}
	if err := l.repo.setTierState(pos.Tier, ts); err != nil {
		return nil, err
	}
	return rewards, nil
}

// Extract closes a position past its lock period, returning principal and
// settled rewards. The record is destroyed.
func (l *Ledger) Extract(user tracenet.Address, now, epoch uint64) (principal, rewards *big.Int, err error) {
	pos, ts, err := l.loadAlive(user)
	if err != nil {
		return nil, nil, err
	}
	if now < pos.LastAddTime+l.lockDuration {
		return nil, nil, ErrInLockPeriod
	}
	if err := l.settle(pos, ts, epoch); err != nil {
		return nil, nil, err
	}
	principal = pos.Amount
	rewards = pos.Claimable
	ts.TotalStaked.Sub(ts.TotalStaked, principal)
	ts.AliveCount--
	ts.RewardPool.Sub(ts.RewardPool, rewards)

	if err := l.repo.positions.Delete(user); err != nil {
		return nil, nil, err
	}
	if err := l.repo.setTierState(pos.Tier, ts); err != nil {
		return nil, nil, err
	}
	logger.Debug("extract", "user", user, "tier", pos.Tier, "principal", principal, "rewards", rewards)
	return principal, rewards, nil
}

// MarkDead kills a position during a trace scan, returning the capital it
// forfeits (principal plus anything settled but unclaimed). The tier's totals
// drop immediately so survivor share math is right for the rest of the scan
// window. Death is terminal: a second call for the same user reports
// ErrAlreadyProcessed, never a double credit.
func (l *Ledger) MarkDead(tier tracenet.Tier, user tracenet.Address, epoch uint64) (*big.Int, error) {
	pos, ok, err := l.repo.getPosition(user)
	if err != nil {
		return nil, err
	}
	if !ok || pos.Tier != tier {
		return nil, ErrNoPosition
	}
	if !pos.Alive {
		return nil, ErrAlreadyProcessed
	}
	ts, err := l.repo.getTierState(tier)
	if err != nil {
		return nil, err
	}
	if err := l.settle(pos, ts, epoch); err != nil {
		return nil, err
	}

	dead := new(big.Int).Add(pos.Amount, pos.Claimable)
	ts.TotalStaked.Sub(ts.TotalStaked, pos.Amount)
	ts.AliveCount--
	ts.RewardPool.Sub(ts.RewardPool, pos.Claimable)

	pos.Alive = false
	pos.Amount = new(big.Int)
	pos.Claimable = new(big.Int)
	pos.RewardDebt = new(big.Int)
	pos.StreakBase = 0

	if err := l.repo.setPosition(user, pos); err != nil {
		return nil, err
	}
	if err := l.repo.setTierState(tier, ts); err != nil {
		return nil, err
	}
	return dead, nil
}

// CreditCascade distributes amount across the tier's stake via the per-share
// accumulator. With no stake present the amount banks forward for the next
// entrant instead of being lost.
func (l *Ledger) CreditCascade(tier tracenet.Tier, amount *big.Int) error {
	if !tier.Valid() {
		return ErrInvalidTier
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	ts, err := l.repo.getTierState(tier)
	if err != nil {
		return err
	}
	ts.RewardPool.Add(ts.RewardPool, amount)
	l.credit(ts, amount)
	return l.repo.setTierState(tier, ts)
}

// AccrueYield mints the tier's continuous emission since the last accrual into
// the reward accumulator. Idempotent for a fixed timestamp.
func (l *Ledger) AccrueYield(tier tracenet.Tier, now uint64) error {
	ts, err := l.repo.getTierState(tier)
	if err != nil {
		return err
	}
	if ts.LastAccrual == 0 || now <= ts.LastAccrual {
		if ts.LastAccrual == 0 {
			ts.LastAccrual = now
			return l.repo.setTierState(tier, ts)
		}
		return nil
	}
	dt := now - ts.LastAccrual
	ts.LastAccrual = now

	rate := l.tiers[tier].YieldRateBps
	if rate > 0 && ts.TotalStaked.Sign() > 0 {
		emission := new(big.Int).Mul(ts.TotalStaked, new(big.Int).SetUint64(rate*dt))
		emission.Div(emission, new(big.Int).SetUint64(tracenet.SecondsPerYear*tracenet.BpsDenominator))
		if emission.Sign() > 0 {
			ts.TotalEmitted.Add(ts.TotalEmitted, emission)
			ts.RewardPool.Add(ts.RewardPool, emission)
			l.credit(ts, emission)
		}
	}
	return l.repo.setTierState(tier, ts)
}

// IncrementStreaks bumps the tier's finalized-scan counter; every surviving
// position's ghost streak grows by one through the lazy streak-base scheme.
func (l *Ledger) IncrementStreaks(tier tracenet.Tier) error {
	ts, err := l.repo.getTierState(tier)
	if err != nil {
		return err
	}
	ts.FinalizedScans++
	return l.repo.setTierState(tier, ts)
}

// NextScanTime reads the tier's scan schedule.
func (l *Ledger) NextScanTime(tier tracenet.Tier) (uint64, error) {
	ts, err := l.repo.getTierState(tier)
	if err != nil {
		return 0, err
	}
	return ts.NextScanTime, nil
}

// SetNextScanTime writes the tier's scan schedule.
func (l *Ledger) SetNextScanTime(tier tracenet.Tier, t uint64) error {
	ts, err := l.repo.getTierState(tier)
	if err != nil {
		return err
	}
	ts.NextScanTime = t
	return l.repo.setTierState(tier, ts)
}

// ApplyResetCut records a system-reset epoch boundary on the tier: the current
// accumulator value and penalty rate are snapshotted so sleeping positions can
// be settled lazily, and the aggregate stake drops eagerly. Returns the
// penalized capital removed from the tier.
func (l *Ledger) ApplyResetCut(tier tracenet.Tier, epoch uint64, penaltyBps uint64) (*big.Int, error) {
	ts, err := l.repo.getTierState(tier)
	if err != nil {
		return nil, err
	}
	cut := &EpochCut{
		Acc:        new(big.Int).Set(ts.AccRewardsPerShare),
		PenaltyBps: penaltyBps,
	}
	if err := l.repo.setEpochCut(tier, epoch, cut); err != nil {
		return nil, err
	}
	penalized := new(big.Int).Mul(ts.TotalStaked, new(big.Int).SetUint64(penaltyBps))
	penalized.Div(penalized, bpsDenom)
	ts.TotalStaked.Sub(ts.TotalStaked, penalized)
	if err := l.repo.setTierState(tier, ts); err != nil {
		return nil, err
	}
	return penalized, nil
}

// DebitPool draws up to amount from the tier's reward pool, returning what was
// actually available. Used for yield-boost bonuses so they can never overdraw
// the pool.
func (l *Ledger) DebitPool(tier tracenet.Tier, amount *big.Int) (*big.Int, error) {
	ts, err := l.repo.getTierState(tier)
	if err != nil {
		return nil, err
	}
	debited := new(big.Int).Set(amount)
	if debited.Cmp(ts.RewardPool) > 0 {
		debited.Set(ts.RewardPool)
	}
	ts.RewardPool.Sub(ts.RewardPool, debited)
	if err := l.repo.setTierState(tier, ts); err != nil {
		return nil, err
	}
	return debited, nil
}

func (l *Ledger) loadAlive(user tracenet.Address) (*Position, *TierState, error) {
	pos, ok, err := l.repo.getPosition(user)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNoPosition
	}
	if !pos.Alive {
		return nil, nil, ErrPositionDead
	}
	ts, err := l.repo.getTierState(pos.Tier)
	if err != nil {
		return nil, nil, err
	}
	return pos, ts, nil
}

// credit bumps the per-share accumulator, folding in any banked credits once
// stake exists again.
func (l *Ledger) credit(ts *TierState, amount *big.Int) {
	if ts.TotalStaked.Sign() == 0 {
		ts.PendingBank.Add(ts.PendingBank, amount)
		return
	}
	total := new(big.Int).Add(amount, ts.PendingBank)
	ts.PendingBank = new(big.Int)
	delta := new(big.Int).Mul(total, tracenet.RewardScale)
	delta.Div(delta, ts.TotalStaked)
	ts.AccRewardsPerShare.Add(ts.AccRewardsPerShare, delta)
}

// settle folds lazy state into the position: rewards are credited segment by
// segment across any system-reset epochs the position slept through, applying
// each epoch's penalty at the accumulator value where it actually happened.
func (l *Ledger) settle(pos *Position, ts *TierState, epoch uint64) error {
	for e := pos.ResetEpoch; e < epoch; e++ {
		cut, ok, err := l.repo.getEpochCut(pos.Tier, e)
		if err != nil {
			return err
		}
		if !ok {
			// no cut recorded for this tier at epoch e: nothing to apply
			continue
		}
		pos.Claimable.Add(pos.Claimable, pendingOf(pos.Amount, cut.Acc, pos.RewardDebt))
		pos.RewardDebt.Set(cut.Acc)

		keep := new(big.Int).SetUint64(tracenet.BpsDenominator - cut.PenaltyBps)
		pos.Amount.Mul(pos.Amount, keep)
		pos.Amount.Div(pos.Amount, bpsDenom)
	}
	pos.ResetEpoch = epoch
	pos.Claimable.Add(pos.Claimable, pendingOf(pos.Amount, ts.AccRewardsPerShare, pos.RewardDebt))
	pos.RewardDebt.Set(ts.AccRewardsPerShare)
	return nil
}

func pendingOf(amount, acc, debt *big.Int) *big.Int {
	pending := new(big.Int).Sub(acc, debt)
	pending.Mul(pending, amount)
	return pending.Div(pending, tracenet.RewardScale)
}
