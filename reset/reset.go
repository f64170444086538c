// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reset implements the global doomsday countdown: every deposit buys
// time, and when the timer fires a flat penalty hits every position (lazily,
// via per-tier epoch cuts) while the last depositor takes the jackpot.
package reset

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/gridrun/tracenet/ledger"
	"github.com/gridrun/tracenet/log"
	"github.com/gridrun/tracenet/reverts"
	"github.com/gridrun/tracenet/store"
	"github.com/gridrun/tracenet/tracenet"
)

var logger = log.WithContext("pkg", "reset")

var ErrNotReady = reverts.New("system reset not ready")

var slotState = tracenet.BytesToBytes32([]byte("system-reset"))

// State is the global singleton timer record.
type State struct {
	Deadline        uint64
	LastDepositor   tracenet.Address
	LastDepositTime uint64
	// Epoch increments each firing; positions settle the penalty lazily by
	// comparing their own epoch against it.
	Epoch      uint64
	PenaltyBps uint64
}

// Outcome of one timer firing.
type Outcome struct {
	Epoch     uint64
	Jackpot   *big.Int
	Winner    tracenet.Address
	Penalized *big.Int
}

// Config tunables of the timer.
type Config struct {
	Window           uint64   // full countdown window
	BaseExtension    uint64   // seconds bought by any deposit
	ExtensionDivisor *big.Int // extra second per this many base units deposited
	PenaltyBps       uint64
}

// Timer owns the singleton state.
type Timer struct {
	ldgr  *ledger.Ledger
	cfg   Config
	state *store.Struct[State]
}

// New creates the timer bound to the given storage context.
func New(ctx *store.Context, ldgr *ledger.Ledger, cfg Config) *Timer {
	return &Timer{
		ldgr:  ldgr,
		cfg:   cfg,
		state: store.NewStruct[State](ctx, slotState),
	}
}

// Get returns the current timer state. Before the first deposit the deadline
// is unarmed (zero).
func (t *Timer) Get() (*State, error) {
	st, ok, err := t.state.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reset state")
	}
	if !ok {
		return &State{PenaltyBps: t.cfg.PenaltyBps}, nil
	}
	return st, nil
}

// Epoch returns the current reset epoch, the value ledger settlements compare
// against.
func (t *Timer) Epoch() (uint64, error) {
	st, err := t.Get()
	if err != nil {
		return 0, err
	}
	return st.Epoch, nil
}

// OnDeposit pushes the deadline out. Bigger deposits buy more time, capped at
// a fresh full window.
func (t *Timer) OnDeposit(user tracenet.Address, amount *big.Int, now uint64) error {
	st, err := t.Get()
	if err != nil {
		return err
	}
	extension := t.cfg.BaseExtension
	if t.cfg.ExtensionDivisor != nil && t.cfg.ExtensionDivisor.Sign() > 0 {
		extra := new(big.Int).Div(amount, t.cfg.ExtensionDivisor)
		if extra.IsUint64() {
			extension += extra.Uint64()
		} else {
			extension += t.cfg.Window
		}
	}

	deadline := st.Deadline
	if deadline < now {
		deadline = now
	}
	deadline += extension
	if max := now + t.cfg.Window; deadline > max {
		deadline = max
	}

	st.Deadline = deadline
	st.LastDepositor = user
	st.LastDepositTime = now
	st.PenaltyBps = t.cfg.PenaltyBps
	return errors.Wrap(t.state.Set(st), "failed to set reset state")
}

// Preview computes, without mutating anything, the outcome Trigger would
// produce at now. The engine uses it to move the jackpot tokens before the
// ledger is touched.
func (t *Timer) Preview(now uint64) (*Outcome, error) {
	st, err := t.Get()
	if err != nil {
		return nil, err
	}
	if st.Deadline == 0 || now < st.Deadline {
		return nil, ErrNotReady
	}
	jackpot := new(big.Int)
	for tier := tracenet.Tier(0); tier.Valid(); tier++ {
		ts, err := t.ldgr.GetTierState(tier)
		if err != nil {
			return nil, err
		}
		penalized := new(big.Int).Mul(ts.TotalStaked, new(big.Int).SetUint64(st.PenaltyBps))
		penalized.Div(penalized, new(big.Int).SetUint64(tracenet.BpsDenominator))
		jackpot.Add(jackpot, penalized)
	}
	return &Outcome{
		Epoch:     st.Epoch,
		Jackpot:   jackpot,
		Winner:    st.LastDepositor,
		Penalized: jackpot,
	}, nil
}

// Trigger fires the doomsday event once the deadline has passed: each tier
// records an epoch cut (snapshot of its accumulator plus the penalty rate) and
// sheds the aggregate penalty, the penalized capital forms the jackpot paid to
// the last depositor, and the countdown rearms. Per-position penalties apply
// the next time each position is touched, never in an O(positions) loop here.
func (t *Timer) Trigger(now uint64) (*Outcome, error) {
	st, err := t.Get()
	if err != nil {
		return nil, err
	}
	if st.Deadline == 0 || now < st.Deadline {
		return nil, ErrNotReady
	}

	jackpot := new(big.Int)
	for tier := tracenet.Tier(0); tier.Valid(); tier++ {
		penalized, err := t.ldgr.ApplyResetCut(tier, st.Epoch, st.PenaltyBps)
		if err != nil {
			return nil, err
		}
		jackpot.Add(jackpot, penalized)
	}

	out := &Outcome{
		Epoch:     st.Epoch,
		Jackpot:   jackpot,
		Winner:    st.LastDepositor,
		Penalized: jackpot,
	}

	st.Epoch++
	st.Deadline = now + t.cfg.Window
	if err := t.state.Set(st); err != nil {
		return nil, errors.Wrap(err, "failed to set reset state")
	}
	logger.Info("system reset fired", "epoch", out.Epoch, "jackpot", jackpot, "winner", out.Winner)
	return out, nil
}
