// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cascade splits the dead capital of a finalized trace scan: 60% to
// same-tier survivors, 30% upstream (half to the next higher-risk tier, half
// burned; the top tier burns it all), 10% to the treasury. The three buckets
// always sum exactly to the input; basis-point remainders land in the
// same-level bucket, the largest one.
package cascade

import (
	"math/big"

	"github.com/gridrun/tracenet/ledger"
	"github.com/gridrun/tracenet/log"
	"github.com/gridrun/tracenet/scan"
	"github.com/gridrun/tracenet/store"
	"github.com/gridrun/tracenet/tracenet"
)

var logger = log.WithContext("pkg", "cascade")

var (
	slotBurned   = tracenet.BytesToBytes32([]byte("total-burned"))
	slotTreasury = tracenet.BytesToBytes32([]byte("total-treasury"))
)

var bpsDenom = new(big.Int).SetUint64(tracenet.BpsDenominator)

// Distributor applies the cascade split through the ledger. Burn and treasury
// totals are tracked as monotonic counters for the conservation audit; the
// actual token movement is the engine's job.
type Distributor struct {
	ldgr *ledger.Ledger

	burned   *store.BigInt
	treasury *store.BigInt
}

var _ scan.Distributor = (*Distributor)(nil)

// New creates a distributor bound to the given storage context.
func New(ctx *store.Context, ldgr *ledger.Ledger) *Distributor {
	return &Distributor{
		ldgr:     ldgr,
		burned:   store.NewBigInt(ctx, slotBurned),
		treasury: store.NewBigInt(ctx, slotTreasury),
	}
}

// Split computes the cascade buckets without applying them. Exposed so
// observers can pre-compute outcomes; Distribute uses the same math.
func Split(tier tracenet.Tier, totalDead *big.Int) *scan.Distribution {
	treasury := mulBps(totalDead, tracenet.CascadeTreasuryBps)
	upstream := mulBps(totalDead, tracenet.CascadeUpstreamBps)
	// remainder to the largest bucket
	sameLevel := new(big.Int).Sub(totalDead, treasury)
	sameLevel.Sub(sameLevel, upstream)

	burned := new(big.Int)
	toUpstreamTier := new(big.Int)
	if tier+1 < tracenet.TierCount {
		toUpstreamTier.Div(upstream, big.NewInt(2))
		burned.Sub(upstream, toUpstreamTier)
	} else {
		burned.Set(upstream)
	}

	return &scan.Distribution{
		SameLevel: sameLevel,
		Upstream:  toUpstreamTier,
		Burned:    burned,
		Treasury:  treasury,
	}
}

// Distribute applies the split of totalDead atomically against the ledger.
// pay, when non-nil, runs with the computed split before any credit is
// applied; its failure aborts the distribution with no ledger effect.
func (d *Distributor) Distribute(tier tracenet.Tier, totalDead *big.Int, pay func(*scan.Distribution) error) (*scan.Distribution, error) {
	if totalDead == nil || totalDead.Sign() == 0 {
		return &scan.Distribution{
			SameLevel: new(big.Int),
			Upstream:  new(big.Int),
			Burned:    new(big.Int),
			Treasury:  new(big.Int),
		}, nil
	}
	dist := Split(tier, totalDead)
	if pay != nil {
		if err := pay(dist); err != nil {
			return nil, err
		}
	}

	if err := d.ldgr.CreditCascade(tier, dist.SameLevel); err != nil {
		return nil, err
	}
	if dist.Upstream.Sign() > 0 {
		if err := d.ldgr.CreditCascade(tier+1, dist.Upstream); err != nil {
			return nil, err
		}
	}
	if err := d.burned.Add(dist.Burned); err != nil {
		return nil, err
	}
	if err := d.treasury.Add(dist.Treasury); err != nil {
		return nil, err
	}

	logger.Info("cascade distributed",
		"tier", tier,
		"totalDead", totalDead,
		"sameLevel", dist.SameLevel,
		"upstream", dist.Upstream,
		"burned", dist.Burned,
		"treasury", dist.Treasury,
	)
	return dist, nil
}

// TotalBurned returns the cumulative capital removed from circulation.
func (d *Distributor) TotalBurned() (*big.Int, error) {
	return d.burned.Get()
}

// TotalTreasury returns the cumulative capital routed to the treasury sink.
func (d *Distributor) TotalTreasury() (*big.Int, error) {
	return d.treasury.Get()
}

func mulBps(v *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(v, new(big.Int).SetUint64(bps))
	return out.Div(out, bpsDenom)
}
