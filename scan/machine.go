// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package scan implements the per-tier trace-scan lifecycle:
//
//	NONE/FINALIZED --Execute--> EXECUTED --SubmitDeaths*--> EXECUTED --Finalize--> FINALIZED
//
// with an EXPIRED terminal branch once the seed source has aged beyond the
// retention bound. Submission is permissionless: anyone may push batches of
// candidate addresses and invalid entries are skipped, not reverted.
package scan

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"

	"github.com/gridrun/tracenet/ledger"
	"github.com/gridrun/tracenet/log"
	"github.com/gridrun/tracenet/store"
	"github.com/gridrun/tracenet/tracenet"
)

var logger = log.WithContext("pkg", "scan")

// Status of a scan record.
type Status uint8

const (
	StatusExecuted Status = iota + 1
	StatusFinalized
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusExecuted:
		return "executed"
	case StatusFinalized:
		return "finalized"
	case StatusExpired:
		return "expired"
	default:
		return "none"
	}
}

// Scan is the record of one trace scan. Seed is immutable after Execute locks
// it; everything the predicate needs is captured here, never re-read.
type Scan struct {
	ID          uint64
	Seed        tracenet.Bytes32
	BlockNumber uint64
	ExecutedAt  uint64
	FinalizedAt uint64
	TotalDead   *big.Int
	DeathCount  uint64
	Status      Status
}

// Finalized reports whether the scan reached its successful terminal state.
func (s *Scan) Finalized() bool {
	return s.Status == StatusFinalized
}

// Distribution is the cascade outcome of a finalized scan.
type Distribution struct {
	SameLevel *big.Int
	Upstream  *big.Int
	Burned    *big.Int
	Treasury  *big.Int
}

// Distributor applies the cascade split of dead capital. The pay callback is
// invoked with the computed split after all checks but before any ledger
// credit, so external token movement can abort the whole finalization.
type Distributor interface {
	Distribute(tier tracenet.Tier, totalDead *big.Int, pay func(*Distribution) error) (*Distribution, error)
}

// RateFn resolves a user's effective death rate from the tier's base rate,
// folding in any active death-reduction boosts.
type RateFn func(user tracenet.Address, baseRateBps uint64) (uint64, error)

// Config bounds of the scan lifecycle.
type Config struct {
	SubmissionWindow uint64 // seconds after Execute during which Finalize is premature
	SeedRetention    uint64 // seconds after Execute beyond which proofs can no longer be verified
	MaxBatch         int    // max candidates per SubmitDeaths call
}

// deathKey identifies one processed death: 8-byte big-endian scan ID followed
// by the 20-byte address.
type deathKey [28]byte

func newDeathKey(scanID uint64, addr tracenet.Address) (k deathKey) {
	binary.BigEndian.PutUint64(k[:8], scanID)
	copy(k[8:], addr.Bytes())
	return
}

func (k deathKey) Bytes() []byte { return k[:] }

// Machine coordinates the scan lifecycle per tier. It is the only writer of
// alive=false transitions, always through the ledger's API.
type Machine struct {
	ldgr        *ledger.Ledger
	distributor Distributor
	cfg         Config

	scans  map[tracenet.Tier]*store.Struct[Scan]
	deaths map[tracenet.Tier]*store.FlagSet[deathKey]
}

// New creates a scan machine bound to the given storage context.
func New(ctx *store.Context, ldgr *ledger.Ledger, distributor Distributor, cfg Config) *Machine {
	scans := make(map[tracenet.Tier]*store.Struct[Scan], tracenet.TierCount)
	deaths := make(map[tracenet.Tier]*store.FlagSet[deathKey], tracenet.TierCount)
	for t := tracenet.Tier(0); t.Valid(); t++ {
		scans[t] = store.NewStruct[Scan](ctx, tracenet.Blake2b([]byte("scan"), []byte{byte(t)}))
		deaths[t] = store.NewFlagSet[deathKey](ctx, tracenet.Blake2b([]byte("scan-deaths"), []byte{byte(t)}))
	}
	return &Machine{
		ldgr:        ldgr,
		distributor: distributor,
		cfg:         cfg,
		scans:       scans,
		deaths:      deaths,
	}
}

// Current returns the active or most recently resolved scan of a tier.
func (m *Machine) Current(tier tracenet.Tier) (*Scan, error) {
	if !tier.Valid() {
		return nil, ledger.ErrInvalidTier
	}
	sc, ok, err := m.scans[tier].Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get scan")
	}
	if !ok {
		return nil, ErrNoActiveScan
	}
	return sc, nil
}

// Execute locks a new scan's seed once the tier's schedule has elapsed. A
// stale unfinalized scan past the retention bound is expired in place rather
// than wedging the tier.
func (m *Machine) Execute(tier tracenet.Tier, blockRandomness tracenet.Bytes32, blockNumber, now uint64) (*Scan, *Scan, error) {
	if !tier.Valid() {
		return nil, nil, ledger.ErrInvalidTier
	}
	interval := m.ldgr.TierParams(tier).ScanInterval
	if interval == 0 {
		// scan-immune tier
		return nil, nil, ErrScanNotReady
	}
	nextScanTime, err := m.ldgr.NextScanTime(tier)
	if err != nil {
		return nil, nil, err
	}
	if now < nextScanTime {
		return nil, nil, ErrScanNotReady
	}

	var expired *Scan
	prev, ok, err := m.scans[tier].Get()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get scan")
	}
	var id uint64 = 1
	if ok {
		if prev.Status == StatusExecuted {
			if now <= prev.ExecutedAt+m.cfg.SeedRetention {
				return nil, nil, ErrScanAlreadyActive
			}
			prev.Status = StatusExpired
			prev.FinalizedAt = now
			expired = prev
			logger.Warn("expiring stale scan", "tier", tier, "scanID", prev.ID)
		}
		id = prev.ID + 1
	}

	sc := &Scan{
		ID:          id,
		Seed:        DeriveSeed(tier, blockRandomness, now, blockNumber, id),
		BlockNumber: blockNumber,
		ExecutedAt:  now,
		TotalDead:   new(big.Int),
		Status:      StatusExecuted,
	}
	if err := m.scans[tier].Set(sc); err != nil {
		return nil, nil, errors.Wrap(err, "failed to set scan")
	}

	// advance the schedule; catch up if whole cycles were missed
	next := nextScanTime + interval
	if nextScanTime == 0 || next <= now {
		next = now + interval
	}
	if err := m.ldgr.SetNextScanTime(tier, next); err != nil {
		return nil, nil, err
	}
	logger.Info("scan executed", "tier", tier, "scanID", sc.ID, "seed", sc.Seed.AbbrevString())
	return sc, expired, nil
}

// SubmitDeaths verifies a batch of candidate addresses against the locked seed
// and marks the valid ones dead. Individual entries that fail the predicate or
// were already processed are skipped silently so one bad entry cannot waste a
// whole batch. An address counts at most once per scan, tracked in a processed
// set keyed by scan ID, so a position created after the seed lock is never
// touched by it. Returns the updated scan and how many entries were accepted.
func (m *Machine) SubmitDeaths(tier tracenet.Tier, candidates []tracenet.Address, rateFn RateFn, epoch, now uint64) (*Scan, int, error) {
	if !tier.Valid() {
		return nil, 0, ledger.ErrInvalidTier
	}
	if len(candidates) > m.cfg.MaxBatch {
		return nil, 0, ErrBatchTooLarge
	}
	sc, ok, err := m.scans[tier].Get()
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to get scan")
	}
	if !ok || sc.Status != StatusExecuted {
		return nil, 0, ErrNoActiveScan
	}
	if now > sc.ExecutedAt+m.cfg.SeedRetention {
		return nil, 0, ErrScanExpired
	}

	baseRate := m.ldgr.TierParams(tier).DeathRateBps
	accepted := 0
	for _, addr := range candidates {
		key := newDeathKey(sc.ID, addr)
		processed, err := m.deaths[tier].Has(key)
		if err != nil {
			return nil, accepted, errors.Wrap(err, "failed to check processed set")
		}
		if processed {
			continue
		}
		rate, err := rateFn(addr, baseRate)
		if err != nil {
			return nil, accepted, err
		}
		if !IsDead(sc.Seed, addr, rate) {
			continue
		}
		dead, err := m.ldgr.MarkDead(tier, addr, epoch)
		if err != nil {
			if revertsFromLedger(err) {
				continue
			}
			return nil, accepted, err
		}
		// each accepted death commits as a unit: processed flag, then the
		// scan tally, so a later failing entry cannot strand killed capital
		// outside the cascade
		if err := m.deaths[tier].Set(key); err != nil {
			return nil, accepted, errors.Wrap(err, "failed to set processed flag")
		}
		sc.TotalDead.Add(sc.TotalDead, dead)
		sc.DeathCount++
		if err := m.scans[tier].Set(sc); err != nil {
			return nil, accepted, errors.Wrap(err, "failed to set scan")
		}
		accepted++
	}
	logger.Debug("deaths submitted", "tier", tier, "scanID", sc.ID, "batch", len(candidates), "accepted", accepted)
	return sc, accepted, nil
}

// Finalize closes a scan after its submission window: the accumulated dead
// capital cascades and survivor streaks grow. Past the seed retention bound it
// expires instead; proofs can no longer be checked against the seed source,
// so positions stay alive and the tier just waits for its next schedule.
func (m *Machine) Finalize(tier tracenet.Tier, now uint64, pay func(*Distribution) error) (*Scan, *Distribution, error) {
	if !tier.Valid() {
		return nil, nil, ledger.ErrInvalidTier
	}
	sc, ok, err := m.scans[tier].Get()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get scan")
	}
	if !ok || sc.Status != StatusExecuted {
		return nil, nil, ErrNoActiveScan
	}
	if now < sc.ExecutedAt+m.cfg.SubmissionWindow {
		return nil, nil, ErrSubmissionWindowNotClosed
	}

	if now > sc.ExecutedAt+m.cfg.SeedRetention {
		sc.Status = StatusExpired
		sc.FinalizedAt = now
		if err := m.scans[tier].Set(sc); err != nil {
			return nil, nil, errors.Wrap(err, "failed to set scan")
		}
		logger.Warn("scan expired", "tier", tier, "scanID", sc.ID, "deaths", sc.DeathCount)
		return sc, nil, nil
	}

	dist, err := m.distributor.Distribute(tier, sc.TotalDead, pay)
	if err != nil {
		return nil, nil, err
	}
	if err := m.ldgr.IncrementStreaks(tier); err != nil {
		return nil, nil, err
	}
	sc.Status = StatusFinalized
	sc.FinalizedAt = now
	if err := m.scans[tier].Set(sc); err != nil {
		return nil, nil, errors.Wrap(err, "failed to set scan")
	}
	logger.Info("scan finalized", "tier", tier, "scanID", sc.ID, "deaths", sc.DeathCount, "totalDead", sc.TotalDead)
	return sc, dist, nil
}

// revertsFromLedger reports the per-item skip conditions of death submission.
func revertsFromLedger(err error) bool {
	return err == ledger.ErrNoPosition || err == ledger.ErrAlreadyProcessed || err == ledger.ErrPositionDead
}
