// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package engine ties the core components together behind one concurrency-safe
// facade. It owns the lock hierarchy (tier locks in ascending order, then the
// reset timer, then the boost registry) and the token custody rule: tokens
// move before the ledger mutates, so a failed transfer leaves no partial
// state behind.
package engine

import (
	"math/big"
	"sync"

	"github.com/gridrun/tracenet/boost"
	"github.com/gridrun/tracenet/cascade"
	"github.com/gridrun/tracenet/eventdb"
	"github.com/gridrun/tracenet/kv"
	"github.com/gridrun/tracenet/ledger"
	"github.com/gridrun/tracenet/log"
	"github.com/gridrun/tracenet/reset"
	"github.com/gridrun/tracenet/scan"
	"github.com/gridrun/tracenet/store"
	"github.com/gridrun/tracenet/tracenet"
)

var logger = log.WithContext("pkg", "engine")

const storeBucket = kv.Bucket("core")

// Engine is the single entry point of the protocol core. All exported methods
// are safe for concurrent use.
type Engine struct {
	cfg    *Config
	ldgr   *ledger.Ledger
	mach   *scan.Machine
	dist   *cascade.Distributor
	timer  *reset.Timer
	boosts *boost.Registry
	events *eventdb.EventDB
	token  Token
	beacon Beacon

	// lock order: tierMu ascending, then resetMu, then boostMu
	tierMu  [tracenet.TierCount]sync.Mutex
	resetMu sync.Mutex
	boostMu sync.Mutex
}

// New assembles an engine over the given key-value store. Fresh tiers get
// their first scan scheduled one interval out from now.
func New(src kv.GetPutter, events *eventdb.EventDB, token Token, beacon Beacon, cfg *Config) (*Engine, error) {
	ctx := store.NewContext(src, storeBucket)
	ldgr := ledger.New(ctx, cfg.Tiers, cfg.LockDuration)
	dist := cascade.New(ctx, ldgr)

	e := &Engine{
		cfg:    cfg,
		ldgr:   ldgr,
		mach:   scan.New(ctx, ldgr, dist, cfg.Scan),
		dist:   dist,
		timer:  reset.New(ctx, ldgr, cfg.Reset),
		boosts: boost.New(ctx, cfg.BoostAuthority),
		events: events,
		token:  token,
		beacon: beacon,
	}

	now := cfg.now()
	for tier := tracenet.Tier(0); tier.Valid(); tier++ {
		interval := cfg.Tiers[tier].ScanInterval
		if interval == 0 {
			continue
		}
		next, err := ldgr.NextScanTime(tier)
		if err != nil {
			return nil, err
		}
		if next == 0 {
			if err := ldgr.SetNextScanTime(tier, now+interval); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// JackIn pulls amount from the user and opens a position in tier. Returns the
// net amount actually staked after transfer tax.
func (e *Engine) JackIn(user tracenet.Address, amount *big.Int, tier tracenet.Tier) (*big.Int, error) {
	if !tier.Valid() {
		return nil, ledger.ErrInvalidTier
	}
	e.tierMu[tier].Lock()
	defer e.tierMu[tier].Unlock()
	e.resetMu.Lock()
	defer e.resetMu.Unlock()

	now := e.cfg.now()
	epoch, err := e.timer.Epoch()
	if err != nil {
		return nil, err
	}
	if err := e.ldgr.AccrueYield(tier, now); err != nil {
		return nil, err
	}

	net, err := e.token.TransferFrom(user, amount)
	if err != nil {
		return nil, err
	}
	if err := e.ldgr.JackIn(user, net, tier, now, epoch); err != nil {
		// custody already holds the tokens; hand them back
		if rerr := e.token.Transfer(user, net); rerr != nil {
			logger.Error("refund after rejected jack-in failed", "user", user, "amount", net, "err", rerr)
		}
		return nil, err
	}
	if err := e.timer.OnDeposit(user, net, now); err != nil {
		return nil, err
	}

	e.append(&eventdb.Event{Kind: eventdb.KindJackIn, Tier: tier, Epoch: epoch, User: user, Amount: net, Timestamp: now})
	metricPositionOps().AddWithLabel(1, map[string]string{"op": "jack-in", "tier": tier.String()})
	e.refreshTierGauges(tier)
	return net, nil
}

// AddStake grows the user's position, restarting its lock period. Returns the
// net amount added.
func (e *Engine) AddStake(user tracenet.Address, amount *big.Int) (*big.Int, error) {
	tier, err := e.positionTier(user)
	if err != nil {
		return nil, err
	}
	e.tierMu[tier].Lock()
	defer e.tierMu[tier].Unlock()
	e.resetMu.Lock()
	defer e.resetMu.Unlock()

	now := e.cfg.now()
	epoch, err := e.timer.Epoch()
	if err != nil {
		return nil, err
	}
	if err := e.ldgr.AccrueYield(tier, now); err != nil {
		return nil, err
	}

	net, err := e.token.TransferFrom(user, amount)
	if err != nil {
		return nil, err
	}
	if err := e.ldgr.AddStake(user, net, now, epoch); err != nil {
		if rerr := e.token.Transfer(user, net); rerr != nil {
			logger.Error("refund after rejected add-stake failed", "user", user, "amount", net, "err", rerr)
		}
		return nil, err
	}
	if err := e.timer.OnDeposit(user, net, now); err != nil {
		return nil, err
	}

	e.append(&eventdb.Event{Kind: eventdb.KindAddStake, Tier: tier, Epoch: epoch, User: user, Amount: net, Timestamp: now})
	metricPositionOps().AddWithLabel(1, map[string]string{"op": "add-stake", "tier": tier.String()})
	e.refreshTierGauges(tier)
	return net, nil
}

// ClaimRewards pays out the user's settled rewards plus any yield-boost bonus.
// The bonus is drawn from the tier's reward pool and can never overdraw it.
func (e *Engine) ClaimRewards(user tracenet.Address) (*big.Int, error) {
	tier, err := e.positionTier(user)
	if err != nil {
		return nil, err
	}
	e.tierMu[tier].Lock()
	defer e.tierMu[tier].Unlock()
	e.resetMu.Lock()
	epoch, eerr := e.timer.Epoch()
	e.resetMu.Unlock()
	if eerr != nil {
		return nil, eerr
	}

	now := e.cfg.now()
	if err := e.ldgr.AccrueYield(tier, now); err != nil {
		return nil, err
	}

	// settle read-only first so the token payout happens before any write
	rewards, err := e.ldgr.PendingRewards(user, epoch)
	if err != nil {
		return nil, err
	}
	bonus, err := e.bonusOn(tier, user, rewards, now)
	if err != nil {
		return nil, err
	}

	total := new(big.Int).Add(rewards, bonus)
	if total.Sign() > 0 {
		if err := e.token.Transfer(user, total); err != nil {
			return nil, err
		}
	}
	if _, err := e.ldgr.ClaimRewards(user, epoch); err != nil {
		return nil, err
	}
	if bonus.Sign() > 0 {
		if _, err := e.ldgr.DebitPool(tier, bonus); err != nil {
			return nil, err
		}
	}

	e.append(&eventdb.Event{Kind: eventdb.KindClaim, Tier: tier, Epoch: epoch, User: user, Amount: total, AuxAmount: bonus, Timestamp: now})
	metricPositionOps().AddWithLabel(1, map[string]string{"op": "claim", "tier": tier.String()})
	return total, nil
}

// Extract closes the user's position past its lock period and pays principal
// plus settled rewards plus any yield-boost bonus.
func (e *Engine) Extract(user tracenet.Address) (*big.Int, error) {
	tier, err := e.positionTier(user)
	if err != nil {
		return nil, err
	}
	e.tierMu[tier].Lock()
	defer e.tierMu[tier].Unlock()
	e.resetMu.Lock()
	epoch, eerr := e.timer.Epoch()
	e.resetMu.Unlock()
	if eerr != nil {
		return nil, eerr
	}

	now := e.cfg.now()
	if err := e.ldgr.AccrueYield(tier, now); err != nil {
		return nil, err
	}

	view, err := e.ldgr.GetPosition(user, epoch)
	if err != nil {
		return nil, err
	}
	if !view.Alive {
		return nil, ledger.ErrPositionDead
	}
	if now < view.LastAddTime+e.cfg.LockDuration {
		return nil, ledger.ErrInLockPeriod
	}
	bonus, err := e.bonusOn(tier, user, view.Claimable, now)
	if err != nil {
		return nil, err
	}

	total := new(big.Int).Add(view.Amount, view.Claimable)
	total.Add(total, bonus)
	if total.Sign() > 0 {
		if err := e.token.Transfer(user, total); err != nil {
			return nil, err
		}
	}
	if _, _, err := e.ldgr.Extract(user, now, epoch); err != nil {
		return nil, err
	}
	if bonus.Sign() > 0 {
		if _, err := e.ldgr.DebitPool(tier, bonus); err != nil {
			return nil, err
		}
	}

	e.append(&eventdb.Event{Kind: eventdb.KindExtract, Tier: tier, Epoch: epoch, User: user, Amount: total, AuxAmount: bonus, Timestamp: now})
	metricPositionOps().AddWithLabel(1, map[string]string{"op": "extract", "tier": tier.String()})
	e.refreshTierGauges(tier)
	return total, nil
}

// ExecuteScan locks a new scan seed for tier once its schedule has elapsed.
// A stale unfinalized scan is expired in place and reported as the second
// return value.
func (e *Engine) ExecuteScan(tier tracenet.Tier) (*scan.Scan, *scan.Scan, error) {
	if !tier.Valid() {
		return nil, nil, ledger.ErrInvalidTier
	}
	e.tierMu[tier].Lock()
	defer e.tierMu[tier].Unlock()

	now := e.cfg.now()
	if err := e.ldgr.AccrueYield(tier, now); err != nil {
		return nil, nil, err
	}
	randomness, blockNumber, err := e.beacon.Randomness()
	if err != nil {
		return nil, nil, err
	}
	sc, expired, err := e.mach.Execute(tier, randomness, blockNumber, now)
	if err != nil {
		return nil, nil, err
	}

	if expired != nil {
		e.append(&eventdb.Event{Kind: eventdb.KindScanExpired, Tier: tier, ScanID: expired.ID, Amount: expired.TotalDead, Timestamp: now})
		metricScans().AddWithLabel(1, map[string]string{"tier": tier.String(), "status": "expired"})
	}
	e.append(&eventdb.Event{Kind: eventdb.KindScanExecuted, Tier: tier, ScanID: sc.ID, Timestamp: now})
	metricScans().AddWithLabel(1, map[string]string{"tier": tier.String(), "status": "executed"})
	return sc, expired, nil
}

// SubmitDeaths checks a batch of candidates against the active scan's seed and
// kills the ones the predicate selects. Permissionless; invalid entries are
// skipped. Returns the updated scan and the number of accepted deaths.
func (e *Engine) SubmitDeaths(tier tracenet.Tier, candidates []tracenet.Address) (*scan.Scan, int, error) {
	if !tier.Valid() {
		return nil, 0, ledger.ErrInvalidTier
	}
	e.tierMu[tier].Lock()
	defer e.tierMu[tier].Unlock()
	e.resetMu.Lock()
	epoch, eerr := e.timer.Epoch()
	e.resetMu.Unlock()
	if eerr != nil {
		return nil, 0, eerr
	}

	now := e.cfg.now()
	if err := e.ldgr.AccrueYield(tier, now); err != nil {
		return nil, 0, err
	}

	rateFn := func(user tracenet.Address, baseRateBps uint64) (uint64, error) {
		e.boostMu.Lock()
		defer e.boostMu.Unlock()
		return e.boosts.EffectiveDeathRate(user, baseRateBps, now)
	}
	sc, accepted, err := e.mach.SubmitDeaths(tier, candidates, rateFn, epoch, now)
	if err != nil {
		return nil, accepted, err
	}

	if accepted > 0 {
		e.append(&eventdb.Event{
			Kind:      eventdb.KindDeathsSubmitted,
			Tier:      tier,
			ScanID:    sc.ID,
			Epoch:     epoch,
			Amount:    sc.TotalDead,
			AuxAmount: big.NewInt(int64(accepted)),
			Timestamp: now,
		})
		metricDeaths().AddWithLabel(int64(accepted), map[string]string{"tier": tier.String()})
		e.refreshTierGauges(tier)
	}
	return sc, accepted, nil
}

// FinalizeScan closes tier's scan after its submission window: the burn and
// treasury tranches move as tokens first, then the cascade credits the ledger.
// Past the retention bound the scan expires with no capital movement.
func (e *Engine) FinalizeScan(tier tracenet.Tier) (*scan.Scan, *scan.Distribution, error) {
	if !tier.Valid() {
		return nil, nil, ledger.ErrInvalidTier
	}
	// the cascade credits tier+1, so its lock is taken too
	e.tierMu[tier].Lock()
	defer e.tierMu[tier].Unlock()
	upstream := tier + 1
	if upstream.Valid() {
		e.tierMu[upstream].Lock()
		defer e.tierMu[upstream].Unlock()
	}

	now := e.cfg.now()
	if err := e.ldgr.AccrueYield(tier, now); err != nil {
		return nil, nil, err
	}
	if upstream.Valid() {
		if err := e.ldgr.AccrueYield(upstream, now); err != nil {
			return nil, nil, err
		}
	}

	pay := func(dist *scan.Distribution) error {
		if dist.Burned.Sign() > 0 {
			if err := e.token.Burn(dist.Burned); err != nil {
				return err
			}
		}
		if dist.Treasury.Sign() > 0 {
			if err := e.token.Transfer(e.cfg.Treasury, dist.Treasury); err != nil {
				return err
			}
		}
		return nil
	}
	sc, dist, err := e.mach.Finalize(tier, now, pay)
	if err != nil {
		return nil, nil, err
	}

	if sc.Status == scan.StatusExpired {
		e.append(&eventdb.Event{Kind: eventdb.KindScanExpired, Tier: tier, ScanID: sc.ID, Amount: sc.TotalDead, Timestamp: now})
		metricScans().AddWithLabel(1, map[string]string{"tier": tier.String(), "status": "expired"})
		return sc, nil, nil
	}
	e.append(&eventdb.Event{Kind: eventdb.KindScanFinalized, Tier: tier, ScanID: sc.ID, Amount: sc.TotalDead, AuxAmount: big.NewInt(int64(sc.DeathCount)), Timestamp: now})
	e.append(&eventdb.Event{Kind: eventdb.KindCascadeDistributed, Tier: tier, ScanID: sc.ID, Amount: dist.SameLevel, AuxAmount: dist.Upstream, Timestamp: now})
	metricScans().AddWithLabel(1, map[string]string{"tier": tier.String(), "status": "finalized"})
	return sc, dist, nil
}

// TriggerReset fires the doomsday timer once its deadline has passed: the
// jackpot moves to the last depositor first, then every tier records its
// epoch cut and the countdown rearms.
func (e *Engine) TriggerReset() (*reset.Outcome, error) {
	for tier := tracenet.Tier(0); tier.Valid(); tier++ {
		e.tierMu[tier].Lock()
		defer e.tierMu[tier].Unlock()
	}
	e.resetMu.Lock()
	defer e.resetMu.Unlock()

	now := e.cfg.now()
	preview, err := e.timer.Preview(now)
	if err != nil {
		return nil, err
	}
	if preview.Jackpot.Sign() > 0 {
		if err := e.token.Transfer(preview.Winner, preview.Jackpot); err != nil {
			return nil, err
		}
	}
	out, err := e.timer.Trigger(now)
	if err != nil {
		return nil, err
	}

	e.append(&eventdb.Event{Kind: eventdb.KindSystemReset, Epoch: out.Epoch, User: out.Winner, Amount: out.Jackpot, Timestamp: now})
	metricResets().Add(1)
	return out, nil
}

// ApplyBoost verifies an authority-signed boost grant and registers it.
func (e *Engine) ApplyBoost(user tracenet.Address, kind boost.Kind, valueBps, expiry, nonce uint64, sig []byte) error {
	e.boostMu.Lock()
	defer e.boostMu.Unlock()

	now := e.cfg.now()
	if err := e.boosts.Apply(user, kind, valueBps, expiry, nonce, sig, now); err != nil {
		return err
	}
	e.append(&eventdb.Event{Kind: eventdb.KindBoostApplied, User: user, Amount: big.NewInt(int64(valueBps)), AuxAmount: big.NewInt(int64(kind)), Timestamp: now})
	return nil
}

// positionTier resolves which tier lock guards the user's position. The tier
// of an alive position never changes, so reading it unlocked is safe.
func (e *Engine) positionTier(user tracenet.Address) (tracenet.Tier, error) {
	e.resetMu.Lock()
	epoch, err := e.timer.Epoch()
	e.resetMu.Unlock()
	if err != nil {
		return 0, err
	}
	pos, err := e.ldgr.GetPosition(user, epoch)
	if err != nil {
		return 0, err
	}
	if !pos.Alive {
		return 0, ledger.ErrPositionDead
	}
	return pos.Tier, nil
}

// bonusOn computes the yield-boost bonus on base, capped by what the tier's
// reward pool can still cover after base itself is drawn.
func (e *Engine) bonusOn(tier tracenet.Tier, user tracenet.Address, base *big.Int, now uint64) (*big.Int, error) {
	e.boostMu.Lock()
	bonusBps, err := e.boosts.EffectiveYieldBonusBps(user, now)
	e.boostMu.Unlock()
	if err != nil {
		return nil, err
	}
	bonus := boost.BonusOn(base, bonusBps)
	if bonus.Sign() == 0 {
		return bonus, nil
	}
	ts, err := e.ldgr.GetTierState(tier)
	if err != nil {
		return nil, err
	}
	available := new(big.Int).Sub(ts.RewardPool, base)
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	if bonus.Cmp(available) > 0 {
		bonus.Set(available)
	}
	return bonus, nil
}

// refreshTierGauges republishes the tier's aggregate gauges. Staked capital is
// reported in whole tokens so it fits the int64 gauge.
func (e *Engine) refreshTierGauges(tier tracenet.Tier) {
	ts, err := e.ldgr.GetTierState(tier)
	if err != nil {
		return
	}
	labels := map[string]string{"tier": tier.String()}
	whole := new(big.Int).Div(ts.TotalStaked, big.NewInt(1e18))
	if whole.IsInt64() {
		metricTierStaked().SetWithLabel(whole.Int64(), labels)
	}
	metricTierAlive().SetWithLabel(int64(ts.AliveCount), labels)
}

func (e *Engine) append(ev *eventdb.Event) {
	if e.events == nil {
		return
	}
	if _, err := e.events.Append(ev); err != nil {
		logger.Warn("failed to append event", "kind", ev.Kind, "err", err)
	}
}
