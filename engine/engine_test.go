// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package engine

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrun/tracenet/boost"
	"github.com/gridrun/tracenet/eventdb"
	"github.com/gridrun/tracenet/ledger"
	"github.com/gridrun/tracenet/lvldb"
	"github.com/gridrun/tracenet/reset"
	"github.com/gridrun/tracenet/scan"
	"github.com/gridrun/tracenet/tracenet"
)

const (
	testLock        = 100
	testWindow      = 600
	testRetention   = 3600
	testInterval    = 1800
	testResetWindow = 1000
)

var testTreasury = tracenet.BytesToAddress([]byte("treasury"))

// memToken is an in-memory custody token with no transfer tax.
type memToken struct {
	balances map[tracenet.Address]*big.Int
	custody  *big.Int
	burned   *big.Int
}

func newMemToken() *memToken {
	return &memToken{
		balances: make(map[tracenet.Address]*big.Int),
		custody:  new(big.Int),
		burned:   new(big.Int),
	}
}

func (tk *memToken) fund(user tracenet.Address, amount int64) {
	tk.balanceOf(user).Add(tk.balanceOf(user), big.NewInt(amount))
}

func (tk *memToken) balanceOf(user tracenet.Address) *big.Int {
	bal, ok := tk.balances[user]
	if !ok {
		bal = new(big.Int)
		tk.balances[user] = bal
	}
	return bal
}

func (tk *memToken) TransferFrom(user tracenet.Address, amount *big.Int) (*big.Int, error) {
	bal := tk.balanceOf(user)
	if bal.Cmp(amount) < 0 {
		return nil, errors.New("insufficient balance")
	}
	bal.Sub(bal, amount)
	tk.custody.Add(tk.custody, amount)
	return new(big.Int).Set(amount), nil
}

func (tk *memToken) Transfer(to tracenet.Address, amount *big.Int) error {
	if tk.custody.Cmp(amount) < 0 {
		return errors.New("insufficient custody")
	}
	tk.custody.Sub(tk.custody, amount)
	tk.balanceOf(to).Add(tk.balanceOf(to), amount)
	return nil
}

func (tk *memToken) Burn(amount *big.Int) error {
	if tk.custody.Cmp(amount) < 0 {
		return errors.New("insufficient custody")
	}
	tk.custody.Sub(tk.custody, amount)
	tk.burned.Add(tk.burned, amount)
	return nil
}

type fixedBeacon struct{}

func (fixedBeacon) Randomness() (tracenet.Bytes32, uint64, error) {
	return tracenet.Blake2b([]byte("beacon")), 42, nil
}

type testEnv struct {
	eng     *Engine
	token   *memToken
	clock   uint64
	authKey []byte
}

func newTestEnv(t *testing.T) *testEnv {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	edb, err := eventdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { edb.Close() })

	var tiers [tracenet.TierCount]tracenet.TierParams
	for tier := tracenet.Tier(0); tier.Valid(); tier++ {
		tiers[tier] = tracenet.TierParams{
			Name:     tier.String(),
			MinStake: big.NewInt(10),
		}
	}
	// certain death in the scanned tiers keeps selection deterministic
	tiers[tracenet.TierSubnet].DeathRateBps = 3000
	tiers[tracenet.TierSubnet].ScanInterval = testInterval
	tiers[tracenet.TierDarknet].DeathRateBps = 10000
	tiers[tracenet.TierDarknet].ScanInterval = testInterval
	tiers[tracenet.TierBlackIce].DeathRateBps = 10000
	tiers[tracenet.TierBlackIce].ScanInterval = testInterval

	env := &testEnv{
		token:   newMemToken(),
		clock:   1_000_000,
		authKey: crypto.FromECDSA(priv),
	}
	cfg := &Config{
		Tiers:        tiers,
		LockDuration: testLock,
		Scan: scan.Config{
			SubmissionWindow: testWindow,
			SeedRetention:    testRetention,
			MaxBatch:         16,
		},
		Reset: reset.Config{
			Window:           testResetWindow,
			BaseExtension:    60,
			ExtensionDivisor: big.NewInt(10),
			PenaltyBps:       500,
		},
		BoostAuthority: tracenet.Address(crypto.PubkeyToAddress(priv.PublicKey)),
		Treasury:       testTreasury,
		Now:            func() uint64 { return env.clock },
	}
	env.eng, err = New(db, edb, env.token, fixedBeacon{}, cfg)
	require.NoError(t, err)
	return env
}

func (env *testEnv) jackIn(t *testing.T, user tracenet.Address, amount int64, tier tracenet.Tier) {
	env.token.fund(user, amount)
	net, err := env.eng.JackIn(user, big.NewInt(amount), tier)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(amount), net)
}

func addr(b byte) tracenet.Address {
	return tracenet.BytesToAddress([]byte{b})
}

func TestJackInExtractLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := addr(1)
	env.token.fund(alice, 1000)

	net, err := env.eng.JackIn(alice, big.NewInt(500), tracenet.TierProxy)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), net)
	assert.Equal(t, big.NewInt(500), env.token.balanceOf(alice))
	assert.Equal(t, big.NewInt(500), env.token.custody)

	view, err := env.eng.Position(alice)
	require.NoError(t, err)
	assert.True(t, view.Alive)
	assert.Equal(t, big.NewInt(500), view.Amount)
	assert.Equal(t, env.clock+testLock, view.UnlockTime)

	_, err = env.eng.Extract(alice)
	assert.ErrorIs(t, err, ledger.ErrInLockPeriod)

	env.clock += testLock
	total, err := env.eng.Extract(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), total)
	assert.Equal(t, big.NewInt(1000), env.token.balanceOf(alice))
	assert.Zero(t, env.token.custody.Sign())

	_, err = env.eng.Position(alice)
	assert.ErrorIs(t, err, ledger.ErrNoPosition)
}

func TestJackInRefundsOnRejection(t *testing.T) {
	env := newTestEnv(t)
	alice := addr(1)
	env.jackIn(t, alice, 100, tracenet.TierProxy)
	env.token.fund(alice, 900)

	// one position per runner; custody hands the pulled tokens back
	_, err := env.eng.JackIn(alice, big.NewInt(100), tracenet.TierDarknet)
	assert.ErrorIs(t, err, ledger.ErrPositionExists)
	assert.Equal(t, big.NewInt(900), env.token.balanceOf(alice))
	assert.Equal(t, big.NewInt(100), env.token.custody)

	bob := addr(2)
	env.token.fund(bob, 100)
	_, err = env.eng.JackIn(bob, big.NewInt(5), tracenet.TierProxy)
	assert.ErrorIs(t, err, ledger.ErrBelowMinimum)
	assert.Equal(t, big.NewInt(100), env.token.balanceOf(bob))
}

func TestScanCascadeEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	for i := byte(1); i <= 10; i++ {
		env.jackIn(t, addr(i), 100, tracenet.TierDarknet)
	}
	upstream := addr(20)
	env.jackIn(t, upstream, 100, tracenet.TierBlackIce)
	require.Equal(t, big.NewInt(1100), env.token.custody)

	// the first scan is scheduled one interval out
	_, _, err := env.eng.ExecuteScan(tracenet.TierDarknet)
	assert.ErrorIs(t, err, scan.ErrScanNotReady)

	env.clock += testInterval
	sc, expired, err := env.eng.ExecuteScan(tracenet.TierDarknet)
	require.NoError(t, err)
	assert.Nil(t, expired)
	assert.Equal(t, scan.StatusExecuted, sc.Status)

	victims := []tracenet.Address{addr(1), addr(2), addr(3), addr(4)}
	sc, accepted, err := env.eng.SubmitDeaths(tracenet.TierDarknet, victims)
	require.NoError(t, err)
	assert.Equal(t, 4, accepted)
	assert.Equal(t, big.NewInt(400), sc.TotalDead)

	_, _, err = env.eng.FinalizeScan(tracenet.TierDarknet)
	assert.ErrorIs(t, err, scan.ErrSubmissionWindowNotClosed)

	env.clock += testWindow
	sc, dist, err := env.eng.FinalizeScan(tracenet.TierDarknet)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusFinalized, sc.Status)
	assert.Equal(t, big.NewInt(240), dist.SameLevel)
	assert.Equal(t, big.NewInt(60), dist.Upstream)
	assert.Equal(t, big.NewInt(60), dist.Burned)
	assert.Equal(t, big.NewInt(40), dist.Treasury)

	// burn and treasury tranches left custody as tokens
	assert.Equal(t, big.NewInt(60), env.token.burned)
	assert.Equal(t, big.NewInt(40), env.token.balanceOf(testTreasury))
	assert.Equal(t, big.NewInt(1000), env.token.custody)

	burned, err := env.eng.TotalBurned()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(60), burned)
	treasury, err := env.eng.TotalTreasury()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), treasury)

	// 240 same-level over six survivors of 100 each
	pending, err := env.eng.PendingRewards(addr(5))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), pending)
	paid, err := env.eng.ClaimRewards(addr(5))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), paid)
	assert.Equal(t, big.NewInt(40), env.token.balanceOf(addr(5)))

	// the upstream half pends one tier up
	pending, err = env.eng.PendingRewards(upstream)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(60), pending)

	// dead runners are out of the game
	_, err = env.eng.Extract(addr(1))
	assert.ErrorIs(t, err, ledger.ErrPositionDead)
	view, err := env.eng.Position(addr(1))
	require.NoError(t, err)
	assert.False(t, view.Alive)

	ts, err := env.eng.TierState(tracenet.TierDarknet)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(600), ts.TotalStaked)
	assert.Equal(t, uint64(6), ts.AliveCount)
	assert.Equal(t, uint64(1), ts.FinalizedScans)

	view, err = env.eng.Position(addr(5))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), view.GhostStreak)
}

func TestFinalizeTopTierBurnsAllUpstream(t *testing.T) {
	env := newTestEnv(t)
	env.jackIn(t, addr(1), 100, tracenet.TierBlackIce)
	env.jackIn(t, addr(2), 100, tracenet.TierBlackIce)

	env.clock += testInterval
	_, _, err := env.eng.ExecuteScan(tracenet.TierBlackIce)
	require.NoError(t, err)
	_, accepted, err := env.eng.SubmitDeaths(tracenet.TierBlackIce, []tracenet.Address{addr(2)})
	require.NoError(t, err)
	require.Equal(t, 1, accepted)

	env.clock += testWindow
	_, dist, err := env.eng.FinalizeScan(tracenet.TierBlackIce)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(60), dist.SameLevel)
	assert.Equal(t, 0, dist.Upstream.Sign())
	assert.Equal(t, big.NewInt(30), dist.Burned)
	assert.Equal(t, big.NewInt(10), dist.Treasury)
	assert.Equal(t, big.NewInt(30), env.token.burned)
	assert.Equal(t, big.NewInt(160), env.token.custody)
}

func TestFinalizeExpiresWithoutCascade(t *testing.T) {
	env := newTestEnv(t)
	env.jackIn(t, addr(1), 100, tracenet.TierDarknet)
	env.jackIn(t, addr(2), 100, tracenet.TierDarknet)

	env.clock += testInterval
	_, _, err := env.eng.ExecuteScan(tracenet.TierDarknet)
	require.NoError(t, err)
	_, accepted, err := env.eng.SubmitDeaths(tracenet.TierDarknet, []tracenet.Address{addr(2)})
	require.NoError(t, err)
	require.Equal(t, 1, accepted)

	env.clock += testRetention + 1
	sc, dist, err := env.eng.FinalizeScan(tracenet.TierDarknet)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusExpired, sc.Status)
	assert.Nil(t, dist)

	// no capital moved past the retention bound
	assert.Zero(t, env.token.burned.Sign())
	assert.Zero(t, env.token.balanceOf(testTreasury).Sign())
	ts, err := env.eng.TierState(tracenet.TierDarknet)
	require.NoError(t, err)
	assert.Zero(t, ts.FinalizedScans)
}

func TestTriggerResetPaysJackpot(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := addr(1), addr(2)
	start := env.clock

	// alice arms the timer: base 60 plus 1000/10 extra
	env.jackIn(t, alice, 1000, tracenet.TierProxy)
	env.clock = start + 10
	env.jackIn(t, bob, 100, tracenet.TierDarknet)

	st, err := env.eng.ResetState()
	require.NoError(t, err)
	require.Equal(t, start+230, st.Deadline)
	require.Equal(t, bob, st.LastDepositor)

	env.clock = st.Deadline - 1
	_, err = env.eng.TriggerReset()
	assert.ErrorIs(t, err, reset.ErrNotReady)

	// 5% of the 1100 staked across tiers goes to the last depositor
	env.clock = st.Deadline
	out, err := env.eng.TriggerReset()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(55), out.Jackpot)
	assert.Equal(t, bob, out.Winner)
	assert.Equal(t, big.NewInt(55), env.token.balanceOf(bob))
	assert.Equal(t, big.NewInt(1045), env.token.custody)

	// positions settle the cut lazily when next observed
	view, err := env.eng.Position(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(950), view.Amount)

	st, err = env.eng.ResetState()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Epoch)
	assert.Equal(t, env.clock+testResetWindow, st.Deadline)
}

func TestBoostDeathImmunity(t *testing.T) {
	env := newTestEnv(t)
	alice := addr(1)
	env.jackIn(t, alice, 100, tracenet.TierSubnet)

	// a signed reduction matching the tier's rate makes alice unselectable
	sig, err := boost.Sign(alice, boost.DeathReduction, 3000, env.clock+testRetention*2, 1, env.authKey)
	require.NoError(t, err)
	require.NoError(t, env.eng.ApplyBoost(alice, boost.DeathReduction, 3000, env.clock+testRetention*2, 1, sig))

	active, err := env.eng.Boosts(alice)
	require.NoError(t, err)
	require.Len(t, active, 1)

	env.clock += testInterval
	_, _, err = env.eng.ExecuteScan(tracenet.TierSubnet)
	require.NoError(t, err)
	_, accepted, err := env.eng.SubmitDeaths(tracenet.TierSubnet, []tracenet.Address{alice})
	require.NoError(t, err)
	assert.Zero(t, accepted)

	view, err := env.eng.Position(alice)
	require.NoError(t, err)
	assert.True(t, view.Alive)
}

func TestBoostYieldBonus(t *testing.T) {
	env := newTestEnv(t)
	alice, bob, carol := addr(1), addr(2), addr(3)
	env.jackIn(t, alice, 100, tracenet.TierDarknet)
	env.jackIn(t, bob, 100, tracenet.TierDarknet)
	env.jackIn(t, carol, 100, tracenet.TierDarknet)

	env.clock += testInterval
	_, _, err := env.eng.ExecuteScan(tracenet.TierDarknet)
	require.NoError(t, err)
	_, accepted, err := env.eng.SubmitDeaths(tracenet.TierDarknet, []tracenet.Address{carol})
	require.NoError(t, err)
	require.Equal(t, 1, accepted)
	env.clock += testWindow
	_, _, err = env.eng.FinalizeScan(tracenet.TierDarknet)
	require.NoError(t, err)

	// 60 same-level over two survivors: 30 pending each, pool holds 60
	sig, err := boost.Sign(alice, boost.YieldMultiplier, 10000, env.clock+1000, 1, env.authKey)
	require.NoError(t, err)
	require.NoError(t, env.eng.ApplyBoost(alice, boost.YieldMultiplier, 10000, env.clock+1000, 1, sig))

	paid, err := env.eng.ClaimRewards(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(60), paid)
	assert.Equal(t, big.NewInt(60), env.token.balanceOf(alice))
}

func TestApplyBoostRejectsForgedSignature(t *testing.T) {
	env := newTestEnv(t)
	alice := addr(1)

	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := boost.Sign(alice, boost.DeathReduction, 1000, env.clock+1000, 1, crypto.FromECDSA(stranger))
	require.NoError(t, err)
	err = env.eng.ApplyBoost(alice, boost.DeathReduction, 1000, env.clock+1000, 1, sig)
	assert.ErrorIs(t, err, boost.ErrInvalidSignature)
}

func TestEventTrail(t *testing.T) {
	env := newTestEnv(t)
	alice := addr(1)
	env.jackIn(t, alice, 100, tracenet.TierDarknet)

	env.clock += testInterval
	_, _, err := env.eng.ExecuteScan(tracenet.TierDarknet)
	require.NoError(t, err)

	events, err := env.eng.Events(nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, eventdb.KindJackIn, events[0].Kind)
	assert.Equal(t, alice, events[0].User)
	assert.Equal(t, eventdb.KindScanExecuted, events[1].Kind)
}
