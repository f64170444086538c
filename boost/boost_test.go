// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package boost

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrun/tracenet/lvldb"
	"github.com/gridrun/tracenet/store"
	"github.com/gridrun/tracenet/tracenet"
)

func newTestRegistry(t *testing.T) (*Registry, []byte) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	authority := tracenet.Address(crypto.PubkeyToAddress(priv.PublicKey))

	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := New(store.NewContext(db, "test"), authority)
	return reg, crypto.FromECDSA(priv)
}

func grant(t *testing.T, reg *Registry, key []byte, user tracenet.Address, kind Kind, valueBps, expiry, nonce, now uint64) {
	sig, err := Sign(user, kind, valueBps, expiry, nonce, key)
	require.NoError(t, err)
	require.NoError(t, reg.Apply(user, kind, valueBps, expiry, nonce, sig, now))
}

func TestApplyAndActive(t *testing.T) {
	reg, key := newTestRegistry(t)
	user := tracenet.BytesToAddress([]byte("alice"))

	grant(t, reg, key, user, DeathReduction, 1000, 2000, 1, 100)

	active, err := reg.Active(user, 100)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, DeathReduction, active[0].Kind)
	assert.Equal(t, uint64(1000), active[0].ValueBps)

	// expired boosts drop out of the view
	active, err = reg.Active(user, 2000)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestApplyRejectsBadSignature(t *testing.T) {
	reg, key := newTestRegistry(t)
	user := tracenet.BytesToAddress([]byte("alice"))

	sig, err := Sign(user, DeathReduction, 1000, 2000, 1, key)
	require.NoError(t, err)

	// signature over different parameters does not verify
	err = reg.Apply(user, DeathReduction, 2000, 2000, 1, sig, 100)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// stranger's key is not the authority
	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err = Sign(user, DeathReduction, 1000, 2000, 1, crypto.FromECDSA(stranger))
	require.NoError(t, err)
	err = reg.Apply(user, DeathReduction, 1000, 2000, 1, sig, 100)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// garbage bytes fail recovery
	err = reg.Apply(user, DeathReduction, 1000, 2000, 1, []byte{1, 2, 3}, 100)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestApplyRejectsReplay(t *testing.T) {
	reg, key := newTestRegistry(t)
	user := tracenet.BytesToAddress([]byte("alice"))

	sig, err := Sign(user, YieldMultiplier, 500, 2000, 7, key)
	require.NoError(t, err)
	require.NoError(t, reg.Apply(user, YieldMultiplier, 500, 2000, 7, sig, 100))

	err = reg.Apply(user, YieldMultiplier, 500, 2000, 7, sig, 100)
	assert.ErrorIs(t, err, ErrNonceAlreadyUsed)

	// the nonce set is global, a fresh grant cannot reuse it either
	sig, err = Sign(user, DeathReduction, 100, 2000, 7, key)
	require.NoError(t, err)
	err = reg.Apply(user, DeathReduction, 100, 2000, 7, sig, 100)
	assert.ErrorIs(t, err, ErrNonceAlreadyUsed)
}

func TestApplyRejectsExpiredAndInvalid(t *testing.T) {
	reg, key := newTestRegistry(t)
	user := tracenet.BytesToAddress([]byte("alice"))

	sig, err := Sign(user, DeathReduction, 1000, 99, 1, key)
	require.NoError(t, err)
	err = reg.Apply(user, DeathReduction, 1000, 99, 1, sig, 100)
	assert.ErrorIs(t, err, ErrSignatureExpired)

	err = reg.Apply(user, Kind(99), 1000, 2000, 1, sig, 100)
	assert.ErrorIs(t, err, ErrInvalidBoost)
	err = reg.Apply(user, DeathReduction, 0, 2000, 1, sig, 100)
	assert.ErrorIs(t, err, ErrInvalidBoost)
}

func TestEffectiveDeathRate(t *testing.T) {
	reg, key := newTestRegistry(t)
	user := tracenet.BytesToAddress([]byte("alice"))

	// no boosts: base passes through
	rate, err := reg.EffectiveDeathRate(user, 3000, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), rate)

	grant(t, reg, key, user, DeathReduction, 1000, 2000, 1, 100)
	grant(t, reg, key, user, DeathReduction, 1500, 2000, 2, 100)

	// additive folding: 3000 - (1000 + 1500)
	rate, err = reg.EffectiveDeathRate(user, 3000, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), rate)

	// a third grant pushes past the reduction cap
	grant(t, reg, key, user, DeathReduction, 2000, 2000, 3, 100)
	rate, err = reg.EffectiveDeathRate(user, 5000, 100)
	require.NoError(t, err)
	assert.Equal(t, 5000-tracenet.MaxDeathReductionBps, rate)

	// capped reduction above the base rate floors at zero
	rate, err = reg.EffectiveDeathRate(user, 500, 100)
	require.NoError(t, err)
	assert.Zero(t, rate)

	// once expired the base rate returns
	rate, err = reg.EffectiveDeathRate(user, 3000, 2000)
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), rate)
}

func TestEffectiveYieldBonus(t *testing.T) {
	reg, key := newTestRegistry(t)
	user := tracenet.BytesToAddress([]byte("alice"))

	grant(t, reg, key, user, YieldMultiplier, 4000, 2000, 1, 100)
	grant(t, reg, key, user, YieldMultiplier, 8000, 2000, 2, 100)

	bonus, err := reg.EffectiveYieldBonusBps(user, 100)
	require.NoError(t, err)
	assert.Equal(t, tracenet.MaxYieldBoostBps, bonus)

	bonus, err = reg.EffectiveYieldBonusBps(user, 2000)
	require.NoError(t, err)
	assert.Zero(t, bonus)
}

func TestBonusOn(t *testing.T) {
	assert.Equal(t, big.NewInt(50), BonusOn(big.NewInt(1000), 500))
	assert.Equal(t, 0, BonusOn(big.NewInt(1000), 0).Sign())
	assert.Equal(t, 0, BonusOn(new(big.Int), 500).Sign())
	// floor division
	assert.Equal(t, big.NewInt(0), BonusOn(big.NewInt(19), 500))
}
