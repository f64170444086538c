// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package scan

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gridrun/tracenet/tracenet"
)

func TestDeriveSeedDeterministic(t *testing.T) {
	randomness := tracenet.Blake2b([]byte("beacon"))

	s1 := DeriveSeed(tracenet.TierDarknet, randomness, 1000, 42, 1)
	s2 := DeriveSeed(tracenet.TierDarknet, randomness, 1000, 42, 1)
	assert.Equal(t, s1, s2)

	// every input is load-bearing
	assert.NotEqual(t, s1, DeriveSeed(tracenet.TierSubnet, randomness, 1000, 42, 1))
	assert.NotEqual(t, s1, DeriveSeed(tracenet.TierDarknet, randomness, 1001, 42, 1))
	assert.NotEqual(t, s1, DeriveSeed(tracenet.TierDarknet, randomness, 1000, 43, 1))
	assert.NotEqual(t, s1, DeriveSeed(tracenet.TierDarknet, randomness, 1000, 42, 2))
	assert.NotEqual(t, s1, DeriveSeed(tracenet.TierDarknet, tracenet.Blake2b([]byte("other")), 1000, 42, 1))
}

func TestIsDeadBoundaries(t *testing.T) {
	seed := tracenet.Blake2b([]byte("seed"))

	for i := 0; i < 100; i++ {
		var user tracenet.Address
		binary.BigEndian.PutUint64(user[:8], uint64(i))
		assert.False(t, IsDead(seed, user, 0), "zero rate never kills")
		assert.True(t, IsDead(seed, user, tracenet.BpsDenominator), "full rate always kills")
		assert.True(t, IsDead(seed, user, tracenet.BpsDenominator+1), "over-full rate always kills")
	}
}

func TestIsDeadMatchesRoll(t *testing.T) {
	seed := tracenet.Blake2b([]byte("seed"))
	user := tracenet.BytesToAddress([]byte("user"))

	h := tracenet.Blake2b(seed.Bytes(), user.Bytes())
	roll := binary.BigEndian.Uint64(h[:8]) % tracenet.BpsDenominator

	assert.True(t, IsDead(seed, user, roll+1))
	assert.False(t, IsDead(seed, user, roll))
	if roll > 0 {
		assert.False(t, IsDead(seed, user, roll-1))
	}
}

func TestIsDeadRoughlyUniform(t *testing.T) {
	seed := tracenet.Blake2b([]byte("uniformity"))

	dead := 0
	const n = 2000
	for i := 0; i < n; i++ {
		var user tracenet.Address
		binary.BigEndian.PutUint64(user[:8], uint64(i))
		if IsDead(seed, user, 5000) {
			dead++
		}
	}
	// 50% rate over 2000 draws; allow a generous band
	assert.Greater(t, dead, n*4/10)
	assert.Less(t, dead, n*6/10)
}
