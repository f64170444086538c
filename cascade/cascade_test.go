// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cascade

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrun/tracenet/ledger"
	"github.com/gridrun/tracenet/lvldb"
	"github.com/gridrun/tracenet/scan"
	"github.com/gridrun/tracenet/store"
	"github.com/gridrun/tracenet/tracenet"
)

func newTestDistributor(t *testing.T) (*Distributor, *ledger.Ledger) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := store.NewContext(db, "test")

	var tiers [tracenet.TierCount]tracenet.TierParams
	for tier := tracenet.Tier(0); tier.Valid(); tier++ {
		tiers[tier] = tracenet.TierParams{
			Name:     tier.String(),
			MinStake: big.NewInt(1),
		}
	}
	ldgr := ledger.New(ctx, tiers, 100)
	return New(ctx, ldgr), ldgr
}

func TestSplitTopTierBurnsAllUpstream(t *testing.T) {
	dist := Split(tracenet.TierBlackIce, big.NewInt(400))

	assert.Equal(t, big.NewInt(240), dist.SameLevel)
	assert.Equal(t, big.NewInt(0), dist.Upstream)
	assert.Equal(t, big.NewInt(120), dist.Burned)
	assert.Equal(t, big.NewInt(40), dist.Treasury)
}

func TestSplitMidTierHalvesUpstream(t *testing.T) {
	dist := Split(tracenet.TierSubnet, big.NewInt(400))

	assert.Equal(t, big.NewInt(240), dist.SameLevel)
	assert.Equal(t, big.NewInt(60), dist.Upstream)
	assert.Equal(t, big.NewInt(60), dist.Burned)
	assert.Equal(t, big.NewInt(40), dist.Treasury)
}

func TestSplitConservesExactly(t *testing.T) {
	// awkward values; the dust must land in the same-level bucket
	for _, totalDead := range []int64{1, 3, 7, 101, 9999, 12345678901} {
		for tier := tracenet.Tier(0); tier.Valid(); tier++ {
			t.Run(fmt.Sprintf("%v/%d", tier, totalDead), func(t *testing.T) {
				total := big.NewInt(totalDead)
				dist := Split(tier, total)

				sum := new(big.Int).Add(dist.SameLevel, dist.Upstream)
				sum.Add(sum, dist.Burned)
				sum.Add(sum, dist.Treasury)
				assert.Equal(t, total, sum)

				// same-level is the largest bucket, so it holds at least its floor share
				floor := new(big.Int).Mul(total, big.NewInt(6000))
				floor.Div(floor, big.NewInt(10000))
				assert.True(t, dist.SameLevel.Cmp(floor) >= 0)
			})
		}
	}
}

func TestDistributeCreditsSurvivorsAndUpstream(t *testing.T) {
	d, ldgr := newTestDistributor(t)

	// six survivors of 100 units each in the dying tier
	for i := 0; i < 6; i++ {
		user := tracenet.BytesToAddress([]byte{byte(i + 1)})
		require.NoError(t, ldgr.JackIn(user, big.NewInt(100), tracenet.TierDarknet, 0, 0))
	}
	upstream := tracenet.BytesToAddress([]byte("upstream"))
	require.NoError(t, ldgr.JackIn(upstream, big.NewInt(100), tracenet.TierBlackIce, 0, 0))

	dist, err := d.Distribute(tracenet.TierDarknet, big.NewInt(400), nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(240), dist.SameLevel)

	// 240 over 600 staked units: each survivor of 100 pends 40
	pending, err := ldgr.PendingRewards(tracenet.BytesToAddress([]byte{1}), 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), pending)

	// the upstream half flows one tier up
	pending, err = ldgr.PendingRewards(upstream, 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(60), pending)

	burned, err := d.TotalBurned()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(60), burned)

	treasury, err := d.TotalTreasury()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), treasury)
}

func TestDistributeZeroDead(t *testing.T) {
	d, _ := newTestDistributor(t)

	dist, err := d.Distribute(tracenet.TierProxy, new(big.Int), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, dist.SameLevel.Sign())
	assert.Equal(t, 0, dist.Treasury.Sign())
}

func TestDistributePayRunsBeforeCredits(t *testing.T) {
	d, ldgr := newTestDistributor(t)
	user := tracenet.BytesToAddress([]byte("alice"))
	require.NoError(t, ldgr.JackIn(user, big.NewInt(100), tracenet.TierProxy, 0, 0))

	var seen *scan.Distribution
	_, err := d.Distribute(tracenet.TierProxy, big.NewInt(100), func(dist *scan.Distribution) error {
		seen = dist
		return errors.New("token transfer failed")
	})
	assert.EqualError(t, err, "token transfer failed")
	require.NotNil(t, seen)
	assert.Equal(t, big.NewInt(60), seen.SameLevel)

	// the aborted distribution credited nothing
	pending, err := ldgr.PendingRewards(user, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, pending.Sign())

	burned, err := d.TotalBurned()
	require.NoError(t, err)
	assert.Equal(t, 0, burned.Sign())
}
