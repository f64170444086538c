// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrun/tracenet/tracenet"
)

func TestDefaultMatchesMainnet(t *testing.T) {
	ec, err := Default().Engine()
	require.NoError(t, err)

	assert.Equal(t, tracenet.LockDuration, ec.LockDuration)
	assert.Equal(t, tracenet.SubmissionWindow, ec.Scan.SubmissionWindow)
	assert.Equal(t, tracenet.ResetPenaltyBps, ec.Reset.PenaltyBps)
	assert.Equal(t, tracenet.DefaultTiers(), ec.Tiers)
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
lockDuration: 42
resetPenaltyBps: 123
treasury: "0x0000000000000000000000000000000000000001"
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	ec, err := c.Engine()
	require.NoError(t, err)

	// overridden keys take effect, the rest keep their defaults
	assert.Equal(t, uint64(42), ec.LockDuration)
	assert.Equal(t, uint64(123), ec.Reset.PenaltyBps)
	assert.Equal(t, tracenet.SeedRetention, ec.Scan.SeedRetention)
	assert.Equal(t, tracenet.DefaultTiers(), ec.Tiers)
	assert.Equal(t, tracenet.BytesToAddress([]byte{1}), ec.Treasury)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEngineValidation(t *testing.T) {
	c := Default()
	c.Tiers = c.Tiers[:3]
	_, err := c.Engine()
	assert.ErrorContains(t, err, "tiers")

	c = Default()
	c.Tiers[1].MinStake = "not-a-number"
	_, err = c.Engine()
	assert.ErrorContains(t, err, "minStake")

	c = Default()
	c.Tiers[1].DeathRateBps = 10001
	_, err = c.Engine()
	assert.ErrorContains(t, err, "deathRateBps")

	c = Default()
	c.ResetExtensionDivisor = "-5"
	_, err = c.Engine()
	assert.ErrorContains(t, err, "resetExtensionDivisor")

	c = Default()
	c.BoostAuthority = "0x123"
	_, err = c.Engine()
	assert.ErrorContains(t, err, "boostAuthority")
}
