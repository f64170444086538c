// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package scan

import (
	"encoding/binary"

	"github.com/gridrun/tracenet/tracenet"
)

// DeriveSeed combines the public inputs of one trace scan into its seed. It is
// deterministic for a fixed tuple so anyone can recompute it for auditing, and
// unpredictable before the triggering block exists because blockRandomness is
// only known then. That one-scan-window unpredictability is the intended
// threat model; this is deliberately not a VRF.
func DeriveSeed(tier tracenet.Tier, blockRandomness tracenet.Bytes32, timestamp, blockNumber, nonce uint64) tracenet.Bytes32 {
	var buf [25]byte
	buf[0] = byte(tier)
	binary.BigEndian.PutUint64(buf[1:9], timestamp)
	binary.BigEndian.PutUint64(buf[9:17], blockNumber)
	binary.BigEndian.PutUint64(buf[17:25], nonce)
	return tracenet.Blake2b(blockRandomness.Bytes(), buf[:])
}

// IsDead is the pure death predicate: it hashes (seed, user) into a uniform
// value in [0, 10000) and compares against the death rate. Anyone can call it
// off-path to pre-verify a submission. deathRateBps 0 never kills (the vault
// tier is immune); 10000 always does.
func IsDead(seed tracenet.Bytes32, user tracenet.Address, deathRateBps uint64) bool {
	if deathRateBps == 0 {
		return false
	}
	if deathRateBps >= tracenet.BpsDenominator {
		return true
	}
	h := tracenet.Blake2b(seed.Bytes(), user.Bytes())
	roll := binary.BigEndian.Uint64(h[:8]) % tracenet.BpsDenominator
	return roll < deathRateBps
}
