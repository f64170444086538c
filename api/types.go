// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"math/big"
	"strconv"

	"github.com/pkg/errors"

	"github.com/gridrun/tracenet/tracenet"
)

// Amounts travel as decimal strings so javascript consumers keep precision.

type Position struct {
	Tier        string `json:"tier"`
	Amount      string `json:"amount"`
	Claimable   string `json:"claimable"`
	EntryTime   uint64 `json:"entryTime"`
	LastAddTime uint64 `json:"lastAddTime"`
	UnlockTime  uint64 `json:"unlockTime"`
	Alive       bool   `json:"alive"`
	GhostStreak uint64 `json:"ghostStreak"`
}

type TierState struct {
	Name           string `json:"name"`
	DeathRateBps   uint64 `json:"deathRateBps"`
	YieldRateBps   uint64 `json:"yieldRateBps"`
	MinStake       string `json:"minStake"`
	MaxPositions   uint64 `json:"maxPositions"`
	ScanInterval   uint64 `json:"scanInterval"`
	TotalStaked    string `json:"totalStaked"`
	AliveCount     uint64 `json:"aliveCount"`
	RewardPool     string `json:"rewardPool"`
	TotalEmitted   string `json:"totalEmitted"`
	NextScanTime   uint64 `json:"nextScanTime"`
	FinalizedScans uint64 `json:"finalizedScans"`
}

type Scan struct {
	ID          uint64           `json:"id"`
	Seed        tracenet.Bytes32 `json:"seed"`
	BlockNumber uint64           `json:"blockNumber"`
	ExecutedAt  uint64           `json:"executedAt"`
	FinalizedAt uint64           `json:"finalizedAt"`
	TotalDead   string           `json:"totalDead"`
	DeathCount  uint64           `json:"deathCount"`
	Status      string           `json:"status"`
}

type ResetState struct {
	Deadline        uint64           `json:"deadline"`
	LastDepositor   tracenet.Address `json:"lastDepositor"`
	LastDepositTime uint64           `json:"lastDepositTime"`
	Epoch           uint64           `json:"epoch"`
	PenaltyBps      uint64           `json:"penaltyBps"`
}

type Boost struct {
	Kind     string `json:"kind"`
	ValueBps uint64 `json:"valueBps"`
	Expiry   uint64 `json:"expiry"`
}

type Event struct {
	Seq       int64            `json:"seq"`
	Kind      string           `json:"kind"`
	Tier      string           `json:"tier"`
	ScanID    uint64           `json:"scanID"`
	Epoch     uint64           `json:"epoch"`
	User      tracenet.Address `json:"user"`
	Amount    string           `json:"amount"`
	AuxAmount string           `json:"auxAmount"`
	Timestamp uint64           `json:"timestamp"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// parseTier accepts a tier name or its numeric index.
func parseTier(s string) (tracenet.Tier, error) {
	for t := tracenet.Tier(0); t.Valid(); t++ {
		if t.String() == s {
			return t, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || !tracenet.Tier(n).Valid() {
		return 0, errors.Errorf("unknown tier %q", s)
	}
	return tracenet.Tier(n), nil
}
