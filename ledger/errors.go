// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import "github.com/gridrun/tracenet/reverts"

var (
	ErrPositionExists   = reverts.New("position already exists")
	ErrNoPosition       = reverts.New("no position")
	ErrPositionDead     = reverts.New("position dead")
	ErrInLockPeriod     = reverts.New("in lock period")
	ErrAlreadyProcessed = reverts.New("already processed")
	ErrInvalidAmount    = reverts.New("invalid amount")
	ErrInvalidTier      = reverts.New("invalid tier")
	ErrBelowMinimum     = reverts.New("below tier minimum stake")
	ErrCapacityExceeded = reverts.New("tier capacity exceeded")
)
