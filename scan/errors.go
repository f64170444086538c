// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package scan

import "github.com/gridrun/tracenet/reverts"

var (
	ErrScanNotReady              = reverts.New("scan not ready")
	ErrScanAlreadyActive         = reverts.New("scan already active")
	ErrNoActiveScan              = reverts.New("no active scan")
	ErrSubmissionWindowNotClosed = reverts.New("submission window not closed")
	ErrBatchTooLarge             = reverts.New("death batch too large")
	ErrScanExpired               = reverts.New("scan expired")
)
