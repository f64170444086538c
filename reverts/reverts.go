// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reverts carries the named precondition/validation errors of the
// protocol. They are sentinels: callers match them with errors.Is and react
// per condition, never on message text.
package reverts

import (
	"errors"
)

// ErrRevert marks a rejected state transition. The operation had no effect.
type ErrRevert struct {
	message string
}

func New(message string) *ErrRevert {
	return &ErrRevert{
		message: message,
	}
}

func (e *ErrRevert) Error() string {
	return e.message
}

// IsRevert reports whether err is a rejected transition rather than an
// infrastructure failure.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var ve *ErrRevert
	return errors.As(err, &ve)
}
