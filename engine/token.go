// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package engine

import (
	"math/big"

	"github.com/gridrun/tracenet/tracenet"
)

// Token is the external fungible token holding the staked capital. The core
// treats transfer tax as opaque: it reasons only in net amounts actually
// credited to custody. Any transfer failure aborts the enclosing operation
// before the ledger is touched.
type Token interface {
	// TransferFrom pulls amount from user into protocol custody and returns
	// the net amount credited after any transfer tax.
	TransferFrom(user tracenet.Address, amount *big.Int) (*big.Int, error)
	// Transfer pays amount out of custody.
	Transfer(to tracenet.Address, amount *big.Int) error
	// Burn removes amount from custody and from circulation entirely.
	Burn(amount *big.Int) error
}

// Beacon supplies the public, after-the-fact randomness a scan seed locks in.
// It is read once per Execute and the result is captured immutably in the
// scan record, never re-read.
type Beacon interface {
	Randomness() (value tracenet.Bytes32, blockNumber uint64, err error)
}
