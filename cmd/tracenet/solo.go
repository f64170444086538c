// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/gridrun/tracenet/kv"
	"github.com/gridrun/tracenet/store"
	"github.com/gridrun/tracenet/tracenet"
)

// soloToken is the dev-mode stand-in for the external staking token: no
// transfer tax, and accounts are topped up on demand so any address can play.
// Balances persist in the same store as the core, under their own bucket.
type soloToken struct {
	mu       sync.Mutex
	balances *store.Mapping[tracenet.Address, tokenBalance]
	custody  *store.BigInt
	burned   *store.BigInt
}

type tokenBalance struct {
	Amount *big.Int
}

var (
	slotCustody = tracenet.BytesToBytes32([]byte("custody"))
	slotBurned  = tracenet.BytesToBytes32([]byte("burned"))
	slotBalance = tracenet.BytesToBytes32([]byte("balances"))
)

func newSoloToken(src kv.GetPutter) *soloToken {
	ctx := store.NewContext(src, kv.Bucket("solo-token"))
	return &soloToken{
		balances: store.NewMapping[tracenet.Address, tokenBalance](ctx, slotBalance),
		custody:  store.NewBigInt(ctx, slotCustody),
		burned:   store.NewBigInt(ctx, slotBurned),
	}
}

func (t *soloToken) balanceOf(user tracenet.Address) (*big.Int, error) {
	bal, ok, err := t.balances.Get(user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	return bal.Amount, nil
}

func (t *soloToken) TransferFrom(user tracenet.Address, amount *big.Int) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bal, err := t.balanceOf(user)
	if err != nil {
		return nil, err
	}
	if bal.Cmp(amount) < 0 {
		// dev faucet: top the account up so the transfer succeeds
		bal = new(big.Int).Set(amount)
	}
	bal = new(big.Int).Sub(bal, amount)
	if err := t.balances.Set(user, &tokenBalance{Amount: bal}); err != nil {
		return nil, err
	}
	if err := t.custody.Add(amount); err != nil {
		return nil, err
	}
	return new(big.Int).Set(amount), nil
}

func (t *soloToken) Transfer(to tracenet.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.custody.Sub(amount); err != nil {
		return err
	}
	bal, err := t.balanceOf(to)
	if err != nil {
		return err
	}
	return t.balances.Set(to, &tokenBalance{Amount: new(big.Int).Add(bal, amount)})
}

func (t *soloToken) Burn(amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.custody.Sub(amount); err != nil {
		return err
	}
	return t.burned.Add(amount)
}

// soloBeacon derives randomness from the wall clock and a call counter. Good
// enough for dev; production deployments wire the chain's randomness beacon.
type soloBeacon struct {
	mu      sync.Mutex
	counter uint64
}

func (b *soloBeacon) Randomness() (tracenet.Bytes32, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counter++
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint64(buf[8:], b.counter)
	return tracenet.Blake2b(buf[:]), b.counter, nil
}
