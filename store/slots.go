// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package store

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"

	"github.com/gridrun/tracenet/tracenet"
)

// Uint64 is a wrapper for storage and retrieval of a uint64 at a fixed slot.
type Uint64 struct {
	ctx *Context
	pos tracenet.Bytes32
}

func NewUint64(ctx *Context, slot tracenet.Bytes32) *Uint64 {
	return &Uint64{ctx: ctx, pos: slot}
}

func (u *Uint64) Get() (uint64, error) {
	raw, ok, err := u.ctx.get(u.pos)
	if err != nil || !ok {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, errors.Errorf("slot %v: malformed uint64", u.pos.AbbrevString())
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (u *Uint64) Set(v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return u.ctx.put(u.pos, b[:])
}

func (u *Uint64) Inc() (uint64, error) {
	v, err := u.Get()
	if err != nil {
		return 0, err
	}
	v++
	return v, u.Set(v)
}

// BigInt is a wrapper for storage and retrieval of a non-negative big.Int at a
// fixed slot. A missing slot reads as zero.
type BigInt struct {
	ctx *Context
	pos tracenet.Bytes32
}

func NewBigInt(ctx *Context, slot tracenet.Bytes32) *BigInt {
	return &BigInt{ctx: ctx, pos: slot}
}

func (b *BigInt) Get() (*big.Int, error) {
	raw, ok, err := b.ctx.get(b.pos)
	if err != nil || !ok {
		return new(big.Int), err
	}
	return new(big.Int).SetBytes(raw), nil
}

func (b *BigInt) Set(v *big.Int) error {
	if v.Sign() < 0 {
		return errors.Errorf("slot %v: negative value", b.pos.AbbrevString())
	}
	return b.ctx.put(b.pos, v.Bytes())
}

func (b *BigInt) Add(v *big.Int) error {
	cur, err := b.Get()
	if err != nil {
		return err
	}
	return b.Set(cur.Add(cur, v))
}

// Sub subtracts v; it refuses to go below zero so accounting bugs surface as
// errors instead of silently minting value.
func (b *BigInt) Sub(v *big.Int) error {
	cur, err := b.Get()
	if err != nil {
		return err
	}
	cur.Sub(cur, v)
	if cur.Sign() < 0 {
		return errors.Errorf("slot %v: balance underflow", b.pos.AbbrevString())
	}
	return b.Set(cur)
}
