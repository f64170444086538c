// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package store

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/gridrun/tracenet/tracenet"
)

// Struct is a wrapper for storage and retrieval of one RLP-encoded record at a
// fixed slot.
type Struct[V any] struct {
	ctx *Context
	pos tracenet.Bytes32
}

func NewStruct[V any](ctx *Context, slot tracenet.Bytes32) *Struct[V] {
	return &Struct[V]{ctx: ctx, pos: slot}
}

// Get returns the stored record, or ok=false if the slot was never written.
func (s *Struct[V]) Get() (value *V, ok bool, err error) {
	raw, ok, err := s.ctx.get(s.pos)
	if err != nil || !ok {
		return nil, false, err
	}
	value = new(V)
	if err := rlp.DecodeBytes(raw, value); err != nil {
		return nil, false, errors.Wrapf(err, "decode slot %v", s.pos.AbbrevString())
	}
	return value, true, nil
}

func (s *Struct[V]) Set(value *V) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return errors.Wrapf(err, "encode slot %v", s.pos.AbbrevString())
	}
	return s.ctx.put(s.pos, raw)
}

// Mapping is a key/value storage abstraction similar to a mapping in contract
// storage: values live at blake2b(key, base slot).
type Mapping[K Key, V any] struct {
	ctx     *Context
	basePos tracenet.Bytes32
}

func NewMapping[K Key, V any](ctx *Context, pos tracenet.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{ctx: ctx, basePos: pos}
}

func (m *Mapping[K, V]) position(key K) tracenet.Bytes32 {
	return tracenet.Blake2b(key.Bytes(), m.basePos.Bytes())
}

// Get returns the value for key, or ok=false if absent.
func (m *Mapping[K, V]) Get(key K) (value *V, ok bool, err error) {
	raw, ok, err := m.ctx.get(m.position(key))
	if err != nil || !ok {
		return nil, false, err
	}
	value = new(V)
	if err := rlp.DecodeBytes(raw, value); err != nil {
		return nil, false, errors.Wrapf(err, "decode mapping entry %v", m.basePos.AbbrevString())
	}
	return value, true, nil
}

func (m *Mapping[K, V]) Has(key K) (bool, error) {
	_, ok, err := m.ctx.get(m.position(key))
	return ok, err
}

func (m *Mapping[K, V]) Set(key K, value *V) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return errors.Wrapf(err, "encode mapping entry %v", m.basePos.AbbrevString())
	}
	return m.ctx.put(m.position(key), raw)
}

func (m *Mapping[K, V]) Delete(key K) error {
	return m.ctx.delete(m.position(key))
}

// FlagSet is a mapping degenerated to membership only, used for processed-sets
// and nonce replay protection.
type FlagSet[K Key] struct {
	ctx     *Context
	basePos tracenet.Bytes32
}

func NewFlagSet[K Key](ctx *Context, pos tracenet.Bytes32) *FlagSet[K] {
	return &FlagSet[K]{ctx: ctx, basePos: pos}
}

func (f *FlagSet[K]) Has(key K) (bool, error) {
	_, ok, err := f.ctx.get(tracenet.Blake2b(key.Bytes(), f.basePos.Bytes()))
	return ok, err
}

func (f *FlagSet[K]) Set(key K) error {
	return f.ctx.put(tracenet.Blake2b(key.Bytes(), f.basePos.Bytes()), []byte{1})
}
