// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package store provides typed storage slots over a raw kv store, similar to
// how contract state is laid out: every value lives at a blake2b-derived
// 32-byte position inside a logical bucket.
package store

import (
	"github.com/gridrun/tracenet/kv"
	"github.com/gridrun/tracenet/tracenet"
)

// Key is anything addressable as bytes inside a Mapping.
type Key interface {
	Bytes() []byte
}

// Context binds slots and mappings to one bucket of a kv store.
type Context struct {
	store kv.GetPutter
}

// NewContext creates a storage context inside the given bucket.
func NewContext(src kv.GetPutter, bucket kv.Bucket) *Context {
	return &Context{store: bucket.NewGetPutter(src)}
}

func (c *Context) get(pos tracenet.Bytes32) (raw []byte, ok bool, err error) {
	raw, err = c.store.Get(pos.Bytes())
	if err != nil {
		if c.store.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return raw, true, nil
}

func (c *Context) put(pos tracenet.Bytes32, raw []byte) error {
	return c.store.Put(pos.Bytes(), raw)
}

func (c *Context) delete(pos tracenet.Bytes32) error {
	return c.store.Delete(pos.Bytes())
}
