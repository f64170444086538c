// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

// Bucket provides logical bucket for kv store.
type Bucket string

type bucketGetPutter struct {
	b   Bucket
	src GetPutter
}

// NewGetPutter creates a bucket get-putter from the source get-putter.
func (b Bucket) NewGetPutter(src GetPutter) GetPutter {
	return &bucketGetPutter{b, src}
}

func (g *bucketGetPutter) mk(key []byte) []byte {
	return append(append(make([]byte, 0, len(g.b)+len(key)), g.b...), key...)
}

func (g *bucketGetPutter) Get(key []byte) ([]byte, error) {
	return g.src.Get(g.mk(key))
}

func (g *bucketGetPutter) Has(key []byte) (bool, error) {
	return g.src.Has(g.mk(key))
}

func (g *bucketGetPutter) IsNotFound(err error) bool {
	return g.src.IsNotFound(err)
}

func (g *bucketGetPutter) Put(key, val []byte) error {
	return g.src.Put(g.mk(key), val)
}

func (g *bucketGetPutter) Delete(key []byte) error {
	return g.src.Delete(g.mk(key))
}
