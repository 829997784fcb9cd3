// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package increment

import (
	"hash"
	"sync"

	"golang.org/x/crypto/blake2b"
)

var hasherPool = sync.Pool{
	New: func() any {
		h, err := blake2b.New256(nil)
		if err != nil {
			panic(err) // only fails for oversized keys
		}
		return h
	},
}

// Blake2b hashes the concatenation of parts with blake2b-256.
func Blake2b(parts ...[]byte) Bytes32 {
	if len(parts) == 1 {
		return blake2b.Sum256(parts[0])
	}
	h := hasherPool.Get().(hash.Hash)
	defer func() {
		h.Reset()
		hasherPool.Put(h)
	}()
	for _, p := range parts {
		h.Write(p)
	}
	var out Bytes32
	h.Sum(out[:0])
	return out
}
