// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"encoding/binary"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
)

// Pair keys nested mappings such as mapping(address => mapping(address => T)).
type Pair [2]increment.Address

func (p Pair) Bytes() []byte {
	b := make([]byte, 0, 2*increment.AddressLength)
	b = append(b, p[0][:]...)
	return append(b, p[1][:]...)
}

// Triple keys three level nested mappings.
type Triple [3]increment.Address

func (t Triple) Bytes() []byte {
	b := make([]byte, 0, 3*increment.AddressLength)
	for _, a := range t {
		b = append(b, a[:]...)
	}
	return b
}

// Uint64Key keys mappings by a numeric id.
type Uint64Key uint64

func (k Uint64Key) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(k))
}
