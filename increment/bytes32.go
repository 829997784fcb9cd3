// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package increment

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Bytes32 is a storage slot or a hash.
type Bytes32 [32]byte

func (b Bytes32) String() string {
	return "0x" + hex.EncodeToString(b[:])
}

func (b Bytes32) Bytes() []byte {
	return b[:]
}

func (b Bytes32) IsZero() bool {
	return b == Bytes32{}
}

func (b Bytes32) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Bytes32) UnmarshalText(data []byte) error {
	v, err := ParseBytes32(string(data))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseBytes32 decodes 64 hex digits with an optional 0x prefix.
func ParseBytes32(s string) (Bytes32, error) {
	digits := s
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		digits = s[2:]
	}
	if len(digits) != 2*len(Bytes32{}) {
		return Bytes32{}, fmt.Errorf("bytes32 %q: want %d hex digits", s, 2*len(Bytes32{}))
	}
	var b Bytes32
	if _, err := hex.Decode(b[:], []byte(digits)); err != nil {
		return Bytes32{}, fmt.Errorf("bytes32 %q: %w", s, err)
	}
	return b, nil
}

func BytesToBytes32(b []byte) Bytes32 {
	return Bytes32(common.BytesToHash(b))
}

// NameToSlot returns the storage slot for a named contract variable.
func NameToSlot(name string) Bytes32 {
	return BytesToBytes32([]byte(name))
}
