// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package increment

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	addr := BytesToAddress([]byte("alice"))

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	parsed, err = ParseAddress(addr.String()[2:])
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = ParseAddress("0x1234")
	assert.EqualError(t, err, "invalid length")

	_, err = ParseAddress("1x" + addr.String()[2:])
	assert.EqualError(t, err, "invalid prefix")
}

func TestAddressJSON(t *testing.T) {
	addr := NamedAddress("safety-module")
	data, err := json.Marshal(&addr)
	require.NoError(t, err)

	var decoded Address
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, addr, decoded)
	assert.False(t, decoded.IsZero())

	byAddr := map[Address]int{addr: 1}
	data, err = json.Marshal(byAddr)
	require.NoError(t, err)
	assert.Equal(t, `{"`+addr.String()+`":1}`, string(data))

	slot := NameToSlot("total")
	data, err = json.Marshal(slot)
	require.NoError(t, err)
	var decodedSlot Bytes32
	require.NoError(t, json.Unmarshal(data, &decodedSlot))
	assert.Equal(t, slot, decodedSlot)
}

func TestNamedAddressDeterministic(t *testing.T) {
	assert.Equal(t, NamedAddress("a"), NamedAddress("a"))
	assert.NotEqual(t, NamedAddress("a"), NamedAddress("b"))
}

func TestBlake2b(t *testing.T) {
	one := Blake2b([]byte("ab"))
	two := Blake2b([]byte("a"), []byte("b"))
	assert.Equal(t, one, two)
}

func TestWadOf(t *testing.T) {
	assert.Equal(t, "5000000000000000000", WadOf(5).String())
	assert.Equal(t, WadOf(2), BigOf("2000000000000000000"))
}

func TestParseBytes32(t *testing.T) {
	slot := NameToSlot("totalUnclaimedRewards")

	parsed, err := ParseBytes32(slot.String())
	require.NoError(t, err)
	assert.Equal(t, slot, parsed)

	parsed, err = ParseBytes32(slot.String()[2:])
	require.NoError(t, err)
	assert.Equal(t, slot, parsed)

	_, err = ParseBytes32("0x1234")
	assert.ErrorContains(t, err, "want 64 hex digits")

	_, err = ParseBytes32("0x" + strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestBlake2bParts(t *testing.T) {
	assert.Equal(t, Blake2b([]byte("ab")), Blake2b([]byte("a"), []byte("b")))
	assert.Equal(t, Blake2b(), Blake2b([]byte{}))
}
