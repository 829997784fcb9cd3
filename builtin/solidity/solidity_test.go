// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/lvldb"
	"github.com/Increment-Finance/peripheral-contracts-sub004/state"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

type testEntry struct {
	Amount *big.Int
	Time   uint64
	Owner  increment.Address
	Active bool
}

func newTestContext() *Context {
	env := xenv.New(state.New(lvldb.MustNewMem()), &xenv.BlockContext{Time: 100})
	return NewContext(increment.NamedAddress("contract"), env)
}

func TestMappingStructPointer(t *testing.T) {
	ctx := newTestContext()
	m := NewMapping[increment.Address, *testEntry](ctx, increment.NameToSlot("entries"))
	alice := increment.NamedAddress("alice")

	got, err := m.Get(alice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Amount)
	assert.False(t, got.Active)

	entry := &testEntry{Amount: big.NewInt(42), Time: 7, Owner: alice, Active: true}
	require.NoError(t, m.Set(alice, entry))
	got, err = m.Get(alice)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	m.Delete(alice)
	got, err = m.Get(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Time)
}

func TestMappingCompositeKeys(t *testing.T) {
	ctx := newTestContext()
	m := NewMapping[Triple, *big.Int](ctx, increment.NameToSlot("cum"))
	a, b, c := increment.NamedAddress("a"), increment.NamedAddress("b"), increment.NamedAddress("c")

	require.NoError(t, m.Set(Triple{a, b, c}, big.NewInt(5)))
	v, err := m.Get(Triple{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int64())

	v, err = m.Get(Triple{c, b, a})
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.Int64())

	assert.NotEqual(t, Pair{a, b}.Bytes(), Pair{b, a}.Bytes())
	assert.Len(t, Uint64Key(3).Bytes(), 8)
}

func TestRawSliceAndUint256(t *testing.T) {
	ctx := newTestContext()
	list := NewRaw[[]increment.Address](ctx, increment.NameToSlot("list"))

	values, err := list.Get()
	require.NoError(t, err)
	assert.Empty(t, values)

	want := []increment.Address{increment.NamedAddress("x"), increment.NamedAddress("y")}
	require.NoError(t, list.Set(want))
	values, err = list.Get()
	require.NoError(t, err)
	assert.Equal(t, want, values)

	total := NewUint256(ctx, increment.NameToSlot("total"))
	require.NoError(t, total.Add(big.NewInt(10)))
	require.NoError(t, total.Sub(big.NewInt(3)))
	v, err := total.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int64())
}

func TestDecodeFailure(t *testing.T) {
	ctx := newTestContext()
	slot := increment.NameToSlot("bad")
	ctx.State().SetRawStorage(ctx.Address(), slot, rlp.RawValue{0xFF})

	_, err := NewUint256(ctx, slot).Get()
	assert.Error(t, err)
}

func TestNonReentrant(t *testing.T) {
	ctx := newTestContext()
	flag := NewBool(ctx, increment.NameToSlot("flag"))

	err := ctx.NonReentrant(func() error {
		return ctx.NonReentrant(func() error { return nil })
	})
	assert.True(t, errors.Is(err, ErrReentrantCall))

	// lock released after a failed call
	require.NoError(t, ctx.NonReentrant(func() error {
		ctx.Log("Flagged")
		return flag.Set(true)
	}))
	v, err := flag.Get()
	require.NoError(t, err)
	assert.True(t, v)
	assert.Len(t, ctx.Env().Events(), 1)

	// failures roll back writes
	boom := errors.New("boom")
	err = ctx.Atomic(func() error {
		if err := flag.Set(false); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	v, _ = flag.Get()
	assert.True(t, v)
}
