// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/lvldb"
	"github.com/Increment-Finance/peripheral-contracts-sub004/state"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

func newToken() (*Token, *xenv.Environment) {
	env := xenv.New(state.New(lvldb.MustNewMem()), &xenv.BlockContext{Time: 1})
	return New(increment.NamedAddress("INC"), env), env
}

func balance(t *testing.T, tok *Token, a increment.Address) int64 {
	b, err := tok.BalanceOf(a)
	require.NoError(t, err)
	return b.Int64()
}

func TestTransfer(t *testing.T) {
	tok, env := newToken()
	alice, bob := increment.NamedAddress("alice"), increment.NamedAddress("bob")

	require.NoError(t, tok.Initialize(&Meta{Name: "Increment", Symbol: "INCR", Decimals: 18}))
	meta, err := tok.Meta()
	require.NoError(t, err)
	assert.Equal(t, "INCR", meta.Symbol)

	require.NoError(t, tok.Mint(alice, big.NewInt(100)))
	require.NoError(t, tok.Transfer(alice, bob, big.NewInt(30)))
	assert.Equal(t, int64(70), balance(t, tok, alice))
	assert.Equal(t, int64(30), balance(t, tok, bob))

	err = tok.Transfer(bob, alice, big.NewInt(31))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, int64(30), balance(t, tok, bob))

	assert.True(t, errors.Is(tok.Transfer(bob, increment.Address{}, big.NewInt(1)), ErrInvalidReceiver))

	supply, err := tok.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, int64(100), supply.Int64())
	assert.Len(t, env.Events(), 2)
}

func TestTransferFrom(t *testing.T) {
	tok, _ := newToken()
	alice, bob, spender := increment.NamedAddress("alice"), increment.NamedAddress("bob"), increment.NamedAddress("spender")
	require.NoError(t, tok.Mint(alice, big.NewInt(100)))

	assert.True(t, errors.Is(tok.TransferFrom(spender, alice, bob, big.NewInt(1)), ErrInsufficientAllowance))

	require.NoError(t, tok.Approve(alice, spender, big.NewInt(50)))
	require.NoError(t, tok.TransferFrom(spender, alice, bob, big.NewInt(20)))
	allowance, err := tok.Allowance(alice, spender)
	require.NoError(t, err)
	assert.Equal(t, int64(30), allowance.Int64())
	assert.Equal(t, int64(20), balance(t, tok, bob))

	// allowance is restored when the move fails
	require.NoError(t, tok.Burn(alice, big.NewInt(75)))
	assert.True(t, errors.Is(tok.TransferFrom(spender, alice, bob, big.NewInt(10)), ErrInsufficientBalance))
	allowance, _ = tok.Allowance(alice, spender)
	assert.Equal(t, int64(30), allowance.Int64())
}

func TestRegistry(t *testing.T) {
	env := xenv.New(state.New(lvldb.MustNewMem()), &xenv.BlockContext{Time: 1})
	reg := NewRegistry(env)
	addr := increment.NamedAddress("USDC")

	_, err := reg.Get(addr)
	assert.True(t, errors.Is(err, ErrUnknownToken))

	tok := reg.Deploy(addr)
	assert.Same(t, tok, reg.Deploy(addr))
	got, err := reg.Get(addr)
	require.NoError(t, err)
	assert.Same(t, tok, got)
	assert.Equal(t, []increment.Address{addr}, reg.Addresses())
}
