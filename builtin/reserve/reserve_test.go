// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reserve

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/lvldb"
	"github.com/Increment-Finance/peripheral-contracts-sub004/state"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

func TestReserve(t *testing.T) {
	env := xenv.New(state.New(lvldb.MustNewMem()), &xenv.BlockContext{Time: 1})
	gov := increment.NamedAddress("governance")
	acl := access.New(increment.NamedAddress("access"), env)
	require.NoError(t, acl.Initialize(gov))
	require.NoError(t, acl.GrantRole(gov, access.FundsAdmin, gov))

	tokens := token.NewRegistry(env)
	inc := tokens.Deploy(increment.NamedAddress("INC"))
	res := New(increment.NamedAddress("reserve"), env, acl, tokens)
	require.NoError(t, inc.Mint(res.Address(), big.NewInt(1000)))

	distributor := increment.NamedAddress("distributor")
	assert.True(t, errors.Is(res.Approve(distributor, inc.Address(), distributor, big.NewInt(1)), access.ErrUnauthorized))
	require.NoError(t, res.Approve(gov, inc.Address(), distributor, big.NewInt(600)))
	require.NoError(t, inc.TransferFrom(distributor, res.Address(), distributor, big.NewInt(100)))

	require.NoError(t, res.Transfer(gov, inc.Address(), gov, big.NewInt(50)))
	bal, err := res.BalanceOf(inc.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(850), bal.Int64())

	_, err = res.BalanceOf(increment.NamedAddress("nope"))
	assert.True(t, errors.Is(err, token.ErrUnknownToken))
}
