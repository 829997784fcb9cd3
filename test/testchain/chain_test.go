// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package testchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
)

func TestNewDefault(t *testing.T) {
	c, err := NewDefault()
	require.NoError(t, err)

	head, err := c.Runtime().Head()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head.Number)

	st, err := c.Protocol().StakedToken("stINC")
	require.NoError(t, err)
	err = c.Execute(head.Time, func() error { return st.Stake(c.Address("alice"), increment.WadOf(1)) })
	assert.Error(t, err, "stake without allowance reverts")

	assert.Panics(t, func() { c.Address("") })
}
