// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Increment-Finance/peripheral-contracts-sub004/api/staking"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/test/testchain"
)

const (
	launch   = 1700000000
	stakedAt = launch + 10
)

var ts *httptest.Server

func TestStaking(t *testing.T) {
	initStakingServer(t)
	defer ts.Close()

	t.Run("getStakingTokens", testGetStakingTokens)
	t.Run("getStakingToken", testGetStakingToken)
	t.Run("getNotStakingToken", testGetNotStakingToken)
	t.Run("getStaker", testGetStaker)
	t.Run("getStakerLater", testGetStakerLater)
	t.Run("getIdleStaker", testGetIdleStaker)
}

func initStakingServer(t *testing.T) {
	c, err := testchain.NewDefault()
	require.NoError(t, err)

	p := c.Protocol()
	alice := c.Address("alice")
	inc, err := p.Tokens.Get(c.Address("INC"))
	require.NoError(t, err)
	st, err := p.StakedToken("stINC")
	require.NoError(t, err)

	require.NoError(t, c.Execute(stakedAt, func() error {
		if err := inc.Approve(alice, st.Address(), increment.WadOf(1000)); err != nil {
			return err
		}
		return st.Stake(alice, increment.WadOf(1000))
	}))

	router := mux.NewRouter()
	staking.New(c.Runtime(), p).Mount(router, "/staking")
	ts = httptest.NewServer(router)
}

func httpGetAndCheckResponseStatus(t *testing.T, path string, status int) []byte {
	res, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, status, res.StatusCode, string(body))
	return body
}

func testGetStakingTokens(t *testing.T) {
	body := httpGetAndCheckResponseStatus(t, "/staking", 200)
	var tokens []*staking.StakingToken
	require.NoError(t, json.Unmarshal(body, &tokens))
	require.Len(t, tokens, 1)
	assert.Equal(t, "stINC", tokens[0].Symbol)
}

func testGetStakingToken(t *testing.T) {
	body := httpGetAndCheckResponseStatus(t, "/staking/stINC", 200)
	var st staking.StakingToken
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "Staked INC", st.Name)
	assert.Equal(t, "INC", st.Underlying.Name)
	assert.Equal(t, "1", st.ExchangeRate.Value)
	assert.Equal(t, "1000", st.TotalSupply.Value)
	assert.Equal(t, "1000", st.UnderlyingBalance.Value)
	assert.Equal(t, "300", st.AuctionableTotal.Value)
	assert.Equal(t, "100000", st.MaxStakeAmount.Value)
	assert.Equal(t, uint64(864000), st.CooldownSeconds)
	assert.Equal(t, uint64(172800), st.UnstakeWindow)
	assert.False(t, st.PostSlashing)
	assert.False(t, st.Paused)
}

func testGetNotStakingToken(t *testing.T) {
	httpGetAndCheckResponseStatus(t, "/staking/INC", 404)
	httpGetAndCheckResponseStatus(t, "/staking/INC/users/alice", 404)
}

func testGetStaker(t *testing.T) {
	body := httpGetAndCheckResponseStatus(t, "/staking/stINC/users/alice", 200)
	var s staking.Staker
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, "alice", s.User.Name)
	assert.Equal(t, "1000", s.Shares.Value)
	assert.Equal(t, "1000", s.Redeemable.Value)
	assert.Zero(t, s.CooldownStartTime)
	assert.Equal(t, uint64(stakedAt), s.MultiplierStartTime)
	assert.Equal(t, "1", s.RewardMultiplier.Value)
}

func testGetStakerLater(t *testing.T) {
	at := strconv.Itoa(stakedAt + 30*86400)
	body := httpGetAndCheckResponseStatus(t, "/staking/stINC/users/alice?at="+at, 200)
	var s staking.Staker
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, "1000", s.Shares.Value)
	assert.NotEqual(t, "1", s.RewardMultiplier.Value, "the multiplier grows with time staked")
}

func testGetIdleStaker(t *testing.T) {
	body := httpGetAndCheckResponseStatus(t, "/staking/stINC/users/bob", 200)
	var s staking.Staker
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, "0", s.Shares.Wei)
	assert.Zero(t, s.MultiplierStartTime)
}
