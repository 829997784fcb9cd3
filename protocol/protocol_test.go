// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package protocol

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/lvldb"
	"github.com/Increment-Finance/peripheral-contracts-sub004/state"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

func newProtocol(t *testing.T) *Protocol {
	cfg, err := LoadConfig("testdata/increment.yaml")
	require.NoError(t, err)
	env := xenv.New(state.New(lvldb.MustNewMem()), &xenv.BlockContext{Time: cfg.LaunchTime})
	p, err := Open(env, cfg)
	require.NoError(t, err)
	require.NoError(t, p.Deploy())
	return p
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"1463753", 18, "1463753000000000000000000"},
		{"1.189207115", 18, "1189207115000000000"},
		{"0.3", 18, "300000000000000000"},
		{"2.5", 6, "2500000"},
		{"0.0000001", 6, "0"},
		{"wei:42", 18, "42"},
	}
	for _, tt := range tests {
		a, err := ParseAmount(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, a.Wei(tt.decimals).String(), tt.in)
		assert.True(t, a.IsSet() || tt.want == "0", tt.in)
	}

	for _, bad := range []string{"", "-1", "abc", "wei:-3", "wei:1.5"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "1.5", FormatUnits(big.NewInt(1_500_000), 6))
	assert.Equal(t, "0", FormatUnits(new(big.Int), 18))
}

func TestConfigValidation(t *testing.T) {
	_, err := ParseConfig([]byte("tokens: []\n"))
	assert.Error(t, err, "governance is required")

	_, err = ParseConfig([]byte(`
governance: gov
tokens:
  - {symbol: INC, decimals: 18}
  - {symbol: INC, decimals: 18}
`))
	assert.Error(t, err)

	_, err = ParseConfig([]byte(`
governance: gov
tokens:
  - {symbol: INC, decimals: 18}
perp_rewards:
  reward_tokens:
    - {token: INC, markets: [ETH-PERP], weights: [5000, 5000]}
`))
	assert.Error(t, err)

	_, err = ParseConfig([]byte(`
governance: gov
tokens:
  - {symbol: INC, decimals: 18}
safety_module:
  payment_token: USDC
  staking_tokens:
    - {symbol: stINC, underlying: INC}
`))
	assert.Error(t, err, "unknown payment token")
}

func TestDeploy(t *testing.T) {
	p := newProtocol(t)

	deployed, err := p.IsDeployed()
	require.NoError(t, err)
	assert.True(t, deployed)
	assert.Error(t, p.Deploy())

	inc, err := p.Resolve("INC")
	require.NoError(t, err)
	tok, err := p.Tokens.Get(inc)
	require.NoError(t, err)
	reserveBal, err := tok.BalanceOf(p.Reserve.Address())
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(1_000_000), reserveBal)
	aliceBal, err := tok.BalanceOf(increment.NamedAddress("alice"))
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(5000), aliceBal)

	usdc, err := p.Resolve("USDC")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), p.Decimals(usdc))
	assert.Equal(t, "USDC", p.Label(usdc))
	assert.Equal(t, "buyer", p.Label(increment.NamedAddress("buyer")))

	n, err := p.ClearingHouse.GetNumMarkets()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	perp, err := p.Distributor("perp")
	require.NoError(t, err)
	eth, err := p.Resolve("ETH-PERP")
	require.NoError(t, err)
	w, err := perp.GetRewardWeight(inc, eth)
	require.NoError(t, err)
	assert.Equal(t, uint16(7500), w)
	threshold, err := p.PerpRewards.EarlyWithdrawalThreshold()
	require.NoError(t, err)
	assert.Equal(t, uint64(864000), threshold)

	st, err := p.StakedToken("stINC")
	require.NoError(t, err)
	maxStake, err := st.MaxStakeAmount()
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(100_000), maxStake)
	idx, err := p.SafetyModule.GetStakingTokenIdx(st.Address())
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	sm, err := p.Distributor(SMRewardsName)
	require.NoError(t, err)
	w, err = sm.GetRewardWeight(inc, st.Address())
	require.NoError(t, err)
	assert.Equal(t, uint16(10000), w)
	allowance, err := tok.Allowance(p.Reserve.Address(), sm.Address())
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(500_000), allowance)

	_, err = p.Distributor("vault")
	assert.Error(t, err)
	_, err = p.StakedToken("INC")
	assert.Error(t, err)
}

func TestDeployedRoles(t *testing.T) {
	p := newProtocol(t)
	emergency := increment.NamedAddress("emergency-admin")
	assert.NoError(t, p.Access.CheckRole(access.EmergencyAdmin, emergency))
	assert.NoError(t, p.Access.CheckRole(access.FundsAdmin, increment.NamedAddress("funds-admin")))
	err := p.Access.CheckRole(access.Governance, emergency)
	assert.True(t, errors.Is(err, access.ErrUnauthorized))
}

func TestReopenAfterCommit(t *testing.T) {
	cfg, err := LoadConfig("testdata/increment.yaml")
	require.NoError(t, err)
	db := lvldb.MustNewMem()
	env := xenv.New(state.New(db), &xenv.BlockContext{Time: cfg.LaunchTime})
	p, err := Open(env, cfg)
	require.NoError(t, err)
	require.NoError(t, p.Deploy())
	_, err = env.State().Commit()
	require.NoError(t, err)

	again, err := Open(xenv.New(state.New(db), &xenv.BlockContext{Time: cfg.LaunchTime}), cfg)
	require.NoError(t, err)
	deployed, err := again.IsDeployed()
	require.NoError(t, err)
	assert.True(t, deployed)
	st, err := again.StakedToken("stINC")
	require.NoError(t, err)
	rate, err := st.ExchangeRate()
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(1), rate)
}
