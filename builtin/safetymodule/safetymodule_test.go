// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package safetymodule

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/auction"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reserve"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reward"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/stakedtoken"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/fixedpoint"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/lvldb"
	"github.com/Increment-Finance/peripheral-contracts-sub004/state"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

const (
	t0  = 1_700_000_000
	day = increment.SecondsPerDay
)

var (
	gov   = increment.NamedAddress("governance")
	alice = increment.NamedAddress("alice")
	buyer = increment.NamedAddress("buyer")
)

type fixture struct {
	env    *xenv.Environment
	acl    *access.Registry
	tokens *token.Registry
	res    *reserve.Reserve
	sm     *SafetyModule
	am     *auction.Module
	smrd   *reward.SMDistributor
	st     *stakedtoken.StakedToken
	inc    *token.Token
	usdc   *token.Token
}

func newFixture(t *testing.T) *fixture {
	env := xenv.New(state.New(lvldb.MustNewMem()), &xenv.BlockContext{Time: t0})
	acl := access.New(increment.NamedAddress("access"), env)
	require.NoError(t, acl.Initialize(gov))
	require.NoError(t, acl.GrantRole(gov, access.FundsAdmin, gov))
	tokens := token.NewRegistry(env)
	inc := tokens.Deploy(increment.NamedAddress("INC"))
	usdc := tokens.Deploy(increment.NamedAddress("USDC"))

	res := reserve.New(increment.NamedAddress("ecosystem-reserve"), env, acl, tokens)
	require.NoError(t, inc.Mint(res.Address(), increment.WadOf(1_000_000)))

	smAddr := increment.NamedAddress("safety-module")
	am := auction.New(increment.NamedAddress("auction-module"), env, acl, tokens)
	require.NoError(t, am.Initialize(smAddr, usdc.Address()))
	sm := New(smAddr, env, acl, tokens, am)
	require.NoError(t, sm.Initialize(increment.BigOf("300000000000000000")))
	am.BindOwner(sm)

	smrd := reward.NewSMDistributor(increment.NamedAddress("sm-distributor"), env, acl, tokens, sm)
	require.NoError(t, smrd.Initialize(res.Address(), reward.DefaultMaxRewardMultiplier, reward.DefaultSmoothingValue))
	require.NoError(t, sm.SetRewardDistributor(gov, smrd))
	require.NoError(t, res.Approve(gov, inc.Address(), smrd.Address(), increment.WadOf(1_000_000)))

	st := stakedtoken.New(increment.NamedAddress("stINC"), env, acl, tokens)
	require.NoError(t, st.Initialize(&stakedtoken.Config{
		Underlying:      inc.Address(),
		CooldownSeconds: 10 * day,
		UnstakeWindow:   2 * day,
		Name:            "Staked INC",
		Symbol:          "stINC",
	}, smAddr, increment.WadOf(1_000_000)))
	require.NoError(t, sm.AddStakingToken(gov, st))
	require.NoError(t, smrd.AddRewardToken(gov, inc.Address(),
		increment.BigOf("1463753000000000000000000"), increment.BigOf("1189207115000000000"),
		[]increment.Address{st.Address()}, []uint16{10000}))

	require.NoError(t, inc.Mint(alice, increment.WadOf(1000)))
	require.NoError(t, inc.Approve(alice, st.Address(), increment.WadOf(1000)))
	require.NoError(t, st.Stake(alice, increment.WadOf(1000)))

	require.NoError(t, usdc.Mint(buyer, big.NewInt(1e12)))
	require.NoError(t, usdc.Approve(buyer, am.Address(), big.NewInt(1e12)))
	return &fixture{env: env, acl: acl, tokens: tokens, res: res, sm: sm, am: am, smrd: smrd, st: st, inc: inc, usdc: usdc}
}

func (f *fixture) at(ts uint64) {
	f.env.SetBlockContext(&xenv.BlockContext{Time: ts})
}

func slashParams(percent string) *SlashParams {
	return &SlashParams{
		NumLots:              10,
		LotPrice:             big.NewInt(1e6),
		InitialLotSize:       increment.WadOf(10),
		SlashPercent:         increment.BigOf(percent),
		LotIncreaseIncrement: increment.WadOf(1),
		LotIncreasePeriod:    day,
		TimeLimit:            10 * day,
	}
}

func (f *fixture) rate(t *testing.T) *big.Int {
	r, err := f.st.ExchangeRate()
	require.NoError(t, err)
	return r
}

func (f *fixture) postSlashing(t *testing.T) bool {
	post, err := f.st.IsInPostSlashingState()
	require.NoError(t, err)
	return post
}

func TestStakingTokenAsMarket(t *testing.T) {
	f := newFixture(t)
	n, err := f.sm.GetNumMarkets()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	idx, err := f.sm.GetStakingTokenIdx(f.st.Address())
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	_, err = f.sm.GetStakingTokenIdx(alice)
	assert.True(t, errors.Is(err, ErrInvalidStakingToken))
	assert.True(t, errors.Is(f.sm.AddStakingToken(gov, f.st), ErrStakingTokenAlreadyRegistered))

	pos, err := f.smrd.LpPositionsPerUser(alice, f.st.Address())
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(1000), pos)

	f.at(t0 + 10*day)
	require.NoError(t, f.smrd.ClaimRewardsFor(alice))
	paid, err := f.inc.BalanceOf(alice)
	require.NoError(t, err)
	assert.Positive(t, paid.Sign())
}

func TestSlashBounds(t *testing.T) {
	f := newFixture(t)
	_, err := f.sm.SlashAndStartAuction(gov, f.st.Address(), slashParams("500000000000000000"))
	assert.True(t, errors.Is(err, ErrAboveMaxSlashAmount))
	_, err = f.sm.SlashAndStartAuction(gov, f.st.Address(), slashParams("1100000000000000000"))
	assert.True(t, errors.Is(err, ErrInvalidSlashPercentTooHigh))
	_, err = f.sm.SlashAndStartAuction(alice, f.st.Address(), slashParams("100000000000000000"))
	assert.True(t, errors.Is(err, access.ErrUnauthorized))
	assert.True(t, errors.Is(f.sm.SetMaxPercentUserLoss(gov, increment.BigOf("1100000000000000000")), ErrInvalidMaxUserLossTooHigh))

	total, err := f.sm.GetAuctionableTotal(f.st.Address())
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(300), total)

	assert.True(t, errors.Is(f.sm.AuctionEnded(alice, 0, new(big.Int)), ErrCallerIsNotAuctionModule))
	_, err = f.sm.StakedTokenByAuctionID(0)
	assert.True(t, errors.Is(err, ErrInvalidAuctionID))
}

func TestSlashAndSellOut(t *testing.T) {
	f := newFixture(t)
	id, err := f.sm.SlashAndStartAuction(gov, f.st.Address(), slashParams("100000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, increment.BigOf("900000000000000000"), f.rate(t))
	assert.True(t, f.postSlashing(t))
	addr, err := f.sm.StakedTokenByAuctionID(id)
	require.NoError(t, err)
	assert.Equal(t, f.st.Address(), addr)

	require.NoError(t, f.am.BuyLots(buyer, id, 10))
	bought, err := f.inc.BalanceOf(buyer)
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(100), bought)
	assert.False(t, f.postSlashing(t), "sold out auction settles the slashing")
	assert.Equal(t, increment.BigOf("900000000000000000"), f.rate(t))

	assert.True(t, errors.Is(f.sm.WithdrawFundsRaisedFromAuction(gov, big.NewInt(1e7+1)), ErrInsufficientFundsRaisedToWithdraw))
	require.NoError(t, f.sm.WithdrawFundsRaisedFromAuction(gov, big.NewInt(1e7)))
	got, err := f.usdc.BalanceOf(gov)
	require.NoError(t, err)
	assert.Equal(t, int64(1e7), got.Int64())
}

func TestTerminateReturnsUnsold(t *testing.T) {
	f := newFixture(t)
	id, err := f.sm.SlashAndStartAuction(gov, f.st.Address(), slashParams("200000000000000000"))
	require.NoError(t, err)
	require.NoError(t, f.am.BuyLots(buyer, id, 2))

	assert.True(t, errors.Is(f.sm.TerminateAuction(alice, id), access.ErrUnauthorized))
	require.NoError(t, f.sm.TerminateAuction(gov, id))

	underlying, err := f.st.GetUnderlyingBalance()
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(980), underlying)
	assert.Equal(t, increment.BigOf("980000000000000000"), f.rate(t))
	assert.False(t, f.postSlashing(t))
	held, err := f.inc.BalanceOf(f.am.Address())
	require.NoError(t, err)
	assert.Zero(t, held.Sign())
}

func TestExpiredAuctionRestoresRate(t *testing.T) {
	f := newFixture(t)
	id, err := f.sm.SlashAndStartAuction(gov, f.st.Address(), slashParams("100000000000000000"))
	require.NoError(t, err)

	// stakers can leave without a cooldown while slashing is unsettled
	require.NoError(t, f.st.Redeem(alice, increment.WadOf(100)))
	got, err := f.inc.BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(90), got)

	f.at(t0 + 10*day)
	require.NoError(t, f.am.CompleteAuction(id))
	assert.False(t, f.postSlashing(t))
	underlying, err := f.st.GetUnderlyingBalance()
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(910), underlying)
	supply, err := f.st.TotalSupply()
	require.NoError(t, err)
	// the remaining stakers recover the whole slash
	assert.Equal(t, fixedpoint.Div(increment.WadOf(910), increment.WadOf(900)), f.rate(t))
	assert.Equal(t, increment.WadOf(900), supply)
}

func TestReturnFunds(t *testing.T) {
	f := newFixture(t)
	donor := increment.NamedAddress("donor")
	require.NoError(t, f.inc.Mint(donor, increment.WadOf(100)))
	require.NoError(t, f.inc.Approve(donor, f.st.Address(), increment.WadOf(100)))

	assert.True(t, errors.Is(f.sm.ReturnFunds(alice, f.st.Address(), donor, increment.WadOf(100)), access.ErrUnauthorized))
	require.NoError(t, f.sm.ReturnFunds(gov, f.st.Address(), donor, increment.WadOf(100)))
	assert.Equal(t, increment.BigOf("1100000000000000000"), f.rate(t))
}

func TestSetRewardDistributor(t *testing.T) {
	f := newFixture(t)
	stINC := f.st.Address()
	assert.True(t, errors.Is(f.sm.SetRewardDistributor(alice, f.smrd), access.ErrUnauthorized))
	assert.True(t, errors.Is(f.sm.SetRewardDistributor(gov, nil), ErrInvalidZeroAddress))

	next := reward.NewSMDistributor(increment.NamedAddress("sm-distributor-v2"), f.env, f.acl, f.tokens, f.sm)
	require.NoError(t, next.Initialize(f.res.Address(), reward.DefaultMaxRewardMultiplier, reward.DefaultSmoothingValue))

	// a swap inside a failed call is rolled back with it
	failed := errors.New("failed")
	assert.Equal(t, failed, f.env.Atomic(func() error {
		require.NoError(t, f.sm.SetRewardDistributor(gov, next))
		return failed
	}))
	d, err := f.sm.RewardDistributor()
	require.NoError(t, err)
	assert.Same(t, f.smrd, d)
	started, err := next.TimeOfLastCumRewardUpdate(stINC)
	require.NoError(t, err)
	assert.Zero(t, started)

	f.at(t0 + day)
	require.NoError(t, f.sm.SetRewardDistributor(gov, next))
	started, err = next.TimeOfLastCumRewardUpdate(stINC)
	require.NoError(t, err)
	assert.Equal(t, uint64(t0+day), started)

	// alice staked before the swap and registers with the new distributor
	require.NoError(t, next.RegisterPositions(alice, []increment.Address{stINC}))
	pos, err := next.LpPositionsPerUser(alice, stINC)
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(1000), pos)
	start, err := next.MultiplierStartTimeByUser(alice, stINC)
	require.NoError(t, err)
	assert.Equal(t, uint64(t0+day), start)

	// balance changes reach only the new distributor
	f.at(t0 + 2*day)
	require.NoError(t, f.inc.Mint(alice, increment.WadOf(10)))
	require.NoError(t, f.inc.Approve(alice, stINC, increment.WadOf(10)))
	require.NoError(t, f.st.Stake(alice, increment.WadOf(10)))
	shares, err := f.st.BalanceOf(alice)
	require.NoError(t, err)
	pos, err = next.LpPositionsPerUser(alice, stINC)
	require.NoError(t, err)
	assert.Equal(t, shares, pos)
	pos, err = f.smrd.LpPositionsPerUser(alice, stINC)
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(1000), pos)
	start, err = next.MultiplierStartTimeByUser(alice, stINC)
	require.NoError(t, err)
	assert.Equal(t, uint64(t0+day+day*10/1010), start)

	// a safety module rebuilt over the same state keeps the swap
	reopened := New(f.sm.Address(), f.env, f.acl, f.tokens, f.am)
	reopened.BindRewardDistributor(f.smrd)
	reopened.BindRewardDistributor(next)
	d, err = reopened.RewardDistributor()
	require.NoError(t, err)
	assert.Same(t, next, d)

	unbound := New(f.sm.Address(), f.env, f.acl, f.tokens, f.am)
	unbound.BindRewardDistributor(f.smrd)
	_, err = unbound.RewardDistributor()
	assert.Error(t, err)
}

func TestSetAuctionModule(t *testing.T) {
	f := newFixture(t)
	next := auction.New(increment.NamedAddress("auction-module-v2"), f.env, f.acl, f.tokens)
	require.NoError(t, next.Initialize(f.sm.Address(), f.usdc.Address()))
	next.BindOwner(f.sm)

	assert.True(t, errors.Is(f.sm.SetAuctionModule(alice, next), access.ErrUnauthorized))
	assert.True(t, errors.Is(f.sm.SetAuctionModule(gov, nil), ErrInvalidZeroAddress))

	failed := errors.New("failed")
	assert.Equal(t, failed, f.env.Atomic(func() error {
		require.NoError(t, f.sm.SetAuctionModule(gov, next))
		return failed
	}))
	a, err := f.sm.AuctionModule()
	require.NoError(t, err)
	assert.Same(t, f.am, a)

	require.NoError(t, f.sm.SetAuctionModule(gov, next))
	id, err := f.sm.SlashAndStartAuction(gov, f.st.Address(), slashParams("100000000000000000"))
	require.NoError(t, err)
	held, err := f.inc.BalanceOf(next.Address())
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(100), held)

	// the previous module can no longer call back
	assert.True(t, errors.Is(f.sm.AuctionEnded(f.am.Address(), id, new(big.Int)), ErrCallerIsNotAuctionModule))

	require.NoError(t, f.usdc.Approve(buyer, next.Address(), big.NewInt(1e12)))
	require.NoError(t, next.BuyLots(buyer, id, 10))
	assert.False(t, f.postSlashing(t), "sold out auction settles the slashing")

	reopened := New(f.sm.Address(), f.env, f.acl, f.tokens, f.am)
	reopened.BindAuctionModule(next)
	a, err = reopened.AuctionModule()
	require.NoError(t, err)
	assert.Same(t, next, a)
}
