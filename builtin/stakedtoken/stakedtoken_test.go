// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakedtoken

import (
	"errors"
	"math/big"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/fixedpoint"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/lvldb"
	"github.com/Increment-Finance/peripheral-contracts-sub004/state"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

const (
	t0       = 1_700_000_000
	day      = increment.SecondsPerDay
	cooldown = 10 * day
	window   = 2 * day
)

var (
	gov   = increment.NamedAddress("governance")
	sm    = increment.NamedAddress("safety-module")
	alice = increment.NamedAddress("alice")
	bob   = increment.NamedAddress("bob")
	sink  = increment.NamedAddress("auction-module")
)

type recorder struct {
	updates []increment.Address
}

func (r *recorder) UpdatePosition(_, _, user increment.Address) error {
	r.updates = append(r.updates, user)
	return nil
}

type fixture struct {
	env *xenv.Environment
	st  *StakedToken
	inc *token.Token
	rec *recorder
}

func newFixture(t *testing.T) *fixture {
	env := xenv.New(state.New(lvldb.MustNewMem()), &xenv.BlockContext{Time: t0})
	acl := access.New(increment.NamedAddress("access"), env)
	require.NoError(t, acl.Initialize(gov))
	tokens := token.NewRegistry(env)
	inc := tokens.Deploy(increment.NamedAddress("INC"))

	st := New(increment.NamedAddress("stINC"), env, acl, tokens)
	cfg := &Config{
		Underlying:      inc.Address(),
		CooldownSeconds: cooldown,
		UnstakeWindow:   window,
		Name:            "Staked INC",
		Symbol:          "stINC",
	}
	require.NoError(t, st.Initialize(cfg, sm, increment.WadOf(1_000_000)))
	rec := &recorder{}
	st.SetPositionListener(rec)

	for _, user := range []increment.Address{alice, bob, sink} {
		require.NoError(t, inc.Mint(user, increment.WadOf(10_000)))
		require.NoError(t, inc.Approve(user, st.Address(), increment.WadOf(10_000)))
	}
	return &fixture{env: env, st: st, inc: inc, rec: rec}
}

func (f *fixture) at(ts uint64) {
	f.env.SetBlockContext(&xenv.BlockContext{Time: ts})
}

func (f *fixture) shares(t *testing.T, user increment.Address) *big.Int {
	v, err := f.st.BalanceOf(user)
	require.NoError(t, err)
	return v
}

func TestStakeAndRedeem(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.st.Stake(alice, increment.WadOf(100)))
	assert.Equal(t, increment.WadOf(100), f.shares(t, alice))
	assert.Equal(t, []increment.Address{alice}, f.rec.updates)

	assert.True(t, errors.Is(f.st.Redeem(alice, increment.WadOf(1)), ErrInsufficientCooldown))
	assert.True(t, errors.Is(f.st.Stake(alice, new(big.Int)), ErrInvalidZeroAmount))

	require.NoError(t, f.st.Cooldown(alice))
	f.at(t0 + cooldown - 1)
	assert.True(t, errors.Is(f.st.Redeem(alice, increment.WadOf(1)), ErrInsufficientCooldown))

	f.at(t0 + cooldown)
	require.NoError(t, f.st.Redeem(alice, increment.WadOf(40)))
	assert.Equal(t, increment.WadOf(60), f.shares(t, alice))
	start, err := f.st.GetCooldownStartTime(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(t0), start, "partial redeem keeps the cooldown")

	// asking for more than the balance redeems everything
	require.NoError(t, f.st.RedeemTo(alice, bob, increment.WadOf(1000)))
	assert.Equal(t, 0, f.shares(t, alice).Sign())
	got, err := f.inc.BalanceOf(bob)
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(10_060), got)
	start, err = f.st.GetCooldownStartTime(alice)
	require.NoError(t, err)
	assert.Zero(t, start)
}

func TestUnstakeWindowFinished(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.st.Stake(alice, increment.WadOf(100)))
	assert.True(t, errors.Is(f.st.Cooldown(bob), ErrZeroBalanceAtCooldown))
	require.NoError(t, f.st.Cooldown(alice))
	f.at(t0 + cooldown + window)
	require.NoError(t, f.st.Redeem(alice, increment.WadOf(1)))
	f.at(t0 + cooldown + window + 1)
	assert.True(t, errors.Is(f.st.Redeem(alice, increment.WadOf(1)), ErrUnstakeWindowFinished))
}

func TestMaxStakeAmount(t *testing.T) {
	f := newFixture(t)
	assert.True(t, errors.Is(f.st.SetMaxStakeAmount(alice, increment.WadOf(1)), access.ErrUnauthorized))
	require.NoError(t, f.st.SetMaxStakeAmount(gov, increment.WadOf(150)))
	require.NoError(t, f.st.Stake(alice, increment.WadOf(100)))
	assert.True(t, errors.Is(f.st.Stake(alice, increment.WadOf(51)), ErrAboveMaxStakeAmount))
	require.NoError(t, f.st.Stake(bob, increment.WadOf(100)))
	assert.True(t, errors.Is(f.st.Transfer(bob, alice, increment.WadOf(51)), ErrAboveMaxStakeAmount))
	require.NoError(t, f.st.StakeOnBehalfOf(bob, alice, increment.WadOf(50)))
	assert.Equal(t, increment.WadOf(150), f.shares(t, alice))
}

func TestTransferCooldown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.st.Stake(alice, increment.WadOf(100)))
	require.NoError(t, f.st.Stake(bob, increment.WadOf(100)))
	require.NoError(t, f.st.Cooldown(bob))
	f.at(t0 + day)
	require.NoError(t, f.st.Cooldown(alice))

	f.rec.updates = nil
	require.NoError(t, f.st.Transfer(alice, bob, increment.WadOf(100)))
	assert.Equal(t, []increment.Address{alice, bob}, f.rec.updates)

	start, err := f.st.GetCooldownStartTime(bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(t0+day/2), start)
	start, err = f.st.GetCooldownStartTime(alice)
	require.NoError(t, err)
	assert.Zero(t, start, "emptied sender loses its cooldown")

	// a receiver without a cooldown does not get one
	require.NoError(t, f.st.Approve(bob, alice, increment.WadOf(10)))
	require.NoError(t, f.st.TransferFrom(alice, bob, alice, increment.WadOf(10)))
	start, err = f.st.GetCooldownStartTime(alice)
	require.NoError(t, err)
	assert.Zero(t, start)
	assert.True(t, errors.Is(f.st.TransferFrom(alice, bob, alice, increment.WadOf(1)), token.ErrInsufficientAllowance))
}

func TestStakingExtendsCooldown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.st.Stake(alice, increment.WadOf(100)))
	require.NoError(t, f.st.Cooldown(alice))
	f.at(t0 + 4*day)
	require.NoError(t, f.st.Stake(alice, increment.WadOf(300)))
	start, err := f.st.GetCooldownStartTime(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(t0+3*day), start)
}

func TestSlashing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.st.Stake(alice, increment.WadOf(1000)))

	_, err := f.st.Slash(alice, sink, increment.WadOf(100))
	assert.True(t, errors.Is(err, ErrCallerIsNotSafetyModule))

	slashed, err := f.st.Slash(sm, sink, increment.WadOf(100))
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(100), slashed)
	rate, err := f.st.ExchangeRate()
	require.NoError(t, err)
	assert.Equal(t, increment.BigOf("900000000000000000"), rate)
	got, err := f.inc.BalanceOf(sink)
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(10_100), got)

	_, err = f.st.Slash(sm, sink, increment.WadOf(1))
	assert.True(t, errors.Is(err, ErrSlashingDisabledInPostSlashingState))
	assert.True(t, errors.Is(f.st.Stake(bob, increment.WadOf(100)), ErrStakingDisabledInPostSlashingState))

	// no cooldown needed while slashing is unsettled
	require.NoError(t, f.st.Redeem(alice, increment.WadOf(10)))
	got, err = f.inc.BalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(9_009), got)

	require.NoError(t, f.st.SettleSlashing(sm))
	require.NoError(t, f.st.Stake(bob, increment.WadOf(100)))
	assert.Equal(t, increment.BigOf("111111111111111111111"), f.shares(t, bob))

	require.NoError(t, f.st.ReturnFunds(sm, sink, increment.WadOf(100)))
	underlying, err := f.st.GetUnderlyingBalance()
	require.NoError(t, err)
	assert.Equal(t, increment.WadOf(1091), underlying)
	supply, err := f.st.TotalSupply()
	require.NoError(t, err)
	rate, err = f.st.ExchangeRate()
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.Div(underlying, supply), rate)
}

func TestPause(t *testing.T) {
	f := newFixture(t)
	assert.True(t, errors.Is(f.st.Pause(alice), access.ErrUnauthorized))
	require.NoError(t, f.st.Pause(gov))
	assert.True(t, errors.Is(f.st.Stake(alice, increment.WadOf(1)), ErrPaused))
	require.NoError(t, f.st.Unpause(gov))
	require.NoError(t, f.st.Stake(alice, increment.WadOf(1)))

	assert.True(t, errors.Is(f.st.SetSafetyModule(gov, increment.Address{}), ErrInvalidZeroAddress))
	require.NoError(t, f.st.SetSafetyModule(gov, alice))
	got, err := f.st.SafetyModule()
	require.NoError(t, err)
	assert.Equal(t, alice, got)
}

// Shares never claim more underlying than the pool holds and the rounding
// left over stays dust.
func TestExchangeRateConservation(t *testing.T) {
	fz := fuzz.New().NilChance(0)
	users := []increment.Address{alice, bob}
	for range 10 {
		f := newFixture(t)
		for i := range 30 {
			var amount uint64
			var pick, op uint8
			fz.Fuzz(&amount)
			fz.Fuzz(&pick)
			fz.Fuzz(&op)
			user := users[int(pick)%len(users)]
			value := new(big.Int).Add(new(big.Int).SetUint64(amount), big.NewInt(1))

			post, err := f.st.IsInPostSlashingState()
			require.NoError(t, err)
			switch {
			case i == 15:
				underlying, err := f.st.GetUnderlyingBalance()
				require.NoError(t, err)
				if underlying.Sign() > 0 {
					part := new(big.Int).Quo(underlying, big.NewInt(int64(op%9)+2))
					if part.Sign() > 0 {
						_, err := f.st.Slash(sm, sink, part)
						require.NoError(t, err)
					}
				}
			case post && op%2 == 0:
				if f.shares(t, user).Sign() > 0 {
					require.NoError(t, f.st.Redeem(user, value))
				}
			case !post:
				require.NoError(t, f.st.Stake(user, value))
			}

			underlying, err := f.st.GetUnderlyingBalance()
			require.NoError(t, err)
			supply, err := f.st.TotalSupply()
			require.NoError(t, err)
			rate, err := f.st.ExchangeRate()
			require.NoError(t, err)
			claimed := fixedpoint.Mul(supply, rate)
			require.True(t, claimed.Cmp(underlying) <= 0)
			// one wei per whole share from the slash plus one per redeem
			require.True(t, new(big.Int).Sub(underlying, claimed).Cmp(big.NewInt(100_000)) <= 0)
		}
	}
}
