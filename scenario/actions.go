// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package scenario

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reward"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/safetymodule"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/stakedtoken"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/protocol"
)

// action reads its arguments and returns the call to execute. It must not
// touch the returned objects when a.err is set.
type action func(caller increment.Address, a *args, res *Result) func() error

var actions = map[string]action{
	"stake":             stake,
	"redeem":            redeem,
	"cooldown":          cooldown,
	"transfer":          transfer,
	"approve":           approve,
	"add_liquidity":     addLiquidity,
	"remove_liquidity":  removeLiquidity,
	"claim":             claim,
	"slash_and_auction": slashAndAuction,
	"buy_lots":          buyLots,
	"complete_auction":  completeAuction,
	"terminate_auction": terminateAuction,
	"withdraw_funds":    withdrawFunds,
	"update_weights":    updateWeights,
	"toggle_reward":     toggleReward,
}

// args decodes step arguments, keeping the first failure.
type args struct {
	p           *protocol.Protocol
	m           map[string]string
	lastAuction *uint64
	err         error
}

func (a *args) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

func (a *args) str(key string) string {
	v, ok := a.m[key]
	if !ok || v == "" {
		a.fail(errors.Errorf("missing argument %q", key))
	}
	return v
}

func (a *args) address(key string) increment.Address {
	addr, err := a.p.Resolve(a.str(key))
	if err != nil {
		a.fail(errors.WithMessage(err, key))
	}
	return addr
}

// optAddress resolves key, or returns def when it is absent.
func (a *args) optAddress(key string, def increment.Address) increment.Address {
	if _, ok := a.m[key]; !ok {
		return def
	}
	return a.address(key)
}

func (a *args) amount(key string, decimals uint8) *big.Int {
	v, err := protocol.ParseAmount(a.str(key))
	if err != nil {
		a.fail(errors.WithMessage(err, key))
		return new(big.Int)
	}
	return v.Wei(decimals)
}

func (a *args) uint(key string) uint64 {
	v, err := strconv.ParseUint(a.str(key), 10, 64)
	if err != nil {
		a.fail(errors.Wrap(err, key))
	}
	return v
}

func (a *args) list(key string) []string {
	var out []string
	for _, s := range strings.Split(a.str(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (a *args) addresses(key string) []increment.Address {
	refs := a.list(key)
	out := make([]increment.Address, len(refs))
	for i, ref := range refs {
		addr, err := a.p.Resolve(ref)
		if err != nil {
			a.fail(errors.WithMessage(err, key))
		}
		out[i] = addr
	}
	return out
}

func (a *args) weights(key string) []uint16 {
	refs := a.list(key)
	out := make([]uint16, len(refs))
	for i, ref := range refs {
		v, err := strconv.ParseUint(ref, 10, 16)
		if err != nil {
			a.fail(errors.Wrap(err, key))
		}
		out[i] = uint16(v)
	}
	return out
}

// auctionID reads "id", defaulting to the last auction the scenario started.
func (a *args) auctionID() uint64 {
	if _, ok := a.m["id"]; ok {
		return a.uint("id")
	}
	if a.lastAuction == nil {
		a.fail(errors.New("no auction started yet"))
		return 0
	}
	return *a.lastAuction
}

// stakedToken resolves a staking token and the decimals of its underlying.
func (a *args) stakedToken(key string) (*stakedtoken.StakedToken, uint8) {
	st, err := a.p.StakedToken(a.str(key))
	if err != nil {
		a.fail(err)
		return nil, 18
	}
	underlying, _ := a.p.Underlying(st.Address())
	return st, a.p.Decimals(underlying)
}

func (a *args) distributor() *reward.Distributor {
	d, err := a.p.Distributor(a.str("distributor"))
	if err != nil {
		a.fail(err)
	}
	return d
}

// ledger is what transfer and approve need from either kind of token.
type ledger interface {
	Transfer(caller, to increment.Address, amount *big.Int) error
	Approve(caller, spender increment.Address, amount *big.Int) error
}

func (a *args) ledger(key string) (ledger, uint8) {
	addr := a.address(key)
	if st, ok := a.p.StakedTokens[addr]; ok {
		return st, 18
	}
	tok, err := a.p.Tokens.Get(addr)
	if err != nil {
		a.fail(err)
		return (*token.Token)(nil), 18
	}
	return tok, a.p.Decimals(addr)
}

func stake(caller increment.Address, a *args, _ *Result) func() error {
	st, decimals := a.stakedToken("token")
	amount := a.amount("amount", decimals)
	to := a.optAddress("on_behalf_of", caller)
	return func() error { return st.StakeOnBehalfOf(caller, to, amount) }
}

func redeem(caller increment.Address, a *args, _ *Result) func() error {
	st, _ := a.stakedToken("token")
	shares := a.amount("amount", 18)
	to := a.optAddress("to", caller)
	return func() error { return st.RedeemTo(caller, to, shares) }
}

func cooldown(caller increment.Address, a *args, _ *Result) func() error {
	st, _ := a.stakedToken("token")
	return func() error { return st.Cooldown(caller) }
}

func transfer(caller increment.Address, a *args, _ *Result) func() error {
	l, decimals := a.ledger("token")
	to := a.address("to")
	amount := a.amount("amount", decimals)
	return func() error { return l.Transfer(caller, to, amount) }
}

func approve(caller increment.Address, a *args, _ *Result) func() error {
	l, decimals := a.ledger("token")
	spender := a.address("spender")
	amount := a.amount("amount", decimals)
	return func() error { return l.Approve(caller, spender, amount) }
}

func addLiquidity(caller increment.Address, a *args, _ *Result) func() error {
	market := a.address("market")
	amount := a.amount("amount", 18)
	ch := a.p.ClearingHouse
	return func() error { return ch.AddLiquidity(caller, market, amount) }
}

func removeLiquidity(caller increment.Address, a *args, _ *Result) func() error {
	market := a.address("market")
	amount := a.amount("amount", 18)
	ch := a.p.ClearingHouse
	return func() error { return ch.RemoveLiquidity(caller, market, amount) }
}

// claim claims for the caller, or for "user" when given, optionally
// restricted to the comma separated "tokens".
func claim(caller increment.Address, a *args, _ *Result) func() error {
	d := a.distributor()
	user := a.optAddress("user", caller)
	if _, ok := a.m["tokens"]; ok {
		tokens := a.addresses("tokens")
		return func() error { return d.ClaimRewardsForTokens(user, tokens) }
	}
	if user == caller {
		return func() error { return d.ClaimRewards(caller) }
	}
	return func() error { return d.ClaimRewardsFor(user) }
}

func slashAndAuction(caller increment.Address, a *args, res *Result) func() error {
	st, decimals := a.stakedToken("token")
	payment, err := a.p.Resolve(a.p.Config.SafetyModule.PaymentToken)
	if err != nil {
		a.fail(err)
	}
	params := &safetymodule.SlashParams{
		NumLots:              a.uint("num_lots"),
		LotPrice:             a.amount("lot_price", a.p.Decimals(payment)),
		InitialLotSize:       a.amount("initial_lot_size", decimals),
		SlashPercent:         a.amount("slash_percent", 18),
		LotIncreaseIncrement: a.amount("lot_increase_increment", decimals),
		LotIncreasePeriod:    a.uint("lot_increase_period"),
		TimeLimit:            a.uint("time_limit"),
	}
	sm := a.p.SafetyModule
	return func() error {
		id, err := sm.SlashAndStartAuction(caller, st.Address(), params)
		if err != nil {
			return err
		}
		res.AuctionID = &id
		return nil
	}
}

func buyLots(caller increment.Address, a *args, _ *Result) func() error {
	id := a.auctionID()
	lots := a.uint("lots")
	am := a.p.Auctions
	return func() error { return am.BuyLots(caller, id, lots) }
}

func completeAuction(_ increment.Address, a *args, _ *Result) func() error {
	id := a.auctionID()
	am := a.p.Auctions
	return func() error { return am.CompleteAuction(id) }
}

func terminateAuction(caller increment.Address, a *args, _ *Result) func() error {
	id := a.auctionID()
	sm := a.p.SafetyModule
	return func() error { return sm.TerminateAuction(caller, id) }
}

func withdrawFunds(caller increment.Address, a *args, _ *Result) func() error {
	payment, err := a.p.Resolve(a.p.Config.SafetyModule.PaymentToken)
	if err != nil {
		a.fail(err)
	}
	amount := a.amount("amount", a.p.Decimals(payment))
	sm := a.p.SafetyModule
	return func() error { return sm.WithdrawFundsRaisedFromAuction(caller, amount) }
}

func updateWeights(caller increment.Address, a *args, _ *Result) func() error {
	d := a.distributor()
	tok := a.address("token")
	markets := a.addresses("markets")
	weights := a.weights("weights")
	return func() error { return d.UpdateRewardWeights(caller, tok, markets, weights) }
}

func toggleReward(caller increment.Address, a *args, _ *Result) func() error {
	d := a.distributor()
	tok := a.address("token")
	return func() error { return d.TogglePausedReward(caller, tok) }
}
