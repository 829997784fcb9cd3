// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package safetymodule ties the staking tokens to the auction module and the
// safety module reward distributor. Governance slashes a staking token into
// an auction and the unsold part flows back to the stakers once it ends.
package safetymodule

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/auction"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reward"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/stakedtoken"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/fixedpoint"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

const (
	ErrInvalidStakingToken               reverts.Kind = "SafetyModule_InvalidStakingToken"
	ErrStakingTokenAlreadyRegistered     reverts.Kind = "SafetyModule_StakingTokenAlreadyRegistered"
	ErrInvalidMaxUserLossTooHigh         reverts.Kind = "SafetyModule_InvalidMaxUserLossTooHigh"
	ErrInvalidSlashPercentTooHigh        reverts.Kind = "SafetyModule_InvalidSlashPercentTooHigh"
	ErrAboveMaxSlashAmount               reverts.Kind = "SafetyModule_AboveMaxSlashAmount"
	ErrCallerIsNotAuctionModule          reverts.Kind = "SafetyModule_CallerIsNotAuctionModule"
	ErrInvalidZeroAddress                reverts.Kind = "SafetyModule_InvalidZeroAddress"
	ErrInvalidAuctionID                  reverts.Kind = "SafetyModule_InvalidAuctionId"
	ErrRewardDistributorNotInitialized   reverts.Kind = "SafetyModule_RewardDistributorNotInitialized"
	ErrInsufficientFundsRaisedToWithdraw reverts.Kind = "SafetyModule_InsufficientFundsRaisedToWithdraw"
)

var logger = log.WithContext("pkg", "safetymodule")

var (
	slotStakingTokens  = increment.NameToSlot("staking-tokens")
	slotMaxUserLoss    = increment.NameToSlot("max-percent-user-loss")
	slotAuctionToToken = increment.NameToSlot("auction-to-staking-token")
	slotPaused         = increment.NameToSlot("paused")
	slotAuctionModule  = increment.NameToSlot("auction-module")
	slotDistributor    = increment.NameToSlot("reward-distributor")
)

// SlashParams configures the auction started by SlashAndStartAuction.
type SlashParams struct {
	NumLots              uint64
	LotPrice             *big.Int
	InitialLotSize       *big.Int
	SlashPercent         *big.Int
	LotIncreaseIncrement *big.Int
	LotIncreasePeriod    uint64
	TimeLimit            uint64
}

type SafetyModule struct {
	ctx            *solidity.Context
	access         *access.Registry
	tokens         *token.Registry
	stakingTokens  *solidity.Raw[[]increment.Address]
	maxUserLoss    *solidity.Uint256
	auctionToToken *solidity.Mapping[solidity.Uint64Key, increment.Address]
	paused         *solidity.Bool
	auctionModule  *solidity.Raw[increment.Address]
	distributor    *solidity.Raw[increment.Address]

	// bound runtime objects, looked up by the addresses in storage
	staked       map[increment.Address]*stakedtoken.StakedToken
	auctions     map[increment.Address]*auction.Module
	distributors map[increment.Address]*reward.SMDistributor
	initial      increment.Address
}

// New binds the safety module at addr. Initialize records auctions as its
// auction module.
func New(addr increment.Address, env *xenv.Environment, acl *access.Registry, tokens *token.Registry, auctions *auction.Module) *SafetyModule {
	ctx := solidity.NewContext(addr, env)
	m := &SafetyModule{
		ctx:            ctx,
		access:         acl,
		tokens:         tokens,
		stakingTokens:  solidity.NewRaw[[]increment.Address](ctx, slotStakingTokens),
		maxUserLoss:    solidity.NewUint256(ctx, slotMaxUserLoss),
		auctionToToken: solidity.NewMapping[solidity.Uint64Key, increment.Address](ctx, slotAuctionToToken),
		paused:         solidity.NewBool(ctx, slotPaused),
		auctionModule:  solidity.NewRaw[increment.Address](ctx, slotAuctionModule),
		distributor:    solidity.NewRaw[increment.Address](ctx, slotDistributor),
		staked:         make(map[increment.Address]*stakedtoken.StakedToken),
		auctions:       make(map[increment.Address]*auction.Module),
		distributors:   make(map[increment.Address]*reward.SMDistributor),
		initial:        auctions.Address(),
	}
	m.BindAuctionModule(auctions)
	return m
}

func (m *SafetyModule) Address() increment.Address { return m.ctx.Address() }

func (m *SafetyModule) Initialize(maxPercentUserLoss *big.Int) error {
	return m.ctx.Atomic(func() error {
		if err := m.auctionModule.Set(m.initial); err != nil {
			return err
		}
		return m.setMaxUserLoss(maxPercentUserLoss)
	})
}

// BindAuctionModule makes a resolvable while its address is the recorded
// auction module. Binding writes nothing.
func (m *SafetyModule) BindAuctionModule(a *auction.Module) {
	m.auctions[a.Address()] = a
}

// BindRewardDistributor makes d resolvable while its address is the
// recorded reward distributor. Binding writes nothing.
func (m *SafetyModule) BindRewardDistributor(d *reward.SMDistributor) {
	m.distributors[d.Address()] = d
}

// AuctionModule resolves the recorded auction module.
func (m *SafetyModule) AuctionModule() (*auction.Module, error) {
	addr, err := m.auctionModule.Get()
	if err != nil {
		return nil, err
	}
	a, ok := m.auctions[addr]
	if !ok {
		return nil, errors.Errorf("auction module %v is not bound to the safety module", addr)
	}
	return a, nil
}

// RewardDistributor resolves the recorded reward distributor. It is nil
// before one is set.
func (m *SafetyModule) RewardDistributor() (*reward.SMDistributor, error) {
	addr, err := m.distributor.Get()
	if err != nil || addr.IsZero() {
		return nil, err
	}
	d, ok := m.distributors[addr]
	if !ok {
		return nil, errors.Errorf("reward distributor %v is not bound to the safety module", addr)
	}
	return d, nil
}

// SetRewardDistributor points the safety module at d and starts its reward
// clock for every staking token it has not seen yet. Stakers from before the
// swap register their positions with d.
func (m *SafetyModule) SetRewardDistributor(caller increment.Address, d *reward.SMDistributor) error {
	return m.ctx.Atomic(func() error {
		if err := m.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if d == nil || d.Address().IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		m.BindRewardDistributor(d)
		if err := m.distributor.Set(d.Address()); err != nil {
			return err
		}
		list, err := m.stakingTokens.Get()
		if err != nil {
			return err
		}
		for _, addr := range list {
			started, err := d.TimeOfLastCumRewardUpdate(addr)
			if err != nil {
				return err
			}
			if started != 0 {
				continue
			}
			if err := d.InitMarketStartTime(m.Address(), addr); err != nil {
				return err
			}
		}
		m.ctx.Log("RewardDistributorUpdated", "newRewardDistributor", d.Address())
		return nil
	})
}

// UpdatePosition passes a staking token balance change on to the recorded
// reward distributor. Nothing is notified before a distributor is set.
func (m *SafetyModule) UpdatePosition(caller, market, user increment.Address) error {
	d, err := m.RewardDistributor()
	if err != nil || d == nil {
		return err
	}
	return d.UpdatePosition(caller, market, user)
}

// AddStakingToken registers st and starts its reward clock.
func (m *SafetyModule) AddStakingToken(caller increment.Address, st *stakedtoken.StakedToken) error {
	return m.ctx.Atomic(func() error {
		if err := m.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		d, err := m.RewardDistributor()
		if err != nil {
			return err
		}
		if d == nil {
			return reverts.New(ErrRewardDistributorNotInitialized)
		}
		list, err := m.stakingTokens.Get()
		if err != nil {
			return err
		}
		for _, addr := range list {
			if addr == st.Address() {
				return reverts.New(ErrStakingTokenAlreadyRegistered, addr)
			}
		}
		if err := m.stakingTokens.Set(append(list, st.Address())); err != nil {
			return err
		}
		if err := d.InitMarketStartTime(m.Address(), st.Address()); err != nil {
			return err
		}
		m.BindStakingToken(st)
		m.ctx.Log("StakingTokenAdded", "stakingToken", st.Address())
		logger.Info("staking token added", "token", st.Address())
		return nil
	})
}

// BindStakingToken attaches the runtime object of a staking token, and
// routes its balance changes through the safety module.
func (m *SafetyModule) BindStakingToken(st *stakedtoken.StakedToken) {
	m.staked[st.Address()] = st
	st.SetPositionListener(m)
}

func (m *SafetyModule) GetStakingTokens() ([]increment.Address, error) { return m.stakingTokens.Get() }

func (m *SafetyModule) GetNumStakingTokens() (int, error) {
	list, err := m.stakingTokens.Get()
	return len(list), err
}

func (m *SafetyModule) GetStakingTokenIdx(addr increment.Address) (int, error) {
	list, err := m.stakingTokens.Get()
	if err != nil {
		return 0, err
	}
	for i, a := range list {
		if a == addr {
			return i, nil
		}
	}
	return 0, reverts.New(ErrInvalidStakingToken, addr)
}

func (m *SafetyModule) StakingToken(addr increment.Address) (*stakedtoken.StakedToken, error) {
	st, ok := m.staked[addr]
	if !ok {
		return nil, reverts.New(ErrInvalidStakingToken, addr)
	}
	return st, nil
}

// GetNumMarkets and the following methods expose the staking tokens as
// reward markets.
func (m *SafetyModule) GetNumMarkets() (int, error) { return m.GetNumStakingTokens() }

func (m *SafetyModule) GetMarket(idx int) (increment.Address, error) {
	list, err := m.stakingTokens.Get()
	if err != nil {
		return increment.Address{}, err
	}
	if idx < 0 || idx >= len(list) {
		return increment.Address{}, reverts.New(ErrInvalidStakingToken, idx)
	}
	return list[idx], nil
}

// GetCurrentPosition is the staked balance of user in market.
func (m *SafetyModule) GetCurrentPosition(user, market increment.Address) (*big.Int, error) {
	st, err := m.StakingToken(market)
	if err != nil {
		return nil, err
	}
	return st.BalanceOf(user)
}

func (m *SafetyModule) Paused() (bool, error) { return m.paused.Get() }

func (m *SafetyModule) Pause(caller increment.Address) error   { return m.setPaused(caller, true) }
func (m *SafetyModule) Unpause(caller increment.Address) error { return m.setPaused(caller, false) }

func (m *SafetyModule) setPaused(caller increment.Address, paused bool) error {
	return m.ctx.Atomic(func() error {
		if err := m.access.CheckAnyRole(caller, access.EmergencyAdmin, access.Governance); err != nil {
			return err
		}
		if err := m.paused.Set(paused); err != nil {
			return err
		}
		if paused {
			m.ctx.Log("Paused", "account", caller)
		} else {
			m.ctx.Log("Unpaused", "account", caller)
		}
		return nil
	})
}

func (m *SafetyModule) MaxPercentUserLoss() (*big.Int, error) { return m.maxUserLoss.Get() }

func (m *SafetyModule) SetMaxPercentUserLoss(caller increment.Address, v *big.Int) error {
	return m.ctx.Atomic(func() error {
		if err := m.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		return m.setMaxUserLoss(v)
	})
}

func (m *SafetyModule) setMaxUserLoss(v *big.Int) error {
	if v.Cmp(fixedpoint.Unit) > 0 {
		return reverts.New(ErrInvalidMaxUserLossTooHigh, v)
	}
	if err := m.maxUserLoss.Set(v); err != nil {
		return err
	}
	m.ctx.Log("MaxPercentUserLossUpdated", "maxPercentUserLoss", v)
	return nil
}

// GetAuctionableTotal is the most underlying a single slash may take from
// the staking token.
func (m *SafetyModule) GetAuctionableTotal(addr increment.Address) (*big.Int, error) {
	st, err := m.StakingToken(addr)
	if err != nil {
		return nil, err
	}
	underlying, err := st.GetUnderlyingBalance()
	if err != nil {
		return nil, err
	}
	loss, err := m.maxUserLoss.Get()
	if err != nil {
		return nil, err
	}
	return fixedpoint.Mul(underlying, loss), nil
}

// SlashAndStartAuction slashes SlashPercent of the staking token's
// underlying into the auction module and auctions it off.
func (m *SafetyModule) SlashAndStartAuction(caller, stakingToken increment.Address, p *SlashParams) (uint64, error) {
	var id uint64
	err := m.ctx.NonReentrant(func() error {
		if err := m.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		st, err := m.StakingToken(stakingToken)
		if err != nil {
			return err
		}
		if p.SlashPercent.Cmp(fixedpoint.Unit) > 0 {
			return reverts.New(ErrInvalidSlashPercentTooHigh, p.SlashPercent)
		}
		underlying, err := st.GetUnderlyingBalance()
		if err != nil {
			return err
		}
		amount := fixedpoint.Mul(underlying, p.SlashPercent)
		max, err := m.GetAuctionableTotal(stakingToken)
		if err != nil {
			return err
		}
		if amount.Cmp(max) > 0 {
			return reverts.New(ErrAboveMaxSlashAmount, amount, max)
		}
		auctions, err := m.AuctionModule()
		if err != nil {
			return err
		}
		slashed, err := st.Slash(m.Address(), auctions.Address(), amount)
		if err != nil {
			return err
		}
		underlyingToken, err := st.UnderlyingToken()
		if err != nil {
			return err
		}
		id, err = auctions.StartAuction(m.Address(), &auction.Params{
			Token:                underlyingToken,
			NumLots:              p.NumLots,
			LotPrice:             p.LotPrice,
			InitialLotSize:       p.InitialLotSize,
			LotIncreaseIncrement: p.LotIncreaseIncrement,
			LotIncreasePeriod:    p.LotIncreasePeriod,
			TimeLimit:            p.TimeLimit,
		})
		if err != nil {
			return err
		}
		if err := m.auctionToToken.Set(solidity.Uint64Key(id), stakingToken); err != nil {
			return err
		}
		m.ctx.Log("TokensSlashedForAuction", "stakingToken", stakingToken, "slashAmount", slashed, "underlyingAmount", slashed, "auctionId", id)
		logger.Info("slashed for auction", "token", stakingToken, "amount", slashed, "auction", id)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// TerminateAuction ends an auction early and returns the unsold tokens.
func (m *SafetyModule) TerminateAuction(caller increment.Address, id uint64) error {
	return m.ctx.NonReentrant(func() error {
		if err := m.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		auctions, err := m.AuctionModule()
		if err != nil {
			return err
		}
		a, err := auctions.GetAuction(id)
		if err != nil {
			return err
		}
		remaining := new(big.Int).Set(a.Balance)
		if err := auctions.TerminateAuction(m.Address(), id); err != nil {
			return err
		}
		return m.returnAfterAuction(auctions, id, remaining)
	})
}

// AuctionEnded is called by the auction module when an auction sells out
// or expires.
func (m *SafetyModule) AuctionEnded(caller increment.Address, id uint64, remaining *big.Int) error {
	return m.ctx.Atomic(func() error {
		auctions, err := m.AuctionModule()
		if err != nil {
			return err
		}
		if caller != auctions.Address() {
			return reverts.New(ErrCallerIsNotAuctionModule, caller)
		}
		logger.Debug("auction ended", "auction", id, "remaining", remaining)
		return m.returnAfterAuction(auctions, id, remaining)
	})
}

// returnAfterAuction pulls what the auction module left to the safety
// module, hands it back to the staking token and settles the slashing.
func (m *SafetyModule) returnAfterAuction(auctions *auction.Module, id uint64, amount *big.Int) error {
	addr, err := m.StakedTokenByAuctionID(id)
	if err != nil {
		return err
	}
	st, err := m.StakingToken(addr)
	if err != nil {
		return err
	}
	underlyingAddr, err := st.UnderlyingToken()
	if err != nil {
		return err
	}
	underlying, err := m.tokens.Get(underlyingAddr)
	if err != nil {
		return err
	}
	if amount.Sign() > 0 {
		if err := underlying.TransferFrom(m.Address(), auctions.Address(), m.Address(), amount); err != nil {
			return err
		}
		if err := underlying.Approve(m.Address(), st.Address(), amount); err != nil {
			return err
		}
		if err := st.ReturnFunds(m.Address(), m.Address(), amount); err != nil {
			return err
		}
	}
	if err := st.SettleSlashing(m.Address()); err != nil {
		return err
	}
	m.ctx.Log("AuctionEnded", "auctionId", id, "stakingToken", addr, "underlyingToken", underlyingAddr, "underlyingBalanceReturned", amount)
	return nil
}

// ReturnFunds moves underlying from from into a staking token outside of
// an auction.
func (m *SafetyModule) ReturnFunds(caller, stakingToken, from increment.Address, amount *big.Int) error {
	return m.ctx.NonReentrant(func() error {
		if err := m.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if from.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 1)
		}
		st, err := m.StakingToken(stakingToken)
		if err != nil {
			return err
		}
		return st.ReturnFunds(m.Address(), from, amount)
	})
}

// WithdrawFundsRaisedFromAuction sends payment tokens raised by auctions to
// the governance caller.
func (m *SafetyModule) WithdrawFundsRaisedFromAuction(caller increment.Address, amount *big.Int) error {
	return m.ctx.NonReentrant(func() error {
		if err := m.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		auctions, err := m.AuctionModule()
		if err != nil {
			return err
		}
		paymentAddr, err := auctions.PaymentToken()
		if err != nil {
			return err
		}
		payment, err := m.tokens.Get(paymentAddr)
		if err != nil {
			return err
		}
		allowed, err := payment.Allowance(auctions.Address(), m.Address())
		if err != nil {
			return err
		}
		if amount.Cmp(allowed) > 0 {
			return reverts.New(ErrInsufficientFundsRaisedToWithdraw, allowed, amount)
		}
		if err := payment.TransferFrom(m.Address(), auctions.Address(), caller, amount); err != nil {
			return err
		}
		m.ctx.Log("FundsRaisedWithdrawn", "to", caller, "amount", amount)
		return nil
	})
}

func (m *SafetyModule) StakedTokenByAuctionID(id uint64) (increment.Address, error) {
	addr, err := m.auctionToToken.Get(solidity.Uint64Key(id))
	if err != nil {
		return increment.Address{}, err
	}
	if addr.IsZero() {
		return increment.Address{}, reverts.New(ErrInvalidAuctionID, id)
	}
	return addr, nil
}

// SetAuctionModule swaps the auction module. Auctions still running in the
// previous module can no longer call back.
func (m *SafetyModule) SetAuctionModule(caller increment.Address, a *auction.Module) error {
	return m.ctx.Atomic(func() error {
		if err := m.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if a == nil || a.Address().IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		m.BindAuctionModule(a)
		if err := m.auctionModule.Set(a.Address()); err != nil {
			return err
		}
		m.ctx.Log("AuctionModuleUpdated", "newAuctionModule", a.Address())
		return nil
	})
}
