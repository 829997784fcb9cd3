// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stakedtoken implements the safety module staking token: shares
// over an underlying token whose exchange rate drops when the pool is
// slashed and recovers when funds are returned.
package stakedtoken

import (
	"math/big"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/fixedpoint"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/metrics"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

const (
	ErrInvalidZeroAmount                   reverts.Kind = "StakedToken_InvalidZeroAmount"
	ErrInvalidZeroAddress                  reverts.Kind = "StakedToken_InvalidZeroAddress"
	ErrStakingDisabledInPostSlashingState  reverts.Kind = "StakedToken_StakingDisabledInPostSlashingState"
	ErrSlashingDisabledInPostSlashingState reverts.Kind = "StakedToken_SlashingDisabledInPostSlashingState"
	ErrAboveMaxStakeAmount                 reverts.Kind = "StakedToken_AboveMaxStakeAmount"
	ErrInsufficientCooldown                reverts.Kind = "StakedToken_InsufficientCooldown"
	ErrUnstakeWindowFinished               reverts.Kind = "StakedToken_UnstakeWindowFinished"
	ErrZeroBalanceAtCooldown               reverts.Kind = "StakedToken_ZeroBalanceAtCooldown"
	ErrZeroExchangeRate                    reverts.Kind = "StakedToken_ZeroExchangeRate"
	ErrCallerIsNotSafetyModule             reverts.Kind = "StakedToken_CallerIsNotSafetyModule"
	ErrPaused                              reverts.Kind = "StakedToken_Paused"
)

var (
	logger = log.WithContext("pkg", "stakedtoken")

	metricSlashes = metrics.LazyLoadCounterVec("staked_token_slashes_total", []string{"token"})
)

var (
	slotConfig         = increment.NameToSlot("config")
	slotSafetyModule   = increment.NameToSlot("safety-module")
	slotUnderlying     = increment.NameToSlot("underlying-balance")
	slotExchangeRate   = increment.NameToSlot("exchange-rate")
	slotPostSlashing   = increment.NameToSlot("post-slashing")
	slotCooldowns      = increment.NameToSlot("stakers-cooldowns")
	slotMaxStakeAmount = increment.NameToSlot("max-stake-amount")
	slotPaused         = increment.NameToSlot("paused")
	slotInitialized    = increment.NameToSlot("initialized")
)

// Config is fixed at deployment.
type Config struct {
	Underlying      increment.Address
	CooldownSeconds uint64
	UnstakeWindow   uint64
	Name            string
	Symbol          string
}

// PositionListener is notified after a staker's balance changed.
type PositionListener interface {
	UpdatePosition(caller, market, user increment.Address) error
}

type StakedToken struct {
	ctx          *solidity.Context
	access       *access.Registry
	tokens       *token.Registry
	shares       *token.Token
	config       *solidity.Raw[*Config]
	safetyModule *solidity.Raw[increment.Address]
	underlying   *solidity.Uint256
	exchangeRate *solidity.Uint256
	postSlashing *solidity.Bool
	cooldowns    *solidity.Mapping[increment.Address, uint64]
	maxStake     *solidity.Uint256
	paused       *solidity.Bool
	initialized  *solidity.Bool
	listener     PositionListener
}

// New binds the staked token at addr. Its shares are an ERC20 ledger at the
// same address.
func New(addr increment.Address, env *xenv.Environment, acl *access.Registry, tokens *token.Registry) *StakedToken {
	ctx := solidity.NewContext(addr, env)
	return &StakedToken{
		ctx:          ctx,
		access:       acl,
		tokens:       tokens,
		shares:       tokens.Deploy(addr),
		config:       solidity.NewRaw[*Config](ctx, slotConfig),
		safetyModule: solidity.NewRaw[increment.Address](ctx, slotSafetyModule),
		underlying:   solidity.NewUint256(ctx, slotUnderlying),
		exchangeRate: solidity.NewUint256(ctx, slotExchangeRate),
		postSlashing: solidity.NewBool(ctx, slotPostSlashing),
		cooldowns:    solidity.NewMapping[increment.Address, uint64](ctx, slotCooldowns),
		maxStake:     solidity.NewUint256(ctx, slotMaxStakeAmount),
		paused:       solidity.NewBool(ctx, slotPaused),
		initialized:  solidity.NewBool(ctx, slotInitialized),
	}
}

func (s *StakedToken) Address() increment.Address { return s.ctx.Address() }

// SetPositionListener wires the safety module reward distributor.
func (s *StakedToken) SetPositionListener(l PositionListener) {
	s.listener = l
}

func (s *StakedToken) Initialize(cfg *Config, safetyModule increment.Address, maxStakeAmount *big.Int) error {
	return s.ctx.Atomic(func() error {
		if done, err := s.initialized.Get(); err != nil {
			return err
		} else if done {
			return reverts.New(access.ErrAlreadyInitialized)
		}
		if cfg.Underlying.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		if safetyModule.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 1)
		}
		if _, err := s.tokens.Get(cfg.Underlying); err != nil {
			return err
		}
		if err := s.shares.Initialize(&token.Meta{Name: cfg.Name, Symbol: cfg.Symbol, Decimals: 18}); err != nil {
			return err
		}
		if err := s.config.Set(cfg); err != nil {
			return err
		}
		if err := s.safetyModule.Set(safetyModule); err != nil {
			return err
		}
		if err := s.exchangeRate.Set(new(big.Int).Set(fixedpoint.Unit)); err != nil {
			return err
		}
		if err := s.maxStake.Set(maxStakeAmount); err != nil {
			return err
		}
		return s.initialized.Set(true)
	})
}

func (s *StakedToken) underlyingToken() (*token.Token, error) {
	cfg, err := s.config.Get()
	if err != nil {
		return nil, err
	}
	return s.tokens.Get(cfg.Underlying)
}

func (s *StakedToken) onlySafetyModule(caller increment.Address) error {
	sm, err := s.safetyModule.Get()
	if err != nil {
		return err
	}
	if caller != sm {
		return reverts.New(ErrCallerIsNotSafetyModule, caller)
	}
	return nil
}

func (s *StakedToken) whenNotPaused() error {
	paused, err := s.paused.Get()
	if err != nil {
		return err
	}
	if paused {
		return reverts.New(ErrPaused)
	}
	return nil
}

func (s *StakedToken) notify(users ...increment.Address) error {
	if s.listener == nil {
		return nil
	}
	for _, user := range users {
		if err := s.listener.UpdatePosition(s.Address(), s.Address(), user); err != nil {
			return err
		}
	}
	return nil
}

// PreviewStake converts an underlying amount into shares at the current rate.
func (s *StakedToken) PreviewStake(amount *big.Int) (*big.Int, error) {
	rate, err := s.exchangeRate.Get()
	if err != nil {
		return nil, err
	}
	if rate.Sign() == 0 {
		return nil, reverts.New(ErrZeroExchangeRate)
	}
	return fixedpoint.Div(amount, rate), nil
}

// PreviewRedeem converts shares into underlying at the current rate.
func (s *StakedToken) PreviewRedeem(shares *big.Int) (*big.Int, error) {
	rate, err := s.exchangeRate.Get()
	if err != nil {
		return nil, err
	}
	return fixedpoint.Mul(shares, rate), nil
}

func (s *StakedToken) Stake(caller increment.Address, amount *big.Int) error {
	return s.StakeOnBehalfOf(caller, caller, amount)
}

// StakeOnBehalfOf pulls amount of underlying from caller and mints shares
// to onBehalfOf.
func (s *StakedToken) StakeOnBehalfOf(caller, onBehalfOf increment.Address, amount *big.Int) error {
	return s.ctx.NonReentrant(func() error {
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		if amount.Sign() <= 0 {
			return reverts.New(ErrInvalidZeroAmount, 1)
		}
		if onBehalfOf.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		if post, err := s.postSlashing.Get(); err != nil {
			return err
		} else if post {
			return reverts.New(ErrStakingDisabledInPostSlashingState)
		}
		shares, err := s.PreviewStake(amount)
		if err != nil {
			return err
		}
		balance, err := s.shares.BalanceOf(onBehalfOf)
		if err != nil {
			return err
		}
		if err := s.checkMaxStake(balance, shares); err != nil {
			return err
		}
		next, err := s.nextCooldownTimestamp(0, shares, onBehalfOf, balance)
		if err != nil {
			return err
		}
		if err := s.cooldowns.Set(onBehalfOf, next); err != nil {
			return err
		}
		if err := s.shares.Mint(onBehalfOf, shares); err != nil {
			return err
		}
		if err := s.underlying.Add(amount); err != nil {
			return err
		}
		underlying, err := s.underlyingToken()
		if err != nil {
			return err
		}
		if err := underlying.TransferFrom(s.Address(), caller, s.Address(), amount); err != nil {
			return err
		}
		s.ctx.Log("Staked", "from", caller, "onBehalfOf", onBehalfOf, "amount", amount, "shares", shares)
		logger.Debug("staked", "token", s.Address(), "user", onBehalfOf, "amount", amount)
		return s.notify(onBehalfOf)
	})
}

func (s *StakedToken) checkMaxStake(balance, added *big.Int) error {
	max, err := s.maxStake.Get()
	if err != nil {
		return err
	}
	if new(big.Int).Add(balance, added).Cmp(max) > 0 {
		room := new(big.Int)
		if max.Cmp(balance) > 0 {
			room.Sub(max, balance)
		}
		return reverts.New(ErrAboveMaxStakeAmount, max, room)
	}
	return nil
}

func (s *StakedToken) Redeem(caller increment.Address, shares *big.Int) error {
	return s.RedeemTo(caller, caller, shares)
}

// RedeemTo burns up to shares of caller and sends the underlying to to.
// Outside the post slashing state this only works inside the unstake
// window following a completed cooldown.
func (s *StakedToken) RedeemTo(caller, to increment.Address, shares *big.Int) error {
	return s.ctx.NonReentrant(func() error {
		if err := s.whenNotPaused(); err != nil {
			return err
		}
		if shares.Sign() <= 0 {
			return reverts.New(ErrInvalidZeroAmount, 1)
		}
		if to.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		post, err := s.postSlashing.Get()
		if err != nil {
			return err
		}
		if !post {
			if err := s.checkUnstakeWindow(caller); err != nil {
				return err
			}
		}
		balance, err := s.shares.BalanceOf(caller)
		if err != nil {
			return err
		}
		redeemed := fixedpoint.Min(shares, balance)
		amount, err := s.PreviewRedeem(redeemed)
		if err != nil {
			return err
		}
		if err := s.shares.Burn(caller, redeemed); err != nil {
			return err
		}
		if balance.Cmp(redeemed) == 0 {
			if err := s.cooldowns.Set(caller, 0); err != nil {
				return err
			}
		}
		if err := s.underlying.Sub(amount); err != nil {
			return err
		}
		underlying, err := s.underlyingToken()
		if err != nil {
			return err
		}
		if err := underlying.Transfer(s.Address(), to, amount); err != nil {
			return err
		}
		s.ctx.Log("Redeemed", "from", caller, "to", to, "shares", redeemed, "amount", amount)
		logger.Debug("redeemed", "token", s.Address(), "user", caller, "amount", amount)
		return s.notify(caller)
	})
}

func (s *StakedToken) checkUnstakeWindow(user increment.Address) error {
	cfg, err := s.config.Get()
	if err != nil {
		return err
	}
	start, err := s.cooldowns.Get(user)
	if err != nil {
		return err
	}
	now := s.ctx.Now()
	end := start + cfg.CooldownSeconds
	if start == 0 || now < end {
		return reverts.New(ErrInsufficientCooldown, end)
	}
	if now-end > cfg.UnstakeWindow {
		return reverts.New(ErrUnstakeWindowFinished, end+cfg.UnstakeWindow)
	}
	return nil
}

// Cooldown starts the cooldown of caller.
func (s *StakedToken) Cooldown(caller increment.Address) error {
	return s.ctx.Atomic(func() error {
		balance, err := s.shares.BalanceOf(caller)
		if err != nil {
			return err
		}
		if balance.Sign() == 0 {
			return reverts.New(ErrZeroBalanceAtCooldown)
		}
		if err := s.cooldowns.Set(caller, s.ctx.Now()); err != nil {
			return err
		}
		s.ctx.Log("Cooldown", "user", caller)
		return nil
	})
}

// nextCooldownTimestamp is the cooldown start of to after receiving amount
// shares from a holder whose cooldown started at from. Receiving never
// lets to redeem earlier than it could on its own: an expired cooldown is
// dropped, an older sender cooldown leaves it as is, and a newer one moves
// it forward weighted by the amounts.
func (s *StakedToken) nextCooldownTimestamp(from uint64, amount *big.Int, to increment.Address, toBalance *big.Int) (uint64, error) {
	toCooldown, err := s.cooldowns.Get(to)
	if err != nil {
		return 0, err
	}
	if toCooldown == 0 {
		return 0, nil
	}
	cfg, err := s.config.Get()
	if err != nil {
		return 0, err
	}
	now := s.ctx.Now()
	var minimalValid uint64
	if span := cfg.CooldownSeconds + cfg.UnstakeWindow; now > span {
		minimalValid = now - span
	}
	if minimalValid > toCooldown {
		return 0, nil
	}
	if minimalValid > from {
		from = now
	}
	if from < toCooldown {
		return toCooldown, nil
	}
	weighted := new(big.Int).Mul(amount, new(big.Int).SetUint64(from))
	weighted.Add(weighted, new(big.Int).Mul(toBalance, new(big.Int).SetUint64(toCooldown)))
	weighted.Quo(weighted, new(big.Int).Add(amount, toBalance))
	return weighted.Uint64(), nil
}

// Transfer moves shares from caller to to. The receiver inherits a
// weighted cooldown and both sides are resettled with the reward distributor.
func (s *StakedToken) Transfer(caller, to increment.Address, amount *big.Int) error {
	return s.ctx.NonReentrant(func() error {
		return s.transfer(caller, to, amount)
	})
}

func (s *StakedToken) TransferFrom(caller, from, to increment.Address, amount *big.Int) error {
	return s.ctx.NonReentrant(func() error {
		if err := s.shares.SpendAllowance(from, caller, amount); err != nil {
			return err
		}
		return s.transfer(from, to, amount)
	})
}

func (s *StakedToken) Approve(caller, spender increment.Address, amount *big.Int) error {
	return s.shares.Approve(caller, spender, amount)
}

func (s *StakedToken) transfer(from, to increment.Address, amount *big.Int) error {
	if err := s.whenNotPaused(); err != nil {
		return err
	}
	if from != to {
		toBalance, err := s.shares.BalanceOf(to)
		if err != nil {
			return err
		}
		if err := s.checkMaxStake(toBalance, amount); err != nil {
			return err
		}
		fromCooldown, err := s.cooldowns.Get(from)
		if err != nil {
			return err
		}
		next, err := s.nextCooldownTimestamp(fromCooldown, amount, to, toBalance)
		if err != nil {
			return err
		}
		if err := s.cooldowns.Set(to, next); err != nil {
			return err
		}
		fromBalance, err := s.shares.BalanceOf(from)
		if err != nil {
			return err
		}
		if fromBalance.Cmp(amount) == 0 && fromCooldown != 0 {
			if err := s.cooldowns.Set(from, 0); err != nil {
				return err
			}
		}
	}
	if err := s.shares.Move(from, to, amount); err != nil {
		return err
	}
	return s.notify(from, to)
}

// Slash sends amount of underlying to destination and enters the post
// slashing state. The exchange rate drops so every share absorbs its part.
func (s *StakedToken) Slash(caller, destination increment.Address, amount *big.Int) (*big.Int, error) {
	err := s.ctx.NonReentrant(func() error {
		if err := s.onlySafetyModule(caller); err != nil {
			return err
		}
		if amount.Sign() <= 0 {
			return reverts.New(ErrInvalidZeroAmount, 1)
		}
		if post, err := s.postSlashing.Get(); err != nil {
			return err
		} else if post {
			return reverts.New(ErrSlashingDisabledInPostSlashingState)
		}
		if err := s.postSlashing.Set(true); err != nil {
			return err
		}
		balance, err := s.underlying.Get()
		if err != nil {
			return err
		}
		if amount.Cmp(balance) > 0 {
			return reverts.New(token.ErrInsufficientBalance, s.Address(), balance, amount)
		}
		balance.Sub(balance, amount)
		if err := s.underlying.Set(balance); err != nil {
			return err
		}
		if err := s.updateExchangeRate(balance); err != nil {
			return err
		}
		underlying, err := s.underlyingToken()
		if err != nil {
			return err
		}
		if err := underlying.Transfer(s.Address(), destination, amount); err != nil {
			return err
		}
		s.ctx.Log("Slashed", "destination", destination, "underlyingAmount", amount)
		logger.Info("staked token slashed", "token", s.Address(), "amount", amount)
		metricSlashes().AddWithLabel(1, map[string]string{"token": s.Address().String()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// ReturnFunds pulls amount of underlying from from back into the pool,
// raising the exchange rate.
func (s *StakedToken) ReturnFunds(caller, from increment.Address, amount *big.Int) error {
	return s.ctx.NonReentrant(func() error {
		if err := s.onlySafetyModule(caller); err != nil {
			return err
		}
		if amount.Sign() <= 0 {
			return reverts.New(ErrInvalidZeroAmount, 1)
		}
		if from.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		balance, err := s.underlying.Get()
		if err != nil {
			return err
		}
		balance.Add(balance, amount)
		if err := s.underlying.Set(balance); err != nil {
			return err
		}
		if err := s.updateExchangeRate(balance); err != nil {
			return err
		}
		underlying, err := s.underlyingToken()
		if err != nil {
			return err
		}
		if err := underlying.TransferFrom(s.Address(), from, s.Address(), amount); err != nil {
			return err
		}
		s.ctx.Log("FundsReturned", "from", from, "amount", amount)
		return nil
	})
}

// SettleSlashing leaves the post slashing state.
func (s *StakedToken) SettleSlashing(caller increment.Address) error {
	return s.ctx.Atomic(func() error {
		if err := s.onlySafetyModule(caller); err != nil {
			return err
		}
		if err := s.postSlashing.Set(false); err != nil {
			return err
		}
		s.ctx.Log("SlashingSettled")
		return nil
	})
}

func (s *StakedToken) updateExchangeRate(assets *big.Int) error {
	supply, err := s.shares.TotalSupply()
	if err != nil {
		return err
	}
	rate := new(big.Int).Set(fixedpoint.Unit)
	if supply.Sign() > 0 {
		rate = fixedpoint.Div(assets, supply)
	}
	if err := s.exchangeRate.Set(rate); err != nil {
		return err
	}
	s.ctx.Log("ExchangeRateUpdated", "exchangeRate", rate)
	return nil
}

func (s *StakedToken) SetMaxStakeAmount(caller increment.Address, amount *big.Int) error {
	return s.ctx.Atomic(func() error {
		if err := s.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		prev, err := s.maxStake.Get()
		if err != nil {
			return err
		}
		if err := s.maxStake.Set(amount); err != nil {
			return err
		}
		s.ctx.Log("MaxStakeAmountChanged", "prevMaxStakeAmount", prev, "newMaxStakeAmount", amount)
		return nil
	})
}

func (s *StakedToken) SetSafetyModule(caller, safetyModule increment.Address) error {
	return s.ctx.Atomic(func() error {
		if err := s.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if safetyModule.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		if err := s.safetyModule.Set(safetyModule); err != nil {
			return err
		}
		s.ctx.Log("SafetyModuleUpdated", "newSafetyModule", safetyModule)
		return nil
	})
}

func (s *StakedToken) Pause(caller increment.Address) error   { return s.setPaused(caller, true) }
func (s *StakedToken) Unpause(caller increment.Address) error { return s.setPaused(caller, false) }

func (s *StakedToken) setPaused(caller increment.Address, paused bool) error {
	return s.ctx.Atomic(func() error {
		if err := s.access.CheckAnyRole(caller, access.EmergencyAdmin, access.Governance); err != nil {
			return err
		}
		if err := s.paused.Set(paused); err != nil {
			return err
		}
		if paused {
			s.ctx.Log("Paused", "account", caller)
		} else {
			s.ctx.Log("Unpaused", "account", caller)
		}
		return nil
	})
}

func (s *StakedToken) Paused() (bool, error)                    { return s.paused.Get() }
func (s *StakedToken) ExchangeRate() (*big.Int, error)          { return s.exchangeRate.Get() }
func (s *StakedToken) GetUnderlyingBalance() (*big.Int, error)  { return s.underlying.Get() }
func (s *StakedToken) IsInPostSlashingState() (bool, error)     { return s.postSlashing.Get() }
func (s *StakedToken) MaxStakeAmount() (*big.Int, error)        { return s.maxStake.Get() }
func (s *StakedToken) SafetyModule() (increment.Address, error) { return s.safetyModule.Get() }
func (s *StakedToken) Config() (*Config, error)                 { return s.config.Get() }
func (s *StakedToken) TotalSupply() (*big.Int, error)           { return s.shares.TotalSupply() }

func (s *StakedToken) BalanceOf(user increment.Address) (*big.Int, error) {
	return s.shares.BalanceOf(user)
}

func (s *StakedToken) GetCooldownStartTime(user increment.Address) (uint64, error) {
	return s.cooldowns.Get(user)
}

func (s *StakedToken) UnderlyingToken() (increment.Address, error) {
	cfg, err := s.config.Get()
	if err != nil {
		return increment.Address{}, err
	}
	return cfg.Underlying, nil
}
