// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package clearinghouse keeps the liquidity provider book of the perpetual
// markets. It only tracks LP liquidity, and reports every change to the
// reward distributor listening on it.
package clearinghouse

import (
	"math/big"
	"slices"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

const (
	ErrMarketNotListed       reverts.Kind = "ClearingHouse_MarketNotListed"
	ErrMarketAlreadyListed   reverts.Kind = "ClearingHouse_MarketAlreadyListed"
	ErrPaused                reverts.Kind = "ClearingHouse_Paused"
	ErrZeroAmount            reverts.Kind = "ClearingHouse_ZeroAmount"
	ErrInsufficientLiquidity reverts.Kind = "ClearingHouse_InsufficientLiquidity"
)

var (
	slotMarkets   = increment.NameToSlot("markets")
	slotLiquidity = increment.NameToSlot("lp-liquidity")
	slotTotal     = increment.NameToSlot("total-liquidity")
	slotPaused    = increment.NameToSlot("paused")
)

// PositionListener is notified after a user's liquidity in a market changed.
type PositionListener interface {
	UpdatePosition(caller, market, user increment.Address) error
}

type ClearingHouse struct {
	ctx       *solidity.Context
	access    *access.Registry
	markets   *solidity.Raw[[]increment.Address]
	liquidity *solidity.Mapping[solidity.Pair, *big.Int]
	total     *solidity.Mapping[increment.Address, *big.Int]
	paused    *solidity.Bool
	listener  PositionListener
}

func New(addr increment.Address, env *xenv.Environment, acl *access.Registry) *ClearingHouse {
	ctx := solidity.NewContext(addr, env)
	return &ClearingHouse{
		ctx:       ctx,
		access:    acl,
		markets:   solidity.NewRaw[[]increment.Address](ctx, slotMarkets),
		liquidity: solidity.NewMapping[solidity.Pair, *big.Int](ctx, slotLiquidity),
		total:     solidity.NewMapping[increment.Address, *big.Int](ctx, slotTotal),
		paused:    solidity.NewBool(ctx, slotPaused),
	}
}

func (ch *ClearingHouse) Address() increment.Address { return ch.ctx.Address() }

// SetPositionListener wires the reward distributor.
func (ch *ClearingHouse) SetPositionListener(l PositionListener) {
	ch.listener = l
}

func (ch *ClearingHouse) ListMarket(caller, market increment.Address) error {
	return ch.ctx.Atomic(func() error {
		if err := ch.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		markets, err := ch.markets.Get()
		if err != nil {
			return err
		}
		if slices.Contains(markets, market) {
			return reverts.New(ErrMarketAlreadyListed, market)
		}
		if err := ch.markets.Set(append(markets, market)); err != nil {
			return err
		}
		ch.ctx.Log("MarketAdded", "market", market, "listedMarkets", len(markets)+1)
		return nil
	})
}

func (ch *ClearingHouse) GetNumMarkets() (int, error) {
	markets, err := ch.markets.Get()
	return len(markets), err
}

func (ch *ClearingHouse) GetMarkets() ([]increment.Address, error) {
	return ch.markets.Get()
}

// GetMarket returns the market at idx.
func (ch *ClearingHouse) GetMarket(idx int) (increment.Address, error) {
	markets, err := ch.markets.Get()
	if err != nil {
		return increment.Address{}, err
	}
	if idx < 0 || idx >= len(markets) {
		return increment.Address{}, reverts.New(ErrMarketNotListed, idx)
	}
	return markets[idx], nil
}

func (ch *ClearingHouse) IsListed(market increment.Address) (bool, error) {
	markets, err := ch.markets.Get()
	if err != nil {
		return false, err
	}
	return slices.Contains(markets, market), nil
}

func (ch *ClearingHouse) Paused() (bool, error) { return ch.paused.Get() }

func (ch *ClearingHouse) SetPaused(caller increment.Address, paused bool) error {
	return ch.ctx.Atomic(func() error {
		if err := ch.access.CheckAnyRole(caller, access.EmergencyAdmin, access.Governance); err != nil {
			return err
		}
		if err := ch.paused.Set(paused); err != nil {
			return err
		}
		if paused {
			ch.ctx.Log("Paused", "account", caller)
		} else {
			ch.ctx.Log("Unpaused", "account", caller)
		}
		return nil
	})
}

func (ch *ClearingHouse) GetLpLiquidity(user, market increment.Address) (*big.Int, error) {
	return ch.liquidity.Get(solidity.Pair{market, user})
}

// GetCurrentPosition is the LP liquidity of user, the position rewards are paid on.
func (ch *ClearingHouse) GetCurrentPosition(user, market increment.Address) (*big.Int, error) {
	return ch.GetLpLiquidity(user, market)
}

func (ch *ClearingHouse) GetTotalLiquidity(market increment.Address) (*big.Int, error) {
	return ch.total.Get(market)
}

// AddLiquidity provides amount of liquidity to market on behalf of user.
func (ch *ClearingHouse) AddLiquidity(user, market increment.Address, amount *big.Int) error {
	return ch.changeLiquidity(user, market, amount, false)
}

// RemoveLiquidity withdraws amount of user's liquidity from market.
func (ch *ClearingHouse) RemoveLiquidity(user, market increment.Address, amount *big.Int) error {
	return ch.changeLiquidity(user, market, amount, true)
}

func (ch *ClearingHouse) changeLiquidity(user, market increment.Address, amount *big.Int, remove bool) error {
	return ch.ctx.Atomic(func() error {
		if paused, err := ch.paused.Get(); err != nil {
			return err
		} else if paused {
			return reverts.New(ErrPaused)
		}
		if listed, err := ch.IsListed(market); err != nil {
			return err
		} else if !listed {
			return reverts.New(ErrMarketNotListed, market)
		}
		if amount.Sign() <= 0 {
			return reverts.New(ErrZeroAmount)
		}

		key := solidity.Pair{market, user}
		lp, err := ch.liquidity.Get(key)
		if err != nil {
			return err
		}
		total, err := ch.total.Get(market)
		if err != nil {
			return err
		}
		if remove {
			if lp.Cmp(amount) < 0 {
				return reverts.New(ErrInsufficientLiquidity, user, lp, amount)
			}
			lp.Sub(lp, amount)
			total.Sub(total, amount)
		} else {
			lp.Add(lp, amount)
			total.Add(total, amount)
		}
		if err := ch.liquidity.Set(key, lp); err != nil {
			return err
		}
		if err := ch.total.Set(market, total); err != nil {
			return err
		}
		if remove {
			ch.ctx.Log("LiquidityRemoved", "market", market, "user", user, "amount", amount)
		} else {
			ch.ctx.Log("LiquidityProvided", "market", market, "user", user, "amount", amount)
		}

		if ch.listener == nil {
			return nil
		}
		return ch.listener.UpdatePosition(ch.Address(), market, user)
	})
}
