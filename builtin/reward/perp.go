// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"math/big"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

// DefaultEarlyWithdrawalThreshold is ten days.
const DefaultEarlyWithdrawalThreshold = 10 * increment.SecondsPerDay

var (
	slotWithdrawThreshold = increment.NameToSlot("early-withdrawal-threshold")
	slotWithdrawTimer     = increment.NameToSlot("withdraw-timer-start")
)

// PerpDistributor rewards LP liquidity in the clearing house. Withdrawing
// soon after providing forfeits part of the rewards earned meanwhile.
type PerpDistributor struct {
	*Distributor

	threshold     *solidity.Raw[uint64]
	withdrawTimer *solidity.Mapping[solidity.Pair, uint64]
}

// NewPerpDistributor binds a distributor at addr to the clearing house.
func NewPerpDistributor(
	addr increment.Address,
	env *xenv.Environment,
	acl *access.Registry,
	tokens *token.Registry,
	clearingHouse PositionSource,
) *PerpDistributor {
	d := newDistributor("perp", addr, env, acl, tokens, clearingHouse)
	return &PerpDistributor{
		Distributor:   d,
		threshold:     solidity.NewRaw[uint64](d.ctx, slotWithdrawThreshold),
		withdrawTimer: solidity.NewMapping[solidity.Pair, uint64](d.ctx, slotWithdrawTimer),
	}
}

// Initialize sets the ecosystem reserve, the withdrawal threshold, and starts
// the reward clock of every market already listed in the clearing house.
func (p *PerpDistributor) Initialize(reserve increment.Address, threshold uint64) error {
	return p.ctx.Atomic(func() error {
		if reserve.IsZero() {
			return reverts.New(ErrInvalidEcosystemReserve, reserve)
		}
		if err := p.reserve.Set(reserve); err != nil {
			return err
		}
		if err := p.threshold.Set(threshold); err != nil {
			return err
		}
		list, err := markets(p.source)
		if err != nil {
			return err
		}
		for _, market := range list {
			if err := p.initMarketStartTime(market); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdatePosition settles user in market on the previous liquidity and
// mirrors the new one. Only the clearing house may call it.
func (p *PerpDistributor) UpdatePosition(caller, market, user increment.Address) error {
	return p.ctx.NonReentrant(func() error {
		if caller != p.source.Address() {
			return reverts.New(ErrCallerIsNotClearingHouse, caller)
		}
		if err := p.updateMarketRewards(market); err != nil {
			return err
		}
		key := solidity.Pair{user, market}
		prev, err := p.lpPositions.Get(key)
		if err != nil {
			return err
		}
		next, err := p.source.GetCurrentPosition(user, market)
		if err != nil {
			return err
		}
		var adjust func(increment.Address, *big.Int) (*big.Int, error)
		if next.Cmp(prev) < 0 {
			adjust = func(tok increment.Address, accrued *big.Int) (*big.Int, error) {
				return p.applyPenalty(user, market, tok, accrued)
			}
		}
		if err := p.settleUser(market, user, prev, adjust); err != nil {
			return err
		}
		if next.Cmp(prev) > 0 {
			if err := p.withdrawTimer.Set(key, p.ctx.Now()); err != nil {
				return err
			}
		}
		return p.applyPosition(market, user, prev, next)
	})
}

// applyPenalty scales accrued linearly by the time since the last increase,
// from nothing at the start of the threshold window to all of it at its end.
func (p *PerpDistributor) applyPenalty(user, market, tok increment.Address, accrued *big.Int) (*big.Int, error) {
	threshold, err := p.threshold.Get()
	if err != nil {
		return nil, err
	}
	start, err := p.withdrawTimer.Get(solidity.Pair{user, market})
	if err != nil {
		return nil, err
	}
	now := p.ctx.Now()
	if threshold == 0 || now >= start+threshold {
		return accrued, nil
	}
	kept := new(big.Int).Mul(accrued, new(big.Int).SetUint64(now-start))
	kept.Quo(kept, new(big.Int).SetUint64(threshold))
	p.ctx.Log("EarlyWithdrawalPenaltyApplied", "user", user, "market", market, "rewardToken", tok,
		"penalty", new(big.Int).Sub(accrued, kept))
	return kept, nil
}

func (p *PerpDistributor) SetEarlyWithdrawalThreshold(caller increment.Address, threshold uint64) error {
	return p.ctx.Atomic(func() error {
		if err := p.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		prev, err := p.threshold.Get()
		if err != nil {
			return err
		}
		if err := p.threshold.Set(threshold); err != nil {
			return err
		}
		p.ctx.Log("EarlyWithdrawalThresholdUpdated", "prevThreshold", prev, "newThreshold", threshold)
		return nil
	})
}

func (p *PerpDistributor) EarlyWithdrawalThreshold() (uint64, error) { return p.threshold.Get() }

func (p *PerpDistributor) WithdrawTimerStartByUserByMarket(user, market increment.Address) (uint64, error) {
	return p.withdrawTimer.Get(solidity.Pair{user, market})
}
