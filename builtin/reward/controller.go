// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"math/big"
	"slices"

	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/fixedpoint"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
)

const (
	// MaxRewardTokens bounds the reward tokens of a distributor.
	MaxRewardTokens = 10
)

var (
	// MaxInflationRate is the highest initial emission, 5e6 tokens per year.
	MaxInflationRate = increment.BigOf("5000000000000000000000000")
	// MinReductionFactor keeps emissions from growing over time.
	MinReductionFactor = fixedpoint.Unit
)

// RewardInfo is the emission schedule of a reward token.
type RewardInfo struct {
	Token                increment.Address
	Paused               bool
	InitialTimestamp     uint64
	InitialInflationRate *big.Int
	ReductionFactor      *big.Int
	Markets              []increment.Address
	// Weights are basis points, parallel to Markets.
	Weights []uint16
}

func (info *RewardInfo) weightOf(market increment.Address) uint16 {
	if i := slices.Index(info.Markets, market); i >= 0 {
		return info.Weights[i]
	}
	return 0
}

// inflationRate is the yearly emission at now. It divides the initial rate
// by the reduction factor once per elapsed year, continuously.
func (info *RewardInfo) inflationRate(now uint64) (*big.Int, error) {
	if info.InitialInflationRate == nil || info.InitialInflationRate.Sign() == 0 {
		return new(big.Int), nil
	}
	elapsed := fixedpoint.FromInt(now - info.InitialTimestamp)
	years := fixedpoint.Div(elapsed, fixedpoint.FromInt(increment.SecondsPerYear))
	factor, err := fixedpoint.Pow(info.ReductionFactor, years)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Div(info.InitialInflationRate, factor), nil
}

func (d *Distributor) getRewardInfo(tok increment.Address) (*RewardInfo, error) {
	info, err := d.rewardInfo.Get(tok)
	if err != nil {
		return nil, err
	}
	if info.Token.IsZero() {
		return nil, reverts.New(ErrInvalidRewardTokenAddress, tok)
	}
	return info, nil
}

// settleMarkets brings every market accumulator of tok up to now, so a
// schedule change only affects the future.
func (d *Distributor) settleMarkets(markets []increment.Address) error {
	for _, market := range markets {
		if err := d.updateMarketRewards(market); err != nil {
			return err
		}
	}
	return nil
}

// validateWeights checks weights against markets and drops zero weights.
func (d *Distributor) validateWeights(markets []increment.Address, weights []uint16) ([]increment.Address, []uint16, error) {
	if len(markets) != len(weights) {
		return nil, nil, reverts.New(ErrIncorrectWeightsCount, len(weights), len(markets))
	}
	var (
		sum         uint64
		keptMarkets []increment.Address
		keptWeights []uint16
	)
	for i, market := range markets {
		if slices.Index(markets[:i], market) >= 0 {
			return nil, nil, reverts.New(ErrDuplicateMarket, market)
		}
		w := weights[i]
		if w > increment.MaxBasisPoints {
			return nil, nil, reverts.New(ErrWeightExceedsMax, w, increment.MaxBasisPoints)
		}
		sum += uint64(w)
		if w == 0 {
			continue
		}
		keptMarkets = append(keptMarkets, market)
		keptWeights = append(keptWeights, w)
	}
	if sum != increment.MaxBasisPoints {
		return nil, nil, reverts.New(ErrIncorrectWeightsSum, sum, increment.MaxBasisPoints)
	}
	return keptMarkets, keptWeights, nil
}

func validateSchedule(rate, factor *big.Int) error {
	if rate.Cmp(MaxInflationRate) > 0 {
		return reverts.New(ErrAboveMaxInflationRate, rate, MaxInflationRate)
	}
	if factor.Cmp(MinReductionFactor) < 0 {
		return reverts.New(ErrBelowMinReductionFactor, factor, MinReductionFactor)
	}
	return nil
}

func (d *Distributor) addTokenToMarket(tok, market increment.Address) error {
	list, err := d.tokensPerMarket.Get(market)
	if err != nil {
		return err
	}
	if slices.Contains(list, tok) {
		return nil
	}
	if len(list) >= MaxRewardTokens {
		return reverts.New(ErrAboveMaxRewardTokens, MaxRewardTokens)
	}
	return d.tokensPerMarket.Set(market, append(list, tok))
}

func (d *Distributor) removeTokenFromMarket(tok, market increment.Address) error {
	list, err := d.tokensPerMarket.Get(market)
	if err != nil {
		return err
	}
	if i := slices.Index(list, tok); i >= 0 {
		return d.tokensPerMarket.Set(market, slices.Delete(list, i, i+1))
	}
	return nil
}

// AddRewardToken starts emitting tok at rate per year, shrinking by factor
// each year, split across markets by weights in basis points.
func (d *Distributor) AddRewardToken(
	caller, tok increment.Address,
	rate, factor *big.Int,
	markets []increment.Address,
	weights []uint16,
) error {
	return d.ctx.Atomic(func() error {
		if err := d.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if tok.IsZero() {
			return reverts.New(ErrInvalidRewardTokenAddress, tok)
		}
		if _, err := d.tokens.Get(tok); err != nil {
			if errors.Is(err, token.ErrUnknownToken) {
				return reverts.New(ErrInvalidRewardTokenAddress, tok)
			}
			return err
		}
		if existing, err := d.rewardInfo.Get(tok); err != nil {
			return err
		} else if !existing.Token.IsZero() {
			return reverts.New(ErrInvalidRewardTokenAddress, tok)
		}
		list, err := d.rewardTokens.Get()
		if err != nil {
			return err
		}
		if len(list) >= MaxRewardTokens {
			return reverts.New(ErrAboveMaxRewardTokens, MaxRewardTokens)
		}
		if err := validateSchedule(rate, factor); err != nil {
			return err
		}
		kept, keptWeights, err := d.validateWeights(markets, weights)
		if err != nil {
			return err
		}
		// accrue under the old token set first
		if err := d.settleMarkets(kept); err != nil {
			return err
		}
		for i, market := range kept {
			if err := d.addTokenToMarket(tok, market); err != nil {
				return err
			}
			d.ctx.Log("NewWeight", "market", market, "rewardToken", tok, "newWeight", keptWeights[i])
		}
		if err := d.rewardTokens.Set(append(list, tok)); err != nil {
			return err
		}
		info := &RewardInfo{
			Token:                tok,
			InitialTimestamp:     d.ctx.Now(),
			InitialInflationRate: new(big.Int).Set(rate),
			ReductionFactor:      new(big.Int).Set(factor),
			Markets:              kept,
			Weights:              keptWeights,
		}
		if err := d.rewardInfo.Set(tok, info); err != nil {
			return err
		}
		d.ctx.Log("RewardTokenAdded", "rewardToken", tok, "initialTimestamp", info.InitialTimestamp,
			"initialInflationRate", rate, "initialReductionFactor", factor)
		logger.Info("reward token added", "distributor", d.name, "token", tok, "markets", len(kept))
		return nil
	})
}

// RemoveRewardToken stops emissions of tok and sweeps the reserve balance
// not owed to users back to governance. Accrued rewards stay claimable.
func (d *Distributor) RemoveRewardToken(caller, tok increment.Address) error {
	return d.ctx.Atomic(func() error {
		if err := d.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		info, err := d.getRewardInfo(tok)
		if err != nil {
			return err
		}
		if err := d.settleMarkets(info.Markets); err != nil {
			return err
		}
		all, err := markets(d.source)
		if err != nil {
			return err
		}
		for _, market := range all {
			if err := d.removeTokenFromMarket(tok, market); err != nil {
				return err
			}
		}
		list, err := d.rewardTokens.Get()
		if err != nil {
			return err
		}
		if i := slices.Index(list, tok); i >= 0 {
			list = slices.Delete(list, i, i+1)
		}
		if err := d.rewardTokens.Set(list); err != nil {
			return err
		}
		d.rewardInfo.Delete(tok)

		unclaimed, err := d.totalUnclaimed.Get(tok)
		if err != nil {
			return err
		}
		reserve, err := d.reserve.Get()
		if err != nil {
			return err
		}
		t, err := d.tokens.Get(tok)
		if err != nil {
			return err
		}
		balance, err := t.BalanceOf(reserve)
		if err != nil {
			return err
		}
		remaining := new(big.Int)
		if balance.Cmp(unclaimed) > 0 {
			remaining.Sub(balance, unclaimed)
			available, err := d.available(tok)
			if err != nil {
				return err
			}
			remaining = fixedpoint.Min(remaining, available)
			if remaining.Sign() > 0 {
				if err := t.TransferFrom(d.Address(), reserve, caller, remaining); err != nil {
					return err
				}
			}
		}
		d.ctx.Log("RewardTokenRemoved", "rewardToken", tok, "unclaimedRewards", unclaimed, "remainingBalance", remaining)
		logger.Info("reward token removed", "distributor", d.name, "token", tok, "swept", remaining)
		return nil
	})
}

// UpdateRewardWeights replaces the market split of tok. Markets left out, or
// given a zero weight, stop receiving tok.
func (d *Distributor) UpdateRewardWeights(caller, tok increment.Address, markets []increment.Address, weights []uint16) error {
	return d.ctx.Atomic(func() error {
		if err := d.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		info, err := d.getRewardInfo(tok)
		if err != nil {
			return err
		}
		kept, keptWeights, err := d.validateWeights(markets, weights)
		if err != nil {
			return err
		}
		if err := d.settleMarkets(info.Markets); err != nil {
			return err
		}
		for _, market := range kept {
			if slices.Contains(info.Markets, market) {
				continue
			}
			if err := d.updateMarketRewards(market); err != nil {
				return err
			}
		}
		// dropped markets keep tok listed so users can still settle what
		// accrued there; a zero weight stops further emission
		for _, market := range info.Markets {
			if !slices.Contains(kept, market) {
				d.ctx.Log("MarketRemovedFromRewards", "market", market, "rewardToken", tok)
			}
		}
		for i, market := range kept {
			if err := d.addTokenToMarket(tok, market); err != nil {
				return err
			}
			d.ctx.Log("NewWeight", "market", market, "rewardToken", tok, "newWeight", keptWeights[i])
		}
		info.Markets, info.Weights = kept, keptWeights
		return d.rewardInfo.Set(tok, info)
	})
}

// UpdateInitialInflationRate rebases the schedule of tok. The reduction
// clock is unchanged.
func (d *Distributor) UpdateInitialInflationRate(caller, tok increment.Address, rate *big.Int) error {
	return d.ctx.Atomic(func() error {
		if err := d.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		info, err := d.getRewardInfo(tok)
		if err != nil {
			return err
		}
		if err := validateSchedule(rate, info.ReductionFactor); err != nil {
			return err
		}
		if err := d.settleMarkets(info.Markets); err != nil {
			return err
		}
		info.InitialInflationRate = new(big.Int).Set(rate)
		if err := d.rewardInfo.Set(tok, info); err != nil {
			return err
		}
		d.ctx.Log("NewInitialInflationRate", "rewardToken", tok, "newRate", rate)
		return nil
	})
}

func (d *Distributor) UpdateReductionFactor(caller, tok increment.Address, factor *big.Int) error {
	return d.ctx.Atomic(func() error {
		if err := d.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		info, err := d.getRewardInfo(tok)
		if err != nil {
			return err
		}
		if err := validateSchedule(info.InitialInflationRate, factor); err != nil {
			return err
		}
		if err := d.settleMarkets(info.Markets); err != nil {
			return err
		}
		info.ReductionFactor = new(big.Int).Set(factor)
		if err := d.rewardInfo.Set(tok, info); err != nil {
			return err
		}
		d.ctx.Log("NewReductionFactor", "rewardToken", tok, "newFactor", factor)
		return nil
	})
}

// TogglePausedReward flips emissions of tok on or off. Pausing settles the
// markets first. Unpausing does not, so the paused span is paid out at the
// next update, while the decay clock keeps running throughout.
func (d *Distributor) TogglePausedReward(caller, tok increment.Address) error {
	return d.ctx.Atomic(func() error {
		if err := d.access.CheckAnyRole(caller, access.EmergencyAdmin, access.Governance); err != nil {
			return err
		}
		info, err := d.getRewardInfo(tok)
		if err != nil {
			return err
		}
		if !info.Paused {
			if err := d.settleMarkets(info.Markets); err != nil {
				return err
			}
		}
		info.Paused = !info.Paused
		if err := d.rewardInfo.Set(tok, info); err != nil {
			return err
		}
		if info.Paused {
			d.ctx.Log("RewardTokenPaused", "rewardToken", tok)
		} else {
			d.ctx.Log("RewardTokenUnpaused", "rewardToken", tok)
		}
		return nil
	})
}

func (d *Distributor) GetRewardTokens() ([]increment.Address, error) { return d.rewardTokens.Get() }

func (d *Distributor) GetRewardTokenCount() (int, error) {
	list, err := d.rewardTokens.Get()
	return len(list), err
}

func (d *Distributor) GetRewardTokensForMarket(market increment.Address) ([]increment.Address, error) {
	return d.tokensPerMarket.Get(market)
}

func (d *Distributor) GetRewardInfo(tok increment.Address) (*RewardInfo, error) {
	return d.getRewardInfo(tok)
}

func (d *Distributor) GetInitialTimestamp(tok increment.Address) (uint64, error) {
	info, err := d.getRewardInfo(tok)
	if err != nil {
		return 0, err
	}
	return info.InitialTimestamp, nil
}

func (d *Distributor) GetInitialInflationRate(tok increment.Address) (*big.Int, error) {
	info, err := d.getRewardInfo(tok)
	if err != nil {
		return nil, err
	}
	return info.InitialInflationRate, nil
}

func (d *Distributor) GetReductionFactor(tok increment.Address) (*big.Int, error) {
	info, err := d.getRewardInfo(tok)
	if err != nil {
		return nil, err
	}
	return info.ReductionFactor, nil
}

// GetInflationRate is the current yearly emission of tok.
func (d *Distributor) GetInflationRate(tok increment.Address) (*big.Int, error) {
	info, err := d.getRewardInfo(tok)
	if err != nil {
		return nil, err
	}
	return info.inflationRate(d.ctx.Now())
}

func (d *Distributor) GetRewardWeight(tok, market increment.Address) (uint16, error) {
	info, err := d.getRewardInfo(tok)
	if err != nil {
		return 0, err
	}
	return info.weightOf(market), nil
}

func (d *Distributor) IsTokenPaused(tok increment.Address) (bool, error) {
	info, err := d.getRewardInfo(tok)
	if err != nil {
		return false, err
	}
	return info.Paused, nil
}

// GetMarketWeightIdx is the position of market in the weight list of tok, or -1.
func (d *Distributor) GetMarketWeightIdx(tok, market increment.Address) (int, error) {
	info, err := d.getRewardInfo(tok)
	if err != nil {
		return -1, err
	}
	return slices.Index(info.Markets, market), nil
}
