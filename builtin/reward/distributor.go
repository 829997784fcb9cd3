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
	"github.com/Increment-Finance/peripheral-contracts-sub004/fixedpoint"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/metrics"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

var (
	logger = log.WithContext("pkg", "reward")

	metricClaims          = metrics.LazyLoadCounterVec("reward_claims_total", []string{"distributor"})
	metricShortfalls      = metrics.LazyLoadCounterVec("reward_shortfalls_total", []string{"distributor"})
	metricPositionUpdates = metrics.LazyLoadCounterVec("reward_position_updates_total", []string{"distributor"})
)

var (
	slotRewardTokens     = increment.NameToSlot("reward-tokens")
	slotRewardInfo       = increment.NameToSlot("reward-info")
	slotTokensPerMarket  = increment.NameToSlot("tokens-per-market")
	slotCumPerLp         = increment.NameToSlot("cum-reward-per-lp")
	slotCumPerLpPerUser  = increment.NameToSlot("cum-reward-per-lp-per-user")
	slotTimeOfLastUpdate = increment.NameToSlot("time-of-last-update")
	slotTotalLiquidity   = increment.NameToSlot("total-liquidity")
	slotLpPositions      = increment.NameToSlot("lp-positions")
	slotAccrued          = increment.NameToSlot("rewards-accrued")
	slotTotalUnclaimed   = increment.NameToSlot("total-unclaimed")
	slotReserve          = increment.NameToSlot("ecosystem-reserve")
	slotPaused           = increment.NameToSlot("paused")
)

// ledgers resolves reward token ledgers by address.
type ledgers interface {
	Get(addr increment.Address) (*token.Token, error)
}

// multiplierFunc scales a user's accrual in a market, in WAD.
type multiplierFunc func(user, market increment.Address) (*big.Int, error)

// Distributor is the reward accumulator engine shared by both market adapters.
// It keeps decaying emission schedules per reward token, splits them across
// markets by weight, and settles users against per market accumulators.
type Distributor struct {
	name   string
	ctx    *solidity.Context
	access *access.Registry
	tokens ledgers
	source PositionSource
	// multiplier is nil for adapters without a reward multiplier.
	multiplier multiplierFunc
	// registered, if set, runs after RegisterPositions mirrors a nonzero
	// position.
	registered func(key solidity.Pair, position *big.Int) error

	rewardTokens     *solidity.Raw[[]increment.Address]
	rewardInfo       *solidity.Mapping[increment.Address, *RewardInfo]
	tokensPerMarket  *solidity.Mapping[increment.Address, []increment.Address]
	cumPerLp         *solidity.Mapping[solidity.Pair, *big.Int]
	cumPerLpPerUser  *solidity.Mapping[solidity.Triple, *big.Int]
	timeOfLastUpdate *solidity.Mapping[increment.Address, uint64]
	totalLiquidity   *solidity.Mapping[increment.Address, *big.Int]
	lpPositions      *solidity.Mapping[solidity.Pair, *big.Int]
	accrued          *solidity.Mapping[solidity.Pair, *big.Int]
	totalUnclaimed   *solidity.Mapping[increment.Address, *big.Int]
	reserve          *solidity.Raw[increment.Address]
	paused           *solidity.Bool
}

func newDistributor(
	name string,
	addr increment.Address,
	env *xenv.Environment,
	acl *access.Registry,
	tokens *token.Registry,
	source PositionSource,
) *Distributor {
	ctx := solidity.NewContext(addr, env)
	return &Distributor{
		name:             name,
		ctx:              ctx,
		access:           acl,
		tokens:           tokens,
		source:           source,
		rewardTokens:     solidity.NewRaw[[]increment.Address](ctx, slotRewardTokens),
		rewardInfo:       solidity.NewMapping[increment.Address, *RewardInfo](ctx, slotRewardInfo),
		tokensPerMarket:  solidity.NewMapping[increment.Address, []increment.Address](ctx, slotTokensPerMarket),
		cumPerLp:         solidity.NewMapping[solidity.Pair, *big.Int](ctx, slotCumPerLp),
		cumPerLpPerUser:  solidity.NewMapping[solidity.Triple, *big.Int](ctx, slotCumPerLpPerUser),
		timeOfLastUpdate: solidity.NewMapping[increment.Address, uint64](ctx, slotTimeOfLastUpdate),
		totalLiquidity:   solidity.NewMapping[increment.Address, *big.Int](ctx, slotTotalLiquidity),
		lpPositions:      solidity.NewMapping[solidity.Pair, *big.Int](ctx, slotLpPositions),
		accrued:          solidity.NewMapping[solidity.Pair, *big.Int](ctx, slotAccrued),
		totalUnclaimed:   solidity.NewMapping[increment.Address, *big.Int](ctx, slotTotalUnclaimed),
		reserve:          solidity.NewRaw[increment.Address](ctx, slotReserve),
		paused:           solidity.NewBool(ctx, slotPaused),
	}
}

func (d *Distributor) Address() increment.Address { return d.ctx.Address() }

// Source returns the position source the distributor is bound to.
func (d *Distributor) Source() PositionSource { return d.source }

func (d *Distributor) labels() map[string]string {
	return map[string]string{"distributor": d.name}
}

// InitMarketStartTime starts the reward clock of market. Accrual in a market
// is impossible before this.
func (d *Distributor) InitMarketStartTime(caller, market increment.Address) error {
	return d.ctx.Atomic(func() error {
		if err := d.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		return d.initMarketStartTime(market)
	})
}

func (d *Distributor) initMarketStartTime(market increment.Address) error {
	last, err := d.timeOfLastUpdate.Get(market)
	if err != nil {
		return err
	}
	if last != 0 {
		return reverts.New(ErrAlreadyInitializedStartTime, market)
	}
	return d.timeOfLastUpdate.Set(market, d.ctx.Now())
}

// updateMarketRewards accrues every active reward token of market into its
// per liquidity accumulator, up to now.
func (d *Distributor) updateMarketRewards(market increment.Address) error {
	last, err := d.timeOfLastUpdate.Get(market)
	if err != nil {
		return err
	}
	if last == 0 {
		return reverts.New(ErrUninitializedStartTime, market)
	}
	now := d.ctx.Now()
	if now <= last {
		return nil
	}
	liquidity, err := d.totalLiquidity.Get(market)
	if err != nil {
		return err
	}
	if liquidity.Sign() > 0 {
		tokens, err := d.tokensPerMarket.Get(market)
		if err != nil {
			return err
		}
		for _, tok := range tokens {
			delta, err := d.pendingMarketDelta(tok, market, now-last, liquidity)
			if err != nil {
				return err
			}
			if delta.Sign() == 0 {
				continue
			}
			key := solidity.Pair{tok, market}
			cum, err := d.cumPerLp.Get(key)
			if err != nil {
				return err
			}
			if err := d.cumPerLp.Set(key, cum.Add(cum, delta)); err != nil {
				return err
			}
			d.ctx.Log("RewardAccruedToMarket", "market", market, "rewardToken", tok, "reward", delta)
		}
	}
	// advances even without liquidity, so nothing accrues retroactively
	return d.timeOfLastUpdate.Set(market, now)
}

// pendingMarketDelta is the accumulator growth of tok in market over dt seconds.
func (d *Distributor) pendingMarketDelta(tok, market increment.Address, dt uint64, liquidity *big.Int) (*big.Int, error) {
	info, err := d.rewardInfo.Get(tok)
	if err != nil {
		return nil, err
	}
	if info.Paused {
		return new(big.Int), nil
	}
	weight := info.weightOf(market)
	if weight == 0 {
		return new(big.Int), nil
	}
	rate, err := info.inflationRate(d.ctx.Now())
	if err != nil {
		return nil, err
	}
	delta := new(big.Int).Mul(rate, big.NewInt(int64(weight)))
	delta.Quo(delta, big.NewInt(increment.MaxBasisPoints))
	delta.Mul(delta, new(big.Int).SetUint64(dt))
	delta.Quo(delta, big.NewInt(increment.SecondsPerYear))
	delta.Mul(delta, increment.Wad)
	return delta.Quo(delta, liquidity), nil
}

// settleUser books what user earned in market on position since its last
// snapshot and moves the snapshot to the current accumulator.
// adjust, if set, may shrink each token's accrual before it is booked.
func (d *Distributor) settleUser(
	market, user increment.Address,
	position *big.Int,
	adjust func(tok increment.Address, accrued *big.Int) (*big.Int, error),
) error {
	tokens, err := d.tokensPerMarket.Get(market)
	if err != nil {
		return err
	}
	var multiplier *big.Int
	if d.multiplier != nil && position.Sign() > 0 {
		if multiplier, err = d.multiplier(user, market); err != nil {
			return err
		}
	}
	for _, tok := range tokens {
		cum, err := d.cumPerLp.Get(solidity.Pair{tok, market})
		if err != nil {
			return err
		}
		userKey := solidity.Triple{user, tok, market}
		snapshot, err := d.cumPerLpPerUser.Get(userKey)
		if err != nil {
			return err
		}
		if delta := new(big.Int).Sub(cum, snapshot); position.Sign() > 0 && delta.Sign() > 0 {
			earned := fixedpoint.Mul(position, delta)
			if multiplier != nil {
				earned = fixedpoint.Mul(earned, multiplier)
			}
			if adjust != nil {
				if earned, err = adjust(tok, earned); err != nil {
					return err
				}
			}
			if err := d.book(user, tok, market, earned); err != nil {
				return err
			}
		}
		if err := d.cumPerLpPerUser.Set(userKey, cum); err != nil {
			return err
		}
	}
	return nil
}

func (d *Distributor) book(user, tok, market increment.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	key := solidity.Pair{user, tok}
	accrued, err := d.accrued.Get(key)
	if err != nil {
		return err
	}
	if err := d.accrued.Set(key, accrued.Add(accrued, amount)); err != nil {
		return err
	}
	total, err := d.totalUnclaimed.Get(tok)
	if err != nil {
		return err
	}
	total.Add(total, amount)
	if err := d.totalUnclaimed.Set(tok, total); err != nil {
		return err
	}
	d.ctx.Log("RewardAccruedToUser", "user", user, "rewardToken", tok, "market", market, "reward", amount)

	available, err := d.available(tok)
	if err != nil {
		return err
	}
	if total.Cmp(available) > 0 {
		d.shortfall(tok, new(big.Int).Sub(total, available))
	}
	return nil
}

func (d *Distributor) shortfall(tok increment.Address, amount *big.Int) {
	d.ctx.Log("RewardTokenShortfall", "rewardToken", tok, "shortfallAmount", amount)
	logger.Warn("reward token shortfall", "distributor", d.name, "token", tok, "amount", amount)
	metricShortfalls().AddWithLabel(1, d.labels())
}

// available is what the distributor can pull from the reserve right now.
func (d *Distributor) available(tok increment.Address) (*big.Int, error) {
	reserve, err := d.reserve.Get()
	if err != nil {
		return nil, err
	}
	t, err := d.tokens.Get(tok)
	if err != nil {
		return nil, err
	}
	balance, err := t.BalanceOf(reserve)
	if err != nil {
		return nil, err
	}
	allowance, err := t.Allowance(reserve, d.Address())
	if err != nil {
		return nil, err
	}
	return fixedpoint.Min(balance, allowance), nil
}

// distribute pays up to amount of tok to user and returns what could not be paid.
func (d *Distributor) distribute(tok, user increment.Address, amount *big.Int) (*big.Int, error) {
	available, err := d.available(tok)
	if err != nil {
		return nil, err
	}
	pay := fixedpoint.Min(amount, available)
	if pay.Sign() > 0 {
		reserve, err := d.reserve.Get()
		if err != nil {
			return nil, err
		}
		t, err := d.tokens.Get(tok)
		if err != nil {
			return nil, err
		}
		if err := t.TransferFrom(d.Address(), reserve, user, pay); err != nil {
			return nil, err
		}
	}
	return new(big.Int).Sub(amount, pay), nil
}

// accrueRewards settles user's stored position in market. The stored
// position must match the live one, otherwise the user has to register first.
func (d *Distributor) accrueRewards(market, user increment.Address) error {
	stored, err := d.lpPositions.Get(solidity.Pair{user, market})
	if err != nil {
		return err
	}
	current, err := d.source.GetCurrentPosition(user, market)
	if err != nil {
		return err
	}
	if stored.Cmp(current) != 0 {
		return reverts.New(ErrUserPositionMismatch, user, market, stored, current)
	}
	return d.settleUser(market, user, stored, nil)
}

// applyPosition records the new position of user in market and keeps the
// market total in sync.
func (d *Distributor) applyPosition(market, user increment.Address, prev, next *big.Int) error {
	total, err := d.totalLiquidity.Get(market)
	if err != nil {
		return err
	}
	total.Add(total, next)
	total.Sub(total, prev)
	if err := d.totalLiquidity.Set(market, total); err != nil {
		return err
	}
	if err := d.lpPositions.Set(solidity.Pair{user, market}, new(big.Int).Set(next)); err != nil {
		return err
	}
	d.ctx.Log("PositionUpdated", "user", user, "market", market, "prevPosition", prev, "newPosition", next)
	metricPositionUpdates().AddWithLabel(1, d.labels())
	return nil
}

func (d *Distributor) checkNotPaused() error {
	paused, err := d.Paused()
	if err != nil {
		return err
	}
	if paused {
		return reverts.New(ErrPaused)
	}
	return nil
}

// RegisterPositions mirrors positions opened before the distributor
// started tracking user in markets.
func (d *Distributor) RegisterPositions(user increment.Address, markets []increment.Address) error {
	return d.ctx.NonReentrant(func() error {
		if err := d.checkNotPaused(); err != nil {
			return err
		}
		for _, market := range markets {
			stored, err := d.lpPositions.Get(solidity.Pair{user, market})
			if err != nil {
				return err
			}
			if stored.Sign() != 0 {
				return reverts.New(ErrPositionAlreadyRegistered, user, market, stored)
			}
			if err := d.updateMarketRewards(market); err != nil {
				return err
			}
			current, err := d.source.GetCurrentPosition(user, market)
			if err != nil {
				return err
			}
			// snapshots only, nothing was earned before registration
			if err := d.settleUser(market, user, new(big.Int), nil); err != nil {
				return err
			}
			if err := d.applyPosition(market, user, stored, current); err != nil {
				return err
			}
			if d.registered != nil && current.Sign() > 0 {
				if err := d.registered(solidity.Pair{user, market}, current); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ClaimRewards claims every reward token for caller.
func (d *Distributor) ClaimRewards(caller increment.Address) error {
	return d.ClaimRewardsFor(caller)
}

// ClaimRewardsFor settles user in every market and pays out all reward tokens.
func (d *Distributor) ClaimRewardsFor(user increment.Address) error {
	tokens, err := d.rewardTokens.Get()
	if err != nil {
		return err
	}
	return d.ClaimRewardsForTokens(user, tokens)
}

// ClaimRewardsForTokens settles user in every market and pays out the given
// reward tokens. Tokens removed from the schedule can still be claimed this way.
// A shortfall in the reserve keeps the unpaid part accrued.
func (d *Distributor) ClaimRewardsForTokens(user increment.Address, tokens []increment.Address) error {
	return d.ctx.NonReentrant(func() error {
		if err := d.checkNotPaused(); err != nil {
			return err
		}
		all, err := markets(d.source)
		if err != nil {
			return err
		}
		for _, market := range all {
			if err := d.updateMarketRewards(market); err != nil {
				return err
			}
			if err := d.accrueRewards(market, user); err != nil {
				return err
			}
		}
		for _, tok := range tokens {
			key := solidity.Pair{user, tok}
			owed, err := d.accrued.Get(key)
			if err != nil {
				return err
			}
			if owed.Sign() == 0 {
				continue
			}
			remaining, err := d.distribute(tok, user, owed)
			if err != nil {
				return err
			}
			paid := new(big.Int).Sub(owed, remaining)
			total, err := d.totalUnclaimed.Get(tok)
			if err != nil {
				return err
			}
			total.Sub(total, paid)
			if err := d.totalUnclaimed.Set(tok, total); err != nil {
				return err
			}
			if err := d.accrued.Set(key, remaining); err != nil {
				return err
			}
			if paid.Sign() > 0 {
				d.ctx.Log("RewardClaimed", "user", user, "rewardToken", tok, "reward", paid)
				metricClaims().AddWithLabel(1, d.labels())
			}
			if remaining.Sign() > 0 {
				d.shortfall(tok, remaining)
			}
		}
		logger.Debug("rewards claimed", "distributor", d.name, "user", user)
		return nil
	})
}

// Paused reports whether claims are halted, by the distributor itself or by
// its position source.
func (d *Distributor) Paused() (bool, error) {
	paused, err := d.paused.Get()
	if err != nil || paused {
		return paused, err
	}
	return d.source.Paused()
}

func (d *Distributor) SetPaused(caller increment.Address, paused bool) error {
	return d.ctx.Atomic(func() error {
		if err := d.access.CheckAnyRole(caller, access.EmergencyAdmin, access.Governance); err != nil {
			return err
		}
		if err := d.paused.Set(paused); err != nil {
			return err
		}
		if paused {
			d.ctx.Log("Paused", "account", caller)
		} else {
			d.ctx.Log("Unpaused", "account", caller)
		}
		return nil
	})
}

func (d *Distributor) SetEcosystemReserve(caller, reserve increment.Address) error {
	return d.ctx.Atomic(func() error {
		if err := d.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if reserve.IsZero() {
			return reverts.New(ErrInvalidEcosystemReserve, reserve)
		}
		prev, err := d.reserve.Get()
		if err != nil {
			return err
		}
		if err := d.reserve.Set(reserve); err != nil {
			return err
		}
		d.ctx.Log("EcosystemReserveUpdated", "prevEcosystemReserve", prev, "newEcosystemReserve", reserve)
		return nil
	})
}

func (d *Distributor) EcosystemReserve() (increment.Address, error) { return d.reserve.Get() }

func (d *Distributor) CumulativeRewardPerLpToken(tok, market increment.Address) (*big.Int, error) {
	return d.cumPerLp.Get(solidity.Pair{tok, market})
}

func (d *Distributor) CumulativeRewardPerLpTokenPerUser(user, tok, market increment.Address) (*big.Int, error) {
	return d.cumPerLpPerUser.Get(solidity.Triple{user, tok, market})
}

func (d *Distributor) TimeOfLastCumRewardUpdate(market increment.Address) (uint64, error) {
	return d.timeOfLastUpdate.Get(market)
}

func (d *Distributor) TotalLiquidityPerMarket(market increment.Address) (*big.Int, error) {
	return d.totalLiquidity.Get(market)
}

func (d *Distributor) LpPositionsPerUser(user, market increment.Address) (*big.Int, error) {
	return d.lpPositions.Get(solidity.Pair{user, market})
}

func (d *Distributor) RewardsAccruedByUser(user, tok increment.Address) (*big.Int, error) {
	return d.accrued.Get(solidity.Pair{user, tok})
}

func (d *Distributor) TotalUnclaimedRewards(tok increment.Address) (*big.Int, error) {
	return d.totalUnclaimed.Get(tok)
}

// ViewNewRewardAccrual returns what user would accrue of tok in market if
// settled now, without changing state.
func (d *Distributor) ViewNewRewardAccrual(market, user, tok increment.Address) (*big.Int, error) {
	cum, err := d.cumPerLp.Get(solidity.Pair{tok, market})
	if err != nil {
		return nil, err
	}
	last, err := d.timeOfLastUpdate.Get(market)
	if err != nil {
		return nil, err
	}
	if last == 0 {
		return nil, reverts.New(ErrUninitializedStartTime, market)
	}
	liquidity, err := d.totalLiquidity.Get(market)
	if err != nil {
		return nil, err
	}
	if now := d.ctx.Now(); now > last && liquidity.Sign() > 0 {
		delta, err := d.pendingMarketDelta(tok, market, now-last, liquidity)
		if err != nil {
			return nil, err
		}
		cum.Add(cum, delta)
	}
	snapshot, err := d.cumPerLpPerUser.Get(solidity.Triple{user, tok, market})
	if err != nil {
		return nil, err
	}
	position, err := d.lpPositions.Get(solidity.Pair{user, market})
	if err != nil {
		return nil, err
	}
	earned := fixedpoint.Mul(position, cum.Sub(cum, snapshot))
	if d.multiplier != nil && position.Sign() > 0 {
		m, err := d.multiplier(user, market)
		if err != nil {
			return nil, err
		}
		earned = fixedpoint.Mul(earned, m)
	}
	return earned, nil
}
