// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/fixedpoint"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

var (
	// multiplier bounds, WAD
	MinMaxRewardMultiplier = increment.WadOf(1)
	MaxMaxRewardMultiplier = increment.WadOf(10)
	// smoothing bounds, WAD days
	MinSmoothingValue = increment.WadOf(10)
	MaxSmoothingValue = increment.WadOf(100)

	DefaultMaxRewardMultiplier = increment.WadOf(4)
	DefaultSmoothingValue      = increment.WadOf(30)

	wadDay = fixedpoint.FromInt(increment.SecondsPerDay)
)

var (
	slotMaxMultiplier   = increment.NameToSlot("max-reward-multiplier")
	slotSmoothing       = increment.NameToSlot("smoothing-value")
	slotMultiplierStart = increment.NameToSlot("multiplier-start-time")
	slotSafetyModule    = increment.NameToSlot("safety-module")
)

// SMDistributor rewards staked token balances held in the safety module.
// Rewards grow with an asymptotic multiplier the longer a stake is held.
type SMDistributor struct {
	*Distributor

	maxMultiplier   *solidity.Uint256
	smoothing       *solidity.Uint256
	multiplierStart *solidity.Mapping[solidity.Pair, uint64]
	safetyModule    *solidity.Raw[increment.Address]
	// modules are the safety modules the stored address may resolve to.
	modules map[increment.Address]PositionSource
	initial increment.Address
}

// NewSMDistributor binds a distributor at addr to the safety module.
// Initialize records safetyModule as the position source.
func NewSMDistributor(
	addr increment.Address,
	env *xenv.Environment,
	acl *access.Registry,
	tokens *token.Registry,
	safetyModule PositionSource,
) *SMDistributor {
	sm := &SMDistributor{
		modules: make(map[increment.Address]PositionSource),
		initial: safetyModule.Address(),
	}
	d := newDistributor("sm", addr, env, acl, tokens, boundSafetyModule{sm})
	sm.Distributor = d
	sm.maxMultiplier = solidity.NewUint256(d.ctx, slotMaxMultiplier)
	sm.smoothing = solidity.NewUint256(d.ctx, slotSmoothing)
	sm.multiplierStart = solidity.NewMapping[solidity.Pair, uint64](d.ctx, slotMultiplierStart)
	sm.safetyModule = solidity.NewRaw[increment.Address](d.ctx, slotSafetyModule)
	sm.BindSafetyModule(safetyModule)
	d.multiplier = sm.ComputeRewardMultiplier
	d.registered = sm.startMultiplier
	return sm
}

// BindSafetyModule makes src resolvable while its address is the recorded
// safety module. Binding writes nothing.
func (s *SMDistributor) BindSafetyModule(src PositionSource) {
	s.modules[src.Address()] = src
}

// currentSafetyModule resolves the recorded safety module.
func (s *SMDistributor) currentSafetyModule() (PositionSource, error) {
	addr, err := s.safetyModule.Get()
	if err != nil {
		return nil, err
	}
	if addr.IsZero() {
		return nil, reverts.New(ErrInvalidSafetyModule)
	}
	src, ok := s.modules[addr]
	if !ok {
		return nil, errors.Errorf("safety module %v is not bound to the sm distributor", addr)
	}
	return src, nil
}

// boundSafetyModule is the position source of an SMDistributor. Every call
// goes to the safety module recorded in storage at that moment.
type boundSafetyModule struct {
	sm *SMDistributor
}

// Address is the recorded safety module, zero if it cannot be read.
func (b boundSafetyModule) Address() increment.Address {
	addr, err := b.sm.safetyModule.Get()
	if err != nil {
		return increment.Address{}
	}
	return addr
}

func (b boundSafetyModule) GetNumMarkets() (int, error) {
	src, err := b.sm.currentSafetyModule()
	if err != nil {
		return 0, err
	}
	return src.GetNumMarkets()
}

func (b boundSafetyModule) GetMarket(idx int) (increment.Address, error) {
	src, err := b.sm.currentSafetyModule()
	if err != nil {
		return increment.Address{}, err
	}
	return src.GetMarket(idx)
}

func (b boundSafetyModule) GetCurrentPosition(user, market increment.Address) (*big.Int, error) {
	src, err := b.sm.currentSafetyModule()
	if err != nil {
		return nil, err
	}
	return src.GetCurrentPosition(user, market)
}

func (b boundSafetyModule) Paused() (bool, error) {
	src, err := b.sm.currentSafetyModule()
	if err != nil {
		return false, err
	}
	return src.Paused()
}

// Initialize sets the reserve and the multiplier curve.
func (s *SMDistributor) Initialize(reserve increment.Address, maxMultiplier, smoothing *big.Int) error {
	return s.ctx.Atomic(func() error {
		if reserve.IsZero() {
			return reverts.New(ErrInvalidEcosystemReserve, reserve)
		}
		if err := s.reserve.Set(reserve); err != nil {
			return err
		}
		if err := s.safetyModule.Set(s.initial); err != nil {
			return err
		}
		if err := s.setMaxMultiplier(maxMultiplier); err != nil {
			return err
		}
		return s.setSmoothing(smoothing)
	})
}

// InitMarketStartTime is also open to the safety module, which starts the
// clock of every staking token it adds.
func (s *SMDistributor) InitMarketStartTime(caller, market increment.Address) error {
	return s.ctx.Atomic(func() error {
		sm, err := s.safetyModule.Get()
		if err != nil {
			return err
		}
		if caller != sm {
			if err := s.access.CheckRole(access.Governance, caller); err != nil {
				return err
			}
		}
		return s.initMarketStartTime(market)
	})
}

// UpdatePosition settles user in the staking token market on the previous
// balance, moves the multiplier start time, and mirrors the new balance.
// Callable by the staking token itself or the safety module.
func (s *SMDistributor) UpdatePosition(caller, market, user increment.Address) error {
	return s.ctx.NonReentrant(func() error {
		sm, err := s.safetyModule.Get()
		if err != nil {
			return err
		}
		if caller != market && caller != sm {
			return reverts.New(ErrCallerIsNotStakingToken, caller)
		}
		if err := s.updateMarketRewards(market); err != nil {
			return err
		}
		key := solidity.Pair{user, market}
		prev, err := s.lpPositions.Get(key)
		if err != nil {
			return err
		}
		next, err := s.Source().GetCurrentPosition(user, market)
		if err != nil {
			return err
		}
		if err := s.settleUser(market, user, prev, nil); err != nil {
			return err
		}
		if err := s.moveMultiplierStart(key, prev, next); err != nil {
			return err
		}
		return s.applyPosition(market, user, prev, next)
	})
}

// startMultiplier starts the multiplier clock of a position mirrored by
// registration. Time held before registration does not count.
func (s *SMDistributor) startMultiplier(key solidity.Pair, _ *big.Int) error {
	return s.multiplierStart.Set(key, s.ctx.Now())
}

// moveMultiplierStart pushes the start time toward now in proportion to the
// share of the position withdrawn, or to the share newly added. A position
// without a start time starts now.
func (s *SMDistributor) moveMultiplierStart(key solidity.Pair, prev, next *big.Int) error {
	cmp := next.Cmp(prev)
	if cmp == 0 {
		return nil
	}
	now := s.ctx.Now()
	start, err := s.multiplierStart.Get(key)
	if err != nil {
		return err
	}
	if prev.Sign() == 0 || start == 0 {
		return s.multiplierStart.Set(key, now)
	}
	var changed, base *big.Int
	if cmp < 0 {
		changed, base = new(big.Int).Sub(prev, next), prev
	} else {
		changed, base = new(big.Int).Sub(next, prev), next
	}
	shift := new(big.Int).SetUint64(now - start)
	shift.Mul(shift, changed)
	shift.Quo(shift, base)
	return s.multiplierStart.Set(key, start+shift.Uint64())
}

// ComputeRewardMultiplier is 1 + (max - 1) * (1 - e^(-days / smoothing)), in WAD,
// or exactly 1 without an active stake.
func (s *SMDistributor) ComputeRewardMultiplier(user, market increment.Address) (*big.Int, error) {
	start, err := s.multiplierStart.Get(solidity.Pair{user, market})
	if err != nil {
		return nil, err
	}
	if start == 0 {
		return new(big.Int).Set(fixedpoint.Unit), nil
	}
	maxMultiplier, err := s.maxMultiplier.Get()
	if err != nil {
		return nil, err
	}
	smoothing, err := s.smoothing.Get()
	if err != nil {
		return nil, err
	}
	days := fixedpoint.Div(fixedpoint.FromInt(s.ctx.Now()-start), wadDay)
	decay, err := fixedpoint.ExpNeg(fixedpoint.Div(days, smoothing))
	if err != nil {
		return nil, err
	}
	growth := fixedpoint.Mul(new(big.Int).Sub(maxMultiplier, fixedpoint.Unit), new(big.Int).Sub(fixedpoint.Unit, decay))
	return growth.Add(growth, fixedpoint.Unit), nil
}

func (s *SMDistributor) setMaxMultiplier(v *big.Int) error {
	if v.Cmp(MinMaxRewardMultiplier) < 0 {
		return reverts.New(ErrInvalidMaxMultiplierTooLow, v, MinMaxRewardMultiplier)
	}
	if v.Cmp(MaxMaxRewardMultiplier) > 0 {
		return reverts.New(ErrInvalidMaxMultiplierTooHigh, v, MaxMaxRewardMultiplier)
	}
	return s.maxMultiplier.Set(v)
}

func (s *SMDistributor) setSmoothing(v *big.Int) error {
	if v.Cmp(MinSmoothingValue) < 0 {
		return reverts.New(ErrInvalidSmoothingValueTooLow, v, MinSmoothingValue)
	}
	if v.Cmp(MaxSmoothingValue) > 0 {
		return reverts.New(ErrInvalidSmoothingValueTooHigh, v, MaxSmoothingValue)
	}
	return s.smoothing.Set(v)
}

func (s *SMDistributor) SetMaxRewardMultiplier(caller increment.Address, v *big.Int) error {
	return s.ctx.Atomic(func() error {
		if err := s.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if err := s.setMaxMultiplier(v); err != nil {
			return err
		}
		s.ctx.Log("MaxRewardMultiplierUpdated", "newMaxRewardMultiplier", v)
		return nil
	})
}

func (s *SMDistributor) SetSmoothingValue(caller increment.Address, v *big.Int) error {
	return s.ctx.Atomic(func() error {
		if err := s.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if err := s.setSmoothing(v); err != nil {
			return err
		}
		s.ctx.Log("SmoothingValueUpdated", "newSmoothingValue", v)
		return nil
	})
}

// SetSafetyModule rebinds the distributor to another safety module.
func (s *SMDistributor) SetSafetyModule(caller increment.Address, sm PositionSource) error {
	return s.ctx.Atomic(func() error {
		if err := s.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if sm == nil || sm.Address().IsZero() {
			return reverts.New(ErrInvalidSafetyModule)
		}
		prev, err := s.safetyModule.Get()
		if err != nil {
			return err
		}
		if err := s.safetyModule.Set(sm.Address()); err != nil {
			return err
		}
		s.BindSafetyModule(sm)
		s.ctx.Log("SafetyModuleUpdated", "prevSafetyModule", prev, "newSafetyModule", sm.Address())
		return nil
	})
}

func (s *SMDistributor) MaxRewardMultiplier() (*big.Int, error)   { return s.maxMultiplier.Get() }
func (s *SMDistributor) SmoothingValue() (*big.Int, error)        { return s.smoothing.Get() }
func (s *SMDistributor) SafetyModule() (increment.Address, error) { return s.safetyModule.Get() }

func (s *SMDistributor) MultiplierStartTimeByUser(user, market increment.Address) (uint64, error) {
	return s.multiplierStart.Get(solidity.Pair{user, market})
}
