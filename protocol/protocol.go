// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package protocol deploys the peripheral contracts described by a Config
// into a fresh state, or rebinds them over a state deployed earlier.
package protocol

import (
	"math/big"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/auction"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/clearinghouse"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reserve"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reward"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/safetymodule"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/stakedtoken"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

var logger = log.WithContext("pkg", "protocol")

// Well known contract names.
const (
	AccessName        = "access"
	ReserveName       = "ecosystem-reserve"
	ClearingHouseName = "clearing-house"
	PerpRewardsName   = "perp-reward-distributor"
	AuctionName       = "auction-module"
	SafetyModuleName  = "safety-module"
	SMRewardsName     = "sm-reward-distributor"
)

// Distributor names accepted by Distributor.
const (
	PerpDistributor = "perp"
	SMDistributor   = "sm"
)

var slotDeployed = increment.NameToSlot("deployed")

// ContractAddress is the address a named contract is deployed at.
func ContractAddress(name string) increment.Address {
	return increment.NamedAddress("increment/" + name)
}

func tokenAddress(symbol string) increment.Address { return ContractAddress("token/" + symbol) }
func marketAddress(name string) increment.Address  { return ContractAddress("market/" + name) }

// Protocol holds every deployed contract bound to one environment.
type Protocol struct {
	Env           *xenv.Environment
	Config        *Config
	Governance    increment.Address
	Access        *access.Registry
	Tokens        *token.Registry
	Reserve       *reserve.Reserve
	ClearingHouse *clearinghouse.ClearingHouse
	PerpRewards   *reward.PerpDistributor
	Auctions      *auction.Module
	SafetyModule  *safetymodule.SafetyModule
	SMRewards     *reward.SMDistributor
	StakedTokens  map[increment.Address]*stakedtoken.StakedToken

	names      map[string]increment.Address
	labels     map[increment.Address]string
	decimals   map[increment.Address]uint8
	underlying map[increment.Address]increment.Address
	deployed   *solidity.Bool
}

// Open binds the contracts of cfg to env and wires their callbacks. It
// writes nothing; call Deploy on a fresh state.
func Open(env *xenv.Environment, cfg *Config) (*Protocol, error) {
	gov, err := account(cfg.Governance)
	if err != nil {
		return nil, errors.WithMessage(err, "governance")
	}
	p := &Protocol{
		Env:          env,
		Config:       cfg,
		Governance:   gov,
		StakedTokens: make(map[increment.Address]*stakedtoken.StakedToken),
		names:        make(map[string]increment.Address),
		labels:       make(map[increment.Address]string),
		decimals:     make(map[increment.Address]uint8),
		underlying:   make(map[increment.Address]increment.Address),
		deployed:     solidity.NewBool(solidity.NewContext(ContractAddress("protocol"), env), slotDeployed),
	}
	p.Access = access.New(p.name(AccessName, ContractAddress(AccessName)), env)
	p.Tokens = token.NewRegistry(env)
	p.Reserve = reserve.New(p.name(ReserveName, ContractAddress(ReserveName)), env, p.Access, p.Tokens)
	p.ClearingHouse = clearinghouse.New(p.name(ClearingHouseName, ContractAddress(ClearingHouseName)), env, p.Access)
	p.PerpRewards = reward.NewPerpDistributor(p.name(PerpRewardsName, ContractAddress(PerpRewardsName)), env, p.Access, p.Tokens, p.ClearingHouse)
	p.ClearingHouse.SetPositionListener(p.PerpRewards)

	p.Auctions = auction.New(p.name(AuctionName, ContractAddress(AuctionName)), env, p.Access, p.Tokens)
	p.SafetyModule = safetymodule.New(p.name(SafetyModuleName, ContractAddress(SafetyModuleName)), env, p.Access, p.Tokens, p.Auctions)
	p.Auctions.BindOwner(p.SafetyModule)
	p.SMRewards = reward.NewSMDistributor(p.name(SMRewardsName, ContractAddress(SMRewardsName)), env, p.Access, p.Tokens, p.SafetyModule)
	p.SafetyModule.BindRewardDistributor(p.SMRewards)

	for _, t := range cfg.Tokens {
		addr := p.name(t.Symbol, tokenAddress(t.Symbol))
		p.Tokens.Deploy(addr)
		p.decimals[addr] = t.Decimals
	}
	for _, m := range cfg.Markets {
		p.name(m, marketAddress(m))
	}
	for _, ref := range p.accountRefs() {
		if _, known := p.names[ref]; !known && !strings.HasPrefix(ref, "0x") {
			p.name(ref, increment.NamedAddress(ref))
		}
	}
	for _, sc := range cfg.SafetyModule.StakingTokens {
		addr := p.name(sc.Symbol, tokenAddress(sc.Symbol))
		st := stakedtoken.New(addr, env, p.Access, p.Tokens)
		p.StakedTokens[addr] = st
		p.decimals[addr] = 18
		p.underlying[addr] = tokenAddress(sc.Underlying)
		p.SafetyModule.BindStakingToken(st)
	}
	return p, nil
}

// accountRefs are the account names the config mentions.
func (p *Protocol) accountRefs() []string {
	refs := []string{p.Config.Governance, p.Config.EmergencyAdmin, p.Config.FundsAdmin}
	for _, t := range p.Config.Tokens {
		for holder := range t.Balances {
			refs = append(refs, holder)
		}
	}
	out := refs[:0]
	for _, ref := range refs {
		if ref != "" {
			out = append(out, ref)
		}
	}
	return out
}

func (p *Protocol) name(name string, addr increment.Address) increment.Address {
	p.names[name] = addr
	p.labels[addr] = name
	return addr
}

// Resolve maps a contract, token or market name, or a hex address, to an
// address. Any other name is taken as an account label.
func (p *Protocol) Resolve(ref string) (increment.Address, error) {
	if addr, ok := p.names[ref]; ok {
		return addr, nil
	}
	return account(ref)
}

// Label is the configured name of addr, or its hex form.
func (p *Protocol) Label(addr increment.Address) string {
	if name, ok := p.labels[addr]; ok {
		return name
	}
	return addr.String()
}

// Decimals of a configured token, 18 for anything else.
func (p *Protocol) Decimals(addr increment.Address) uint8 {
	if d, ok := p.decimals[addr]; ok {
		return d
	}
	return 18
}

// Underlying is the configured underlying token of a staking token.
func (p *Protocol) Underlying(stakingToken increment.Address) (increment.Address, bool) {
	addr, ok := p.underlying[stakingToken]
	return addr, ok
}

// Names lists every configured name, sorted.
func (p *Protocol) Names() []string {
	names := make([]string, 0, len(p.names))
	for name := range p.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Protocol) StakedToken(ref string) (*stakedtoken.StakedToken, error) {
	addr, err := p.Resolve(ref)
	if err != nil {
		return nil, err
	}
	st, ok := p.StakedTokens[addr]
	if !ok {
		return nil, errors.Errorf("%s is not a staking token", ref)
	}
	return st, nil
}

// Distributor returns the reward engine of the perp or the sm distributor.
func (p *Protocol) Distributor(name string) (*reward.Distributor, error) {
	switch strings.ToLower(name) {
	case PerpDistributor, PerpRewardsName:
		return p.PerpRewards.Distributor, nil
	case SMDistributor, SMRewardsName:
		return p.SMRewards.Distributor, nil
	}
	return nil, errors.Errorf("unknown distributor %q", name)
}

func (p *Protocol) IsDeployed() (bool, error) { return p.deployed.Get() }

// Deploy initializes every contract. It fails if cfg was deployed already.
func (p *Protocol) Deploy() error {
	return p.Env.Atomic(func() error {
		if done, err := p.deployed.Get(); err != nil {
			return err
		} else if done {
			return errors.New("protocol already deployed")
		}
		steps := []struct {
			name string
			fn   func() error
		}{
			{"access", p.deployAccess},
			{"tokens", p.deployTokens},
			{"markets", p.deployMarkets},
			{"perp rewards", p.deployPerpRewards},
			{"safety module", p.deploySafetyModule},
		}
		for _, step := range steps {
			if err := step.fn(); err != nil {
				return errors.WithMessage(err, step.name)
			}
		}
		if err := p.deployed.Set(true); err != nil {
			return err
		}
		logger.Info("protocol deployed", "tokens", len(p.Config.Tokens), "markets", len(p.Config.Markets),
			"stakingTokens", len(p.Config.SafetyModule.StakingTokens))
		return nil
	})
}

func (p *Protocol) fundsAdmin() (increment.Address, error) {
	if p.Config.FundsAdmin == "" {
		return p.Governance, nil
	}
	return p.Resolve(p.Config.FundsAdmin)
}

func (p *Protocol) deployAccess() error {
	if err := p.Access.Initialize(p.Governance); err != nil {
		return err
	}
	if p.Config.EmergencyAdmin != "" {
		admin, err := p.Resolve(p.Config.EmergencyAdmin)
		if err != nil {
			return err
		}
		if err := p.Access.GrantRole(p.Governance, access.EmergencyAdmin, admin); err != nil {
			return err
		}
	}
	funds, err := p.fundsAdmin()
	if err != nil {
		return err
	}
	return p.Access.GrantRole(p.Governance, access.FundsAdmin, funds)
}

func (p *Protocol) deployTokens() error {
	for _, t := range p.Config.Tokens {
		tok, err := p.Tokens.Get(tokenAddress(t.Symbol))
		if err != nil {
			return err
		}
		if err := tok.Initialize(&token.Meta{Name: t.Name, Symbol: t.Symbol, Decimals: t.Decimals}); err != nil {
			return err
		}
		// sorted so the mint events come out in a stable order
		holders := make([]string, 0, len(t.Balances))
		for holder := range t.Balances {
			holders = append(holders, holder)
		}
		sort.Strings(holders)
		for _, holder := range holders {
			addr, err := p.Resolve(holder)
			if err != nil {
				return err
			}
			if err := tok.Mint(addr, t.Balances[holder].Wei(t.Decimals)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Protocol) deployMarkets() error {
	for _, m := range p.Config.Markets {
		if err := p.ClearingHouse.ListMarket(p.Governance, marketAddress(m)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Protocol) deployPerpRewards() error {
	threshold := uint64(reward.DefaultEarlyWithdrawalThreshold)
	if v := p.Config.PerpRewards.EarlyWithdrawalThreshold; v != nil {
		threshold = *v
	}
	if err := p.PerpRewards.Initialize(p.Reserve.Address(), threshold); err != nil {
		return err
	}
	return p.addRewardTokens(p.PerpRewards.Distributor, p.Config.PerpRewards.RewardTokens)
}

func (p *Protocol) deploySafetyModule() error {
	cfg := p.Config.SafetyModule
	if len(cfg.StakingTokens) == 0 {
		return nil
	}
	payment, err := p.Resolve(cfg.PaymentToken)
	if err != nil {
		return err
	}
	if err := p.Auctions.Initialize(p.SafetyModule.Address(), payment); err != nil {
		return err
	}
	maxLoss := cfg.MaxPercentUserLoss.Wei(18)
	if err := p.SafetyModule.Initialize(maxLoss); err != nil {
		return err
	}
	maxMultiplier, smoothing := reward.DefaultMaxRewardMultiplier, reward.DefaultSmoothingValue
	if cfg.MaxRewardMultiplier.IsSet() {
		maxMultiplier = cfg.MaxRewardMultiplier.Wei(18)
	}
	if cfg.SmoothingValue.IsSet() {
		smoothing = cfg.SmoothingValue.Wei(18)
	}
	if err := p.SMRewards.Initialize(p.Reserve.Address(), maxMultiplier, smoothing); err != nil {
		return err
	}
	if err := p.SafetyModule.SetRewardDistributor(p.Governance, p.SMRewards); err != nil {
		return err
	}
	for _, sc := range cfg.StakingTokens {
		addr := tokenAddress(sc.Symbol)
		underlying := p.underlying[addr]
		st := p.StakedTokens[addr]
		maxStake := sc.MaxStakeAmount.Wei(p.Decimals(underlying))
		if !sc.MaxStakeAmount.IsSet() {
			maxStake = new(big.Int).Lsh(big.NewInt(1), 255)
		}
		if err := st.Initialize(&stakedtoken.Config{
			Underlying:      underlying,
			CooldownSeconds: sc.CooldownSeconds,
			UnstakeWindow:   sc.UnstakeWindow,
			Name:            sc.Name,
			Symbol:          sc.Symbol,
		}, p.SafetyModule.Address(), maxStake); err != nil {
			return errors.WithMessage(err, sc.Symbol)
		}
		if err := p.SafetyModule.AddStakingToken(p.Governance, st); err != nil {
			return errors.WithMessage(err, sc.Symbol)
		}
	}
	return p.addRewardTokens(p.SMRewards.Distributor, cfg.RewardTokens)
}

func (p *Protocol) addRewardTokens(d *reward.Distributor, tokens []RewardTokenConfig) error {
	funds, err := p.fundsAdmin()
	if err != nil {
		return err
	}
	for _, rt := range tokens {
		tok, err := p.Resolve(rt.Token)
		if err != nil {
			return err
		}
		markets := make([]increment.Address, len(rt.Markets))
		for i, m := range rt.Markets {
			if markets[i], err = p.Resolve(m); err != nil {
				return err
			}
		}
		if rt.ReserveAllowance.IsSet() {
			if err := p.Reserve.Approve(funds, tok, d.Address(), rt.ReserveAllowance.Wei(p.Decimals(tok))); err != nil {
				return err
			}
		}
		if err := d.AddRewardToken(p.Governance, tok, rt.InitialInflationRate.Wei(18), rt.ReductionFactor.Wei(18), markets, rt.Weights); err != nil {
			return errors.WithMessage(err, rt.Token)
		}
	}
	return nil
}
