// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package protocol

import (
	"math/big"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
)

// Amount is a decimal quantity read from YAML. "1.5" is scaled by the
// decimals of whatever it measures, "wei:1500" is taken as is.
type Amount struct {
	value decimal.Decimal
	wei   *big.Int
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalYAML() (any, error) { return a.String(), nil }

// ParseAmount parses a decimal or wei: prefixed amount.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if raw, ok := strings.CutPrefix(s, "wei:"); ok {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok || v.Sign() < 0 {
			return Amount{}, errors.Errorf("invalid wei amount %q", s)
		}
		return Amount{wei: v}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, errors.Wrapf(err, "amount %q", s)
	}
	if d.IsNegative() {
		return Amount{}, errors.Errorf("negative amount %q", s)
	}
	return Amount{value: d}, nil
}

// Wei scales the amount to an integer with the given decimals, truncating
// anything finer.
func (a Amount) Wei(decimals uint8) *big.Int {
	if a.wei != nil {
		return new(big.Int).Set(a.wei)
	}
	return a.value.Shift(int32(decimals)).BigInt()
}

func (a Amount) IsSet() bool { return a.wei != nil || !a.value.IsZero() }

func (a Amount) String() string {
	if a.wei != nil {
		return "wei:" + a.wei.String()
	}
	return a.value.String()
}

// FormatUnits renders an integer amount with the given decimals.
func FormatUnits(v *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// TokenConfig declares an ERC20 and its initial balances by account name.
type TokenConfig struct {
	Name     string            `yaml:"name"`
	Symbol   string            `yaml:"symbol"`
	Decimals uint8             `yaml:"decimals"`
	Balances map[string]Amount `yaml:"balances"`
}

// RewardTokenConfig schedules a reward token on a distributor.
type RewardTokenConfig struct {
	Token                string   `yaml:"token"`
	InitialInflationRate Amount   `yaml:"initial_inflation_rate"`
	ReductionFactor      Amount   `yaml:"reduction_factor"`
	Markets              []string `yaml:"markets"`
	Weights              []uint16 `yaml:"weights"`
	// ReserveAllowance is what the ecosystem reserve lets the distributor
	// pull, in token units.
	ReserveAllowance Amount `yaml:"reserve_allowance"`
}

type PerpRewardsConfig struct {
	EarlyWithdrawalThreshold *uint64             `yaml:"early_withdrawal_threshold"`
	RewardTokens             []RewardTokenConfig `yaml:"reward_tokens"`
}

type StakingTokenConfig struct {
	Name            string `yaml:"name"`
	Symbol          string `yaml:"symbol"`
	Underlying      string `yaml:"underlying"`
	CooldownSeconds uint64 `yaml:"cooldown_seconds"`
	UnstakeWindow   uint64 `yaml:"unstake_window"`
	MaxStakeAmount  Amount `yaml:"max_stake_amount"`
}

type SafetyModuleConfig struct {
	MaxPercentUserLoss  Amount               `yaml:"max_percent_user_loss"`
	PaymentToken        string               `yaml:"payment_token"`
	MaxRewardMultiplier Amount               `yaml:"max_reward_multiplier"`
	SmoothingValue      Amount               `yaml:"smoothing_value"`
	StakingTokens       []StakingTokenConfig `yaml:"staking_tokens"`
	RewardTokens        []RewardTokenConfig  `yaml:"reward_tokens"`
}

// Config describes a full deployment.
type Config struct {
	LaunchTime     uint64             `yaml:"launch_time"`
	Governance     string             `yaml:"governance"`
	EmergencyAdmin string             `yaml:"emergency_admin"`
	FundsAdmin     string             `yaml:"funds_admin"`
	Tokens         []TokenConfig      `yaml:"tokens"`
	Markets        []string           `yaml:"markets"`
	PerpRewards    PerpRewardsConfig  `yaml:"perp_rewards"`
	SafetyModule   SafetyModuleConfig `yaml:"safety_module"`
}

// LoadConfig reads a deployment config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Governance == "" {
		return errors.New("config: governance is required")
	}
	symbols := make(map[string]bool)
	for _, t := range c.Tokens {
		if t.Symbol == "" {
			return errors.New("config: token without symbol")
		}
		if symbols[t.Symbol] {
			return errors.Errorf("config: duplicate token %s", t.Symbol)
		}
		symbols[t.Symbol] = true
	}
	for _, st := range c.SafetyModule.StakingTokens {
		if symbols[st.Symbol] {
			return errors.Errorf("config: duplicate token %s", st.Symbol)
		}
		if !symbols[st.Underlying] {
			return errors.Errorf("config: staking token %s has unknown underlying %s", st.Symbol, st.Underlying)
		}
		symbols[st.Symbol] = true
	}
	if len(c.SafetyModule.StakingTokens) > 0 && !symbols[c.SafetyModule.PaymentToken] {
		return errors.Errorf("config: unknown auction payment token %q", c.SafetyModule.PaymentToken)
	}
	check := func(where string, rts []RewardTokenConfig) error {
		for _, rt := range rts {
			if !symbols[rt.Token] {
				return errors.Errorf("config: %s reward token %s is not declared", where, rt.Token)
			}
			if len(rt.Markets) != len(rt.Weights) {
				return errors.Errorf("config: %s reward token %s has %d markets and %d weights", where, rt.Token, len(rt.Markets), len(rt.Weights))
			}
		}
		return nil
	}
	if err := check("perp", c.PerpRewards.RewardTokens); err != nil {
		return err
	}
	return check("safety module", c.SafetyModule.RewardTokens)
}

// account resolves a name or hex address.
func account(ref string) (increment.Address, error) {
	if strings.HasPrefix(ref, "0x") {
		return increment.ParseAddress(ref)
	}
	if ref == "" {
		return increment.Address{}, errors.New("empty account reference")
	}
	return increment.NamedAddress(ref), nil
}
