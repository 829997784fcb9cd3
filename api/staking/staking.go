// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Increment-Finance/peripheral-contracts-sub004/api/utils"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/stakedtoken"
	"github.com/Increment-Finance/peripheral-contracts-sub004/protocol"
	"github.com/Increment-Finance/peripheral-contracts-sub004/runtime"
)

type Staking struct {
	rt *runtime.Runtime
	p  *protocol.Protocol
}

func New(rt *runtime.Runtime, p *protocol.Protocol) *Staking {
	return &Staking{rt, p}
}

func (s *Staking) stakedToken(req *http.Request) (*stakedtoken.StakedToken, error) {
	st, err := s.p.StakedToken(mux.Vars(req)["token"])
	if err != nil {
		return nil, utils.NotFound(err)
	}
	return st, nil
}

func (s *Staking) stakingToken(st *stakedtoken.StakedToken) (*StakingToken, error) {
	cfg, err := st.Config()
	if err != nil {
		return nil, err
	}
	rate, err := st.ExchangeRate()
	if err != nil {
		return nil, err
	}
	supply, err := st.TotalSupply()
	if err != nil {
		return nil, err
	}
	underlying, err := st.GetUnderlyingBalance()
	if err != nil {
		return nil, err
	}
	auctionable, err := s.p.SafetyModule.GetAuctionableTotal(st.Address())
	if err != nil {
		return nil, err
	}
	maxStake, err := st.MaxStakeAmount()
	if err != nil {
		return nil, err
	}
	post, err := st.IsInPostSlashingState()
	if err != nil {
		return nil, err
	}
	paused, err := st.Paused()
	if err != nil {
		return nil, err
	}
	decimals := s.p.Decimals(cfg.Underlying)
	return &StakingToken{
		Token:             utils.NewAccount(s.p, st.Address()),
		Name:              cfg.Name,
		Symbol:            cfg.Symbol,
		Underlying:        utils.NewAccount(s.p, cfg.Underlying),
		ExchangeRate:      utils.WAD(rate),
		TotalSupply:       utils.WAD(supply),
		UnderlyingBalance: utils.NewAmount(underlying, decimals),
		AuctionableTotal:  utils.NewAmount(auctionable, decimals),
		MaxStakeAmount:    utils.NewAmount(maxStake, decimals),
		CooldownSeconds:   cfg.CooldownSeconds,
		UnstakeWindow:     cfg.UnstakeWindow,
		PostSlashing:      post,
		Paused:            paused,
	}, nil
}

func (s *Staking) handleGetStakingTokens(w http.ResponseWriter, req *http.Request) error {
	var out []*StakingToken
	if err := utils.View(s.rt, req, func() error {
		list, err := s.p.SafetyModule.GetStakingTokens()
		if err != nil {
			return err
		}
		out = make([]*StakingToken, 0, len(list))
		for _, addr := range list {
			st, err := s.p.SafetyModule.StakingToken(addr)
			if err != nil {
				return err
			}
			info, err := s.stakingToken(st)
			if err != nil {
				return err
			}
			out = append(out, info)
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (s *Staking) handleGetStakingToken(w http.ResponseWriter, req *http.Request) error {
	st, err := s.stakedToken(req)
	if err != nil {
		return err
	}
	var out *StakingToken
	if err := utils.View(s.rt, req, func() (err error) {
		out, err = s.stakingToken(st)
		return
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (s *Staking) handleGetStaker(w http.ResponseWriter, req *http.Request) error {
	st, err := s.stakedToken(req)
	if err != nil {
		return err
	}
	user, err := utils.PathAddress(s.p, req, "user")
	if err != nil {
		return err
	}
	var out *Staker
	if err := utils.View(s.rt, req, func() error {
		shares, err := st.BalanceOf(user)
		if err != nil {
			return err
		}
		redeemable, err := st.PreviewRedeem(shares)
		if err != nil {
			return err
		}
		cooldown, err := st.GetCooldownStartTime(user)
		if err != nil {
			return err
		}
		multiplier, err := s.p.SMRewards.ComputeRewardMultiplier(user, st.Address())
		if err != nil {
			return err
		}
		start, err := s.p.SMRewards.MultiplierStartTimeByUser(user, st.Address())
		if err != nil {
			return err
		}
		underlying, _ := s.p.Underlying(st.Address())
		out = &Staker{
			User:                utils.NewAccount(s.p, user),
			Token:               utils.NewAccount(s.p, st.Address()),
			Shares:              utils.WAD(shares),
			Redeemable:          utils.NewAmount(redeemable, s.p.Decimals(underlying)),
			CooldownStartTime:   cooldown,
			RewardMultiplier:    utils.WAD(multiplier),
			MultiplierStartTime: start,
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (s *Staking) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("staking_get_tokens").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetStakingTokens))
	sub.Path("/{token}").
		Methods(http.MethodGet).
		Name("staking_get_token").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetStakingToken))
	sub.Path("/{token}/users/{user}").
		Methods(http.MethodGet).
		Name("staking_get_staker").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetStaker))
}
