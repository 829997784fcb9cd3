// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/api/utils"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reward"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/protocol"
	"github.com/Increment-Finance/peripheral-contracts-sub004/runtime"
)

type Rewards struct {
	rt *runtime.Runtime
	p  *protocol.Protocol
}

func New(rt *runtime.Runtime, p *protocol.Protocol) *Rewards {
	return &Rewards{rt, p}
}

func (r *Rewards) distributor(req *http.Request) (*reward.Distributor, error) {
	d, err := r.p.Distributor(mux.Vars(req)["distributor"])
	if err != nil {
		return nil, utils.NotFound(err)
	}
	return d, nil
}

func (r *Rewards) rewardToken(d *reward.Distributor, tok increment.Address) (*RewardToken, error) {
	info, err := d.GetRewardInfo(tok)
	if errors.Is(err, reward.ErrInvalidRewardTokenAddress) {
		return nil, utils.NotFound(errors.Errorf("%s is not a reward token", r.p.Label(tok)))
	} else if err != nil {
		return nil, err
	}
	rate, err := d.GetInflationRate(tok)
	if err != nil {
		return nil, err
	}
	unclaimed, err := d.TotalUnclaimedRewards(tok)
	if err != nil {
		return nil, err
	}
	decimals := r.p.Decimals(tok)
	out := &RewardToken{
		Token:                utils.NewAccount(r.p, tok),
		Paused:               info.Paused,
		InitialTimestamp:     info.InitialTimestamp,
		InitialInflationRate: utils.NewAmount(info.InitialInflationRate, decimals),
		InflationRate:        utils.NewAmount(rate, decimals),
		ReductionFactor:      utils.WAD(info.ReductionFactor),
		TotalUnclaimed:       utils.NewAmount(unclaimed, decimals),
		Markets:              make([]*MarketWeight, 0, len(info.Markets)),
	}
	for i, market := range info.Markets {
		out.Markets = append(out.Markets, &MarketWeight{Market: utils.NewAccount(r.p, market), Weight: info.Weights[i]})
	}
	return out, nil
}

func (r *Rewards) handleGetTokens(w http.ResponseWriter, req *http.Request) error {
	d, err := r.distributor(req)
	if err != nil {
		return err
	}
	var tokens []*RewardToken
	if err := utils.View(r.rt, req, func() error {
		list, err := d.GetRewardTokens()
		if err != nil {
			return err
		}
		tokens = make([]*RewardToken, 0, len(list))
		for _, tok := range list {
			info, err := r.rewardToken(d, tok)
			if err != nil {
				return err
			}
			tokens = append(tokens, info)
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, tokens)
}

func (r *Rewards) handleGetToken(w http.ResponseWriter, req *http.Request) error {
	d, err := r.distributor(req)
	if err != nil {
		return err
	}
	tok, err := utils.PathAddress(r.p, req, "token")
	if err != nil {
		return err
	}
	var out *RewardToken
	if err := utils.View(r.rt, req, func() (err error) {
		out, err = r.rewardToken(d, tok)
		return
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (r *Rewards) handleGetMarket(w http.ResponseWriter, req *http.Request) error {
	d, err := r.distributor(req)
	if err != nil {
		return err
	}
	market, err := utils.PathAddress(r.p, req, "market")
	if err != nil {
		return err
	}
	var out *Market
	if err := utils.View(r.rt, req, func() error {
		liquidity, err := d.TotalLiquidityPerMarket(market)
		if err != nil {
			return err
		}
		last, err := d.TimeOfLastCumRewardUpdate(market)
		if err != nil {
			return err
		}
		if last == 0 {
			return utils.NotFound(errors.Errorf("%s is not a market of this distributor", r.p.Label(market)))
		}
		tokens, err := d.GetRewardTokensForMarket(market)
		if err != nil {
			return err
		}
		out = &Market{
			Market:                    utils.NewAccount(r.p, market),
			TotalLiquidity:            utils.WAD(liquidity),
			TimeOfLastCumRewardUpdate: last,
			RewardTokens:              make([]*MarketRewardToken, 0, len(tokens)),
		}
		for _, tok := range tokens {
			weight, err := d.GetRewardWeight(tok, market)
			if err != nil {
				return err
			}
			cum, err := d.CumulativeRewardPerLpToken(tok, market)
			if err != nil {
				return err
			}
			out.RewardTokens = append(out.RewardTokens, &MarketRewardToken{
				Token:                      utils.NewAccount(r.p, tok),
				Weight:                     weight,
				CumulativeRewardPerLpToken: utils.WAD(cum),
			})
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (r *Rewards) handleGetUser(w http.ResponseWriter, req *http.Request) error {
	d, err := r.distributor(req)
	if err != nil {
		return err
	}
	user, err := utils.PathAddress(r.p, req, "user")
	if err != nil {
		return err
	}
	var out *User
	if err := utils.View(r.rt, req, func() error {
		tokens, err := d.GetRewardTokens()
		if err != nil {
			return err
		}
		out = &User{User: utils.NewAccount(r.p, user)}
		src := d.Source()
		n, err := src.GetNumMarkets()
		if err != nil {
			return err
		}
		for i := range n {
			market, err := src.GetMarket(i)
			if err != nil {
				return err
			}
			position, err := d.LpPositionsPerUser(user, market)
			if err != nil {
				return err
			}
			if position.Sign() == 0 {
				continue
			}
			pos := &Position{Market: utils.NewAccount(r.p, market), Position: utils.WAD(position)}
			marketTokens, err := d.GetRewardTokensForMarket(market)
			if err != nil {
				return err
			}
			for _, tok := range marketTokens {
				pending, err := d.ViewNewRewardAccrual(market, user, tok)
				if err != nil {
					return err
				}
				pos.Pending = append(pos.Pending, &TokenAmount{Token: utils.NewAccount(r.p, tok), Amount: utils.NewAmount(pending, r.p.Decimals(tok))})
			}
			out.Positions = append(out.Positions, pos)
		}
		for _, tok := range tokens {
			accrued, err := d.RewardsAccruedByUser(user, tok)
			if err != nil {
				return err
			}
			out.Accrued = append(out.Accrued, &TokenAmount{Token: utils.NewAccount(r.p, tok), Amount: utils.NewAmount(accrued, r.p.Decimals(tok))})
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (r *Rewards) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{distributor}/tokens").
		Methods(http.MethodGet).
		Name("rewards_get_tokens").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetTokens))
	sub.Path("/{distributor}/tokens/{token}").
		Methods(http.MethodGet).
		Name("rewards_get_token").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetToken))
	sub.Path("/{distributor}/markets/{market}").
		Methods(http.MethodGet).
		Name("rewards_get_market").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetMarket))
	sub.Path("/{distributor}/users/{user}").
		Methods(http.MethodGet).
		Name("rewards_get_user").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetUser))
}
