// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package auctions

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/api/utils"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/auction"
	"github.com/Increment-Finance/peripheral-contracts-sub004/protocol"
	"github.com/Increment-Finance/peripheral-contracts-sub004/runtime"
)

type Auctions struct {
	rt *runtime.Runtime
	p  *protocol.Protocol
}

func New(rt *runtime.Runtime, p *protocol.Protocol) *Auctions {
	return &Auctions{rt, p}
}

func (a *Auctions) handleGetSummary(w http.ResponseWriter, req *http.Request) error {
	var out *Summary
	if err := utils.View(a.rt, req, func() error {
		next, err := a.p.Auctions.GetNextAuctionID()
		if err != nil {
			return err
		}
		payment, err := a.p.Auctions.PaymentToken()
		if err != nil {
			return err
		}
		paused, err := a.p.Auctions.Paused()
		if err != nil {
			return err
		}
		out = &Summary{NextID: next, PaymentToken: utils.NewAccount(a.p, payment), Paused: paused}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (a *Auctions) handleGetAuction(w http.ResponseWriter, req *http.Request) error {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "id"))
	}
	var out *Auction
	if err := utils.View(a.rt, req, func() error {
		info, err := a.p.Auctions.GetAuction(id)
		if errors.Is(err, auction.ErrInvalidAuctionID) {
			return utils.NotFound(errors.Errorf("auction %d not found", id))
		} else if err != nil {
			return err
		}
		size, err := a.p.Auctions.GetCurrentLotSize(id)
		if err != nil {
			return err
		}
		stakingToken, err := a.p.SafetyModule.StakedTokenByAuctionID(id)
		if err != nil {
			return err
		}
		tokenDecimals, paymentDecimals := a.p.Decimals(info.Token), a.p.Decimals(info.PaymentToken)
		out = &Auction{
			ID:                   id,
			StakingToken:         utils.NewAccount(a.p, stakingToken),
			Token:                utils.NewAccount(a.p, info.Token),
			PaymentToken:         utils.NewAccount(a.p, info.PaymentToken),
			Active:               info.Active,
			NumLots:              info.NumLots,
			RemainingLots:        info.RemainingLots,
			LotPrice:             utils.NewAmount(info.LotPrice, paymentDecimals),
			InitialLotSize:       utils.NewAmount(info.InitialLotSize, tokenDecimals),
			CurrentLotSize:       utils.NewAmount(size, tokenDecimals),
			LotIncreaseIncrement: utils.NewAmount(info.LotIncreaseIncrement, tokenDecimals),
			LotIncreasePeriod:    info.LotIncreasePeriod,
			StartTime:            info.StartTime,
			EndTime:              info.EndTime,
			Balance:              utils.NewAmount(info.Balance, tokenDecimals),
			TokensSold:           utils.NewAmount(info.TokensSold, tokenDecimals),
			FundsRaised:          utils.NewAmount(info.FundsRaised, paymentDecimals),
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, out)
}

func (a *Auctions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("auctions_get_summary").
		HandlerFunc(utils.WrapHandlerFunc(a.handleGetSummary))
	sub.Path("/{id}").
		Methods(http.MethodGet).
		Name("auctions_get_auction").
		HandlerFunc(utils.WrapHandlerFunc(a.handleGetAuction))
}
