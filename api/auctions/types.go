// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package auctions

import "github.com/Increment-Finance/peripheral-contracts-sub004/api/utils"

type Summary struct {
	NextID       uint64         `json:"nextId"`
	PaymentToken *utils.Account `json:"paymentToken"`
	Paused       bool           `json:"paused"`
}

// Auction is the state of one auction. CurrentLotSize is zero once it is
// over.
type Auction struct {
	ID                   uint64         `json:"id"`
	StakingToken         *utils.Account `json:"stakingToken"`
	Token                *utils.Account `json:"token"`
	PaymentToken         *utils.Account `json:"paymentToken"`
	Active               bool           `json:"active"`
	NumLots              uint64         `json:"numLots"`
	RemainingLots        uint64         `json:"remainingLots"`
	LotPrice             *utils.Amount  `json:"lotPrice"`
	InitialLotSize       *utils.Amount  `json:"initialLotSize"`
	CurrentLotSize       *utils.Amount  `json:"currentLotSize"`
	LotIncreaseIncrement *utils.Amount  `json:"lotIncreaseIncrement"`
	LotIncreasePeriod    uint64         `json:"lotIncreasePeriod"`
	StartTime            uint64         `json:"startTime"`
	EndTime              uint64         `json:"endTime"`
	Balance              *utils.Amount  `json:"balance"`
	TokensSold           *utils.Amount  `json:"tokensSold"`
	FundsRaised          *utils.Amount  `json:"fundsRaised"`
}
