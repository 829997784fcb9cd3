// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import "github.com/Increment-Finance/peripheral-contracts-sub004/api/utils"

// StakingToken is a staked token registered in the safety module.
type StakingToken struct {
	Token             *utils.Account `json:"token"`
	Name              string         `json:"name"`
	Symbol            string         `json:"symbol"`
	Underlying        *utils.Account `json:"underlying"`
	ExchangeRate      *utils.Amount  `json:"exchangeRate"`
	TotalSupply       *utils.Amount  `json:"totalSupply"`
	UnderlyingBalance *utils.Amount  `json:"underlyingBalance"`
	AuctionableTotal  *utils.Amount  `json:"auctionableTotal"`
	MaxStakeAmount    *utils.Amount  `json:"maxStakeAmount"`
	CooldownSeconds   uint64         `json:"cooldownSeconds"`
	UnstakeWindow     uint64         `json:"unstakeWindow"`
	PostSlashing      bool           `json:"postSlashing"`
	Paused            bool           `json:"paused"`
}

type Staker struct {
	User                *utils.Account `json:"user"`
	Token               *utils.Account `json:"token"`
	Shares              *utils.Amount  `json:"shares"`
	Redeemable          *utils.Amount  `json:"redeemable"`
	CooldownStartTime   uint64         `json:"cooldownStartTime"`
	RewardMultiplier    *utils.Amount  `json:"rewardMultiplier"`
	MultiplierStartTime uint64         `json:"multiplierStartTime"`
}
