// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import "github.com/Increment-Finance/peripheral-contracts-sub004/api/utils"

type MarketWeight struct {
	Market *utils.Account `json:"market"`
	Weight uint16         `json:"weight"`
}

// RewardToken is the emission schedule of a reward token.
type RewardToken struct {
	Token                *utils.Account  `json:"token"`
	Paused               bool            `json:"paused"`
	InitialTimestamp     uint64          `json:"initialTimestamp"`
	InitialInflationRate *utils.Amount   `json:"initialInflationRate"`
	InflationRate        *utils.Amount   `json:"inflationRate"`
	ReductionFactor      *utils.Amount   `json:"reductionFactor"`
	TotalUnclaimed       *utils.Amount   `json:"totalUnclaimed"`
	Markets              []*MarketWeight `json:"markets"`
}

type MarketRewardToken struct {
	Token                      *utils.Account `json:"token"`
	Weight                     uint16         `json:"weight"`
	CumulativeRewardPerLpToken *utils.Amount  `json:"cumulativeRewardPerLpToken"`
}

type Market struct {
	Market                    *utils.Account       `json:"market"`
	TotalLiquidity            *utils.Amount        `json:"totalLiquidity"`
	TimeOfLastCumRewardUpdate uint64               `json:"timeOfLastCumRewardUpdate"`
	RewardTokens              []*MarketRewardToken `json:"rewardTokens"`
}

type TokenAmount struct {
	Token  *utils.Account `json:"token"`
	Amount *utils.Amount  `json:"amount"`
}

// Position is what a user holds in one market and has pending there.
type Position struct {
	Market   *utils.Account `json:"market"`
	Position *utils.Amount  `json:"position"`
	Pending  []*TokenAmount `json:"pending"`
}

type User struct {
	User      *utils.Account `json:"user"`
	Positions []*Position    `json:"positions"`
	Accrued   []*TokenAmount `json:"accrued"`
}
