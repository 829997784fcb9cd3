// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"math/big"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
)

// PositionSource is the contract whose positions a distributor rewards:
// the clearing house for LP liquidity, the safety module for staked tokens.
type PositionSource interface {
	Address() increment.Address
	GetNumMarkets() (int, error)
	GetMarket(idx int) (increment.Address, error)
	// GetCurrentPosition returns the live position of user in market.
	GetCurrentPosition(user, market increment.Address) (*big.Int, error)
	Paused() (bool, error)
}

func markets(src PositionSource) ([]increment.Address, error) {
	n, err := src.GetNumMarkets()
	if err != nil {
		return nil, err
	}
	out := make([]increment.Address, 0, n)
	for i := range n {
		m, err := src.GetMarket(i)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
