// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package increment

import "math/big"

const (
	// MaxBasisPoints is the sum every set of market weights must add up to.
	MaxBasisPoints = 10_000
	// SecondsPerDay seconds in one day.
	SecondsPerDay = 86_400
	// SecondsPerYear is the 365 day year used by emission schedules.
	SecondsPerYear = 365 * SecondsPerDay
)

// Wad is 1e18, the unit of 18-decimal fixed-point values.
var Wad = big.NewInt(1e18)

// WadOf returns n * 1e18.
func WadOf(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Wad)
}

// BigOf parses a base-10 integer, panicking on malformed input. Useful for constants.
func BigOf(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid integer literal: " + s)
	}
	return v
}
