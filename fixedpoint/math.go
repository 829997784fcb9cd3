// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package fixedpoint implements 18-decimal (WAD) unsigned fixed-point math.
//
// Values are *big.Int holding x * 1e18. Mul and Div round toward zero.
// The transcendental functions run on 256-bit words so their results match
// the on-chain PRBMath routines bit for bit.
package fixedpoint

import "math/big"

// Unit is 1.0 in WAD.
var Unit = big.NewInt(1e18)

// MulDiv returns floor(x*y/d) with a full precision intermediate.
// It panics if d is zero.
func MulDiv(x, y, d *big.Int) *big.Int {
	z := new(big.Int).Mul(x, y)
	return z.Quo(z, d)
}

// Mul returns x*y in WAD, rounded down.
func Mul(x, y *big.Int) *big.Int {
	return MulDiv(x, y, Unit)
}

// Div returns x/y in WAD, rounded down. It panics if y is zero.
func Div(x, y *big.Int) *big.Int {
	return MulDiv(x, Unit, y)
}

// FromInt converts an integer to WAD.
func FromInt(n uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(n), Unit)
}

// Min returns the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
