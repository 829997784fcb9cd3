// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrLog2Input = errors.New("fixedpoint: log2 input below one")
	ErrExp2Input = errors.New("fixedpoint: exp2 input too big")
	ErrExpInput  = errors.New("fixedpoint: exp input too big")
	ErrOverflow  = errors.New("fixedpoint: 256-bit overflow")
)

var (
	unit       = uint256.NewInt(1e18)
	halfUnit   = uint256.NewInt(5e17)
	doubleUnit = uint256.NewInt(2e18)
	unitSquare = new(uint256.Int).Mul(unit, unit)

	// exp2 accepts inputs strictly below 192e18.
	exp2Bound = new(uint256.Int).Mul(uint256.NewInt(192), unit)
	// exp accepts inputs up to 133.084258667509499440e18, the largest x with exp2(x*log2(e)) in range.
	expBound = uint256.MustFromDecimal("133084258667509499440")
	log2E    = uint256.NewInt(1_442695040888963407)
	exp2Init = new(uint256.Int).Lsh(uint256.NewInt(1), 191)
)

// exp2Factors[i] is 2^(2^-(i+1)) in 64.64 binary fixed point, rounded to nearest.
var exp2Factors = func() [64]*uint256.Int {
	hexes := [64]string{
		"0x16a09e667f3bcc909", "0x1306fe0a31b7152df", "0x1172b83c7d517adce", "0x10b5586cf9890f62a",
		"0x1059b0d31585743ae", "0x102c9a3e778060ee7", "0x10163da9fb33356d8", "0x100b1afa5abcbed61",
		"0x10058c86da1c09ea2", "0x1002c605e2e8cec50", "0x100162f3904051fa1", "0x1000b175effdc76ba",
		"0x100058ba01fb9f96d", "0x10002c5cc37da9492", "0x1000162e525ee0547", "0x10000b17255775c04",
		"0x1000058b91b5bc9ae", "0x100002c5c89d5ec6d", "0x10000162e43f4f831", "0x100000b1721bcfc9a",
		"0x10000058b90cf1e6e", "0x1000002c5c863b73f", "0x100000162e430e5a2", "0x1000000b172183551",
		"0x100000058b90c0b49", "0x10000002c5c8601cc", "0x1000000162e42fff0", "0x10000000b17217fbb",
		"0x1000000058b90bfce", "0x100000002c5c85fe3", "0x10000000162e42ff1", "0x100000000b17217f8",
		"0x10000000058b90bfc", "0x1000000002c5c85fe", "0x100000000162e42ff", "0x1000000000b17217f",
		"0x100000000058b90c0", "0x10000000002c5c860", "0x1000000000162e430", "0x10000000000b17218",
		"0x1000000000058b90c", "0x100000000002c5c86", "0x10000000000162e43", "0x100000000000b1721",
		"0x10000000000058b91", "0x1000000000002c5c8", "0x100000000000162e4", "0x1000000000000b172",
		"0x100000000000058b9", "0x10000000000002c5d", "0x1000000000000162e", "0x10000000000000b17",
		"0x1000000000000058c", "0x100000000000002c6", "0x10000000000000163", "0x100000000000000b1",
		"0x10000000000000059", "0x1000000000000002c", "0x10000000000000016", "0x1000000000000000b",
		"0x10000000000000006", "0x10000000000000003", "0x10000000000000001", "0x10000000000000001",
	}
	var out [64]*uint256.Int
	for i, h := range hexes {
		out[i] = uint256.MustFromHex(h)
	}
	return out
}()

func toU256(x *big.Int) (*uint256.Int, error) {
	if x.Sign() < 0 {
		return nil, ErrOverflow
	}
	v, overflow := uint256.FromBig(x)
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

// Log2 returns the binary logarithm of x, which must be at least 1e18.
// The integer part comes from the most significant bit, the fraction from
// iterative squaring, 60 rounds for 18 decimals.
func Log2(x *big.Int) (*big.Int, error) {
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	r, err := log2(ux)
	if err != nil {
		return nil, err
	}
	return r.ToBig(), nil
}

func log2(x *uint256.Int) (*uint256.Int, error) {
	if x.Lt(unit) {
		return nil, ErrLog2Input
	}
	n := uint(new(uint256.Int).Div(x, unit).BitLen() - 1)
	result := new(uint256.Int).Mul(uint256.NewInt(uint64(n)), unit)

	y := new(uint256.Int).Rsh(x, n)
	if y.Eq(unit) {
		return result, nil
	}
	for delta := halfUnit.Clone(); !delta.IsZero(); delta.Rsh(delta, 1) {
		y.Mul(y, y)
		y.Div(y, unit)
		if !y.Lt(doubleUnit) {
			result.Add(result, delta)
			y.Rsh(y, 1)
		}
	}
	return result, nil
}

// Exp2 returns 2^x for x below 192e18.
func Exp2(x *big.Int) (*big.Int, error) {
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	r, err := exp2(ux)
	if err != nil {
		return nil, err
	}
	return r.ToBig(), nil
}

func exp2(x *uint256.Int) (*uint256.Int, error) {
	if !x.Lt(exp2Bound) {
		return nil, ErrExp2Input
	}
	// 192.64 binary fixed point
	x64 := new(uint256.Int).Lsh(x, 64)
	x64.Div(x64, unit)

	frac := new(uint256.Int).And(x64, uint256.NewInt(^uint64(0))).Uint64()
	result := exp2Init.Clone()
	for i := range 64 {
		if frac&(uint64(1)<<(63-i)) != 0 {
			result.Mul(result, exp2Factors[i])
			result.Rsh(result, 64)
		}
	}
	result.Mul(result, unit)
	result.Rsh(result, uint(191-new(uint256.Int).Rsh(x64, 64).Uint64()))
	return result, nil
}

// Exp returns e^x, computed as 2^(x*log2(e)).
func Exp(x *big.Int) (*big.Int, error) {
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	if ux.Gt(expBound) {
		return nil, ErrExpInput
	}
	r, err := exp2(new(uint256.Int).Div(new(uint256.Int).Mul(ux, log2E), unit))
	if err != nil {
		return nil, err
	}
	return r.ToBig(), nil
}

// ExpNeg returns e^-x, saturating to zero for inputs beyond the range of Exp.
func ExpNeg(x *big.Int) (*big.Int, error) {
	if x.Sign() == 0 {
		return new(big.Int).Set(Unit), nil
	}
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	if ux.Gt(expBound) {
		return new(big.Int), nil
	}
	e, err := Exp(x)
	if err != nil {
		return nil, err
	}
	return Div(Unit, e), nil
}

// Pow returns x^y. Inputs below one are raised through their inverse,
// x^y = 1 / (1/x)^y, so that log2 always sees an argument of at least one.
func Pow(x, y *big.Int) (*big.Int, error) {
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	uy, err := toU256(y)
	if err != nil {
		return nil, err
	}

	switch {
	case ux.IsZero():
		if uy.IsZero() {
			return new(big.Int).Set(Unit), nil
		}
		return new(big.Int), nil
	case ux.Eq(unit), uy.IsZero():
		return new(big.Int).Set(Unit), nil
	case uy.Eq(unit):
		return new(big.Int).Set(x), nil
	}

	if ux.Gt(unit) {
		return powAboveOne(ux, uy)
	}
	inv := new(uint256.Int).Div(unitSquare, ux)
	w, err := powAboveOne(inv, uy)
	if err != nil {
		return nil, err
	}
	if w.Sign() == 0 {
		return nil, ErrOverflow
	}
	return new(big.Int).Quo(unitSquare.ToBig(), w), nil
}

func powAboveOne(x, y *uint256.Int) (*big.Int, error) {
	l, err := log2(x)
	if err != nil {
		return nil, err
	}
	prod, overflow := new(uint256.Int).MulDivOverflow(l, y, unit)
	if overflow {
		return nil, ErrOverflow
	}
	r, err := exp2(prod)
	if err != nil {
		return nil, err
	}
	return r.ToBig(), nil
}
