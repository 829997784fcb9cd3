// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fixedpoint

import (
	"math/big"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wad(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

func TestMulDiv(t *testing.T) {
	assert.Equal(t, wad("6000000000000000000"), Mul(wad("2000000000000000000"), wad("3000000000000000000")))
	// rounds down
	assert.Equal(t, big.NewInt(0), Mul(big.NewInt(1), big.NewInt(1)))
	assert.Equal(t, wad("333333333333333333"), Div(Unit, wad("3000000000000000000")))
	assert.Equal(t, big.NewInt(7), MulDiv(big.NewInt(5), big.NewInt(3), big.NewInt(2)))
	assert.Equal(t, FromInt(12), wad("12000000000000000000"))
	assert.Equal(t, big.NewInt(1), Min(big.NewInt(1), big.NewInt(2)))
}

func TestLog2(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1000000000000000000", "0"},
		{"2000000000000000000", "1000000000000000000"},
		{"8000000000000000000", "3000000000000000000"},
		{"1500000000000000000", "584962500721156166"},
	}
	for _, tt := range tests {
		got, err := Log2(wad(tt.in))
		require.NoError(t, err)
		assert.Equal(t, wad(tt.want), got, tt.in)
	}

	_, err := Log2(wad("999999999999999999"))
	assert.ErrorIs(t, err, ErrLog2Input)
}

func TestExp2(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0", "1000000000000000000"},
		{"1000000000000000000", "2000000000000000000"},
		{"3000000000000000000", "8000000000000000000"},
		{"500000000000000000", "1414213562373095048"},
	}
	for _, tt := range tests {
		got, err := Exp2(wad(tt.in))
		require.NoError(t, err)
		assert.Equal(t, wad(tt.want), got, tt.in)
	}

	_, err := Exp2(wad("192000000000000000000"))
	assert.ErrorIs(t, err, ErrExp2Input)
}

func TestExp(t *testing.T) {
	e, err := Exp(Unit)
	require.NoError(t, err)
	assert.Equal(t, wad("2718281828459045234"), e)

	neg, err := ExpNeg(Unit)
	require.NoError(t, err)
	assert.Equal(t, wad("367879441171442321"), neg)

	neg, err = ExpNeg(wad("500000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, wad("606530659712633424"), neg)

	neg, err = ExpNeg(new(big.Int))
	require.NoError(t, err)
	assert.Equal(t, Unit, neg)

	// saturates instead of failing
	neg, err = ExpNeg(wad("500000000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, 0, neg.Sign())

	_, err = Exp(wad("500000000000000000000"))
	assert.ErrorIs(t, err, ErrExpInput)
}

func TestPow(t *testing.T) {
	tests := []struct {
		x, y, want string
	}{
		{"2000000000000000000", "3000000000000000000", "8000000000000000000"},
		{"500000000000000000", "2000000000000000000", "250000000000000000"},
		{"1189207115000000000", "500000000000000000", "1090507732664010038"},
		{"1189207115000000000", "1000000000000000000", "1189207115000000000"},
		{"1189207115000000000", "4000000000000000000", "1999999999981694831"},
		{"1189207115000000000", "0", "1000000000000000000"},
		{"0", "0", "1000000000000000000"},
		{"0", "5", "0"},
		{"1000000000000000000", "77", "1000000000000000000"},
	}
	for _, tt := range tests {
		got, err := Pow(wad(tt.x), wad(tt.y))
		require.NoError(t, err)
		assert.Equal(t, wad(tt.want), got, "%s^%s", tt.x, tt.y)
	}

	_, err := Pow(big.NewInt(-1), Unit)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestPowMonotonicInExponent(t *testing.T) {
	f := fuzz.New().NilChance(0)
	base := wad("1189207115000000000")
	for range 200 {
		var a, b uint32
		f.Fuzz(&a)
		f.Fuzz(&b)
		if a > b {
			a, b = b, a
		}
		// exponents in years, up to ~4294 years scaled down to keep results in range
		ya := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(1e10))
		yb := new(big.Int).Mul(big.NewInt(int64(b)), big.NewInt(1e10))
		pa, err := Pow(base, ya)
		require.NoError(t, err)
		pb, err := Pow(base, yb)
		require.NoError(t, err)
		assert.True(t, pa.Cmp(pb) <= 0, "pow(%v) > pow(%v)", ya, yb)
		assert.True(t, pa.Cmp(Unit) >= 0)
	}
}

func TestMulDivRoundsDown(t *testing.T) {
	f := fuzz.New().NilChance(0)
	for range 200 {
		var x, y uint64
		f.Fuzz(&x)
		f.Fuzz(&y)
		if y == 0 {
			y = 1
		}
		bx, by := new(big.Int).SetUint64(x), new(big.Int).SetUint64(y)
		q := Div(bx, by)
		// q*y <= x*1e18 < (q+1)*y
		lhs := new(big.Int).Mul(q, by)
		rhs := new(big.Int).Mul(bx, Unit)
		assert.True(t, lhs.Cmp(rhs) <= 0)
		assert.True(t, new(big.Int).Add(lhs, by).Cmp(rhs) > 0)
	}
}
