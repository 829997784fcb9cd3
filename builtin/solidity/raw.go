// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"math/big"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
)

// Raw is a single storage slot holding an rlp encoded value of type T.
type Raw[T any] struct {
	context *Context
	pos     increment.Bytes32
}

func NewRaw[T any](context *Context, pos increment.Bytes32) *Raw[T] {
	return &Raw[T]{context: context, pos: pos}
}

func (r *Raw[T]) Get() (T, error) {
	return decodeSlot[T](r.context, r.pos)
}

func (r *Raw[T]) Set(value T) error {
	return encodeSlot(r.context, r.pos, value)
}

// Uint256 is a slot holding a non-negative integer.
type Uint256 struct {
	raw *Raw[*big.Int]
}

func NewUint256(context *Context, pos increment.Bytes32) *Uint256 {
	return &Uint256{raw: NewRaw[*big.Int](context, pos)}
}

// Get never returns a nil value.
func (u *Uint256) Get() (*big.Int, error) {
	return u.raw.Get()
}

func (u *Uint256) Set(value *big.Int) error {
	return u.raw.Set(value)
}

func (u *Uint256) Add(value *big.Int) error {
	v, err := u.Get()
	if err != nil {
		return err
	}
	return u.Set(v.Add(v, value))
}

// Sub assumes the result does not underflow; callers check first.
func (u *Uint256) Sub(value *big.Int) error {
	v, err := u.Get()
	if err != nil {
		return err
	}
	return u.Set(v.Sub(v, value))
}

// Bool is a slot holding a flag.
type Bool struct {
	raw *Raw[bool]
}

func NewBool(context *Context, pos increment.Bytes32) *Bool {
	return &Bool{raw: NewRaw[bool](context, pos)}
}

func (b *Bool) Get() (bool, error) { return b.raw.Get() }
func (b *Bool) Set(v bool) error   { return b.raw.Set(v) }
