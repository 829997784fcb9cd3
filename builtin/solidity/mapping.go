// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
)

type Key interface {
	Bytes() []byte
}

// Mapping is a key/value storage abstraction for built-in contracts, similar to the mapping in Solidity.
// Values are rlp encoded; reading an unset key yields the zero value, or a freshly allocated
// zero value when V is a pointer type.
type Mapping[K Key, V any] struct {
	context *Context
	basePos increment.Bytes32
}

func NewMapping[K Key, V any](context *Context, pos increment.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: pos}
}

func (m *Mapping[K, V]) position(key K) increment.Bytes32 {
	return increment.Blake2b(key.Bytes(), m.basePos.Bytes())
}

func (m *Mapping[K, V]) Get(key K) (V, error) {
	return decodeSlot[V](m.context, m.position(key))
}

func (m *Mapping[K, V]) Set(key K, value V) error {
	return encodeSlot(m.context, m.position(key), value)
}

// Delete clears the slot of key.
func (m *Mapping[K, V]) Delete(key K) {
	m.context.State().SetRawStorage(m.context.address, m.position(key), nil)
}

func decodeSlot[V any](ctx *Context, pos increment.Bytes32) (value V, err error) {
	err = ctx.State().DecodeStorage(ctx.address, pos, func(raw []byte) error {
		if t := reflect.TypeOf(value); t != nil && t.Kind() == reflect.Ptr {
			value = reflect.New(t.Elem()).Interface().(V)
		}
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

func encodeSlot[V any](ctx *Context, pos increment.Bytes32, value V) error {
	return ctx.State().EncodeStorage(ctx.address, pos, func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}
