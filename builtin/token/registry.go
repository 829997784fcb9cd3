// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token

import (
	"bytes"
	"sort"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

const ErrUnknownToken reverts.Kind = "ERC20_UnknownToken"

// Registry resolves deployed ledgers by address.
type Registry struct {
	env    *xenv.Environment
	tokens map[increment.Address]*Token
}

func NewRegistry(env *xenv.Environment) *Registry {
	return &Registry{env: env, tokens: make(map[increment.Address]*Token)}
}

// Deploy returns the ledger at addr, binding a new one on first use.
func (r *Registry) Deploy(addr increment.Address) *Token {
	if t, ok := r.tokens[addr]; ok {
		return t
	}
	t := New(addr, r.env)
	r.tokens[addr] = t
	return t
}

func (r *Registry) Get(addr increment.Address) (*Token, error) {
	t, ok := r.tokens[addr]
	if !ok {
		return nil, reverts.New(ErrUnknownToken, addr)
	}
	return t, nil
}

// Addresses lists deployed ledgers in byte order.
func (r *Registry) Addresses() []increment.Address {
	out := make([]increment.Address, 0, len(r.tokens))
	for addr := range r.tokens {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
