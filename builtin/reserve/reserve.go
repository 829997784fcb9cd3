// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reserve implements the ecosystem reserve, the vault reward tokens
// are paid from. Only funds admins move funds.
package reserve

import (
	"math/big"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

type Reserve struct {
	ctx    *solidity.Context
	access *access.Registry
	tokens *token.Registry
}

func New(addr increment.Address, env *xenv.Environment, acl *access.Registry, tokens *token.Registry) *Reserve {
	return &Reserve{
		ctx:    solidity.NewContext(addr, env),
		access: acl,
		tokens: tokens,
	}
}

func (r *Reserve) Address() increment.Address { return r.ctx.Address() }

// Approve lets recipient pull amount of tok from the reserve.
func (r *Reserve) Approve(caller, tok, recipient increment.Address, amount *big.Int) error {
	return r.ctx.Atomic(func() error {
		if err := r.access.CheckRole(access.FundsAdmin, caller); err != nil {
			return err
		}
		t, err := r.tokens.Get(tok)
		if err != nil {
			return err
		}
		return t.Approve(r.Address(), recipient, amount)
	})
}

// Transfer sends amount of tok from the reserve to recipient.
func (r *Reserve) Transfer(caller, tok, recipient increment.Address, amount *big.Int) error {
	return r.ctx.Atomic(func() error {
		if err := r.access.CheckRole(access.FundsAdmin, caller); err != nil {
			return err
		}
		t, err := r.tokens.Get(tok)
		if err != nil {
			return err
		}
		return t.Transfer(r.Address(), recipient, amount)
	})
}

func (r *Reserve) BalanceOf(tok increment.Address) (*big.Int, error) {
	t, err := r.tokens.Get(tok)
	if err != nil {
		return nil, err
	}
	return t.BalanceOf(r.Address())
}
