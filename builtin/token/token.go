// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token

import (
	"math/big"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

const (
	ErrInsufficientBalance   reverts.Kind = "ERC20_InsufficientBalance"
	ErrInsufficientAllowance reverts.Kind = "ERC20_InsufficientAllowance"
	ErrInvalidReceiver       reverts.Kind = "ERC20_InvalidReceiver"
)

var (
	slotMeta        = increment.NameToSlot("meta")
	slotTotalSupply = increment.NameToSlot("total-supply")
	slotBalances    = increment.NameToSlot("balances")
	slotAllowances  = increment.NameToSlot("allowances")
)

// Meta describes a token.
type Meta struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// Token is an ERC20 ledger kept in contract storage.
type Token struct {
	ctx         *solidity.Context
	meta        *solidity.Raw[*Meta]
	totalSupply *solidity.Uint256
	balances    *solidity.Mapping[increment.Address, *big.Int]
	allowances  *solidity.Mapping[solidity.Pair, *big.Int]
}

func New(addr increment.Address, env *xenv.Environment) *Token {
	ctx := solidity.NewContext(addr, env)
	return &Token{
		ctx:         ctx,
		meta:        solidity.NewRaw[*Meta](ctx, slotMeta),
		totalSupply: solidity.NewUint256(ctx, slotTotalSupply),
		balances:    solidity.NewMapping[increment.Address, *big.Int](ctx, slotBalances),
		allowances:  solidity.NewMapping[solidity.Pair, *big.Int](ctx, slotAllowances),
	}
}

func (t *Token) Address() increment.Address { return t.ctx.Address() }

// Initialize stores the token metadata.
func (t *Token) Initialize(meta *Meta) error {
	return t.meta.Set(meta)
}

func (t *Token) Meta() (*Meta, error) { return t.meta.Get() }

func (t *Token) TotalSupply() (*big.Int, error) { return t.totalSupply.Get() }

func (t *Token) BalanceOf(account increment.Address) (*big.Int, error) {
	return t.balances.Get(account)
}

func (t *Token) Allowance(owner, spender increment.Address) (*big.Int, error) {
	return t.allowances.Get(solidity.Pair{owner, spender})
}

// Transfer moves amount from caller to to.
func (t *Token) Transfer(caller, to increment.Address, amount *big.Int) error {
	return t.ctx.Atomic(func() error {
		return t.Move(caller, to, amount)
	})
}

// Approve sets the allowance of spender over caller's tokens.
func (t *Token) Approve(caller, spender increment.Address, amount *big.Int) error {
	return t.ctx.Atomic(func() error {
		if err := t.allowances.Set(solidity.Pair{caller, spender}, new(big.Int).Set(amount)); err != nil {
			return err
		}
		t.ctx.Log("Approval", "owner", caller, "spender", spender, "value", amount)
		return nil
	})
}

// TransferFrom moves amount from from to to, spending caller's allowance.
func (t *Token) TransferFrom(caller, from, to increment.Address, amount *big.Int) error {
	return t.ctx.Atomic(func() error {
		if err := t.SpendAllowance(from, caller, amount); err != nil {
			return err
		}
		return t.Move(from, to, amount)
	})
}

// SpendAllowance decreases the allowance of spender over owner's tokens.
func (t *Token) SpendAllowance(owner, spender increment.Address, amount *big.Int) error {
	key := solidity.Pair{owner, spender}
	allowance, err := t.allowances.Get(key)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return reverts.New(ErrInsufficientAllowance, spender, allowance, amount)
	}
	return t.allowances.Set(key, allowance.Sub(allowance, amount))
}

// Move transfers without allowance checks. Contracts owning a ledger use it
// after applying their own rules.
func (t *Token) Move(from, to increment.Address, amount *big.Int) error {
	if to.IsZero() {
		return reverts.New(ErrInvalidReceiver, to)
	}
	if err := t.sub(from, amount); err != nil {
		return err
	}
	if err := t.add(to, amount); err != nil {
		return err
	}
	t.ctx.Log("Transfer", "from", from, "to", to, "value", amount)
	return nil
}

// Mint creates amount tokens for to.
func (t *Token) Mint(to increment.Address, amount *big.Int) error {
	if to.IsZero() {
		return reverts.New(ErrInvalidReceiver, to)
	}
	if err := t.totalSupply.Add(amount); err != nil {
		return err
	}
	if err := t.add(to, amount); err != nil {
		return err
	}
	t.ctx.Log("Transfer", "from", increment.Address{}, "to", to, "value", amount)
	return nil
}

// Burn destroys amount tokens of from.
func (t *Token) Burn(from increment.Address, amount *big.Int) error {
	if err := t.sub(from, amount); err != nil {
		return err
	}
	if err := t.totalSupply.Sub(amount); err != nil {
		return err
	}
	t.ctx.Log("Transfer", "from", from, "to", increment.Address{}, "value", amount)
	return nil
}

func (t *Token) add(account increment.Address, amount *big.Int) error {
	bal, err := t.balances.Get(account)
	if err != nil {
		return err
	}
	return t.balances.Set(account, bal.Add(bal, amount))
}

func (t *Token) sub(account increment.Address, amount *big.Int) error {
	bal, err := t.balances.Get(account)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return reverts.New(ErrInsufficientBalance, account, bal, amount)
	}
	return t.balances.Set(account, bal.Sub(bal, amount))
}
