// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/state"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

// ErrReentrantCall is returned when a guarded entry point is re-entered.
const ErrReentrantCall reverts.Kind = "ReentrancyGuard_ReentrantCall"

var reentrancySlot = increment.NameToSlot("reentrancy-guard")

// Context binds a contract address to the shared execution environment.
type Context struct {
	address increment.Address
	env     *xenv.Environment
}

func NewContext(address increment.Address, env *xenv.Environment) *Context {
	return &Context{address: address, env: env}
}

func (c *Context) Address() increment.Address { return c.address }
func (c *Context) Env() *xenv.Environment     { return c.env }
func (c *Context) State() *state.State        { return c.env.State() }
func (c *Context) Now() uint64                { return c.env.Now() }

// Log emits an event from the contract.
func (c *Context) Log(name string, kv ...any) {
	c.env.Log(c.address, name, kv...)
}

// Atomic runs fn so it either applies fully or not at all.
func (c *Context) Atomic(fn func() error) error {
	return c.env.Atomic(fn)
}

// NonReentrant runs fn atomically while holding the contract's reentrancy lock.
func (c *Context) NonReentrant(fn func() error) error {
	lock := NewBool(c, reentrancySlot)
	return c.env.Atomic(func() error {
		locked, err := lock.Get()
		if err != nil {
			return err
		}
		if locked {
			return reverts.New(ErrReentrantCall)
		}
		if err := lock.Set(true); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
		return lock.Set(false)
	})
}
