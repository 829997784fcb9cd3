// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package testchain builds a deployed protocol over an in-memory store for
// tests of the packages layered on top of it.
package testchain

import (
	_ "embed"

	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/lvldb"
	"github.com/Increment-Finance/peripheral-contracts-sub004/protocol"
	"github.com/Increment-Finance/peripheral-contracts-sub004/runtime"
	"github.com/Increment-Finance/peripheral-contracts-sub004/state"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

//go:embed increment.yaml
var defaultConfig []byte

// Chain is a runtime with the protocol deployed at the config launch time.
type Chain struct {
	rt *runtime.Runtime
	p  *protocol.Protocol
}

// DefaultConfig is the deployment NewDefault uses.
func DefaultConfig() (*protocol.Config, error) {
	return protocol.ParseConfig(defaultConfig)
}

// NewDefault deploys DefaultConfig.
func NewDefault() (*Chain, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

func New(cfg *protocol.Config) (*Chain, error) {
	env := xenv.New(state.New(lvldb.MustNewMem()), &xenv.BlockContext{})
	rt, err := runtime.New(env)
	if err != nil {
		return nil, err
	}
	p, err := protocol.Open(env, cfg)
	if err != nil {
		return nil, err
	}
	c := &Chain{rt: rt, p: p}
	if err := c.Execute(cfg.LaunchTime, p.Deploy); err != nil {
		return nil, errors.WithMessage(err, "deploy")
	}
	return c, nil
}

func (c *Chain) Runtime() *runtime.Runtime    { return c.rt }
func (c *Chain) Protocol() *protocol.Protocol { return c.p }

// Execute runs fn in a block at time at and fails on a revert.
func (c *Chain) Execute(at uint64, fn func() error) error {
	receipt, err := c.rt.Execute(at, fn)
	if err != nil {
		return err
	}
	if receipt.Reverted {
		return errors.Errorf("reverted: %s", receipt.Reason)
	}
	return nil
}

// Address resolves a configured name and panics on an unknown one.
func (c *Chain) Address(ref string) increment.Address {
	addr, err := c.p.Resolve(ref)
	if err != nil {
		panic(err)
	}
	return addr
}
