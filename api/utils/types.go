// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/protocol"
	"github.com/Increment-Finance/peripheral-contracts-sub004/runtime"
)

// Amount is an integer quantity with its decimal rendering.
type Amount struct {
	Wei   string `json:"wei"`
	Value string `json:"value"`
}

func NewAmount(v *big.Int, decimals uint8) *Amount {
	if v == nil {
		v = new(big.Int)
	}
	return &Amount{Wei: v.String(), Value: protocol.FormatUnits(v, decimals)}
}

// WAD renders an 18 decimals fixed point quantity such as a rate.
func WAD(v *big.Int) *Amount { return NewAmount(v, 18) }

// Account is an address with its configured name, if any.
type Account struct {
	Address increment.Address `json:"address"`
	Name    string            `json:"name"`
}

func NewAccount(p *protocol.Protocol, addr increment.Address) *Account {
	return &Account{Address: addr, Name: p.Label(addr)}
}

// PathAddress resolves the named path variable of req.
func PathAddress(p *protocol.Protocol, req *http.Request, key string) (increment.Address, error) {
	ref := mux.Vars(req)[key]
	addr, err := p.Resolve(ref)
	if err != nil {
		return increment.Address{}, BadRequest(errors.WithMessage(err, key))
	}
	return addr, nil
}

// View runs fn read only at the head, or at the time given by the "at"
// query parameter.
func View(rt *runtime.Runtime, req *http.Request, fn func() error) error {
	s := req.URL.Query().Get("at")
	if s == "" {
		return rt.Call(fn)
	}
	at, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return BadRequest(errors.WithMessage(err, "at"))
	}
	err = rt.CallAt(at, fn)
	if errors.Is(err, runtime.ErrTimeTravel) {
		return BadRequest(err)
	}
	return err
}
