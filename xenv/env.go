// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/state"
)

// BlockContext block context.
type BlockContext struct {
	Number uint64
	Time   uint64
}

// Event is a log emitted by a contract.
type Event struct {
	Address increment.Address `json:"address"`
	Name    string            `json:"name"`
	ID      increment.Bytes32 `json:"id"`
	Fields  map[string]any    `json:"fields"`
}

// Get returns the named field.
func (e *Event) Get(key string) any {
	return e.Fields[key]
}

// EventID returns the identifier of an event name, keccak256 of the name.
func EventID(name string) increment.Bytes32 {
	return increment.BytesToBytes32(crypto.Keccak256([]byte(name)))
}

// Environment is shared by every contract taking part in one transaction.
type Environment struct {
	state    *state.State
	blockCtx *BlockContext
	events   []*Event
}

// New create a new env.
func New(state *state.State, blockCtx *BlockContext) *Environment {
	return &Environment{state: state, blockCtx: blockCtx}
}

func (env *Environment) State() *state.State         { return env.state }
func (env *Environment) BlockContext() *BlockContext { return env.blockCtx }
func (env *Environment) Now() uint64                 { return env.blockCtx.Time }

// SetBlockContext moves the environment to a new block.
func (env *Environment) SetBlockContext(ctx *BlockContext) {
	env.blockCtx = ctx
}

// Log emits an event. kv is a list of alternating field names and values.
func (env *Environment) Log(address increment.Address, name string, kv ...any) {
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic("xenv: event field name must be a string")
		}
		fields[key] = kv[i+1]
	}
	env.events = append(env.events, &Event{
		Address: address,
		Name:    name,
		ID:      EventID(name),
		Fields:  fields,
	})
}

// Events returns events emitted since the last DrainEvents.
func (env *Environment) Events() []*Event {
	return env.events
}

// DrainEvents returns and clears the emitted events.
func (env *Environment) DrainEvents() []*Event {
	events := env.events
	env.events = nil
	return events
}

// Atomic runs fn inside a state checkpoint. If fn fails, every storage
// write and every event emitted by fn is discarded.
func (env *Environment) Atomic(fn func() error) error {
	revision := env.state.NewCheckpoint()
	nEvents := len(env.events)
	if err := fn(); err != nil {
		env.state.RevertTo(revision)
		env.events = env.events[:nEvents]
		return err
	}
	return nil
}
