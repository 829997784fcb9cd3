// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package runtime executes contract calls one block at a time over a
// persistent state. A failed call is reverted and reported in its receipt.
package runtime

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/metrics"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

var (
	logger = log.WithContext("pkg", "runtime")

	metricTxs      = metrics.LazyLoadCounterVec("runtime_transactions_total", []string{"status"})
	metricExecTime = metrics.LazyLoadHistogram("runtime_execution_micros", metrics.BucketCallMicros)
)

var (
	headAddress = increment.NamedAddress("increment/runtime")
	slotHead    = increment.NameToSlot("head")
)

// ErrTimeTravel is returned when a block is older than the head.
var ErrTimeTravel = errors.New("block time before head")

// Head is the last executed block.
type Head struct {
	Number uint64 `json:"number"`
	Time   uint64 `json:"time"`
}

// Receipt describes one executed call.
type Receipt struct {
	Number   uint64        `json:"number"`
	Time     uint64        `json:"time"`
	Reverted bool          `json:"reverted"`
	Revert   string        `json:"revert,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Events   []*xenv.Event `json:"events"`
	Written  int           `json:"written"`
}

// Runtime serializes calls over one environment. Every call runs in its own
// block and is committed to the kv store before the next one starts.
type Runtime struct {
	mu    sync.Mutex
	env   *xenv.Environment
	head  *solidity.Raw[Head]
	feed  event.Feed
	scope event.SubscriptionScope
}

// New binds a runtime to env. The head is read back from state, so a
// runtime over a reopened store resumes where the last one stopped.
func New(env *xenv.Environment) (*Runtime, error) {
	rt := &Runtime{
		env:  env,
		head: solidity.NewRaw[Head](solidity.NewContext(headAddress, env), slotHead),
	}
	head, err := rt.head.Get()
	if err != nil {
		return nil, err
	}
	env.SetBlockContext(&xenv.BlockContext{Number: head.Number, Time: head.Time})
	return rt, nil
}

func (rt *Runtime) Env() *xenv.Environment { return rt.env }

func (rt *Runtime) Head() (Head, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.head.Get()
}

// SubscribeReceipts delivers the receipt of every executed block to ch.
// Receipts of concurrent callers may arrive out of order; Number orders them.
// Execute waits until every subscriber has taken its receipt, so ch must be
// drained without blocking on anything slow.
func (rt *Runtime) SubscribeReceipts(ch chan *Receipt) event.Subscription {
	return rt.scope.Track(rt.feed.Subscribe(ch))
}

// Close ends every receipt subscription.
func (rt *Runtime) Close() {
	rt.scope.Close()
}

// Execute runs fn in a new block at time at. A revert discards every write
// and event of fn and is reported by the receipt; the block itself is still
// recorded. Any other failure is returned as an error and nothing is kept.
func (rt *Runtime) Execute(at uint64, fn func() error) (*Receipt, error) {
	receipt, err := rt.execute(at, fn)
	if err != nil {
		return nil, err
	}
	rt.feed.Send(receipt)
	return receipt, nil
}

func (rt *Runtime) execute(at uint64, fn func() error) (*Receipt, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	head, err := rt.head.Get()
	if err != nil {
		return nil, err
	}
	if at < head.Time {
		return nil, errors.Wrapf(ErrTimeTravel, "block time %d, head %d", at, head.Time)
	}
	next := Head{Number: head.Number + 1, Time: at}

	st := rt.env.State()
	rt.env.DrainEvents()
	rt.env.SetBlockContext(&xenv.BlockContext{Number: next.Number, Time: next.Time})
	revision := st.NewCheckpoint()

	started := time.Now()
	execErr := fn()
	metricExecTime().Observe(time.Since(started).Microseconds())

	receipt := &Receipt{Number: next.Number, Time: next.Time}
	if execErr != nil {
		st.RevertTo(revision)
		rt.env.DrainEvents()
		kind, ok := reverts.KindOf(execErr)
		if !ok {
			rt.env.SetBlockContext(&xenv.BlockContext{Number: head.Number, Time: head.Time})
			metricTxs().AddWithLabel(1, map[string]string{"status": "failed"})
			return nil, execErr
		}
		receipt.Reverted = true
		receipt.Revert = string(kind)
		receipt.Reason = execErr.Error()
	} else {
		receipt.Events = rt.env.DrainEvents()
	}

	if err := rt.head.Set(next); err != nil {
		return nil, err
	}
	if receipt.Written, err = st.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	status := "executed"
	if receipt.Reverted {
		status = "reverted"
		logger.Debug("call reverted", "number", next.Number, "revert", receipt.Revert)
	} else {
		logger.Debug("call executed", "number", next.Number, "events", len(receipt.Events), "written", receipt.Written)
	}
	metricTxs().AddWithLabel(1, map[string]string{"status": status})
	return receipt, nil
}

// Call runs fn against the head state and throws away whatever it writes.
func (rt *Runtime) Call(fn func() error) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.call(fn)
}

// CallAt is Call with the block time moved forward to at, so views show
// what would have accrued by then.
func (rt *Runtime) CallAt(at uint64, fn func() error) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	head, err := rt.head.Get()
	if err != nil {
		return err
	}
	if at < head.Time {
		return errors.Wrapf(ErrTimeTravel, "view time %d, head %d", at, head.Time)
	}
	prev := rt.env.BlockContext()
	rt.env.SetBlockContext(&xenv.BlockContext{Number: head.Number, Time: at})
	defer rt.env.SetBlockContext(prev)
	return rt.call(fn)
}

func (rt *Runtime) call(fn func() error) error {
	st := rt.env.State()
	revision := st.NewCheckpoint()
	defer func() {
		st.RevertTo(revision)
		rt.env.DrainEvents()
	}()
	return fn()
}
