// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package scenario replays a YAML list of user and governance actions
// against a deployed protocol, one block per step.
package scenario

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/protocol"
	"github.com/Increment-Finance/peripheral-contracts-sub004/runtime"
)

var logger = log.WithContext("pkg", "scenario")

// Step is one action. At pins the block time, Advance moves it forward
// from the previous step; with neither the step runs at the current time.
type Step struct {
	At           *uint64           `yaml:"at"`
	Advance      uint64            `yaml:"advance"`
	Action       string            `yaml:"action"`
	Caller       string            `yaml:"caller"`
	Args         map[string]string `yaml:"args"`
	ExpectRevert string            `yaml:"expect_revert"`
}

type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario")
	}
	return Parse(data)
}

func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "decode scenario")
	}
	for i, step := range sc.Steps {
		if _, ok := actions[step.Action]; !ok {
			return nil, errors.Errorf("step %d: unknown action %q", i, step.Action)
		}
		if step.At != nil && step.Advance != 0 {
			return nil, errors.Errorf("step %d: at and advance are exclusive", i)
		}
	}
	return &sc, nil
}

// Result is the outcome of one step.
type Result struct {
	Index   int              `json:"index"`
	Action  string           `json:"action"`
	Caller  string           `json:"caller"`
	Receipt *runtime.Receipt `json:"receipt"`
	// AuctionID is set by slash_and_auction.
	AuctionID *uint64 `json:"auctionId,omitempty"`
}

// Runner executes scenarios on a runtime.
type Runner struct {
	rt *runtime.Runtime
	p  *protocol.Protocol

	lastAuction *uint64
}

func NewRunner(rt *runtime.Runtime, p *protocol.Protocol) *Runner {
	return &Runner{rt: rt, p: p}
}

// Run executes every step in order. It stops at the first step whose
// outcome differs from its expect_revert and returns the results so far.
func (r *Runner) Run(ctx context.Context, sc *Scenario) ([]*Result, error) {
	head, err := r.rt.Head()
	if err != nil {
		return nil, err
	}
	now := head.Time
	results := make([]*Result, 0, len(sc.Steps))
	for i := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		step := &sc.Steps[i]
		switch {
		case step.At != nil:
			now = *step.At
		default:
			now += step.Advance
		}
		res, err := r.runStep(i, step, now)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, errors.WithMessagef(err, "step %d (%s)", i, step.Action)
		}
	}
	logger.Info("scenario finished", "name", sc.Name, "steps", len(results))
	return results, nil
}

func (r *Runner) runStep(i int, step *Step, now uint64) (*Result, error) {
	caller, err := r.p.Resolve(step.Caller)
	if err != nil {
		return nil, errors.WithMessage(err, "caller")
	}
	a := &args{p: r.p, m: step.Args, lastAuction: r.lastAuction}
	res := &Result{Index: i, Action: step.Action, Caller: step.Caller}
	tx := actions[step.Action](caller, a, res)
	if a.err != nil {
		return nil, a.err
	}

	receipt, err := r.rt.Execute(now, tx)
	if err != nil {
		return nil, err
	}
	res.Receipt = receipt
	if res.AuctionID != nil {
		r.lastAuction = res.AuctionID
	}
	logger.Debug("step executed", "index", i, "action", step.Action, "time", now, "reverted", receipt.Reverted)

	switch {
	case step.ExpectRevert == "" && receipt.Reverted:
		return res, errors.Errorf("unexpected revert %s", receipt.Reason)
	case step.ExpectRevert != "" && !receipt.Reverted:
		return res, errors.Errorf("expected revert %s, call succeeded", step.ExpectRevert)
	case step.ExpectRevert != "" && receipt.Revert != step.ExpectRevert:
		return res, errors.Errorf("expected revert %s, got %s", step.ExpectRevert, receipt.Revert)
	}
	return res, nil
}
