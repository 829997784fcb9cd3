// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package auction sells slashed tokens in fixed price lots whose size grows
// over time until the lots sell out or the auction times out.
package auction

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/access"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/token"
	"github.com/Increment-Finance/peripheral-contracts-sub004/fixedpoint"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/metrics"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

const (
	ErrCallerIsNotSafetyModule             reverts.Kind = "AuctionModule_CallerIsNotSafetyModule"
	ErrInvalidZeroArgument                 reverts.Kind = "AuctionModule_InvalidZeroArgument"
	ErrInvalidZeroAddress                  reverts.Kind = "AuctionModule_InvalidZeroAddress"
	ErrInsufficientSlashedTokensForAuction reverts.Kind = "AuctionModule_InsufficientSlashedTokensForAuction"
	ErrInvalidAuctionID                    reverts.Kind = "AuctionModule_InvalidAuctionId"
	ErrAuctionNotActive                    reverts.Kind = "AuctionModule_AuctionNotActive"
	ErrAuctionExpired                      reverts.Kind = "AuctionModule_AuctionExpired"
	ErrAuctionStillActive                  reverts.Kind = "AuctionModule_AuctionStillActive"
	ErrNotEnoughLotsRemaining              reverts.Kind = "AuctionModule_NotEnoughLotsRemaining"
	ErrPaused                              reverts.Kind = "AuctionModule_Paused"
)

var (
	logger = log.WithContext("pkg", "auction")

	metricLotsSold = metrics.LazyLoadCounter("auction_lots_sold_total")
	metricEnded    = metrics.LazyLoadCounterVec("auction_ended_total", []string{"reason"})
)

var (
	slotAuctions     = increment.NameToSlot("auctions")
	slotNextID       = increment.NameToSlot("next-auction-id")
	slotPaymentToken = increment.NameToSlot("payment-token")
	slotSafetyModule = increment.NameToSlot("safety-module")
	slotCommitted    = increment.NameToSlot("committed-balance")
	slotPaused       = increment.NameToSlot("paused")
)

// Auction is the persisted state of one lot auction.
type Auction struct {
	Token                increment.Address
	PaymentToken         increment.Address
	NumLots              uint64
	RemainingLots        uint64
	LotPrice             *big.Int
	InitialLotSize       *big.Int
	LotIncreaseIncrement *big.Int
	LotIncreasePeriod    uint64
	StartTime            uint64
	EndTime              uint64
	Active               bool
	// Balance is what is left of the tokens set aside for this auction.
	Balance     *big.Int
	TokensSold  *big.Int
	FundsRaised *big.Int
}

// Params configures a new auction.
type Params struct {
	Token                increment.Address
	NumLots              uint64
	LotPrice             *big.Int
	InitialLotSize       *big.Int
	LotIncreaseIncrement *big.Int
	LotIncreasePeriod    uint64
	TimeLimit            uint64
}

// Owner is notified when an auction ends without being terminated by it.
type Owner interface {
	Address() increment.Address
	AuctionEnded(caller increment.Address, id uint64, remainingBalance *big.Int) error
}

type Module struct {
	ctx          *solidity.Context
	access       *access.Registry
	tokens       *token.Registry
	auctions     *solidity.Mapping[solidity.Uint64Key, *Auction]
	nextID       *solidity.Raw[uint64]
	paymentToken *solidity.Raw[increment.Address]
	safetyModule *solidity.Raw[increment.Address]
	committed    *solidity.Mapping[increment.Address, *big.Int]
	paused       *solidity.Bool
	// owners are the safety modules the stored safety module address may
	// resolve to.
	owners map[increment.Address]Owner
}

func New(addr increment.Address, env *xenv.Environment, acl *access.Registry, tokens *token.Registry) *Module {
	ctx := solidity.NewContext(addr, env)
	return &Module{
		ctx:          ctx,
		access:       acl,
		tokens:       tokens,
		auctions:     solidity.NewMapping[solidity.Uint64Key, *Auction](ctx, slotAuctions),
		nextID:       solidity.NewRaw[uint64](ctx, slotNextID),
		paymentToken: solidity.NewRaw[increment.Address](ctx, slotPaymentToken),
		safetyModule: solidity.NewRaw[increment.Address](ctx, slotSafetyModule),
		committed:    solidity.NewMapping[increment.Address, *big.Int](ctx, slotCommitted),
		paused:       solidity.NewBool(ctx, slotPaused),
		owners:       make(map[increment.Address]Owner),
	}
}

func (m *Module) Address() increment.Address { return m.ctx.Address() }

// Initialize records the owning safety module and the payment token.
func (m *Module) Initialize(safetyModule, paymentToken increment.Address) error {
	return m.ctx.Atomic(func() error {
		if safetyModule.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		if paymentToken.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 1)
		}
		if err := m.safetyModule.Set(safetyModule); err != nil {
			return err
		}
		return m.paymentToken.Set(paymentToken)
	})
}

// BindOwner makes owner reachable for the end of auction callback while
// its address is the recorded safety module. Binding writes nothing.
func (m *Module) BindOwner(owner Owner) {
	m.owners[owner.Address()] = owner
}

// owner resolves the recorded safety module.
func (m *Module) owner() (Owner, error) {
	addr, err := m.safetyModule.Get()
	if err != nil {
		return nil, err
	}
	owner, ok := m.owners[addr]
	if !ok {
		return nil, errors.Errorf("safety module %v is not bound to the auction module", addr)
	}
	return owner, nil
}

func (m *Module) onlySafetyModule(caller increment.Address) error {
	sm, err := m.safetyModule.Get()
	if err != nil {
		return err
	}
	if caller != sm {
		return reverts.New(ErrCallerIsNotSafetyModule, caller)
	}
	return nil
}

func (m *Module) get(id uint64) (*Auction, error) {
	next, err := m.nextID.Get()
	if err != nil {
		return nil, err
	}
	if id >= next {
		return nil, reverts.New(ErrInvalidAuctionID, id)
	}
	return m.auctions.Get(solidity.Uint64Key(id))
}

func (m *Module) getActive(id uint64) (*Auction, error) {
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, reverts.New(ErrAuctionNotActive, id)
	}
	return a, nil
}

// StartAuction opens an auction over tokens the safety module moved here
// beforehand. The uncommitted balance must cover every lot at its initial size.
func (m *Module) StartAuction(caller increment.Address, p *Params) (uint64, error) {
	var id uint64
	err := m.ctx.Atomic(func() error {
		if err := m.onlySafetyModule(caller); err != nil {
			return err
		}
		if p.Token.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		for i, zero := range []bool{
			p.NumLots == 0,
			p.LotPrice == nil || p.LotPrice.Sign() == 0,
			p.InitialLotSize == nil || p.InitialLotSize.Sign() == 0,
			p.LotIncreaseIncrement == nil || p.LotIncreaseIncrement.Sign() == 0,
			p.LotIncreasePeriod == 0,
			p.TimeLimit == 0,
		} {
			if zero {
				return reverts.New(ErrInvalidZeroArgument, i+1)
			}
		}
		tok, err := m.tokens.Get(p.Token)
		if err != nil {
			return err
		}
		balance, err := tok.BalanceOf(m.Address())
		if err != nil {
			return err
		}
		committed, err := m.committed.Get(p.Token)
		if err != nil {
			return err
		}
		available := new(big.Int).Sub(balance, committed)
		required := new(big.Int).Mul(new(big.Int).SetUint64(p.NumLots), p.InitialLotSize)
		if available.Cmp(required) < 0 {
			return reverts.New(ErrInsufficientSlashedTokensForAuction, p.Token, required, available)
		}
		payment, err := m.paymentToken.Get()
		if err != nil {
			return err
		}

		if id, err = m.nextID.Get(); err != nil {
			return err
		}
		now := m.ctx.Now()
		a := &Auction{
			Token:                p.Token,
			PaymentToken:         payment,
			NumLots:              p.NumLots,
			RemainingLots:        p.NumLots,
			LotPrice:             new(big.Int).Set(p.LotPrice),
			InitialLotSize:       new(big.Int).Set(p.InitialLotSize),
			LotIncreaseIncrement: new(big.Int).Set(p.LotIncreaseIncrement),
			LotIncreasePeriod:    p.LotIncreasePeriod,
			StartTime:            now,
			EndTime:              now + p.TimeLimit,
			Active:               true,
			Balance:              available,
			TokensSold:           new(big.Int),
			FundsRaised:          new(big.Int),
		}
		if err := m.auctions.Set(solidity.Uint64Key(id), a); err != nil {
			return err
		}
		if err := m.committed.Set(p.Token, balance); err != nil {
			return err
		}
		if err := m.nextID.Set(id + 1); err != nil {
			return err
		}
		m.ctx.Log("AuctionStarted", "auctionId", id, "token", p.Token, "endTime", a.EndTime,
			"lotPrice", a.LotPrice, "initialLotSize", a.InitialLotSize, "numLots", a.NumLots,
			"lotIncreaseIncrement", a.LotIncreaseIncrement, "lotIncreasePeriod", a.LotIncreasePeriod)
		logger.Debug("auction started", "id", id, "token", p.Token, "balance", available)
		return nil
	})
	return id, err
}

// lotSize grows by the increment once per elapsed period, capped so the
// remaining lots never promise more than the auction holds.
func (a *Auction) lotSize(now uint64) *big.Int {
	if !a.Active || a.RemainingLots == 0 {
		return new(big.Int)
	}
	steps := (now - a.StartTime) / a.LotIncreasePeriod
	size := new(big.Int).Mul(a.LotIncreaseIncrement, new(big.Int).SetUint64(steps))
	size.Add(size, a.InitialLotSize)
	limit := new(big.Int).Quo(a.Balance, new(big.Int).SetUint64(a.RemainingLots))
	return fixedpoint.Min(size, limit)
}

// BuyLots sells n lots to buyer at the fixed lot price and closes the
// auction when the last lot is sold.
func (m *Module) BuyLots(buyer increment.Address, id uint64, n uint64) error {
	return m.ctx.NonReentrant(func() error {
		if paused, err := m.paused.Get(); err != nil {
			return err
		} else if paused {
			return reverts.New(ErrPaused)
		}
		a, err := m.getActive(id)
		if err != nil {
			return err
		}
		now := m.ctx.Now()
		if now >= a.EndTime {
			return reverts.New(ErrAuctionExpired, id, a.EndTime)
		}
		if n == 0 {
			return reverts.New(ErrInvalidZeroArgument, 1)
		}
		if n > a.RemainingLots {
			return reverts.New(ErrNotEnoughLotsRemaining, id, a.RemainingLots)
		}

		size := a.lotSize(now)
		lots := new(big.Int).SetUint64(n)
		amount := new(big.Int).Mul(size, lots)
		payment := new(big.Int).Mul(a.LotPrice, lots)

		a.RemainingLots -= n
		a.Balance.Sub(a.Balance, amount)
		a.TokensSold.Add(a.TokensSold, amount)
		a.FundsRaised.Add(a.FundsRaised, payment)
		if err := m.auctions.Set(solidity.Uint64Key(id), a); err != nil {
			return err
		}
		if err := m.uncommit(a.Token, amount); err != nil {
			return err
		}
		m.ctx.Log("LotsSold", "auctionId", id, "buyer", buyer, "numLots", n, "lotSize", size, "lotPrice", a.LotPrice)
		metricLotsSold().Add(int64(n))

		payTok, err := m.tokens.Get(a.PaymentToken)
		if err != nil {
			return err
		}
		if err := payTok.TransferFrom(m.Address(), buyer, m.Address(), payment); err != nil {
			return err
		}
		tok, err := m.tokens.Get(a.Token)
		if err != nil {
			return err
		}
		if err := tok.Transfer(m.Address(), buyer, amount); err != nil {
			return err
		}
		if a.RemainingLots == 0 {
			return m.settle(id, a, size, "sold_out", true)
		}
		return nil
	})
}

// CompleteAuction settles an auction that ran out of time. Anyone may call it.
func (m *Module) CompleteAuction(id uint64) error {
	return m.ctx.NonReentrant(func() error {
		a, err := m.getActive(id)
		if err != nil {
			return err
		}
		now := m.ctx.Now()
		if now < a.EndTime {
			return reverts.New(ErrAuctionStillActive, id, a.EndTime)
		}
		return m.settle(id, a, a.lotSize(now), "timed_out", true)
	})
}

// TerminateAuction stops an auction early. The safety module drives the
// return of unsold tokens itself; governance stopping it directly makes the
// module call back like any other ending.
func (m *Module) TerminateAuction(caller increment.Address, id uint64) error {
	return m.ctx.NonReentrant(func() error {
		fromOwner := m.onlySafetyModule(caller) == nil
		if !fromOwner {
			if err := m.access.CheckRole(access.Governance, caller); err != nil {
				return err
			}
		}
		a, err := m.getActive(id)
		if err != nil {
			return err
		}
		return m.settle(id, a, a.lotSize(m.ctx.Now()), "terminated", !fromOwner)
	})
}

// settle closes the auction and approves the safety module to collect the
// unsold tokens and the funds raised.
func (m *Module) settle(id uint64, a *Auction, finalLotSize *big.Int, reason string, notify bool) error {
	remaining := new(big.Int).Set(a.Balance)
	remainingLots := a.RemainingLots
	a.Active = false
	a.Balance = new(big.Int)
	if err := m.auctions.Set(solidity.Uint64Key(id), a); err != nil {
		return err
	}
	if err := m.uncommit(a.Token, remaining); err != nil {
		return err
	}

	sm, err := m.safetyModule.Get()
	if err != nil {
		return err
	}
	if err := m.increaseAllowance(a.Token, sm, remaining); err != nil {
		return err
	}
	if err := m.increaseAllowance(a.PaymentToken, sm, a.FundsRaised); err != nil {
		return err
	}
	m.ctx.Log("AuctionEnded", "auctionId", id, "remainingLots", remainingLots, "finalLotSize", finalLotSize,
		"totalTokensSold", a.TokensSold, "totalFundsRaised", a.FundsRaised)
	logger.Debug("auction ended", "id", id, "reason", reason, "sold", a.TokensSold, "raised", a.FundsRaised)
	metricEnded().AddWithLabel(1, map[string]string{"reason": reason})

	if !notify {
		return nil
	}
	owner, err := m.owner()
	if err != nil {
		return err
	}
	return owner.AuctionEnded(m.Address(), id, remaining)
}

func (m *Module) uncommit(tok increment.Address, amount *big.Int) error {
	committed, err := m.committed.Get(tok)
	if err != nil {
		return err
	}
	return m.committed.Set(tok, committed.Sub(committed, amount))
}

func (m *Module) increaseAllowance(addr, spender increment.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	tok, err := m.tokens.Get(addr)
	if err != nil {
		return err
	}
	allowance, err := tok.Allowance(m.Address(), spender)
	if err != nil {
		return err
	}
	return tok.Approve(m.Address(), spender, allowance.Add(allowance, amount))
}

// SetPaymentToken changes the token future auctions are paid in.
func (m *Module) SetPaymentToken(caller, paymentToken increment.Address) error {
	return m.ctx.Atomic(func() error {
		if err := m.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if paymentToken.IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		if _, err := m.tokens.Get(paymentToken); err != nil {
			return err
		}
		if err := m.paymentToken.Set(paymentToken); err != nil {
			return err
		}
		m.ctx.Log("PaymentTokenChanged", "newPaymentToken", paymentToken)
		return nil
	})
}

// SetSafetyModule hands ownership to another safety module.
func (m *Module) SetSafetyModule(caller increment.Address, owner Owner) error {
	return m.ctx.Atomic(func() error {
		if err := m.access.CheckRole(access.Governance, caller); err != nil {
			return err
		}
		if owner == nil || owner.Address().IsZero() {
			return reverts.New(ErrInvalidZeroAddress, 0)
		}
		if err := m.safetyModule.Set(owner.Address()); err != nil {
			return err
		}
		m.BindOwner(owner)
		m.ctx.Log("SafetyModuleUpdated", "newSafetyModule", owner.Address())
		return nil
	})
}

func (m *Module) Pause(caller increment.Address) error   { return m.setPaused(caller, true) }
func (m *Module) Unpause(caller increment.Address) error { return m.setPaused(caller, false) }

func (m *Module) setPaused(caller increment.Address, paused bool) error {
	return m.ctx.Atomic(func() error {
		if err := m.access.CheckAnyRole(caller, access.EmergencyAdmin, access.Governance); err != nil {
			return err
		}
		if err := m.paused.Set(paused); err != nil {
			return err
		}
		if paused {
			m.ctx.Log("Paused", "account", caller)
		} else {
			m.ctx.Log("Unpaused", "account", caller)
		}
		return nil
	})
}

func (m *Module) Paused() (bool, error)                    { return m.paused.Get() }
func (m *Module) PaymentToken() (increment.Address, error) { return m.paymentToken.Get() }
func (m *Module) SafetyModule() (increment.Address, error) { return m.safetyModule.Get() }
func (m *Module) GetNextAuctionID() (uint64, error)        { return m.nextID.Get() }

// GetAuction returns a copy of the stored auction.
func (m *Module) GetAuction(id uint64) (*Auction, error) { return m.get(id) }

// GetCurrentLotSize is zero once the auction is over.
func (m *Module) GetCurrentLotSize(id uint64) (*big.Int, error) {
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return a.lotSize(m.ctx.Now()), nil
}

func (m *Module) GetRemainingLots(id uint64) (uint64, error) {
	a, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return a.RemainingLots, nil
}

func (m *Module) GetLotPrice(id uint64) (*big.Int, error) {
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return a.LotPrice, nil
}

func (m *Module) GetLotIncreaseIncrement(id uint64) (*big.Int, error) {
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return a.LotIncreaseIncrement, nil
}

func (m *Module) GetLotIncreasePeriod(id uint64) (uint64, error) {
	a, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return a.LotIncreasePeriod, nil
}

func (m *Module) GetAuctionToken(id uint64) (increment.Address, error) {
	a, err := m.get(id)
	if err != nil {
		return increment.Address{}, err
	}
	return a.Token, nil
}

func (m *Module) GetStartTime(id uint64) (uint64, error) {
	a, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return a.StartTime, nil
}

func (m *Module) GetEndTime(id uint64) (uint64, error) {
	a, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return a.EndTime, nil
}

func (m *Module) GetTokensSold(id uint64) (*big.Int, error) {
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return a.TokensSold, nil
}

func (m *Module) GetFundsRaised(id uint64) (*big.Int, error) {
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return a.FundsRaised, nil
}

// IsAuctionActive is false for unknown ids.
func (m *Module) IsAuctionActive(id uint64) (bool, error) {
	a, err := m.get(id)
	if reverts.IsRevertErr(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.Active, nil
}
