// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package access

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/solidity"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

// Role identifies a permission, keccak256 of its name.
type Role increment.Bytes32

func (r Role) Bytes() []byte { return r[:] }

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return increment.Bytes32(r).String()
}

func newRole(name string) Role {
	r := Role(increment.BytesToBytes32(crypto.Keccak256([]byte(name))))
	roleNames[r] = name
	return r
}

var roleNames = make(map[Role]string)

var (
	Governance     = newRole("GOVERNANCE")
	EmergencyAdmin = newRole("EMERGENCY_ADMIN")
	FundsAdmin     = newRole("FUNDS_ADMIN")
)

const (
	ErrUnauthorized       reverts.Kind = "AccessControl_Unauthorized"
	ErrAlreadyInitialized reverts.Kind = "AccessControl_AlreadyInitialized"
	ErrInvalidAccount     reverts.Kind = "AccessControl_InvalidAccount"
)

var slotInitialized = increment.NameToSlot("initialized")

type memberKey struct {
	role    Role
	account increment.Address
}

func (k memberKey) Bytes() []byte {
	return append(k.role.Bytes(), k.account.Bytes()...)
}

// Registry is the role registry every contract checks callers against.
// Governance administers all roles.
type Registry struct {
	ctx         *solidity.Context
	members     *solidity.Mapping[memberKey, bool]
	initialized *solidity.Bool
}

func New(addr increment.Address, env *xenv.Environment) *Registry {
	ctx := solidity.NewContext(addr, env)
	return &Registry{
		ctx:         ctx,
		members:     solidity.NewMapping[memberKey, bool](ctx, increment.NameToSlot("members")),
		initialized: solidity.NewBool(ctx, slotInitialized),
	}
}

func (r *Registry) Address() increment.Address { return r.ctx.Address() }

// Initialize makes governance the first member of every role. It can run once.
func (r *Registry) Initialize(governance increment.Address) error {
	return r.ctx.Atomic(func() error {
		done, err := r.initialized.Get()
		if err != nil {
			return err
		}
		if done {
			return reverts.New(ErrAlreadyInitialized)
		}
		if governance.IsZero() {
			return reverts.New(ErrInvalidAccount, governance)
		}
		for _, role := range []Role{Governance, EmergencyAdmin} {
			if err := r.grant(role, governance); err != nil {
				return err
			}
		}
		return r.initialized.Set(true)
	})
}

func (r *Registry) HasRole(role Role, account increment.Address) (bool, error) {
	return r.members.Get(memberKey{role, account})
}

// CheckRole fails unless account holds role.
func (r *Registry) CheckRole(role Role, account increment.Address) error {
	return r.CheckAnyRole(account, role)
}

// CheckAnyRole fails unless account holds at least one of roles.
func (r *Registry) CheckAnyRole(account increment.Address, roles ...Role) error {
	for _, role := range roles {
		ok, err := r.HasRole(role, account)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return reverts.New(ErrUnauthorized, account, roles[0])
}

func (r *Registry) GrantRole(caller increment.Address, role Role, account increment.Address) error {
	return r.ctx.Atomic(func() error {
		if err := r.CheckRole(Governance, caller); err != nil {
			return err
		}
		if account.IsZero() {
			return reverts.New(ErrInvalidAccount, account)
		}
		return r.grant(role, account)
	})
}

func (r *Registry) RevokeRole(caller increment.Address, role Role, account increment.Address) error {
	return r.ctx.Atomic(func() error {
		if err := r.CheckRole(Governance, caller); err != nil {
			return err
		}
		had, err := r.HasRole(role, account)
		if err != nil || !had {
			return err
		}
		r.members.Delete(memberKey{role, account})
		r.ctx.Log("RoleRevoked", "role", role.String(), "account", account, "sender", caller)
		return nil
	})
}

func (r *Registry) grant(role Role, account increment.Address) error {
	had, err := r.HasRole(role, account)
	if err != nil || had {
		return err
	}
	if err := r.members.Set(memberKey{role, account}, true); err != nil {
		return err
	}
	r.ctx.Log("RoleGranted", "role", role.String(), "account", account)
	return nil
}
