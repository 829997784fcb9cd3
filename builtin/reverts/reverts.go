// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reverts

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags a revert, e.g. "RewardController_AboveMaxInflationRate".
// A Kind is itself an error so it can be used as an errors.Is target.
type Kind string

func (k Kind) Error() string { return string(k) }

// Error is a contract precondition failure carrying its parameters.
type Error struct {
	kind Kind
	args []any
}

// New creates a revert of the given kind.
func New(kind Kind, args ...any) *Error {
	return &Error{kind: kind, args: args}
}

func (e *Error) Kind() Kind  { return e.kind }
func (e *Error) Args() []any { return e.args }

func (e *Error) Error() string {
	if len(e.args) == 0 {
		return string(e.kind)
	}
	parts := make([]string, 0, len(e.args))
	for _, arg := range e.args {
		parts = append(parts, fmt.Sprint(arg))
	}
	return string(e.kind) + "(" + strings.Join(parts, ", ") + ")"
}

// Is matches another revert or a Kind with the same tag.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return t == e.kind
	case *Error:
		return t != nil && t.kind == e.kind
	}
	return false
}

// KindOf extracts the revert kind from err.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) && re != nil {
		return re.kind, true
	}
	var k Kind
	if errors.As(err, &k) {
		return k, true
	}
	return "", false
}

func IsRevertErr(err any) bool {
	if err == nil {
		return false
	}
	e, ok := err.(error)
	if !ok {
		return false
	}
	_, ok = KindOf(e)
	return ok
}
