// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state manages contract storage.
// It follows the flow as bellow:
//
//	           o
//	           |
//	  [ revertable state ]
//	           |
//	    [ stacked map ] -> [ journal ] -> [ commit ] -> [ kv store ]
//	           |
//	     [ lru cache ]
//	           |
//	      [ kv store ]
//
// Every value is an rlp encoded blob addressed by (contract address, slot).
// An empty blob means the slot is unset.
package state
