// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/kv"
	"github.com/Increment-Finance/peripheral-contracts-sub004/stackedmap"
)

const (
	storageKeyPrefix = 's'
	defaultCacheSize = 4096
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

type storageKey struct {
	addr increment.Address
	key  increment.Bytes32
}

func (k storageKey) dbKey() []byte {
	b := make([]byte, 0, 1+increment.AddressLength+32)
	b = append(b, storageKeyPrefix)
	b = append(b, k.addr[:]...)
	return append(b, k.key[:]...)
}

// State manages contract storage on top of a kv store.
type State struct {
	db    kv.Store
	cache *lru.Cache
	sm    *stackedmap.StackedMap[storageKey, rlp.RawValue]
}

// New create state object.
func New(db kv.Store) *State {
	cache, _ := lru.New(defaultCacheSize)
	s := &State{db: db, cache: cache}
	s.reset()
	return s
}

func (s *State) reset() {
	s.sm = stackedmap.New(s.load)
}

// load implements stackedmap.MapGetter.
func (s *State) load(key storageKey) (rlp.RawValue, bool, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.(rlp.RawValue), true, nil
	}
	data, err := s.db.Get(key.dbKey())
	if err != nil {
		if !s.db.IsNotFound(err) {
			return nil, false, err
		}
		data = nil
	}
	s.cache.Add(key, rlp.RawValue(data))
	return data, true, nil
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr increment.Address, key increment.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return data, nil
}

// SetRawStorage set storage value in rlp raw.
func (s *State) SetRawStorage(addr increment.Address, key increment.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// EncodeStorage set storage value encoded by given enc method.
func (s *State) EncodeStorage(addr increment.Address, key increment.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage get and decode storage value.
func (s *State) DecodeStorage(addr increment.Address, key increment.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Commit writes every change since the last commit into the kv store, in one batch.
// It returns the number of slots written. Checkpoints taken before Commit are invalidated.
func (s *State) Commit() (int, error) {
	latest := make(map[storageKey]rlp.RawValue)
	var order []storageKey
	s.sm.Journal(func(key storageKey, value rlp.RawValue) bool {
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = value
		return true
	})

	batch := s.db.NewBatch()
	for _, key := range order {
		value := latest[key]
		if len(value) == 0 {
			if err := batch.Delete(key.dbKey()); err != nil {
				return 0, &Error{err}
			}
		} else if err := batch.Put(key.dbKey(), value); err != nil {
			return 0, &Error{err}
		}
	}
	if err := batch.Write(); err != nil {
		return 0, &Error{err}
	}
	for _, key := range order {
		s.cache.Add(key, latest[key])
	}
	s.reset()
	return len(order), nil
}

// ForEachCommitted calls fn for every committed storage slot of addr in slot
// order until fn returns false. Uncommitted changes are not visited.
func (s *State) ForEachCommitted(addr increment.Address, fn func(key increment.Bytes32, value rlp.RawValue) bool) error {
	prefix := make([]byte, 0, 1+increment.AddressLength)
	prefix = append(prefix, storageKeyPrefix)
	prefix = append(prefix, addr[:]...)

	it := s.db.NewIterator(kv.PrefixRange(prefix))
	defer it.Release()
	for it.Next() {
		var key increment.Bytes32
		copy(key[:], it.Key()[len(prefix):])
		if !fn(key, append(rlp.RawValue(nil), it.Value()...)) {
			break
		}
	}
	if err := it.Error(); err != nil {
		return &Error{err}
	}
	return nil
}
