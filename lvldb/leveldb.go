// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package lvldb stores committed contract state in goleveldb.
package lvldb

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Increment-Finance/peripheral-contracts-sub004/kv"
)

var _ kv.Store = (*LevelDB)(nil)

// minCacheMiB is the floor for both the cache size and the open files cache.
const minCacheMiB = 16

// Options tunes a persistent database.
type Options struct {
	CacheSize              int // MiB, split between block cache and write buffer
	OpenFilesCacheCapacity int
	// SyncCommits fsyncs every batch write, so a committed block survives a
	// crash. Single puts are never synced.
	SyncCommits bool
}

// LevelDB is a kv.Store over goleveldb.
type LevelDB struct {
	db      *leveldb.DB
	readOpt *opt.ReadOptions
	putOpt  *opt.WriteOptions
	syncOpt *opt.WriteOptions
}

// New opens the database at path, creating it when missing.
func New(path string, opts Options) (*LevelDB, error) {
	stg, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open state storage")
	}
	return open(stg, opts)
}

// NewMem returns an empty database held in memory.
func NewMem() (*LevelDB, error) {
	return open(storage.NewMemStorage(), Options{})
}

// MustNewMem is NewMem for tests and fixtures.
func MustNewMem() *LevelDB {
	db, err := NewMem()
	if err != nil {
		panic(err)
	}
	return db
}

func open(stg storage.Storage, opts Options) (*LevelDB, error) {
	cache := max(opts.CacheSize, minCacheMiB)
	files := max(opts.OpenFilesCacheCapacity, minCacheMiB)

	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: files,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		if cerr := stg.Close(); cerr != nil {
			return nil, errors.Wrapf(err, "open state db (close storage: %v)", cerr)
		}
		return nil, errors.Wrap(err, "open state db")
	}
	return &LevelDB{
		db:      db,
		readOpt: &opt.ReadOptions{},
		putOpt:  &opt.WriteOptions{},
		syncOpt: &opt.WriteOptions{Sync: opts.SyncCommits},
	}, nil
}

func (l *LevelDB) IsNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound)
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	return l.db.Get(key, l.readOpt)
}

func (l *LevelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, l.readOpt)
}

func (l *LevelDB) Put(key, value []byte) error {
	return l.db.Put(key, value, l.putOpt)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, l.putOpt)
}

// Close releases the database. Every later call fails.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// NewBatch starts a batch that is applied atomically on Write.
func (l *LevelDB) NewBatch() kv.Batch {
	return &batch{owner: l}
}

// NewIterator walks r in key order. The caller must release it.
func (l *LevelDB) NewIterator(r kv.Range) kv.Iterator {
	return l.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, l.readOpt)
}

type batch struct {
	owner *LevelDB
	ops   leveldb.Batch
}

func (b *batch) Put(key, value []byte) error {
	b.ops.Put(key, value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops.Delete(key)
	return nil
}

func (b *batch) Len() int { return b.ops.Len() }

func (b *batch) Write() error {
	return b.owner.db.Write(&b.ops, b.owner.syncOpt)
}
