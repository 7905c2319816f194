// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"strconv"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MissiontoMars/eggroll/eggrollerr"
	"github.com/MissiontoMars/eggroll/partition"
)

// Partition is one transactional key-value shard, leased from a Cache.
// Keys and values are opaque byte strings; ordering within a partition
// is byte-lexicographic on keys.
type Partition struct {
	db    *badger.DB
	path  string
	cache *Cache
	op    partition.Operand
}

// Close releases this Partition's lease on the cache. It does not
// necessarily close the underlying handle; that only happens once the
// handle is evicted from the LRU and every lease on it has been released.
func (p *Partition) Close() {
	p.cache.release(p.path)
}

// Begin starts a transaction scoped to the caller: the caller must call
// Commit or Discard exactly once. Prefer View/Update for the common
// commit-on-success, abort-on-error pattern.
func (p *Partition) Begin(write bool) *Txn {
	return &Txn{underlying: p.db.NewTransaction(write), write: write}
}

// View runs fn in a read-only transaction, always discarding it afterward.
func (p *Partition) View(fn func(*Txn) error) error {
	txn := p.Begin(false)
	defer txn.Discard()
	return fn(txn)
}

// Update runs fn in a write transaction, committing on success and
// discarding (aborting) if fn returns an error.
func (p *Partition) Update(fn func(*Txn) error) error {
	txn := p.Begin(true)
	if err := fn(txn); err != nil {
		txn.Discard()
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	return nil
}

// Stat returns the number of entries currently in the partition, and
// records the count on the partition-entries gauge labeled by this
// partition's table and partition number.
func (p *Partition) Stat() (int64, error) {
	var count int64
	err := p.View(func(txn *Txn) error {
		cur := txn.Cursor()
		defer cur.Close()
		for cur.Rewind(); cur.Valid(); cur.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.cache.metrics.PartitionEntries.With(prometheus.Labels{
		"table":     p.op.MetaKey(),
		"partition": strconv.Itoa(p.op.Partition),
	}).Set(float64(count))
	return count, nil
}

// Drop empties the partition's database in place.
func (p *Partition) Drop() error {
	if err := p.db.DropAll(); err != nil {
		return eggrollerr.Wrap(eggrollerr.StorageIO, err, "store: drop partition %s", p.path)
	}
	return nil
}

// Txn is a single badger transaction scoped to one Partition.
type Txn struct {
	underlying *badger.Txn
	write      bool
}

// Get returns the value stored at key, or (nil, false, nil) if absent.
func (t *Txn) Get(key []byte) ([]byte, bool, error) {
	item, err := t.underlying.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eggrollerr.Wrap(eggrollerr.StorageIO, err, "store: get")
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, eggrollerr.Wrap(eggrollerr.StorageIO, err, "store: copy value")
	}
	return val, true, nil
}

// Put writes key/value, overwriting any existing entry. It returns true
// on success; callers generally ignore the returned bool since Put only
// fails by returning a non-nil error.
func (t *Txn) Put(key, value []byte) (bool, error) {
	if err := t.underlying.Set(key, value); err != nil {
		return false, eggrollerr.Wrap(eggrollerr.StorageIO, err, "store: put")
	}
	return true, nil
}

// Delete removes key if present, returning whether it previously existed.
func (t *Txn) Delete(key []byte) (bool, error) {
	_, existed, err := t.Get(key)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	if err := t.underlying.Delete(key); err != nil {
		return false, eggrollerr.Wrap(eggrollerr.StorageIO, err, "store: delete")
	}
	return true, nil
}

// Commit finalizes a write transaction.
func (t *Txn) Commit() error {
	if err := t.underlying.Commit(); err != nil {
		return eggrollerr.Wrap(eggrollerr.StorageIO, err, "store: commit")
	}
	return nil
}

// Discard aborts the transaction, releasing its resources.
func (t *Txn) Discard() {
	t.underlying.Discard()
}

// Cursor returns a forward iterator over entries in key-sorted order.
func (t *Txn) Cursor() *Cursor {
	opts := badger.DefaultIteratorOptions
	it := t.underlying.NewIterator(opts)
	return &Cursor{it: it}
}

// Cursor wraps a badger.Iterator as a forward, key-sorted iterator.
type Cursor struct {
	it *badger.Iterator
}

// Rewind seeks to the first entry.
func (c *Cursor) Rewind() { c.it.Rewind() }

// Valid reports whether the cursor currently points at an entry.
func (c *Cursor) Valid() bool { return c.it.Valid() }

// Next advances the cursor.
func (c *Cursor) Next() { c.it.Next() }

// Key returns a copy of the current entry's key; the returned slice stays
// valid after Next/Close.
func (c *Cursor) Key() []byte {
	return c.it.Item().KeyCopy(nil)
}

// Value returns the current entry's value.
func (c *Cursor) Value() ([]byte, error) {
	val, err := c.it.Item().ValueCopy(nil)
	if err != nil {
		return nil, eggrollerr.Wrap(eggrollerr.StorageIO, err, "store: cursor value")
	}
	return val, nil
}

// Close releases the iterator's resources.
func (c *Cursor) Close() {
	c.it.Close()
}
