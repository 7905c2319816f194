// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package store implements the storage handle cache and the transactional
// partition store, backed by github.com/dgraph-io/badger/v4, an embedded
// KV engine.
package store

import (
	"os"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MissiontoMars/eggroll/eggrollerr"
	"github.com/MissiontoMars/eggroll/logging"
	"github.com/MissiontoMars/eggroll/metrics"
	"github.com/MissiontoMars/eggroll/partition"
)

// DefaultCapacity is the LRU bound on open storage environments.
const DefaultCapacity = 64

// valueLogFileSize mirrors the original implementation's large map-size,
// high-reader-cap storage-open requirements; badger has no direct
// map-size knob (it grows files on demand) so this is expressed as a
// value-log segment size tuned for the same headroom.
const (
	valueLogFileSize = 1 << 30 // 1 GiB segments, grown as needed
)

// Cache is an LRU-bounded pool of open badger handles keyed by absolute
// filesystem path (or, for the InMemory tier, by logical path string).
// Eviction closes the handle unless a lease is outstanding, in which case
// the handle is closed as soon as the last lease is released.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*handleEntry
	lru     *lru.Cache[string, struct{}]
	metrics *metrics.Registry
	logger  logging.Logger
}

type handleEntry struct {
	db       *badger.DB
	path     string
	refs     int
	evicting bool
}

// NewCache constructs a Cache with the given capacity.
func NewCache(capacity int, m *metrics.Registry, log logging.Logger) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if m == nil {
		m = metrics.NewNoOp()
	}
	if log == nil {
		log = logging.NewNoOp()
	}
	c := &Cache{entries: make(map[string]*handleEntry), metrics: m, logger: log}
	l, err := lru.NewWithEvict[string, struct{}](capacity, func(key string, _ struct{}) {
		c.evict(key)
	})
	if err != nil {
		return nil, eggrollerr.Wrap(eggrollerr.Internal, err, "store: construct LRU cache")
	}
	c.lru = l
	return c, nil
}

// Acquire opens (or reuses) the badger handle for path, incrementing its
// lease count. op identifies the table and partition number path
// belongs to, and is only used to label the partition-entries gauge;
// callers with no natural operand (none currently) may pass the zero
// value. Callers must call Partition.Close to release the lease.
func (c *Cache) Acquire(path string, tier partition.Tier, op partition.Operand) (*Partition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[path]; ok {
		e.refs++
		e.evicting = false
		c.lru.Add(path, struct{}{})
		c.metrics.CacheHits.Inc()
		return &Partition{db: e.db, path: path, cache: c, op: op}, nil
	}

	c.metrics.CacheMisses.Inc()
	db, err := c.open(path, tier)
	if err != nil {
		return nil, err
	}

	e := &handleEntry{db: db, path: path, refs: 1}
	c.entries[path] = e
	c.lru.Add(path, struct{}{})

	return &Partition{db: db, path: path, cache: c, op: op}, nil
}

func (c *Cache) open(path string, tier partition.Tier) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithLogger(nil)
	opts = opts.WithValueLogFileSize(valueLogFileSize)

	if tier == partition.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, eggrollerr.Wrap(eggrollerr.StorageIO, err, "store: create partition directory %s", path)
		}
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, eggrollerr.Wrap(eggrollerr.StorageIO, err, "store: open partition %s", path)
	}
	c.logger.Debug("opened storage handle path=%s tier=%s", path, tier)
	return db, nil
}

// release drops one lease on path's handle, closing it immediately if an
// eviction was deferred while the lease was outstanding.
func (c *Cache) release(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 && e.evicting {
		c.closeEntry(e)
	}
}

// evict is the LRU eviction callback. The underlying lru.Cache only ever
// invokes it synchronously from inside Add(), which Acquire calls while
// already holding c.mu, so this method must not (and does not) lock c.mu
// itself. If the handle has outstanding leases, closing is deferred to
// release(); otherwise it closes now.
func (c *Cache) evict(path string) {
	e, ok := c.entries[path]
	if !ok {
		return
	}
	if e.refs > 0 {
		e.evicting = true
		return
	}
	c.closeEntry(e)
}

func (c *Cache) closeEntry(e *handleEntry) {
	if err := e.db.Close(); err != nil {
		c.logger.Warn("failed to close storage handle path=%s err=%v", e.path, err)
	}
	c.metrics.CacheEvictions.Inc()
	delete(c.entries, e.path)
}

// Close closes every handle currently held by the cache, for clean
// process shutdown.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for path, e := range c.entries {
		if err := e.db.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.entries, path)
	}
	return first
}
