// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package meta implements the meta registry: the fixed, well-known table
// mapping "{tier}.{namespace}.{name}" identity strings to the partition
// count of every created table.
//
// It is deliberately built directly on store.Cache/partition, not on the
// table package, to avoid an import cycle (table.Open needs the registry
// to resolve a table's partition count before it can construct a Table).
package meta

import (
	"path/filepath"
	"strconv"
	"sync"

	"github.com/MissiontoMars/eggroll/codec"
	"github.com/MissiontoMars/eggroll/eggrollerr"
	"github.com/MissiontoMars/eggroll/partition"
	"github.com/MissiontoMars/eggroll/store"
)

// Namespace and Name identify the well-known meta table.
const (
	Namespace = "__META__"
	Name      = "__META__"
	// Partitions is the meta registry's own fixed partition count.
	Partitions = 10
)

// ID is the meta registry's own TableID, used to address its partitions.
// Nothing outside this package refers to it; engine.Cleanup does not
// treat the meta table specially.
var ID = partition.TableID{Tier: partition.Persistent, Namespace: Namespace, Name: Name}

// Registry is the meta registry handle.
type Registry struct {
	dataDir string
	cache   *store.Cache
	mu      sync.Mutex
}

// New constructs a Registry rooted at dataDir, sharing the engine's
// storage handle cache.
func New(dataDir string, cache *store.Cache) *Registry {
	return &Registry{dataDir: dataDir, cache: cache}
}

func (r *Registry) partitionDir(p int) string {
	return filepath.Join(r.dataDir, string(partition.Persistent), Namespace, Name, strconv.Itoa(p))
}

// PutIfAbsent records id -> count if id is not already registered, and
// returns the partition count now on record for id: the count just
// written, or the pre-existing one if another caller registered id
// first.
func (r *Registry) PutIfAbsent(id partition.TableID, count int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keyBytes := codec.StringBytes(id.MetaKey())
	p, err := partition.HashKeyToPartition(keyBytes, Partitions)
	if err != nil {
		return 0, err
	}

	part, err := r.cache.Acquire(r.partitionDir(p), partition.Persistent, partition.Operand{TableID: ID, Partition: p})
	if err != nil {
		return 0, err
	}
	defer part.Close()

	result := count
	err = part.Update(func(txn *store.Txn) error {
		existing, found, err := txn.Get(keyBytes)
		if err != nil {
			return err
		}
		if found {
			decoded, err := codec.Decode(existing)
			if err != nil {
				return eggrollerr.Wrap(eggrollerr.Internal, err, "meta: decode partition count for %s", id)
			}
			n, ok := decoded.(int64)
			if !ok {
				return eggrollerr.New(eggrollerr.Internal, "meta: corrupt partition count for %s", id)
			}
			result = int(n)
			return nil
		}
		enc, err := codec.Encode(int64(count))
		if err != nil {
			return eggrollerr.Wrap(eggrollerr.Internal, err, "meta: encode partition count for %s", id)
		}
		_, err = txn.Put(keyBytes, enc)
		return err
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// Get returns the registered partition count for id, or found=false.
func (r *Registry) Get(id partition.TableID) (count int, found bool, err error) {
	keyBytes := codec.StringBytes(id.MetaKey())
	p, err := partition.HashKeyToPartition(keyBytes, Partitions)
	if err != nil {
		return 0, false, err
	}

	part, err := r.cache.Acquire(r.partitionDir(p), partition.Persistent, partition.Operand{TableID: ID, Partition: p})
	if err != nil {
		return 0, false, err
	}
	defer part.Close()

	err = part.View(func(txn *store.Txn) error {
		val, ok, err := txn.Get(keyBytes)
		if err != nil || !ok {
			return err
		}
		decoded, err := codec.Decode(val)
		if err != nil {
			return eggrollerr.Wrap(eggrollerr.Internal, err, "meta: decode partition count for %s", id)
		}
		n, ok := decoded.(int64)
		if !ok {
			return eggrollerr.New(eggrollerr.Internal, "meta: corrupt partition count for %s", id)
		}
		count, found = int(n), true
		return nil
	})
	return count, found, err
}

// Delete removes id's registry entry, used by Table.Destroy.
func (r *Registry) Delete(id partition.TableID) error {
	keyBytes := codec.StringBytes(id.MetaKey())
	p, err := partition.HashKeyToPartition(keyBytes, Partitions)
	if err != nil {
		return err
	}

	part, err := r.cache.Acquire(r.partitionDir(p), partition.Persistent, partition.Operand{TableID: ID, Partition: p})
	if err != nil {
		return err
	}
	defer part.Close()

	return part.Update(func(txn *store.Txn) error {
		_, err := txn.Delete(keyBytes)
		return err
	})
}
