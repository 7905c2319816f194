// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package table implements Table: the user-facing handle bound to one
// TableID, composing the meta registry, the partition store, the merge
// collector and the operator kernels into the put/get/collect/map/
// reduce/... surface.
//
// table depends on operator (not the reverse) so that operator, which
// only needs store/partition/codec/engine, never has to import table,
// avoiding the cycle table -> operator -> table.
package table

import (
	"os"
	"path/filepath"

	"github.com/MissiontoMars/eggroll/codec"
	"github.com/MissiontoMars/eggroll/eggrollerr"
	"github.com/MissiontoMars/eggroll/engine"
	"github.com/MissiontoMars/eggroll/partition"
	"github.com/MissiontoMars/eggroll/store"
)

// DefaultChunkSize bounds how many entries PutAll holds open in a single
// badger write transaction per partition before committing a chunk and
// starting the next.
const DefaultChunkSize = 100000

// KV is one decoded (key, value) pair, used by the bulk/collect surface.
type KV struct {
	Key   interface{}
	Value interface{}
}

// OpenOptions configures Open/Create.
type OpenOptions struct {
	Name      string
	Namespace string

	// Partitions is the requested count; ignored if the table already
	// exists (first writer wins).
	Partitions int

	Persistent bool

	// UseSerialize selects the codec (true) or raw-string (false) value
	// encoding for this handle; defaults to true.
	UseSerialize *bool

	// Schema is opaque caller metadata, kept only for the lifetime of
	// this process's Table handle.
	Schema map[string]string
}

// Table is a handle bound to one TableID.
type Table struct {
	eng          *engine.Context
	id           partition.TableID
	partitions   int
	useSerialize bool
	schema       map[string]string
}

// Open creates the table if absent (registering its partition count with
// the meta registry, first writer wins) or binds to its existing
// partition count if present.
func Open(eng *engine.Context, opts OpenOptions) (*Table, error) {
	if opts.Name == "" || opts.Namespace == "" {
		return nil, eggrollerr.New(eggrollerr.InvalidArgument, "table: name and namespace must not be blank")
	}
	tier := partition.InMemory
	if opts.Persistent {
		tier = partition.Persistent
	}
	requested := opts.Partitions
	if requested <= 0 {
		requested = 1
	}
	id := partition.TableID{Tier: tier, Namespace: opts.Namespace, Name: opts.Name}

	n, err := eng.Meta().PutIfAbsent(id, requested)
	if err != nil {
		return nil, err
	}

	useSerialize := true
	if opts.UseSerialize != nil {
		useSerialize = *opts.UseSerialize
	}

	return &Table{eng: eng, id: id, partitions: n, useSerialize: useSerialize, schema: opts.Schema}, nil
}

// bind constructs a Table handle for an id already registered with the
// meta registry at the given partition count, used internally to wrap
// operator results without re-running PutIfAbsent's existence check.
func bind(eng *engine.Context, id partition.TableID, partitions int, useSerialize bool) *Table {
	return &Table{eng: eng, id: id, partitions: partitions, useSerialize: useSerialize}
}

// ID returns the table's identity.
func (t *Table) ID() partition.TableID { return t.id }

// Partitions returns the table's partition count.
func (t *Table) Partitions() int { return t.partitions }

// UseSerialize reports which value encoding this handle uses.
func (t *Table) UseSerialize() bool { return t.useSerialize }

// Schema returns the opaque metadata this handle was opened with.
func (t *Table) Schema() map[string]string { return t.schema }

func (t *Table) encode(v interface{}) ([]byte, error) {
	if !t.useSerialize {
		s, ok := v.(string)
		if !ok {
			return nil, eggrollerr.New(eggrollerr.InvalidArgument, "table: useSerialize=false requires string values, got %T", v)
		}
		return codec.StringBytes(s), nil
	}
	return codec.Encode(v)
}

func (t *Table) decode(bs []byte) (interface{}, error) {
	if !t.useSerialize {
		return codec.BytesString(bs), nil
	}
	return codec.Decode(bs)
}

func (t *Table) partitionFor(keyBytes []byte) (int, error) {
	return partition.HashKeyToPartition(keyBytes, t.partitions)
}

func (t *Table) acquire(p int) (*store.Partition, error) {
	op := partition.Operand{TableID: t.id, Partition: p}
	return t.eng.Cache().Acquire(t.eng.PartitionPath(op), t.id.Tier, op)
}

// Put writes key/value, overwriting any existing entry.
func (t *Table) Put(key, value interface{}) error {
	kb, err := t.encode(key)
	if err != nil {
		return err
	}
	vb, err := t.encode(value)
	if err != nil {
		return err
	}
	p, err := t.partitionFor(kb)
	if err != nil {
		return err
	}
	part, err := t.acquire(p)
	if err != nil {
		return err
	}
	defer part.Close()

	return part.Update(func(txn *store.Txn) error {
		_, err := txn.Put(kb, vb)
		return err
	})
}

// PutIfAbsent writes value only if key is not already present, returning
// the entry that was already there, if any.
func (t *Table) PutIfAbsent(key, value interface{}) (prior interface{}, hadPrior bool, err error) {
	kb, err := t.encode(key)
	if err != nil {
		return nil, false, err
	}
	p, err := t.partitionFor(kb)
	if err != nil {
		return nil, false, err
	}
	part, err := t.acquire(p)
	if err != nil {
		return nil, false, err
	}
	defer part.Close()

	err = part.Update(func(txn *store.Txn) error {
		existing, found, err := txn.Get(kb)
		if err != nil {
			return err
		}
		if found {
			prior, err = t.decode(existing)
			hadPrior = true
			return err
		}
		vb, err := t.encode(value)
		if err != nil {
			return err
		}
		_, err = txn.Put(kb, vb)
		return err
	})
	return prior, hadPrior, err
}

// Get returns the value stored at key.
func (t *Table) Get(key interface{}) (value interface{}, found bool, err error) {
	kb, err := t.encode(key)
	if err != nil {
		return nil, false, err
	}
	p, err := t.partitionFor(kb)
	if err != nil {
		return nil, false, err
	}
	part, err := t.acquire(p)
	if err != nil {
		return nil, false, err
	}
	defer part.Close()

	err = part.View(func(txn *store.Txn) error {
		vb, ok, err := txn.Get(kb)
		if err != nil || !ok {
			found = ok
			return err
		}
		value, err = t.decode(vb)
		found = true
		return err
	})
	return value, found, err
}

// Delete removes key if present, returning the value it held.
func (t *Table) Delete(key interface{}) (value interface{}, existed bool, err error) {
	kb, err := t.encode(key)
	if err != nil {
		return nil, false, err
	}
	p, err := t.partitionFor(kb)
	if err != nil {
		return nil, false, err
	}
	part, err := t.acquire(p)
	if err != nil {
		return nil, false, err
	}
	defer part.Close()

	err = part.Update(func(txn *store.Txn) error {
		vb, found, err := txn.Get(kb)
		if err != nil || !found {
			existed = found
			return err
		}
		if _, err := txn.Delete(kb); err != nil {
			return err
		}
		value, err = t.decode(vb)
		existed = true
		return err
	})
	return value, existed, err
}

// Count returns the total number of entries across every partition.
func (t *Table) Count() (int64, error) {
	var total int64
	for p := 0; p < t.partitions; p++ {
		part, err := t.acquire(p)
		if err != nil {
			return 0, err
		}
		n, err := part.Stat()
		part.Close()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Destroy drops every partition's data, removes its on-disk directory, and
// unregisters it from the meta registry.
func (t *Table) Destroy() error {
	for p := 0; p < t.partitions; p++ {
		part, err := t.acquire(p)
		if err != nil {
			return err
		}
		err = part.Drop()
		part.Close()
		if err != nil {
			return err
		}
	}
	if err := t.eng.Meta().Delete(t.id); err != nil {
		return err
	}
	dir := filepath.Join(t.eng.DataDir(), string(t.id.Tier), t.id.Namespace, t.id.Name)
	if err := os.RemoveAll(dir); err != nil {
		return eggrollerr.Wrap(eggrollerr.StorageIO, err, "table: remove %s", dir)
	}
	return nil
}

// SaveAs materialises a full, independent copy of t under a new identity
// and (optionally) a different partition count. It is also used
// internally to realign partition counts before a binary operator.
func (t *Table) SaveAs(name, namespace string, partitions int, persistent bool) (*Table, error) {
	if partitions <= 0 {
		partitions = t.partitions
	}
	useSerialize := t.useSerialize
	dest, err := Open(t.eng, OpenOptions{
		Name: name, Namespace: namespace, Partitions: partitions,
		Persistent: persistent, UseSerialize: &useSerialize,
	})
	if err != nil {
		return nil, err
	}

	it, err := t.Collect()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	next := func() (interface{}, interface{}, bool, error) { return it.Next() }
	if err := dest.PutAllFunc(next, 0); err != nil {
		return nil, err
	}
	return dest, nil
}

// PutAllFunc bulk-loads entries from a pull sequence. Every partition
// holds a write transaction open at once, routing each entry by its
// hashed key, and commits in chunks of chunkSize entries (DefaultChunkSize
// if <= 0) to bound per-partition transaction memory. This is best-effort,
// not cross-partition atomic: once a chunk on one partition commits, an
// error on another partition does not roll it back.
func (t *Table) PutAllFunc(next func() (interface{}, interface{}, bool, error), chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	parts := make([]*store.Partition, t.partitions)
	txns := make([]*store.Txn, t.partitions)
	counts := make([]int, t.partitions)
	for p := 0; p < t.partitions; p++ {
		part, err := t.acquire(p)
		if err != nil {
			for q := 0; q < p; q++ {
				txns[q].Discard()
				parts[q].Close()
			}
			return err
		}
		parts[p] = part
		txns[p] = part.Begin(true)
	}

	finish := func(commit bool) error {
		var first error
		for p := 0; p < t.partitions; p++ {
			if commit {
				if err := txns[p].Commit(); err != nil && first == nil {
					first = err
				}
			} else {
				txns[p].Discard()
			}
			parts[p].Close()
		}
		return first
	}

	for {
		k, v, ok, err := next()
		if err != nil {
			finish(false)
			return err
		}
		if !ok {
			break
		}
		kb, err := t.encode(k)
		if err != nil {
			finish(false)
			return err
		}
		vb, err := t.encode(v)
		if err != nil {
			finish(false)
			return err
		}
		p, err := t.partitionFor(kb)
		if err != nil {
			finish(false)
			return err
		}
		if _, err := txns[p].Put(kb, vb); err != nil {
			finish(false)
			return err
		}
		counts[p]++
		if counts[p] >= chunkSize {
			if err := txns[p].Commit(); err != nil {
				for q := 0; q < t.partitions; q++ {
					if q != p {
						txns[q].Discard()
					}
					parts[q].Close()
				}
				return err
			}
			txns[p] = parts[p].Begin(true)
			counts[p] = 0
		}
	}
	return finish(true)
}

// PutAll is PutAllFunc over an in-memory slice, for small/test loads.
func (t *Table) PutAll(entries []KV, chunkSize int) error {
	i := 0
	return t.PutAllFunc(func() (interface{}, interface{}, bool, error) {
		if i >= len(entries) {
			return nil, nil, false, nil
		}
		e := entries[i]
		i++
		return e.Key, e.Value, true, nil
	}, chunkSize)
}

// FromSlice opens a table and bulk-loads entries into it, the
// Parallelize-style convenience constructor. A blank Name defaults to a
// fresh engine-generated unique id and a blank Namespace to the engine's
// job id.
func FromSlice(eng *engine.Context, opts OpenOptions, entries []KV) (*Table, error) {
	if opts.Name == "" {
		opts.Name = eng.GenerateUniqueID()
	}
	if opts.Namespace == "" {
		opts.Namespace = eng.JobID()
	}
	t, err := Open(eng, opts)
	if err != nil {
		return nil, err
	}
	if err := t.PutAll(entries, 0); err != nil {
		return nil, err
	}
	return t, nil
}

// Take returns up to n entries in global sort order.
func (t *Table) Take(n int) ([]KV, error) {
	it, err := t.Collect()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []KV
	for len(out) < n {
		k, v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, KV{Key: k, Value: v})
	}
	return out, nil
}

// First returns the first entry in global sort order, if any.
func (t *Table) First() (*KV, error) {
	rows, err := t.Take(1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// CollectAll drains the full globally-sorted contents of t into a slice.
// For large tables prefer Collect's streaming Iterator.
func (t *Table) CollectAll() ([]KV, error) {
	it, err := t.Collect()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []KV
	for {
		k, v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, KV{Key: k, Value: v})
	}
	return out, nil
}
