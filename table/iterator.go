// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package table

import (
	"github.com/MissiontoMars/eggroll/merge"
	"github.com/MissiontoMars/eggroll/store"
)

// Iterator streams a Table's contents in globally sorted key order (spec
// §4.4, §4.6), built from one read transaction per partition merged by the
// heap collector (C8). Callers must Close it, whether or not it was
// drained, to release its held transactions and partition leases.
type Iterator struct {
	collector *merge.Collector
	txns      []*store.Txn
	parts     []*store.Partition
	table     *Table
}

// Collect opens a streaming Iterator over every partition of t, already
// positioned at the first entry in global order.
func (t *Table) Collect() (*Iterator, error) {
	cursors := make([]merge.Cursor, 0, t.partitions)
	parts := make([]*store.Partition, 0, t.partitions)
	txns := make([]*store.Txn, 0, t.partitions)

	cleanup := func() {
		for _, txn := range txns {
			txn.Discard()
		}
		for _, part := range parts {
			part.Close()
		}
	}

	for p := 0; p < t.partitions; p++ {
		part, err := t.acquire(p)
		if err != nil {
			cleanup()
			return nil, err
		}
		parts = append(parts, part)
		txn := part.Begin(false)
		txns = append(txns, txn)
		cursors = append(cursors, txn.Cursor())
	}

	collector, err := merge.New(cursors)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &Iterator{collector: collector, txns: txns, parts: parts, table: t}, nil
}

// Next returns the next entry in global key order, decoded per the
// table's useSerialize setting. ok is false once every partition is drained.
func (it *Iterator) Next() (key, value interface{}, ok bool, err error) {
	e, ok, err := it.collector.Next()
	if err != nil || !ok {
		return nil, nil, ok, err
	}
	key, err = it.table.decode(e.Key)
	if err != nil {
		return nil, nil, false, err
	}
	value, err = it.table.decode(e.Value)
	if err != nil {
		return nil, nil, false, err
	}
	return key, value, true, nil
}

// Close releases every transaction and partition lease the Iterator holds.
func (it *Iterator) Close() {
	it.collector.Close()
	for _, txn := range it.txns {
		txn.Discard()
	}
	for _, part := range it.parts {
		part.Close()
	}
}
