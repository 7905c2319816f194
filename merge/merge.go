// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package merge implements the k-way heap merge that streams a globally
// sorted union of per-partition sorted cursors.
package merge

import (
	"bytes"
	"container/heap"
)

// Cursor is the minimal forward, key-sorted iterator this package needs.
// *store.Cursor satisfies it without an adapter.
type Cursor interface {
	Rewind()
	Valid() bool
	Next()
	Key() []byte
	Value() ([]byte, error)
	Close()
}

// Entry is one (key, value) pair yielded by a Collector.
type Entry struct {
	Key   []byte
	Value []byte
}

type item struct {
	key   []byte
	value []byte
	id    int
	cur   Cursor
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	c := bytes.Compare(h[i].key, h[j].key)
	if c != 0 {
		return c < 0
	}
	return h[i].id < h[j].id
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) {
	*h = append(*h, x.(*item))
}
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Collector streams the globally sorted union of a set of sorted cursors.
// It is not safe for concurrent use.
type Collector struct {
	h *itemHeap
}

// New builds a Collector over cursors, rewinding each to its first entry.
// Cursors that are empty after the rewind are closed immediately.
func New(cursors []Cursor) (*Collector, error) {
	h := &itemHeap{}
	heap.Init(h)
	for id, cur := range cursors {
		cur.Rewind()
		if !cur.Valid() {
			cur.Close()
			continue
		}
		val, err := cur.Value()
		if err != nil {
			return nil, err
		}
		heap.Push(h, &item{key: cur.Key(), value: val, id: id, cur: cur})
	}
	return &Collector{h: h}, nil
}

// Next returns the next entry in globally sorted key order, advancing the
// cursor it came from and closing it once exhausted. ok is false once
// every cursor has been drained.
func (c *Collector) Next() (Entry, bool, error) {
	if c.h.Len() == 0 {
		return Entry{}, false, nil
	}
	top := (*c.h)[0]
	out := Entry{Key: top.key, Value: top.value}

	top.cur.Next()
	if top.cur.Valid() {
		key := top.cur.Key()
		val, err := top.cur.Value()
		if err != nil {
			return Entry{}, false, err
		}
		top.key, top.value = key, val
		heap.Fix(c.h, 0)
	} else {
		heap.Pop(c.h)
		top.cur.Close()
	}
	return out, true, nil
}

// Close releases every cursor still held by the collector. Safe to call
// after Next has already drained everything.
func (c *Collector) Close() {
	for c.h.Len() > 0 {
		it := heap.Pop(c.h).(*item)
		it.cur.Close()
	}
}

// Collect drains the Collector fully into a slice, a convenience for small
// result sets (Table.Collect streams instead, for the general case).
func Collect(cursors []Cursor) ([]Entry, error) {
	c, err := New(cursors)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	var out []Entry
	for {
		e, ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out, nil
}
