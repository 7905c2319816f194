// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MissiontoMars/eggroll/partition"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewCache(4, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPartitionPutGetDelete(t *testing.T) {
	c := newTestCache(t)
	dir := filepath.Join(t.TempDir(), "p0")
	p, err := c.Acquire(dir, partition.Persistent, partition.Operand{})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Update(func(txn *Txn) error {
		ok, err := txn.Put([]byte("k1"), []byte("v1"))
		require.NoError(t, err)
		require.True(t, ok)
		return nil
	}))

	require.NoError(t, p.View(func(txn *Txn) error {
		val, found, err := txn.Get([]byte("k1"))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("v1"), val)
		return nil
	}))

	require.NoError(t, p.Update(func(txn *Txn) error {
		existed, err := txn.Delete([]byte("k1"))
		require.NoError(t, err)
		require.True(t, existed)
		return nil
	}))

	require.NoError(t, p.View(func(txn *Txn) error {
		_, found, err := txn.Get([]byte("k1"))
		require.NoError(t, err)
		require.False(t, found)
		return nil
	}))
}

func TestPartitionCursorSortedOrder(t *testing.T) {
	c := newTestCache(t)
	dir := filepath.Join(t.TempDir(), "p0")
	p, err := c.Acquire(dir, partition.Persistent, partition.Operand{})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Update(func(txn *Txn) error {
		for _, k := range []string{"b", "a", "c"} {
			if _, err := txn.Put([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	var seen []string
	require.NoError(t, p.View(func(txn *Txn) error {
		cur := txn.Cursor()
		defer cur.Close()
		for cur.Rewind(); cur.Valid(); cur.Next() {
			seen = append(seen, string(cur.Key()))
		}
		return nil
	}))

	require.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestPartitionStatAndDrop(t *testing.T) {
	c := newTestCache(t)
	dir := filepath.Join(t.TempDir(), "p0")
	p, err := c.Acquire(dir, partition.Persistent, partition.Operand{})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Update(func(txn *Txn) error {
		_, err := txn.Put([]byte("a"), []byte("1"))
		return err
	}))

	n, err := p.Stat()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, p.Drop())

	n, err = p.Stat()
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestCacheAcquireReusesHandle(t *testing.T) {
	c := newTestCache(t)
	dir := filepath.Join(t.TempDir(), "p0")

	p1, err := c.Acquire(dir, partition.Persistent, partition.Operand{})
	require.NoError(t, err)
	p2, err := c.Acquire(dir, partition.Persistent, partition.Operand{})
	require.NoError(t, err)

	require.Same(t, p1.db, p2.db)

	p1.Close()
	p2.Close()
}

func TestInMemoryTier(t *testing.T) {
	c := newTestCache(t)
	p, err := c.Acquire("IN_MEMORY/job/fn/0", partition.InMemory, partition.Operand{})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Update(func(txn *Txn) error {
		_, err := txn.Put([]byte("x"), []byte("y"))
		return err
	}))
	n, err := p.Stat()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
