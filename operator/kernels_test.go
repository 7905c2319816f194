// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package operator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MissiontoMars/eggroll/engine"
	"github.com/MissiontoMars/eggroll/partition"
	"github.com/MissiontoMars/eggroll/store"
)

func newTestEngine(t *testing.T) *engine.Context {
	t.Helper()
	eng, err := engine.New(engine.Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func seedTable(t *testing.T, eng *engine.Context, id partition.TableID, partitions int, rows map[string]string) {
	t.Helper()
	for k, v := range rows {
		p, err := partition.HashKeyToPartition([]byte(k), partitions)
		require.NoError(t, err)
		part, err := acquire(eng, id, p)
		require.NoError(t, err)
		require.NoError(t, part.Update(func(txn *store.Txn) error {
			_, err := txn.Put([]byte(k), []byte(v))
			return err
		}))
		part.Close()
	}
}

func readAll(t *testing.T, eng *engine.Context, id partition.TableID, partitions int) map[string]string {
	t.Helper()
	out := map[string]string{}
	for p := 0; p < partitions; p++ {
		part, err := acquire(eng, id, p)
		require.NoError(t, err)
		require.NoError(t, part.View(func(txn *store.Txn) error {
			cur := txn.Cursor()
			defer cur.Close()
			for cur.Rewind(); cur.Valid(); cur.Next() {
				v, err := cur.Value()
				if err != nil {
					return err
				}
				out[string(cur.Key())] = string(v)
			}
			return nil
		}))
		part.Close()
	}
	return out
}

func TestMapShufflesAcrossPartitions(t *testing.T) {
	eng := newTestEngine(t)
	src := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "src"}
	seedTable(t, eng, src, 4, map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"})

	res, err := Map(context.Background(), eng, src, 4, func(k, v interface{}) (interface{}, interface{}, error) {
		return v.(string), k.(string), nil
	}, false)
	require.NoError(t, err)
	require.Equal(t, 4, res.Partitions)

	got := readAll(t, eng, res.ID, res.Partitions)
	require.Equal(t, map[string]string{"1": "a", "2": "b", "3": "c", "4": "d"}, got)
}

func TestMapValuesPreservesKeys(t *testing.T) {
	eng := newTestEngine(t)
	src := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "src"}
	seedTable(t, eng, src, 2, map[string]string{"a": "1", "b": "2"})

	res, err := MapValues(context.Background(), eng, src, 2, func(v interface{}) (interface{}, error) {
		return v.(string) + v.(string), nil
	}, false)
	require.NoError(t, err)

	got := readAll(t, eng, res.ID, res.Partitions)
	require.Equal(t, map[string]string{"a": "11", "b": "22"}, got)
}

func TestFilterKeepsMatchingKeys(t *testing.T) {
	eng := newTestEngine(t)
	src := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "src"}
	seedTable(t, eng, src, 2, map[string]string{"keep1": "x", "drop": "y", "keep2": "z"})

	res, err := Filter(context.Background(), eng, src, 2, func(k interface{}) (bool, error) {
		return len(k.(string)) > 4, nil
	}, false)
	require.NoError(t, err)

	got := readAll(t, eng, res.ID, res.Partitions)
	require.Equal(t, map[string]string{"keep1": "x", "keep2": "z"}, got)
}

func TestReduceFoldsAllValues(t *testing.T) {
	eng := newTestEngine(t)
	src := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "src"}
	seedTable(t, eng, src, 3, map[string]string{"a": "a", "b": "b", "c": "c"})

	result, err := Reduce(context.Background(), eng, src, 3, func(a, b interface{}) (interface{}, error) {
		chars := map[byte]bool{}
		for i := 0; i < len(a.(string)); i++ {
			chars[a.(string)[i]] = true
		}
		for i := 0; i < len(b.(string)); i++ {
			chars[b.(string)[i]] = true
		}
		out := ""
		for c := range chars {
			out += string(c)
		}
		return out, nil
	}, false)
	require.NoError(t, err)
	require.Len(t, result.(string), 3)
}

func TestJoinEmitsOnlyMatchedKeys(t *testing.T) {
	eng := newTestEngine(t)
	left := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "left"}
	right := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "right"}
	seedTable(t, eng, left, 2, map[string]string{"a": "1", "b": "2"})
	seedTable(t, eng, right, 2, map[string]string{"a": "10", "c": "30"})

	res, err := Join(context.Background(), eng, left, right, 2, func(l, r interface{}) (interface{}, error) {
		return l.(string) + "+" + r.(string), nil
	}, false)
	require.NoError(t, err)

	got := readAll(t, eng, res.ID, res.Partitions)
	require.Equal(t, map[string]string{"a": "1+10"}, got)
}

func TestSubtractByKeyKeepsOnlyLeftUniqueKeys(t *testing.T) {
	eng := newTestEngine(t)
	left := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "left"}
	right := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "right"}
	seedTable(t, eng, left, 2, map[string]string{"a": "1", "b": "2"})
	seedTable(t, eng, right, 2, map[string]string{"a": "10"})

	res, err := SubtractByKey(context.Background(), eng, left, right, 2, false)
	require.NoError(t, err)

	got := readAll(t, eng, res.ID, res.Partitions)
	require.Equal(t, map[string]string{"b": "2"}, got)
}

func TestUnionMergesBothSides(t *testing.T) {
	eng := newTestEngine(t)
	left := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "left"}
	right := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "right"}
	seedTable(t, eng, left, 2, map[string]string{"a": "1", "b": "2"})
	seedTable(t, eng, right, 2, map[string]string{"a": "10", "c": "30"})

	res, err := Union(context.Background(), eng, left, right, 2, func(l, r interface{}) (interface{}, error) {
		return l.(string) + "+" + r.(string), nil
	}, false)
	require.NoError(t, err)

	got := readAll(t, eng, res.ID, res.Partitions)
	require.Equal(t, map[string]string{"a": "1+10", "b": "2", "c": "30"}, got)
}

func TestSampleIsDeterministicForAGivenSeed(t *testing.T) {
	eng := newTestEngine(t)
	src := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "src"}
	seedTable(t, eng, src, 1, map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"})

	res1, err := Sample(context.Background(), eng, src, 1, 0.5, 42, false)
	require.NoError(t, err)
	got1 := readAll(t, eng, res1.ID, res1.Partitions)

	res2, err := Sample(context.Background(), eng, src, 1, 0.5, 42, false)
	require.NoError(t, err)
	got2 := readAll(t, eng, res2.ID, res2.Partitions)

	require.Equal(t, got1, got2)
}

func TestMapPartitionsStoresUnderLastKey(t *testing.T) {
	eng := newTestEngine(t)
	src := partition.TableID{Tier: partition.InMemory, Namespace: "ns", Name: "src"}
	seedTable(t, eng, src, 1, map[string]string{"a": "1", "b": "2", "c": "3"})

	res, err := MapPartitions(context.Background(), eng, src, 1, func(next Next) (interface{}, error) {
		count := 0
		for {
			_, _, ok, err := next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			count++
		}
		return fmt.Sprintf("%d", count), nil
	}, false)
	require.NoError(t, err)

	got := readAll(t, eng, res.ID, res.Partitions)
	require.Len(t, got, 1)
}
