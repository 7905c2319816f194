// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package table

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MissiontoMars/eggroll/engine"
)

func newTestEngine(t *testing.T) *engine.Context {
	t.Helper()
	eng, err := engine.New(engine.Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func boolPtr(b bool) *bool { return &b }

func TestOpenIsFirstWriterWinsOnPartitionCount(t *testing.T) {
	eng := newTestEngine(t)
	opts := OpenOptions{Name: "t1", Namespace: "ns", Partitions: 4, UseSerialize: boolPtr(false)}

	tbl1, err := Open(eng, opts)
	require.NoError(t, err)
	require.Equal(t, 4, tbl1.Partitions())

	opts.Partitions = 8
	tbl2, err := Open(eng, opts)
	require.NoError(t, err)
	require.Equal(t, 4, tbl2.Partitions())
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	eng := newTestEngine(t)
	tbl, err := Open(eng, OpenOptions{Name: "t1", Namespace: "ns", Partitions: 2, UseSerialize: boolPtr(false)})
	require.NoError(t, err)

	require.NoError(t, tbl.Put("a", "1"))
	v, found, err := tbl.Get("a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1", v)

	deleted, existed, err := tbl.Delete("a")
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, "1", deleted)

	_, found, err = tbl.Get("a")
	require.NoError(t, err)
	require.False(t, found)
}

func TestPutIfAbsentReturnsPriorValue(t *testing.T) {
	eng := newTestEngine(t)
	tbl, err := Open(eng, OpenOptions{Name: "t1", Namespace: "ns", Partitions: 1, UseSerialize: boolPtr(false)})
	require.NoError(t, err)

	prior, had, err := tbl.PutIfAbsent("a", "1")
	require.NoError(t, err)
	require.False(t, had)
	require.Nil(t, prior)

	prior, had, err = tbl.PutIfAbsent("a", "2")
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, "1", prior)

	v, _, err := tbl.Get("a")
	require.NoError(t, err)
	require.Equal(t, "1", v)
}

func TestPutAllAndCollectAllIsGloballySorted(t *testing.T) {
	eng := newTestEngine(t)
	tbl, err := Open(eng, OpenOptions{Name: "t1", Namespace: "ns", Partitions: 3, UseSerialize: boolPtr(false)})
	require.NoError(t, err)

	entries := []KV{
		{Key: "d", Value: "4"}, {Key: "a", Value: "1"},
		{Key: "c", Value: "3"}, {Key: "b", Value: "2"},
	}
	require.NoError(t, tbl.PutAll(entries, 2))

	rows, err := tbl.CollectAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key.(string)
	}
	require.True(t, sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i] < keys[j] }))

	count, err := tbl.Count()
	require.NoError(t, err)
	require.Equal(t, int64(4), count)
}

func TestDestroyRemovesTableAndMetaEntry(t *testing.T) {
	eng := newTestEngine(t)
	tbl, err := Open(eng, OpenOptions{Name: "t1", Namespace: "ns", Partitions: 2, Persistent: true, UseSerialize: boolPtr(false)})
	require.NoError(t, err)
	require.NoError(t, tbl.Put("a", "1"))

	require.NoError(t, tbl.Destroy())

	_, found, err := eng.Meta().Get(tbl.ID())
	require.NoError(t, err)
	require.False(t, found)
}

func TestSaveAsRematerialisesAtNewPartitionCount(t *testing.T) {
	eng := newTestEngine(t)
	tbl, err := Open(eng, OpenOptions{Name: "src", Namespace: "ns", Partitions: 2, UseSerialize: boolPtr(false)})
	require.NoError(t, err)
	require.NoError(t, tbl.PutAll([]KV{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, 0))

	dup, err := tbl.SaveAs("dst", "ns", 5, false)
	require.NoError(t, err)
	require.Equal(t, 5, dup.Partitions())

	count, err := dup.Count()
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestJoinAlignsMismatchedPartitionCounts(t *testing.T) {
	eng := newTestEngine(t)
	left, err := Open(eng, OpenOptions{Name: "left", Namespace: "ns", Partitions: 4, UseSerialize: boolPtr(false)})
	require.NoError(t, err)
	require.NoError(t, left.PutAll([]KV{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, 0))

	right, err := Open(eng, OpenOptions{Name: "right", Namespace: "ns", Partitions: 2, UseSerialize: boolPtr(false)})
	require.NoError(t, err)
	require.NoError(t, right.PutAll([]KV{{Key: "a", Value: "10"}}, 0))

	joined, err := left.Join(right, func(l, r interface{}) (interface{}, error) {
		return l.(string) + "+" + r.(string), nil
	})
	require.NoError(t, err)

	rows, err := joined.CollectAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "1+10", rows[0].Value)
}

func TestSubtractByKeyAfterRealignment(t *testing.T) {
	eng := newTestEngine(t)
	left, err := Open(eng, OpenOptions{Name: "left", Namespace: "ns", Partitions: 4, UseSerialize: boolPtr(false)})
	require.NoError(t, err)
	require.NoError(t, left.PutAll([]KV{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, 0))

	right, err := Open(eng, OpenOptions{Name: "right", Namespace: "ns", Partitions: 2, UseSerialize: boolPtr(false)})
	require.NoError(t, err)
	require.NoError(t, right.PutAll([]KV{{Key: "a", Value: "10"}}, 0))

	result, err := left.SubtractByKey(right)
	require.NoError(t, err)

	rows, err := result.CollectAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "b", rows[0].Key)
}
