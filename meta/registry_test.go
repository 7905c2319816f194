// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package meta

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MissiontoMars/eggroll/partition"
	"github.com/MissiontoMars/eggroll/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	cache, err := store.NewCache(8, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return New(t.TempDir(), cache)
}

func TestPutIfAbsentFirstWriterWins(t *testing.T) {
	r := newTestRegistry(t)
	id := partition.TableID{Tier: partition.Persistent, Namespace: "ns", Name: "a"}

	n, err := r.PutIfAbsent(id, 4)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	n, err = r.PutIfAbsent(id, 99)
	require.NoError(t, err)
	require.Equal(t, 4, n, "first writer's partition count must win")
}

func TestGetAndDelete(t *testing.T) {
	r := newTestRegistry(t)
	id := partition.TableID{Tier: partition.Persistent, Namespace: "ns", Name: "b"}

	_, found, err := r.Get(id)
	require.NoError(t, err)
	require.False(t, found)

	_, err = r.PutIfAbsent(id, 3)
	require.NoError(t, err)

	n, found, err := r.Get(id)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 3, n)

	require.NoError(t, r.Delete(id))

	_, found, err = r.Get(id)
	require.NoError(t, err)
	require.False(t, found)
}
