// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package partition

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashKeyToPartitionRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		key := []byte(fmt.Sprintf("k%d", i))
		p, err := HashKeyToPartition(key, 4)
		require.NoError(t, err)
		require.GreaterOrEqual(t, p, 0)
		require.Less(t, p, 4)
	}
}

func TestHashKeyToPartitionDeterministic(t *testing.T) {
	key := []byte("k1")
	p1, err := HashKeyToPartition(key, 4)
	require.NoError(t, err)
	p2, err := HashKeyToPartition(key, 4)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

func TestHashKeyToPartitionInvalidArgument(t *testing.T) {
	_, err := HashKeyToPartition([]byte("k"), 0)
	require.Error(t, err)
}

func TestMetaKeyFormat(t *testing.T) {
	id := TableID{Tier: Persistent, Namespace: "ns", Name: "tbl"}
	require.Equal(t, "LMDB.ns.tbl", id.MetaKey())
}
