// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package merge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// sliceCursor is an in-memory Cursor over a pre-sorted slice, used to
// exercise Collector without needing a real store.Partition.
type sliceCursor struct {
	entries []Entry
	pos     int
}

func newSliceCursor(entries []Entry) *sliceCursor {
	return &sliceCursor{entries: entries, pos: -1}
}

func (s *sliceCursor) Rewind()          { s.pos = 0 }
func (s *sliceCursor) Valid() bool      { return s.pos >= 0 && s.pos < len(s.entries) }
func (s *sliceCursor) Next()            { s.pos++ }
func (s *sliceCursor) Key() []byte      { return s.entries[s.pos].Key }
func (s *sliceCursor) Value() ([]byte, error) { return s.entries[s.pos].Value, nil }
func (s *sliceCursor) Close()           {}

func TestCollectorMergesSortedOrder(t *testing.T) {
	c1 := newSliceCursor([]Entry{{Key: []byte("a"), Value: []byte("1")}, {Key: []byte("d"), Value: []byte("4")}})
	c2 := newSliceCursor([]Entry{{Key: []byte("b"), Value: []byte("2")}, {Key: []byte("c"), Value: []byte("3")}})

	out, err := Collect([]Cursor{c1, c2})
	require.NoError(t, err)
	require.Len(t, out, 4)

	var keys []string
	for _, e := range out {
		keys = append(keys, string(e.Key))
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, keys)
}

func TestCollectorHandlesEmptyCursors(t *testing.T) {
	c1 := newSliceCursor(nil)
	c2 := newSliceCursor([]Entry{{Key: []byte("x"), Value: []byte("1")}})

	out, err := Collect([]Cursor{c1, c2})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "x", string(out[0].Key))
}

func TestCollectorAllEmpty(t *testing.T) {
	out, err := Collect([]Cursor{newSliceCursor(nil), newSliceCursor(nil)})
	require.NoError(t, err)
	require.Empty(t, out)
}
