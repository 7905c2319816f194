// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package operator implements the per-partition operator kernels dispatched
// across the worker pool. Kernels operate on partition.Operand addresses
// directly, never on a table.Table, so that table.Table can depend on
// operator without an import cycle.
package operator

import (
	"github.com/MissiontoMars/eggroll/codec"
	"github.com/MissiontoMars/eggroll/eggrollerr"
	"github.com/MissiontoMars/eggroll/engine"
	"github.com/MissiontoMars/eggroll/partition"
)

// TaskInfo is the shippable description of one of the named built-in
// operators: a job id, a function id, and an opaque JSON configuration
// payload. BuildTaskInfo produces it and the Resolve* functions in
// registry.go turn its Config back into a callable. User functions are
// never pickled: the kernels in this package take Go func values directly
// and run them on in-process worker goroutines. The kernels do not build
// or consume a TaskInfo, and a derived table's name is a fresh uuid
// unrelated to any TaskInfo.FunctionID.
type TaskInfo struct {
	JobID      string
	FunctionID string
	Config     []byte
}

// MapFunc re-keys and/or transforms an entry; may change the key, which is
// why Map must shuffle entries across partitions.
type MapFunc func(key, value interface{}) (newKey, newValue interface{}, err error)

// MapValuesFunc transforms a value only; the key is preserved.
type MapValuesFunc func(value interface{}) (interface{}, error)

// Next is the pull-based lazy sequence mapPartitions' mapper consumes.
type Next func() (key, value interface{}, ok bool, err error)

// MapPartitionsFunc consumes an entire partition's decoded entries
// through a pull iterator and returns a single summary value.
type MapPartitionsFunc func(next Next) (interface{}, error)

// ReduceFunc folds two decoded values into one.
type ReduceFunc func(a, b interface{}) (interface{}, error)

// FilterFunc predicates on the decoded key only.
type FilterFunc func(key interface{}) (bool, error)

// JoinFunc combines a matched pair of left/right values.
type JoinFunc func(left, right interface{}) (interface{}, error)

// UnionFunc resolves a key present on both sides of a union.
type UnionFunc func(left, right interface{}) (interface{}, error)

// Result is what every kernel entry point returns: the derived table's
// identity and partition count.
type Result struct {
	ID         partition.TableID
	Partitions int
}

func newDerivedID(eng *engine.Context, functionID string) partition.TableID {
	return partition.TableID{Tier: partition.InMemory, Namespace: eng.JobID(), Name: functionID}
}

// decodeOne decodes a single stored byte string into its dynamic value
// per useSerialize.
func decodeOne(useSerialize bool, bs []byte) (interface{}, error) {
	if !useSerialize {
		return codec.BytesString(bs), nil
	}
	return codec.Decode(bs)
}

// encodeOne is decodeOne's inverse.
func encodeOne(useSerialize bool, v interface{}) ([]byte, error) {
	if !useSerialize {
		s, ok := v.(string)
		if !ok {
			return nil, eggrollerr.New(eggrollerr.InvalidArgument, "operator: useSerialize=false requires string values, got %T", v)
		}
		return codec.StringBytes(s), nil
	}
	return codec.Encode(v)
}

// decodeKV decodes a key/value pair.
func decodeKV(useSerialize bool, kb, vb []byte) (interface{}, interface{}, error) {
	k, err := decodeOne(useSerialize, kb)
	if err != nil {
		return nil, nil, err
	}
	v, err := decodeOne(useSerialize, vb)
	if err != nil {
		return nil, nil, err
	}
	return k, v, nil
}

// encodeKV is decodeKV's inverse.
func encodeKV(useSerialize bool, k, v interface{}) ([]byte, []byte, error) {
	kb, err := encodeOne(useSerialize, k)
	if err != nil {
		return nil, nil, err
	}
	vb, err := encodeOne(useSerialize, v)
	if err != nil {
		return nil, nil, err
	}
	return kb, vb, nil
}
