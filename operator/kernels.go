// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package operator

import (
	"context"
	"math/rand"

	"github.com/google/uuid"

	"github.com/MissiontoMars/eggroll/eggrollerr"
	"github.com/MissiontoMars/eggroll/engine"
	"github.com/MissiontoMars/eggroll/partition"
	"github.com/MissiontoMars/eggroll/store"
	"github.com/MissiontoMars/eggroll/workerpool"
)

func acquire(eng *engine.Context, id partition.TableID, p int) (*store.Partition, error) {
	op := partition.Operand{TableID: id, Partition: p}
	return eng.Cache().Acquire(eng.PartitionPath(op), id.Tier, op)
}

type kv struct{ key, value []byte }

// Map re-keys and/or re-values every entry and redistributes the result by
// the new key's hash. Because keys may change, entries
// can land on a different destination partition than they started on; a
// naive per-source-partition worker writing straight to destination
// partitions would contend with every other worker writing the same
// destination. Map instead runs in two phases: phase 1 has each source
// partition's worker compute and batch its output entries by destination
// partition in memory (no shared writers yet); phase 2 commits each
// destination partition exactly once, sequentially, from the control
// goroutine, so no partition is ever written by more than one goroutine.
func Map(ctx context.Context, eng *engine.Context, src partition.TableID, srcPartitions int, fn MapFunc, useSerialize bool) (Result, error) {
	dest := newDerivedID(eng, uuid.NewString())
	destPartitions := srcPartitions

	tasks := make([]workerpool.Task, srcPartitions)
	for p := 0; p < srcPartitions; p++ {
		p := p
		tasks[p] = workerpool.Task{Label: "map", Fn: func(_ context.Context, _ int) (interface{}, error) {
			part, err := acquire(eng, src, p)
			if err != nil {
				return nil, err
			}
			defer part.Close()

			batches := make(map[int][]kv)
			err = part.View(func(txn *store.Txn) error {
				cur := txn.Cursor()
				defer cur.Close()
				for cur.Rewind(); cur.Valid(); cur.Next() {
					kb := cur.Key()
					vb, err := cur.Value()
					if err != nil {
						return err
					}
					kd, vd, err := decodeKV(useSerialize, kb, vb)
					if err != nil {
						return err
					}
					nk, nv, err := fn(kd, vd)
					if err != nil {
						return eggrollerr.Wrap(eggrollerr.ClosureExecutionFailure, err, "operator: map")
					}
					nkb, nvb, err := encodeKV(useSerialize, nk, nv)
					if err != nil {
						return err
					}
					destP, err := partition.HashKeyToPartition(nkb, destPartitions)
					if err != nil {
						return err
					}
					batches[destP] = append(batches[destP], kv{nkb, nvb})
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return batches, nil
		}}
	}

	results, err := eng.Pool().RunAll(ctx, tasks)
	if err != nil {
		return Result{}, err
	}

	merged := make(map[int][]kv)
	for _, r := range results {
		for destP, entries := range r.(map[int][]kv) {
			merged[destP] = append(merged[destP], entries...)
		}
	}

	for destP := 0; destP < destPartitions; destP++ {
		part, err := acquire(eng, dest, destP)
		if err != nil {
			return Result{}, err
		}
		err = part.Update(func(txn *store.Txn) error {
			for _, e := range merged[destP] {
				if _, err := txn.Put(e.key, e.value); err != nil {
					return err
				}
			}
			return nil
		})
		part.Close()
		if err != nil {
			return Result{}, err
		}
	}
	return Result{ID: dest, Partitions: destPartitions}, nil
}

// MapValues transforms values only; keys (and therefore partition
// assignment) never change, so each partition's worker can read its source
// and write its same-indexed destination independently, with no shuffle.
func MapValues(ctx context.Context, eng *engine.Context, src partition.TableID, srcPartitions int, fn MapValuesFunc, useSerialize bool) (Result, error) {
	dest := newDerivedID(eng, uuid.NewString())

	tasks := make([]workerpool.Task, srcPartitions)
	for p := 0; p < srcPartitions; p++ {
		p := p
		tasks[p] = workerpool.Task{Label: "mapValues", Fn: func(_ context.Context, _ int) (interface{}, error) {
			srcPart, err := acquire(eng, src, p)
			if err != nil {
				return nil, err
			}
			defer srcPart.Close()
			destPart, err := acquire(eng, dest, p)
			if err != nil {
				return nil, err
			}
			defer destPart.Close()

			err = destPart.Update(func(dtxn *store.Txn) error {
				return srcPart.View(func(stxn *store.Txn) error {
					cur := stxn.Cursor()
					defer cur.Close()
					for cur.Rewind(); cur.Valid(); cur.Next() {
						kb := cur.Key()
						vb, err := cur.Value()
						if err != nil {
							return err
						}
						vd, err := decodeOne(useSerialize, vb)
						if err != nil {
							return err
						}
						nv, err := fn(vd)
						if err != nil {
							return eggrollerr.Wrap(eggrollerr.ClosureExecutionFailure, err, "operator: mapValues")
						}
						nvb, err := encodeOne(useSerialize, nv)
						if err != nil {
							return err
						}
						if _, err := dtxn.Put(kb, nvb); err != nil {
							return err
						}
					}
					return nil
				})
			})
			return nil, err
		}}
	}

	if _, err := eng.Pool().RunAll(ctx, tasks); err != nil {
		return Result{}, err
	}
	return Result{ID: dest, Partitions: srcPartitions}, nil
}

// MapPartitions hands each partition's entries to fn as a pull sequence and
// stores fn's single returned summary value under the last key observed in
// that partition, matching the original implementation's convention. A
// partition that yields no entries produces no output entry, since there
// is no key to store under.
func MapPartitions(ctx context.Context, eng *engine.Context, src partition.TableID, srcPartitions int, fn MapPartitionsFunc, useSerialize bool) (Result, error) {
	dest := newDerivedID(eng, uuid.NewString())

	tasks := make([]workerpool.Task, srcPartitions)
	for p := 0; p < srcPartitions; p++ {
		p := p
		tasks[p] = workerpool.Task{Label: "mapPartitions", Fn: func(_ context.Context, _ int) (interface{}, error) {
			srcPart, err := acquire(eng, src, p)
			if err != nil {
				return nil, err
			}
			defer srcPart.Close()
			destPart, err := acquire(eng, dest, p)
			if err != nil {
				return nil, err
			}
			defer destPart.Close()

			var lastKey []byte
			err = destPart.Update(func(dtxn *store.Txn) error {
				return srcPart.View(func(stxn *store.Txn) error {
					cur := stxn.Cursor()
					defer cur.Close()
					cur.Rewind()

					next := func() (interface{}, interface{}, bool, error) {
						if !cur.Valid() {
							return nil, nil, false, nil
						}
						kb := cur.Key()
						vb, err := cur.Value()
						if err != nil {
							return nil, nil, false, err
						}
						lastKey = append([]byte(nil), kb...)
						kd, vd, err := decodeKV(useSerialize, kb, vb)
						if err != nil {
							return nil, nil, false, err
						}
						cur.Next()
						return kd, vd, true, nil
					}

					result, err := fn(next)
					if err != nil {
						return eggrollerr.Wrap(eggrollerr.ClosureExecutionFailure, err, "operator: mapPartitions")
					}
					if lastKey == nil {
						return nil
					}
					vb, err := encodeOne(useSerialize, result)
					if err != nil {
						return err
					}
					_, err = dtxn.Put(lastKey, vb)
					return err
				})
			})
			return nil, err
		}}
	}

	if _, err := eng.Pool().RunAll(ctx, tasks); err != nil {
		return Result{}, err
	}
	return Result{ID: dest, Partitions: srcPartitions}, nil
}

// Reduce folds every value in every partition down to one value: each
// partition is folded independently and in parallel, then the
// per-partition partials are folded together sequentially. An empty
// partition contributes no partial.
func Reduce(ctx context.Context, eng *engine.Context, src partition.TableID, srcPartitions int, fn ReduceFunc, useSerialize bool) (interface{}, error) {
	tasks := make([]workerpool.Task, srcPartitions)
	for p := 0; p < srcPartitions; p++ {
		p := p
		tasks[p] = workerpool.Task{Label: "reduce", Fn: func(_ context.Context, _ int) (interface{}, error) {
			part, err := acquire(eng, src, p)
			if err != nil {
				return nil, err
			}
			defer part.Close()

			var acc interface{}
			var have bool
			err = part.View(func(txn *store.Txn) error {
				cur := txn.Cursor()
				defer cur.Close()
				for cur.Rewind(); cur.Valid(); cur.Next() {
					vb, err := cur.Value()
					if err != nil {
						return err
					}
					vd, err := decodeOne(useSerialize, vb)
					if err != nil {
						return err
					}
					if !have {
						acc, have = vd, true
						continue
					}
					acc, err = fn(acc, vd)
					if err != nil {
						return eggrollerr.Wrap(eggrollerr.ClosureExecutionFailure, err, "operator: reduce")
					}
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			if !have {
				return nil, nil
			}
			return acc, nil
		}}
	}

	results, err := eng.Pool().RunAll(ctx, tasks)
	if err != nil {
		return nil, err
	}

	var acc interface{}
	var have bool
	for _, r := range results {
		if r == nil {
			continue
		}
		if !have {
			acc, have = r, true
			continue
		}
		acc, err = fn(acc, r)
		if err != nil {
			return nil, eggrollerr.Wrap(eggrollerr.ClosureExecutionFailure, err, "operator: reduce (partial fold)")
		}
	}
	if !have {
		return nil, nil
	}
	return acc, nil
}

// Pair is one decoded (key, value) entry, exported so it round-trips
// through encoding/json when Glom serializes a partition's accumulated list.
type Pair struct {
	Key   interface{}
	Value interface{}
}

// Glom collects every entry of a partition into a single ordered slice,
// stored (like MapPartitions) under the partition's last-seen key.
func Glom(ctx context.Context, eng *engine.Context, src partition.TableID, srcPartitions int, useSerialize bool) (Result, error) {
	dest := newDerivedID(eng, uuid.NewString())

	tasks := make([]workerpool.Task, srcPartitions)
	for p := 0; p < srcPartitions; p++ {
		p := p
		tasks[p] = workerpool.Task{Label: "glom", Fn: func(_ context.Context, _ int) (interface{}, error) {
			srcPart, err := acquire(eng, src, p)
			if err != nil {
				return nil, err
			}
			defer srcPart.Close()
			destPart, err := acquire(eng, dest, p)
			if err != nil {
				return nil, err
			}
			defer destPart.Close()

			var lastKey []byte
			var pairs []Pair
			err = destPart.Update(func(dtxn *store.Txn) error {
				return srcPart.View(func(stxn *store.Txn) error {
					cur := stxn.Cursor()
					defer cur.Close()
					for cur.Rewind(); cur.Valid(); cur.Next() {
						kb := cur.Key()
						vb, err := cur.Value()
						if err != nil {
							return err
						}
						lastKey = append([]byte(nil), kb...)
						kd, vd, err := decodeKV(useSerialize, kb, vb)
						if err != nil {
							return err
						}
						pairs = append(pairs, Pair{Key: kd, Value: vd})
					}
					if lastKey == nil {
						return nil
					}
					vb, err := encodeOne(true, pairs)
					if err != nil {
						return err
					}
					_, err = dtxn.Put(lastKey, vb)
					return err
				})
			})
			return nil, err
		}}
	}

	if _, err := eng.Pool().RunAll(ctx, tasks); err != nil {
		return Result{}, err
	}
	return Result{ID: dest, Partitions: srcPartitions}, nil
}

// Filter keeps entries whose key satisfies fn; values are copied through
// byte-for-byte without decoding.
func Filter(ctx context.Context, eng *engine.Context, src partition.TableID, srcPartitions int, fn FilterFunc, useSerialize bool) (Result, error) {
	dest := newDerivedID(eng, uuid.NewString())

	tasks := make([]workerpool.Task, srcPartitions)
	for p := 0; p < srcPartitions; p++ {
		p := p
		tasks[p] = workerpool.Task{Label: "filter", Fn: func(_ context.Context, _ int) (interface{}, error) {
			srcPart, err := acquire(eng, src, p)
			if err != nil {
				return nil, err
			}
			defer srcPart.Close()
			destPart, err := acquire(eng, dest, p)
			if err != nil {
				return nil, err
			}
			defer destPart.Close()

			err = destPart.Update(func(dtxn *store.Txn) error {
				return srcPart.View(func(stxn *store.Txn) error {
					cur := stxn.Cursor()
					defer cur.Close()
					for cur.Rewind(); cur.Valid(); cur.Next() {
						kb := cur.Key()
						kd, err := decodeOne(useSerialize, kb)
						if err != nil {
							return err
						}
						keep, err := fn(kd)
						if err != nil {
							return eggrollerr.Wrap(eggrollerr.ClosureExecutionFailure, err, "operator: filter")
						}
						if !keep {
							continue
						}
						vb, err := cur.Value()
						if err != nil {
							return err
						}
						if _, err := dtxn.Put(kb, vb); err != nil {
							return err
						}
					}
					return nil
				})
			})
			return nil, err
		}}
	}

	if _, err := eng.Pool().RunAll(ctx, tasks); err != nil {
		return Result{}, err
	}
	return Result{ID: dest, Partitions: srcPartitions}, nil
}

// Sample keeps each entry independently with probability fraction, using a
// fresh math/rand source re-seeded identically in every partition's worker
// so results are reproducible given the same seed. This is the Go
// analogue of the original's per-partition numpy RandomState(seed).
func Sample(ctx context.Context, eng *engine.Context, src partition.TableID, srcPartitions int, fraction float64, seed int64, useSerialize bool) (Result, error) {
	dest := newDerivedID(eng, uuid.NewString())

	tasks := make([]workerpool.Task, srcPartitions)
	for p := 0; p < srcPartitions; p++ {
		p := p
		tasks[p] = workerpool.Task{Label: "sample", Fn: func(_ context.Context, _ int) (interface{}, error) {
			srcPart, err := acquire(eng, src, p)
			if err != nil {
				return nil, err
			}
			defer srcPart.Close()
			destPart, err := acquire(eng, dest, p)
			if err != nil {
				return nil, err
			}
			defer destPart.Close()

			rng := rand.New(rand.NewSource(seed))
			err = destPart.Update(func(dtxn *store.Txn) error {
				return srcPart.View(func(stxn *store.Txn) error {
					cur := stxn.Cursor()
					defer cur.Close()
					for cur.Rewind(); cur.Valid(); cur.Next() {
						keep := rng.Float64() < fraction
						if !keep {
							continue
						}
						kb := cur.Key()
						vb, err := cur.Value()
						if err != nil {
							return err
						}
						if _, err := dtxn.Put(kb, vb); err != nil {
							return err
						}
					}
					return nil
				})
			})
			return nil, err
		}}
	}

	if _, err := eng.Pool().RunAll(ctx, tasks); err != nil {
		return Result{}, err
	}
	return Result{ID: dest, Partitions: srcPartitions}, nil
}
