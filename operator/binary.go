// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package operator

import (
	"context"

	"github.com/google/uuid"

	"github.com/MissiontoMars/eggroll/eggrollerr"
	"github.com/MissiontoMars/eggroll/engine"
	"github.com/MissiontoMars/eggroll/partition"
	"github.com/MissiontoMars/eggroll/store"
	"github.com/MissiontoMars/eggroll/workerpool"
)

// Binary kernels (Join, Union, SubtractByKey) require two source tables
// with matching partition counts, aligned by the caller (table.Table does
// this by rematerialising whichever side has fewer entries). Because each
// worker needs simultaneous read access to both sides plus write access to
// its destination partition, these kernels manage their transactions
// manually (Begin/Commit/Discard) instead of View/Update.

// Join emits, for every key present on both sides, fn(leftValue,
// rightValue). partitions must equal both left's and right's partition
// count.
func Join(ctx context.Context, eng *engine.Context, left, right partition.TableID, partitions int, fn JoinFunc, useSerialize bool) (Result, error) {
	dest := newDerivedID(eng, uuid.NewString())

	tasks := make([]workerpool.Task, partitions)
	for p := 0; p < partitions; p++ {
		p := p
		tasks[p] = workerpool.Task{Label: "join", Fn: func(_ context.Context, _ int) (interface{}, error) {
			leftPart, err := acquire(eng, left, p)
			if err != nil {
				return nil, err
			}
			defer leftPart.Close()
			rightPart, err := acquire(eng, right, p)
			if err != nil {
				return nil, err
			}
			defer rightPart.Close()
			destPart, err := acquire(eng, dest, p)
			if err != nil {
				return nil, err
			}
			defer destPart.Close()

			leftTxn := leftPart.Begin(false)
			defer leftTxn.Discard()
			rightTxn := rightPart.Begin(false)
			defer rightTxn.Discard()
			destTxn := destPart.Begin(true)

			if err := joinInto(leftTxn, rightTxn, destTxn, fn, useSerialize); err != nil {
				destTxn.Discard()
				return nil, err
			}
			if err := destTxn.Commit(); err != nil {
				return nil, err
			}
			return nil, nil
		}}
	}

	if _, err := eng.Pool().RunAll(ctx, tasks); err != nil {
		return Result{}, err
	}
	return Result{ID: dest, Partitions: partitions}, nil
}

func joinInto(leftTxn, rightTxn, destTxn *store.Txn, fn JoinFunc, useSerialize bool) error {
	cur := leftTxn.Cursor()
	defer cur.Close()
	for cur.Rewind(); cur.Valid(); cur.Next() {
		kb := cur.Key()
		lvb, err := cur.Value()
		if err != nil {
			return err
		}
		rvb, found, err := rightTxn.Get(kb)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		lv, err := decodeOne(useSerialize, lvb)
		if err != nil {
			return err
		}
		rv, err := decodeOne(useSerialize, rvb)
		if err != nil {
			return err
		}
		joined, err := fn(lv, rv)
		if err != nil {
			return eggrollerr.Wrap(eggrollerr.ClosureExecutionFailure, err, "operator: join")
		}
		jvb, err := encodeOne(useSerialize, joined)
		if err != nil {
			return err
		}
		if _, err := destTxn.Put(kb, jvb); err != nil {
			return err
		}
	}
	return nil
}

// SubtractByKey emits every left entry whose key is absent from right.
// Realignment before this call always rematerialises at the other side's
// partition count and then still calls SubtractByKey; it never
// substitutes a different operator after a repartition.
func SubtractByKey(ctx context.Context, eng *engine.Context, left, right partition.TableID, partitions int, useSerialize bool) (Result, error) {
	dest := newDerivedID(eng, uuid.NewString())

	tasks := make([]workerpool.Task, partitions)
	for p := 0; p < partitions; p++ {
		p := p
		tasks[p] = workerpool.Task{Label: "subtractByKey", Fn: func(_ context.Context, _ int) (interface{}, error) {
			leftPart, err := acquire(eng, left, p)
			if err != nil {
				return nil, err
			}
			defer leftPart.Close()
			rightPart, err := acquire(eng, right, p)
			if err != nil {
				return nil, err
			}
			defer rightPart.Close()
			destPart, err := acquire(eng, dest, p)
			if err != nil {
				return nil, err
			}
			defer destPart.Close()

			leftTxn := leftPart.Begin(false)
			defer leftTxn.Discard()
			rightTxn := rightPart.Begin(false)
			defer rightTxn.Discard()
			destTxn := destPart.Begin(true)

			cur := leftTxn.Cursor()
			var loopErr error
			for cur.Rewind(); cur.Valid(); cur.Next() {
				kb := cur.Key()
				_, found, err := rightTxn.Get(kb)
				if err != nil {
					loopErr = err
					break
				}
				if found {
					continue
				}
				vb, err := cur.Value()
				if err != nil {
					loopErr = err
					break
				}
				if _, err := destTxn.Put(kb, vb); err != nil {
					loopErr = err
					break
				}
			}
			cur.Close()
			if loopErr != nil {
				destTxn.Discard()
				return nil, loopErr
			}
			if err := destTxn.Commit(); err != nil {
				return nil, err
			}
			return nil, nil
		}}
	}

	if _, err := eng.Pool().RunAll(ctx, tasks); err != nil {
		return Result{}, err
	}
	return Result{ID: dest, Partitions: partitions}, nil
}

// Union emits every key present on either side: fn(left, right) where both
// are present, and the single side's value where only one is. It proceeds
// in two passes over the same destination transaction: first the left
// cursor (resolving collisions via fn), then the right cursor, skipping
// keys the first pass already wrote. A Get against destTxn sees its own
// uncommitted writes, so no separate in-memory "seen" set is needed.
func Union(ctx context.Context, eng *engine.Context, left, right partition.TableID, partitions int, fn UnionFunc, useSerialize bool) (Result, error) {
	dest := newDerivedID(eng, uuid.NewString())

	tasks := make([]workerpool.Task, partitions)
	for p := 0; p < partitions; p++ {
		p := p
		tasks[p] = workerpool.Task{Label: "union", Fn: func(_ context.Context, _ int) (interface{}, error) {
			leftPart, err := acquire(eng, left, p)
			if err != nil {
				return nil, err
			}
			defer leftPart.Close()
			rightPart, err := acquire(eng, right, p)
			if err != nil {
				return nil, err
			}
			defer rightPart.Close()
			destPart, err := acquire(eng, dest, p)
			if err != nil {
				return nil, err
			}
			defer destPart.Close()

			leftTxn := leftPart.Begin(false)
			defer leftTxn.Discard()
			rightTxn := rightPart.Begin(false)
			defer rightTxn.Discard()
			destTxn := destPart.Begin(true)

			if err := unionInto(leftTxn, rightTxn, destTxn, fn, useSerialize); err != nil {
				destTxn.Discard()
				return nil, err
			}
			if err := destTxn.Commit(); err != nil {
				return nil, err
			}
			return nil, nil
		}}
	}

	if _, err := eng.Pool().RunAll(ctx, tasks); err != nil {
		return Result{}, err
	}
	return Result{ID: dest, Partitions: partitions}, nil
}

func unionInto(leftTxn, rightTxn, destTxn *store.Txn, fn UnionFunc, useSerialize bool) error {
	lcur := leftTxn.Cursor()
	for lcur.Rewind(); lcur.Valid(); lcur.Next() {
		kb := lcur.Key()
		lvb, err := lcur.Value()
		if err != nil {
			lcur.Close()
			return err
		}
		rvb, found, err := rightTxn.Get(kb)
		if err != nil {
			lcur.Close()
			return err
		}
		var outb []byte
		if !found {
			outb = lvb
		} else {
			lv, err := decodeOne(useSerialize, lvb)
			if err != nil {
				lcur.Close()
				return err
			}
			rv, err := decodeOne(useSerialize, rvb)
			if err != nil {
				lcur.Close()
				return err
			}
			merged, err := fn(lv, rv)
			if err != nil {
				lcur.Close()
				return eggrollerr.Wrap(eggrollerr.ClosureExecutionFailure, err, "operator: union")
			}
			outb, err = encodeOne(useSerialize, merged)
			if err != nil {
				lcur.Close()
				return err
			}
		}
		if _, err := destTxn.Put(kb, outb); err != nil {
			lcur.Close()
			return err
		}
	}
	lcur.Close()

	rcur := rightTxn.Cursor()
	defer rcur.Close()
	for rcur.Rewind(); rcur.Valid(); rcur.Next() {
		kb := rcur.Key()
		if _, alreadyWritten, err := destTxn.Get(kb); err != nil {
			return err
		} else if alreadyWritten {
			continue
		}
		vb, err := rcur.Value()
		if err != nil {
			return err
		}
		if _, err := destTxn.Put(kb, vb); err != nil {
			return err
		}
	}
	return nil
}
