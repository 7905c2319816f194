// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package table

import (
	"context"

	"github.com/google/uuid"

	"github.com/MissiontoMars/eggroll/operator"
)

func (t *Table) wrap(res operator.Result) (*Table, error) {
	n, err := t.eng.Meta().PutIfAbsent(res.ID, res.Partitions)
	if err != nil {
		return nil, err
	}
	return bind(t.eng, res.ID, n, t.useSerialize), nil
}

// Map re-keys and/or re-values every entry, redistributing the result by
// the new key's hash.
func (t *Table) Map(fn operator.MapFunc) (*Table, error) {
	res, err := operator.Map(context.Background(), t.eng, t.id, t.partitions, fn, t.useSerialize)
	if err != nil {
		return nil, err
	}
	return t.wrap(res)
}

// MapValues transforms every value, preserving keys.
func (t *Table) MapValues(fn operator.MapValuesFunc) (*Table, error) {
	res, err := operator.MapValues(context.Background(), t.eng, t.id, t.partitions, fn, t.useSerialize)
	if err != nil {
		return nil, err
	}
	return t.wrap(res)
}

// MapPartitions hands each partition's entries to fn as a pull sequence.
func (t *Table) MapPartitions(fn operator.MapPartitionsFunc) (*Table, error) {
	res, err := operator.MapPartitions(context.Background(), t.eng, t.id, t.partitions, fn, t.useSerialize)
	if err != nil {
		return nil, err
	}
	return t.wrap(res)
}

// Reduce folds every value across every partition down to one value.
func (t *Table) Reduce(fn operator.ReduceFunc) (interface{}, error) {
	return operator.Reduce(context.Background(), t.eng, t.id, t.partitions, fn, t.useSerialize)
}

// Glom collects each partition's entries into a single ordered list.
func (t *Table) Glom() (*Table, error) {
	res, err := operator.Glom(context.Background(), t.eng, t.id, t.partitions, t.useSerialize)
	if err != nil {
		return nil, err
	}
	return t.wrap(res)
}

// Filter keeps entries whose key satisfies fn.
func (t *Table) Filter(fn operator.FilterFunc) (*Table, error) {
	res, err := operator.Filter(context.Background(), t.eng, t.id, t.partitions, fn, t.useSerialize)
	if err != nil {
		return nil, err
	}
	return t.wrap(res)
}

// Sample keeps each entry independently with probability fraction, using
// seed to make the result reproducible.
func (t *Table) Sample(fraction float64, seed int64) (*Table, error) {
	res, err := operator.Sample(context.Background(), t.eng, t.id, t.partitions, fraction, seed, t.useSerialize)
	if err != nil {
		return nil, err
	}
	return t.wrap(res)
}

// align returns left/right Tables with equal partition counts,
// rematerialising whichever side holds fewer entries at the other side's
// partition count. When counts already match, both tables are returned
// unchanged.
func (t *Table) align(other *Table) (left, right *Table, err error) {
	if t.partitions == other.partitions {
		return t, other, nil
	}

	tCount, err := t.Count()
	if err != nil {
		return nil, nil, err
	}
	otherCount, err := other.Count()
	if err != nil {
		return nil, nil, err
	}

	name := uuid.NewString()
	if otherCount > tCount {
		realigned, err := t.SaveAs(name, t.eng.JobID(), other.partitions, false)
		if err != nil {
			return nil, nil, err
		}
		return realigned, other, nil
	}
	realigned, err := other.SaveAs(name, t.eng.JobID(), t.partitions, false)
	if err != nil {
		return nil, nil, err
	}
	return t, realigned, nil
}

// Join emits, for every key present in both t and other, fn(leftValue,
// rightValue).
func (t *Table) Join(other *Table, fn operator.JoinFunc) (*Table, error) {
	left, right, err := t.align(other)
	if err != nil {
		return nil, err
	}
	res, err := operator.Join(context.Background(), left.eng, left.id, right.id, left.partitions, fn, left.useSerialize)
	if err != nil {
		return nil, err
	}
	return left.wrap(res)
}

// SubtractByKey emits every entry of t whose key is absent from other.
// Realignment before this call rematerialises whichever side has fewer
// entries and still calls SubtractByKey afterward; it never substitutes a
// different operator once the sides are repartitioned.
func (t *Table) SubtractByKey(other *Table) (*Table, error) {
	left, right, err := t.align(other)
	if err != nil {
		return nil, err
	}
	res, err := operator.SubtractByKey(context.Background(), left.eng, left.id, right.id, left.partitions, left.useSerialize)
	if err != nil {
		return nil, err
	}
	return left.wrap(res)
}

// Union emits every key present in either t or other, resolving
// collisions with fn.
func (t *Table) Union(other *Table, fn operator.UnionFunc) (*Table, error) {
	left, right, err := t.align(other)
	if err != nil {
		return nil, err
	}
	res, err := operator.Union(context.Background(), left.eng, left.id, right.id, left.partitions, fn, left.useSerialize)
	if err != nil {
		return nil, err
	}
	return left.wrap(res)
}
