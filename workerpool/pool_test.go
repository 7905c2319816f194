// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package workerpool

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunAllReturnsResultsInOrder(t *testing.T) {
	p := New(4, nil, nil)
	tasks := make([]Task, 10)
	for i := range tasks {
		i := i
		tasks[i] = Task{Label: "square", Fn: func(ctx context.Context, index int) (interface{}, error) {
			return index * index, nil
		}}
	}

	results, err := p.RunAll(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 10)
	for i, r := range results {
		require.Equal(t, i*i, r)
	}
}

func TestRunAllPropagatesFirstError(t *testing.T) {
	p := New(2, nil, nil)
	tasks := []Task{
		{Label: "fail", Fn: func(ctx context.Context, index int) (interface{}, error) {
			return nil, fmt.Errorf("boom")
		}},
		{Label: "ok", Fn: func(ctx context.Context, index int) (interface{}, error) {
			return 1, nil
		}},
	}

	_, err := p.RunAll(context.Background(), tasks)
	require.Error(t, err)
}
