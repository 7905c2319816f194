// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package workerpool implements the process-parallel executor that ships
// one opaque task per partition and awaits all of them. The original
// implementation's "process-parallel" model is realized here with a
// bounded goroutine pool rather than OS subprocesses: workers never share
// mutable memory (the only channel between them is the on-disk store),
// which is the property that actually matters, and
// golang.org/x/sync/errgroup gives us fan-out/await-all/propagate-first-
// error semantics matching a control thread that blocks on the result of
// each submitted task.
package workerpool

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MissiontoMars/eggroll/logging"
	"github.com/MissiontoMars/eggroll/metrics"
)

// DefaultSize is used when a Pool is constructed with size <= 0.
const DefaultSize = 8

// Pool bounds the number of operator tasks that may run concurrently.
type Pool struct {
	size    int
	metrics *metrics.Registry
	logger  logging.Logger
}

// New constructs a Pool with the given concurrency bound.
func New(size int, m *metrics.Registry, log logging.Logger) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	if m == nil {
		m = metrics.NewNoOp()
	}
	if log == nil {
		log = logging.NewNoOp()
	}
	return &Pool{size: size, metrics: m, logger: log}
}

// Task is one unit of work submitted to the pool: the operator name (for
// metrics/logging) and the function to run. fn receives the task's index
// within the batch, matching operator kernels' "one task per partition p".
type Task struct {
	Label string
	Fn    func(ctx context.Context, index int) (interface{}, error)
}

// RunAll submits one goroutine per task (bounded to the pool's size),
// awaits all of them, and returns their results in submission order. If
// any task fails, RunAll returns the first error observed; partially
// completed writes from other tasks are not rolled back. There is no
// cross-partition atomicity for operators other than putAll.
func (p *Pool) RunAll(ctx context.Context, tasks []Task) ([]interface{}, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	results := make([]interface{}, len(tasks))
	for i, task := range tasks {
		i, task := i, task
		p.metrics.TasksSubmitted.WithLabelValues(task.Label).Inc()
		p.metrics.QueueDepth.Inc()
		g.Go(func() error {
			p.metrics.QueueDepth.Dec()

			start := time.Now()
			res, err := task.Fn(gctx, i)
			p.metrics.TaskDuration.WithLabelValues(task.Label).Observe(time.Since(start).Seconds())

			if err != nil {
				p.metrics.TasksFailed.WithLabelValues(task.Label).Inc()
				p.logger.Error("operator task failed operator=%s index=%d err=%v", task.Label, i, err)
				return err
			}
			p.metrics.TasksCompleted.WithLabelValues(task.Label).Inc()
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Size returns the pool's concurrency bound.
func (p *Pool) Size() int { return p.size }
