// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package engine implements the engine context: the coordinating value
// that holds the data directory, job id, meta registry, worker pool, and
// host identity every Table and operator call needs.
//
// The original implementation's process-global singleton is replaced here
// by an explicitly constructed *Context passed into every call.
// SetDefault/Default provide a thin convenience facade for callers (like
// the CLI) that cannot thread a context through.
package engine

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/MissiontoMars/eggroll/eggrollerr"
	"github.com/MissiontoMars/eggroll/logging"
	"github.com/MissiontoMars/eggroll/meta"
	"github.com/MissiontoMars/eggroll/metrics"
	"github.com/MissiontoMars/eggroll/partition"
	"github.com/MissiontoMars/eggroll/store"
	"github.com/MissiontoMars/eggroll/workerpool"
)

// Options configures a new engine Context.
type Options struct {
	// DataDir is the root directory under which every tier/namespace/name
	// subtree is materialised.
	DataDir string

	// JobID is used verbatim if non-empty; otherwise a fresh uuid is
	// generated, matching the original implementation's job id default.
	JobID string

	// WorkerPoolSize bounds operator task concurrency (workerpool.DefaultSize if <= 0).
	WorkerPoolSize int

	// CacheCapacity bounds the storage handle cache (store.DefaultCapacity if <= 0).
	CacheCapacity int

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// Context is the process-wide coordinating value.
type Context struct {
	dataDir  string
	jobID    string
	hostName string
	hostIP   string

	cache   *store.Cache
	meta    *meta.Registry
	pool    *workerpool.Pool
	logger  logging.Logger
	metrics *metrics.Registry

	idMu sync.Mutex
	rng  *rand.Rand
}

// New constructs an explicit engine Context.
func New(opts Options) (*Context, error) {
	if opts.DataDir == "" {
		return nil, eggrollerr.New(eggrollerr.InvalidArgument, "engine: DataDir must not be blank")
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, eggrollerr.Wrap(eggrollerr.StorageIO, err, "engine: create data dir %s", opts.DataDir)
	}

	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOp()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoOp()
	}

	cache, err := store.NewCache(opts.CacheCapacity, m, logger)
	if err != nil {
		return nil, err
	}

	hostName, hostIP := hostIdentity()

	ctx := &Context{
		dataDir:  opts.DataDir,
		jobID:    jobID,
		hostName: hostName,
		hostIP:   hostIP,
		cache:    cache,
		meta:     meta.New(opts.DataDir, cache),
		pool:     workerpool.New(opts.WorkerPoolSize, m, logger),
		logger:   logger,
		metrics:  m,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	return ctx, nil
}

func hostIdentity() (name, ip string) {
	name, err := os.Hostname()
	if err != nil {
		return "unknown", "unknown"
	}
	addrs, err := net.LookupHost(name)
	if err != nil || len(addrs) == 0 {
		return name, "unknown"
	}
	return name, addrs[0]
}

func (c *Context) DataDir() string           { return c.dataDir }
func (c *Context) JobID() string             { return c.jobID }
func (c *Context) Cache() *store.Cache       { return c.cache }
func (c *Context) Meta() *meta.Registry      { return c.meta }
func (c *Context) Pool() *workerpool.Pool    { return c.pool }
func (c *Context) Logger() logging.Logger    { return c.logger }
func (c *Context) Metrics() *metrics.Registry { return c.metrics }

// PartitionPath returns the absolute on-disk directory for an operand.
func (c *Context) PartitionPath(op partition.Operand) string {
	segments := append([]string{c.dataDir}, op.Path()...)
	return filepath.Join(segments...)
}

// GenerateUniqueID produces an identifier using the original
// implementation's template:
// "_Engine_{jobId}_{host}_{hostIP}_{epochSeconds:.20f}_{rand[10000,99999]}".
func (c *Context) GenerateUniqueID() string {
	c.idMu.Lock()
	n := 10000 + c.rng.Intn(90000)
	c.idMu.Unlock()

	epoch := float64(time.Now().UnixNano()) / 1e9
	return fmt.Sprintf("_Engine_%s_%s_%s_%.20f_%d", c.jobID, c.hostName, c.hostIP, epoch, n)
}

// Cleanup pattern-matches directory names under dataDir/{tier}/{namespace}/
// and removes them recursively. Fails with InvalidArgument when namespace
// or name is blank, or InvalidEnvironment when the expected directory
// layout does not exist.
func (c *Context) Cleanup(name, namespace string, persistent bool) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(namespace) == "" {
		return eggrollerr.New(eggrollerr.InvalidArgument, "engine: neither name nor namespace can be blank")
	}

	tier := partition.InMemory
	if persistent {
		tier = partition.Persistent
	}

	baseDir := filepath.Join(c.dataDir, string(tier))
	if fi, err := os.Stat(baseDir); err != nil || !fi.IsDir() {
		return eggrollerr.New(eggrollerr.InvalidEnvironment, "engine: illegal data dir for tier %s", tier)
	}

	namespaceDir := filepath.Join(baseDir, namespace)
	if fi, err := os.Stat(namespaceDir); err != nil || !fi.IsDir() {
		return eggrollerr.New(eggrollerr.InvalidEnvironment, "engine: namespace %s does not exist", namespace)
	}

	pattern, err := glob.Compile(name)
	if err != nil {
		return eggrollerr.Wrap(eggrollerr.InvalidArgument, err, "engine: invalid cleanup pattern %q", name)
	}

	entries, err := os.ReadDir(namespaceDir)
	if err != nil {
		return eggrollerr.Wrap(eggrollerr.StorageIO, err, "engine: list namespace dir %s", namespaceDir)
	}

	for _, entry := range entries {
		if !pattern.Match(entry.Name()) {
			continue
		}
		target := filepath.Join(namespaceDir, entry.Name())
		c.logger.Info("cleanup removing table dir=%s", target)
		if err := os.RemoveAll(target); err != nil {
			return eggrollerr.Wrap(eggrollerr.StorageIO, err, "engine: remove %s", target)
		}
	}
	return nil
}

// Close releases every handle held by the engine's storage cache.
func (c *Context) Close() error {
	return c.cache.Close()
}

var (
	defaultMu  sync.RWMutex
	defaultCtx *Context
)

// SetDefault installs ctx as the process-local default engine context.
func SetDefault(ctx *Context) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultCtx = ctx
}

// Default returns the process-local default context, or a NotInitialised
// error if SetDefault has not been called.
func Default() (*Context, error) {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultCtx == nil {
		return nil, eggrollerr.New(eggrollerr.NotInitialised, "engine: not initialised; call engine.SetDefault first")
	}
	return defaultCtx, nil
}
