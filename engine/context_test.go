// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresDataDir(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestGenerateUniqueIDIsUnique(t *testing.T) {
	ctx, err := New(Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer ctx.Close()

	a := ctx.GenerateUniqueID()
	b := ctx.GenerateUniqueID()
	require.NotEqual(t, a, b)
	require.Contains(t, a, ctx.JobID())
}

func TestCleanupRejectsBlankArgs(t *testing.T) {
	ctx, err := New(Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer ctx.Close()

	require.Error(t, ctx.Cleanup("", "ns", true))
	require.Error(t, ctx.Cleanup("name", "", true))
}

func TestCleanupRejectsMissingDirs(t *testing.T) {
	ctx, err := New(Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer ctx.Close()

	err = ctx.Cleanup("tbl", "ns", true)
	require.Error(t, err)
}

func TestCleanupRemovesMatchingTables(t *testing.T) {
	dataDir := t.TempDir()
	ctx, err := New(Options{DataDir: dataDir})
	require.NoError(t, err)
	defer ctx.Close()

	nsDir := filepath.Join(dataDir, "LMDB", "myns")
	require.NoError(t, os.MkdirAll(filepath.Join(nsDir, "tbl-1"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(nsDir, "tbl-2"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(nsDir, "other"), 0o755))

	require.NoError(t, ctx.Cleanup("tbl-*", "myns", true))

	_, err = os.Stat(filepath.Join(nsDir, "tbl-1"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(nsDir, "tbl-2"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(nsDir, "other"))
	require.NoError(t, err)
}

func TestDefaultBeforeSetFails(t *testing.T) {
	SetDefault(nil)
	_, err := Default()
	require.Error(t, err)
}

func TestSetDefaultThenDefault(t *testing.T) {
	ctx, err := New(Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer ctx.Close()

	SetDefault(ctx)
	defer SetDefault(nil)

	got, err := Default()
	require.NoError(t, err)
	require.Same(t, ctx, got)
}
