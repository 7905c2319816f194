// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package operator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinRoundTripsThroughTaskInfo(t *testing.T) {
	task, err := BuildTaskInfo("job-1", BuiltinAddConstant, AddConstantConfig{Constant: 2.5})
	require.NoError(t, err)
	require.Equal(t, "job-1", task.JobID)

	fn, err := ResolveMapValues(BuiltinAddConstant, task.Config)
	require.NoError(t, err)

	out, err := fn(1.0)
	require.NoError(t, err)
	require.InDelta(t, 3.5, out.(float64), 1e-9)
}

func TestResolveUnknownBuiltinFails(t *testing.T) {
	_, err := ResolveMapValues(BuiltinID("nope"), nil)
	require.Error(t, err)
}

func TestRenameMapAppendsSuffix(t *testing.T) {
	fn := RenameMap(RenameConfig{Suffix: "_v2"})
	nk, nv, err := fn("a", "1")
	require.NoError(t, err)
	require.Equal(t, "a_v2", nk)
	require.Equal(t, "1", nv)
}

func TestThresholdFilterDropsBelowMin(t *testing.T) {
	fn := ThresholdFilter(ThresholdConfig{Min: 10})
	keep, err := fn(5.0)
	require.NoError(t, err)
	require.False(t, keep)

	keep, err = fn(15.0)
	require.NoError(t, err)
	require.True(t, keep)
}
