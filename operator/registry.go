// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package operator

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/MissiontoMars/eggroll/eggrollerr"
)

// BuiltinID names one of the statically registered operators a caller can
// ship by id plus opaque config bytes instead of an in-process Go closure.
// The TaskInfo wire contract, a stable id plus an opaque configuration
// payload, stays the same either way; only ad hoc caller closures bypass
// it, since this engine's workers are goroutines in the same binary and
// can invoke a Go func value directly.
type BuiltinID string

const (
	BuiltinAddConstant BuiltinID = "addConstant"
	BuiltinRename      BuiltinID = "rename"
	BuiltinThreshold   BuiltinID = "threshold"
)

// AddConstantConfig parameterizes the addConstant builtin mapValues operator.
type AddConstantConfig struct {
	Constant float64 `json:"constant"`
}

// RenameConfig parameterizes the rename builtin map operator: every key
// gets Suffix appended.
type RenameConfig struct {
	Suffix string `json:"suffix"`
}

// ThresholdConfig parameterizes the threshold builtin filter operator:
// keys (interpreted as a number) below Min are dropped.
type ThresholdConfig struct {
	Min float64 `json:"min"`
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// AddConstantMapValues builds the addConstant operator's MapValuesFunc.
func AddConstantMapValues(cfg AddConstantConfig) MapValuesFunc {
	return func(v interface{}) (interface{}, error) {
		f, ok := toFloat64(v)
		if !ok {
			return nil, eggrollerr.New(eggrollerr.InvalidArgument, "operator: addConstant requires a numeric value, got %T", v)
		}
		return f + cfg.Constant, nil
	}
}

// RenameMap builds the rename operator's MapFunc.
func RenameMap(cfg RenameConfig) MapFunc {
	return func(k, v interface{}) (interface{}, interface{}, error) {
		ks, ok := k.(string)
		if !ok {
			return nil, nil, eggrollerr.New(eggrollerr.InvalidArgument, "operator: rename requires a string key, got %T", k)
		}
		return ks + cfg.Suffix, v, nil
	}
}

// ThresholdFilter builds the threshold operator's FilterFunc.
func ThresholdFilter(cfg ThresholdConfig) FilterFunc {
	return func(k interface{}) (bool, error) {
		f, ok := toFloat64(k)
		if !ok {
			return false, nil
		}
		return f >= cfg.Min, nil
	}
}

// BuildTaskInfo encodes a named builtin's config into a shippable
// TaskInfo, assigning it a fresh function id.
func BuildTaskInfo(jobID string, id BuiltinID, cfg interface{}) (TaskInfo, error) {
	configBytes, err := json.Marshal(cfg)
	if err != nil {
		return TaskInfo{}, eggrollerr.Wrap(eggrollerr.Internal, err, "operator: encode builtin config")
	}
	return TaskInfo{JobID: jobID, FunctionID: string(id) + "-" + uuid.NewString(), Config: configBytes}, nil
}

// ResolveMapValues decodes a TaskInfo built for a MapValues-shaped builtin
// back into a callable MapValuesFunc.
func ResolveMapValues(id BuiltinID, configBytes []byte) (MapValuesFunc, error) {
	switch id {
	case BuiltinAddConstant:
		var cfg AddConstantConfig
		if err := json.Unmarshal(configBytes, &cfg); err != nil {
			return nil, eggrollerr.Wrap(eggrollerr.Internal, err, "operator: decode addConstant config")
		}
		return AddConstantMapValues(cfg), nil
	default:
		return nil, eggrollerr.New(eggrollerr.InvalidArgument, "operator: %q is not a mapValues builtin", id)
	}
}

// ResolveMap decodes a TaskInfo built for a Map-shaped builtin back into a
// callable MapFunc.
func ResolveMap(id BuiltinID, configBytes []byte) (MapFunc, error) {
	switch id {
	case BuiltinRename:
		var cfg RenameConfig
		if err := json.Unmarshal(configBytes, &cfg); err != nil {
			return nil, eggrollerr.Wrap(eggrollerr.Internal, err, "operator: decode rename config")
		}
		return RenameMap(cfg), nil
	default:
		return nil, eggrollerr.New(eggrollerr.InvalidArgument, "operator: %q is not a map builtin", id)
	}
}

// ResolveFilter decodes a TaskInfo built for a Filter-shaped builtin back
// into a callable FilterFunc.
func ResolveFilter(id BuiltinID, configBytes []byte) (FilterFunc, error) {
	switch id {
	case BuiltinThreshold:
		var cfg ThresholdConfig
		if err := json.Unmarshal(configBytes, &cfg); err != nil {
			return nil, eggrollerr.Wrap(eggrollerr.Internal, err, "operator: decode threshold config")
		}
		return ThresholdFilter(cfg), nil
	default:
		return nil, eggrollerr.New(eggrollerr.InvalidArgument, "operator: %q is not a filter builtin", id)
	}
}
