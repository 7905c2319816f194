// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Command eggrollctl is a CLI front end for the compute engine: point CRUD
// against a table, count/collect/destroy, and a metrics server, all operating
// on a local data directory through the same engine.Context every Go
// caller uses.
package main

import (
	"fmt"
	"os"

	"github.com/MissiontoMars/eggroll/cmd/eggrollctl/internal/cmd"
)

func main() {
	if err := cmd.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
