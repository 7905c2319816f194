// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cmd wires the eggrollctl CLI surface: a cobra root command
// configured through viper (an optional config file, env vars prefixed
// EGGROLL_, and flags, in that order of increasing precedence),
// bootstrapping one engine.Context shared by every subcommand.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MissiontoMars/eggroll/engine"
	"github.com/MissiontoMars/eggroll/logging"
	"github.com/MissiontoMars/eggroll/metrics"
)

var (
	v       = viper.New()
	eng     *engine.Context
	logger  logging.Logger
	metricR *metrics.Registry
)

// Root builds the eggrollctl root command and every subcommand.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "eggrollctl",
		Short: "Operate a standalone eggroll compute engine data directory",
		Long: `eggrollctl is a command-line front end for the eggroll compute
engine: a partitioned, embedded key-value store with map/reduce-style
operators, the kind of local execution backend a federated-learning
framework drives through its own language bindings.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap()
		},
	}

	root.PersistentFlags().String("data-dir", "./eggroll-data", "root directory for partition data")
	root.PersistentFlags().String("job-id", "", "job id; a fresh one is generated if unset")
	root.PersistentFlags().Int("workers", 0, "worker pool size (workerpool.DefaultSize if 0)")
	root.PersistentFlags().Int("cache-capacity", 0, "open storage handle cache capacity (store.DefaultCapacity if 0)")
	root.PersistentFlags().String("log-level", "info", "debug|info|warn|error")

	_ = v.BindPFlag("data-dir", root.PersistentFlags().Lookup("data-dir"))
	_ = v.BindPFlag("job-id", root.PersistentFlags().Lookup("job-id"))
	_ = v.BindPFlag("workers", root.PersistentFlags().Lookup("workers"))
	_ = v.BindPFlag("cache-capacity", root.PersistentFlags().Lookup("cache-capacity"))
	_ = v.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))

	v.SetEnvPrefix("EGGROLL")
	v.AutomaticEnv()
	v.SetConfigName("eggrollctl")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Printf("warning: failed to read config file: %v\n", err)
		}
	}

	root.AddCommand(newPutCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newCountCmd())
	root.AddCommand(newCollectCmd())
	root.AddCommand(newDestroyCmd())
	root.AddCommand(newServeCmd())
	return root
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.Debug
	case "warn":
		return logging.Warn
	case "error":
		return logging.Error
	default:
		return logging.Info
	}
}

func bootstrap() error {
	if eng != nil {
		return nil
	}
	logger = logging.New()
	logger.SetLevel(parseLevel(v.GetString("log-level")))
	metricR = metrics.New()

	var err error
	eng, err = engine.New(engine.Options{
		DataDir:        v.GetString("data-dir"),
		JobID:          v.GetString("job-id"),
		WorkerPoolSize: v.GetInt("workers"),
		CacheCapacity:  v.GetInt("cache-capacity"),
		Logger:         logger,
		Metrics:        metricR,
	})
	if err != nil {
		return err
	}
	engine.SetDefault(eng)
	return nil
}
