// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Expose /metrics (Prometheus) for this engine's task/cache counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(metricR.Gatherer(), promhttp.HandlerOpts{}))
			logger.Info("serving metrics addr=%s", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
	c.Flags().StringVar(&addr, "addr", ":9090", "listen address for the metrics server")
	return c
}
