/*
Package monitoring provides Prometheus metrics for a running application.

# Overview

Each runtime owns a Metrics value backed by a private registry, so several
runtimes (and tests) can live in one process without duplicate registration
panics. A nil *Metrics is accepted everywhere and records nothing.

# Coverage

  - Bridge traffic and drops
  - Fetch outcomes and latency, socket counts and bytes
  - Script exceptions, module loads, timers
  - View clients, messages and HTTP requests
  - Asset store size

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
*/
package monitoring
