// Package metric wraps a Prometheus registry for alusync processes.
//
// Every binary creates one MetricsRegistry, hands it to the components that
// export metrics, and serves it with a Server:
//
//	registry := metric.NewMetricsRegistry()
//	h, _ := hub.New(cfg, hub.WithMetrics(registry))
//	srv := metric.NewServer(9090, "/metrics", registry)
//	_ = srv.Start()
//
// Components register their own collectors with RegisterCounter and friends,
// keyed by service and metric name; registering the same key twice is an
// invalid-class error rather than a panic.
package metric
