// Package worker provides a generic bounded worker pool.
//
// The pool decouples fast producers from slow sinks. The event mirror uses it
// so that publishing a SyncEvent to NATS never blocks the hub:
//
//	pool, err := worker.NewPool(2, 1024, publish,
//	    worker.WithMetricsRegistry[eventlog.SyncEvent](registry, "mirror"),
//	    worker.WithErrorHandler(func(ev eventlog.SyncEvent, err error) { ... }),
//	)
//	_ = pool.Start(ctx)
//	if err := pool.Submit(ev); errors.Is(err, worker.ErrQueueFull) {
//	    // dropped and counted
//	}
//	_ = pool.Stop(5 * time.Second)
package worker
