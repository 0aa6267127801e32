// Package executor provides a bounded task queue for fanning out outbound
// requests.
//
// A Pool accepts an unbounded stream of tasks, runs at most N of them at
// once, and keeps the rest in a FIFO queue. Tasks start in submission order;
// completion order follows whatever the work itself takes.
//
// # Basic Usage
//
//	pool := executor.NewPool(10, logger)
//
//	for _, item := range items {
//	    pool.Submit(ctx, executor.Task{
//	        Name: item.Name(),
//	        Execute: func(ctx context.Context) (interface{}, error) {
//	            return fetch(ctx, item)
//	        },
//	        OnSettle: func(r executor.Result) {
//	            if r.Error == nil {
//	                agg.Add(item.Community, r.Data)
//	            }
//	        },
//	    })
//	}
//
//	<-pool.Drained()
//
// # Drain Semantics
//
// Drained returns a channel that is closed once nothing is pending and
// nothing is in flight. OnSettle runs before a task's slot is released, so
// everything recorded by continuations is visible when Drained fires.
// Calling Drained again after drain returns an already closed channel.
// Submitting after drain is allowed and re-arms the channel.
//
// # Failure Semantics
//
// The pool does not interpret task outcomes. A task that returns an error,
// or panics, still settles, frees its slot and lets the next queued task
// start. Errors surface only in the task's Result.
//
// # Cancellation
//
// Submitted tasks are never dropped. The context passed to Submit is handed
// to the task, so a cancelled context makes queued tasks fail fast, but they
// still run and settle.
//
// # Concurrency Guarantees
//
//   - In-flight tasks never exceed the configured cap
//   - A task leaves the queue and enters flight under one lock
//   - A slot is released before any queued task may claim it
//   - No goroutines remain once the pool has drained
package executor
