// Package workqueue provides a keyed deferred-work executor.
//
// Tasks are registered once per key and scheduled any number of times.
// Scheduling is idempotent while a run is pending; a schedule that lands
// while the task is executing queues a single follow-up run, so no event is
// lost and no two runs of the same key overlap. Flush waits for a key to go
// quiet, which lets callers tear down state the task touches.
package workqueue
