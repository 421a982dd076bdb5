// Package workqueue runs background jobs on a bounded in-process worker pool.
//
// Delivery is best effort and at most once: a job accepted by Submit runs at
// most one time, in this process only. Submit never blocks; a full queue
// returns ErrQueueFull and a stopped pool returns ErrStopped, so callers decide
// what a dropped job means for them. Nothing is persisted, so jobs pending at
// shutdown or crash are lost. Stop drains every accepted job before returning.
//
// Job panics are recovered and counted as failures. Pool activity is exported
// through Prometheus collectors (see Metrics).
package workqueue
