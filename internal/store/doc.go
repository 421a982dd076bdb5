// Package store persists wines, bottles, and label tasks in SQLite and exposes
// the transactional primitives the reconciliation engine and workers build on.
//
// The Store owns the database handle; callers never share rows across
// transaction boundaries. Every read returns a value snapshot and every write
// runs inside a scoped transaction that is committed or rolled back on all
// exit paths (see WithTx).
//
// Storage-level invariants live in schema.sql: wines.upc and bottles.slot are
// unique when present, bottles cascade with their wine, and label task status
// is restricted to the four lifecycle states. The label task state machine
// itself (queued -> processing -> done|failed) is enforced by
// AdvanceLabelTask with a compare-and-set write.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package store
