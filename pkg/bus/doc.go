// Package bus implements the synchronous message router.
//
// A Bus keeps, per message type, one chain for each route (type-wide,
// identity-bound, identity-agnostic) plus interceptor and post-processor
// chains. Emitting a message walks them inline on the caller's stack:
//
//	interceptors -> bound handlers -> agnostic observers -> global observers -> post-processors
//
// Any interceptor returning false vetoes the emission; no handler and no
// post-processor runs. Within a chain callbacks run in ascending priority,
// ties in registration order.
//
// Callbacks may emit, register and deregister re-entrantly. A deregistration
// takes effect immediately, even for the emission in flight; a registration is
// first seen by the next emission.
//
// Panics raised by callbacks are not recovered. They abort the remaining
// dispatch of that emission and propagate to the emitter. The bus holds no
// lock while callbacks run, so it remains usable afterwards.
//
// Chain mutation and the type table are guarded by a read-write mutex, and
// iteration runs over lock-free snapshots, so registering and emitting from
// several goroutines is safe. Callbacks themselves run on the emitting
// goroutine and must do their own synchronization.
package bus
