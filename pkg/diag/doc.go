// Package diag holds the optional observability state of a bus: the emission
// history ring buffer, the registration log and Prometheus counters.
//
// None of it is consulted during dispatch. A bus with diagnostics disabled
// only pays for the boolean check that skips recording.
package diag
