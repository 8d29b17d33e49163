// Package workqueue implements a durable delayed job queue on Pebble.
//
// Each queued message is delivered to one consumer at a time under a lease.
// A consumer either completes the message, fails it with a retry delay, or
// lets the lease expire, in which case the sweeper makes it available again.
// Delivery is therefore at-least-once and handlers must be idempotent.
//
// Enqueue and Complete have Stage variants that write into a caller-owned
// Pebble batch, so a consumer can commit its own side effects, the
// completion of the current job and the enqueue of a follow-up job in one
// atomic write.
//
// # Keyspace
//
// All keys are prefixed with wq/{queue}/:
//
//	meta                          - last assigned sequence
//	msg/{seq}                     - message record
//	ready/{ready_at_ms}/{seq}     - availability index
//	lease/{seq}                   - active lease (expires_at_ms, attempts)
//	lease_idx/{expires_ms}/{seq}  - lease expiry index
//	attempts/{seq}                - failed delivery count
//
// Timestamps and sequences are 8-byte big-endian so lexical order matches
// numeric order.
package workqueue
