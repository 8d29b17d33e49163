// Package compactor runs history compaction in the background.
//
// A compaction run is a chain of jobs on a durable work queue. Each delivery
// runs one history.Log.VacuumBatch; the batch deletes, the advanced
// watermark, the follow-up job and the completion of the current job commit
// in a single Pebble batch. A crash between batches therefore leaves either
// the old job (redelivered after its lease expires) or its successor, never
// both and never neither. Replayed batches are harmless since compaction is
// idempotent.
package compactor
