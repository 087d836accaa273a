// Package core holds the record model and the pure merge rules.
//
// Nothing in this package touches the filesystem. Source adapters turn files
// into [Dataset] values, the functions here fold them together, and the sink
// persists the result.
//
// # Merging
//
// [Append] adds incoming records after the target's. [InsertAt] splices them
// in at a row offset, padding the target with empty records when the offset
// lies past its end, and returns the offset just past the inserted block so
// consecutive sources land one after another.
//
// A target with no columns adopts the layout of the first dataset merged into
// it. Otherwise incoming datasets must carry the same set of columns; they are
// realigned by name and anything else fails with [ErrSchemaMismatch].
//
// # Dedup
//
// [DedupLatest] reverses the accumulated records and keeps the first record
// for each key value, so the last merged occurrence of a key wins and the
// result reads newest first. It is only applied in append mode.
//
// # Errors
//
// Every failure is an [*Error] whose Kind is one of unreadable source, schema
// mismatch, missing columns or invalid configuration. Use errors.Is with the
// sentinel values, or [KindOf]. [MapError] turns any error into a
// [UserMessage] with a support code.
package core
