// Package slidingwindow maintains a bounded window of unique numbers fed from
// a source.Gateway and reports the window's arithmetic mean after each update.
//
// Terminology
//   - Window: the insertion-ordered set of numbers currently tracked. It holds
//     no duplicates and never more than its capacity (size) after an update.
//   - Batch: the numbers returned by one gateway call for a category.
//   - Deadline: the hard bound on a single gateway call (500ms by default).
//
// Main components
//   - Window: a thread-safe store for the window contents and its capacity.
//     Capacity changes are recorded immediately but only applied on the next
//     update; the live contents are never truncated or grown out of band.
//   - Engine: the single mutator of a Window. Update takes a snapshot, calls
//     the gateway under the deadline, merges the batch and returns an Outcome
//     with the before/after snapshots, the fetched batch, the mean and the
//     elapsed time.
//
// Merge policy
//   - Values of the batch that are already in the window, or that repeat an
//     earlier value of the same batch, are skipped.
//   - The remaining values are appended in batch order.
//   - While the window exceeds its capacity the oldest inserted value is
//     evicted (FIFO by insertion, never by value).
//
// Failure handling
//   - Any gateway failure, including a missed deadline, is returned as a
//     *FetchError wrapping source.ErrTimeout or source.ErrTransport. The window
//     is left exactly as it was and no Outcome is produced.
//   - The Engine never retries; retry policy belongs to the caller.
//
// Concurrency
//   - Update holds the engine lock from snapshot to merge, so concurrent
//     callers are serialized and never interleave their read-modify-write.
//
// Usage
//  1. Construct a Window with NewWindow(size).
//  2. Construct an Engine with NewEngine(logger, window, gateway, deadline, warnAfter, metrics).
//  3. Call Update(ctx, category) for each fetch event.
package slidingwindow
