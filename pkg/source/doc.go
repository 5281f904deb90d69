// Package source provides the gateways that fetch batches of numbers for a
// category from an upstream feed.
//
// Two variants implement Gateway and are selected once at construction time
// via New:
//   - SimulatedGenerator: serves shuffled subsets of fixed pools after a random
//     delay and fails with ErrTransport at a configurable rate.
//   - HTTPGateway: issues GET <base>/<path> and decodes {"numbers": [...]}.
//
// Every fetch is bounded by the caller's context. A fetch that does not complete
// before the context deadline fails with ErrTimeout; every other failure is
// reported as ErrTransport. Callers match on the sentinels with errors.Is.
package source
