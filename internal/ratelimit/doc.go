// Package ratelimit implements distributed admission control backed by a
// shared Redis store.
//
// Each subject (user, API key, IP, or a "subject:operation" composite) owns a
// token bucket holding up to limit tokens that refills continuously at
// limit/window tokens per second. Every admitted request consumes one token.
// Because bucket state lives in Redis and is mutated only by a Lua script
// executed atomically inside the store, one global budget holds across any
// number of application processes without a client-side lock.
//
// The package deliberately fails open: when Redis is unreachable, times out,
// or returns something unexpected, CheckLimit admits the request instead of
// returning an error. An admission layer that fails closed turns a store
// outage into a full service outage; failing open trades temporarily
// unbounded throughput for availability. The only outcome ever surfaced to
// end users is a denial, which HTTP middleware translates to a 429.
//
// Bucket state is persisted with a TTL of window plus a fixed margin, so
// idle buckets are reclaimed by Redis itself. There is no sweeper. A bucket
// whose TTL expired is indistinguishable from one that never existed and
// reinitializes with full capacity on the next check.
package ratelimit
