// Package ratelimit throttles traffic per source address with two
// independently configured token-bucket tiers: a lenient one for general
// routes and a strict one for authentication routes, where the budget is a
// brute-force deterrent rather than a capacity control.
//
// Bucket state is sharded by key hash with per-shard locks so unrelated
// addresses never contend on one mutex. Buckets are created lazily on first
// sight of an address and evicted after a time-to-idle window; without
// eviction the per-address map would itself be a denial-of-service vector.
package ratelimit
