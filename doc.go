// Package sessiongate is a session-security gateway core: it issues and
// rotates short-lived credential pairs, blocks forged cross-origin state
// changes, throttles abusive traffic, and keeps the request-handling path
// off synchronous storage I/O.
//
// The root package ties the pieces together behind [Gateway]. The moving
// parts live in subpackages:
//
//   - token: signed access/refresh pair issuance and typed validation
//   - rotation: Redis-backed refresh rotation records with reuse detection
//   - csrf: double-submit cookie verification for browser clients
//   - ratelimit: dual-tier sharded per-address token buckets
//   - transport: cookie-vs-body credential delivery by client kind
//   - bridge: bounded worker pool for blocking storage calls
//   - client: single-flight refresh coordinator for native callers
//
// Business storage stays behind the [CredentialStore] interface; the
// gateway never calls it directly from the request path, only through the
// bridge.
package sessiongate
