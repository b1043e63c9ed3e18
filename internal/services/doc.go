// Package services defines shared utilities consumed by the resolver, the
// catalog client, and the request gateway.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers, group keys, and
//     release names for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (transport, rate limit, upstream) without string matching.
//
// Use these helpers when wiring new lookup paths so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
