// Package gateway sends GraphQL queries to the catalog endpoint through a
// shared rate limiter.
//
// Responses are classified into a Result rather than probed ad hoc:
// a 404 is an Empty result, structured errors land in Result.Errors, and
// only failures the limiter could not absorb are returned as Go errors.
// Rate limiting (429) and transport failures open the limiter's shared gate;
// a 500 is retried once immediately. Surfaced failures are reported to a
// notification sink without blocking the caller.
package gateway
