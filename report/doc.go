// Package report computes documentation coverage against a required
// manifest and serves the result over HTTP.
//
// A coverage pass classifies every required key as fresh, stale,
// missing, or unavailable, and exposes the aggregate as JSON for
// operators and pre-flight validation.
package report
