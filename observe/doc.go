// Package observe provides telemetry for the documentation cache engine.
//
// It wires OpenTelemetry tracing and metrics behind a single Observer,
// provides a structured JSON logger with component scoping and secret
// redaction, and defines the engine's domain metrics (lookup outcomes,
// fetch latency, refresh results, queue depth, context truncation).
package observe
