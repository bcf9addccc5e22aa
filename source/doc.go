// Package source defines the upstream documentation source consumed by
// the cache engine.
//
// It provides the Source interface, a four-way fetch error taxonomy
// (not found, rate limited, network, auth), an HTTP implementation, and
// credential handling with local expiry detection for JWT bearer tokens.
package source
