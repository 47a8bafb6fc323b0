// Package transport owns the delivery boundary underneath the bridge
// core.
//
// Ownership boundary:
// - the Link/Handler contract consumed by the bridge
// - in-process pipe pair for tests and same-process wiring
// - framed TCP session with optional TLS
// - dial retry/backoff primitives
//
// A link delivers opaque frames reliably and in order, or reports
// disconnection exactly once. The bridge never sees partial frames.
package transport
