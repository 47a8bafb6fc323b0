// Package protocol owns the bridge wire contract and parsing primitives.
//
// Ownership boundary:
// - fixed frame header primitives
// - tlv payload primitives
// - decode limits
//
// Message-level shapes (announce/call/result/event) live in protocol/wire.
package protocol
