// Package wire owns the bridge message shapes on top of the protocol
// frame/tlv primitives.
//
// Ownership boundary:
// - announce/call/result/event envelopes
// - per-message schema validation
// - the structured/binary payload split
//
// The structured argument of a message is JSON serialized into one bytes
// field; the optional binary payload rides in a second bytes field. The
// two are never interleaved and the binary buffer is carried verbatim,
// with no text encoding. A nil payload encodes as field absence and
// decodes back to nil.
package wire
