// Package bridge owns the connector protocol core between two isolated
// processes.
//
// Ownership boundary:
// - connector registry and creation handshake
// - correlated peer calls (ExecPeer) and the pending-call table
// - fire-and-forget event fan-out (TriggerPeer/On/Off)
// - inbound frame dispatch
//
// The physical transport is consumed through transport.Link; the core
// assumes frames arrive reliably and in order per session, or that the
// link reports disconnection exactly once.
package bridge
