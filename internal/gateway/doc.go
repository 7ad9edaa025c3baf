// Package gateway maintains the websocket connection to an Eludris gateway.
//
// Handler runs a supervised loop:
//
//	connect → HELLO → AUTHENTICATE → heartbeat + poll → teardown → backoff → connect …
//
// Frames are JSON envelopes {"op": ..., "d": ...}. PING/PONG are handled
// here; every other opcode is handed to the dispatch manager's consumer
// registry. Transport failures are retried indefinitely with capped
// exponential backoff once the first connection has succeeded.
package gateway
