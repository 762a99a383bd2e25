// Package rpc implements the JSON-RPC-style tool invocation protocol.
//
// The Dispatcher validates inbound request envelopes, routes initialize,
// tools/list and tools/call, and serializes replies to an outbound Sender.
// Each request is a single atomic request/response exchange; no session
// state is kept between requests.
package rpc
