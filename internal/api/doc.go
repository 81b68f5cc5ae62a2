// Package api implements the HTTP REST API and WebSocket server for mqttscope.
//
// This package provides:
//   - REST endpoints for connection profiles, connect/disconnect, subscriptions and publishing
//   - Read-only projections of the message log, topic tree and traffic statistics
//   - WebSocket hub relaying workspace events (state, messages, errors, log lines)
//   - Middleware stack (request ID, logging, recovery, CORS, body size limit)
//   - TLS support for the listener
//
// # Architecture
//
// The API server sits between an external UI and the workspace. Commands
// flow from the API into the workspace, which routes them to the right
// session. Session events flow back through the workspace, which applies
// them to its stores and then hands them to the hub for broadcast.
//
// # WebSocket Channels
//
//	connection.state  state transitions per connection id
//	message           inbound and outbound messages
//	connection.error  transport errors
//	connection.log    per-connection activity log lines
//
// # Security
//
// The API is a local single-operator surface and binds to 127.0.0.1 by
// default. There are no user accounts.
package api
