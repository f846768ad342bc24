// Package gateway delivers call-control messages over a WebSocket connection.
//
// Gateway implements the call.SignalingGateway interface: each call event is
// encoded into its signaling envelope, wrapped with the conversation id, and
// written as one text frame. Writes are serialized on a mutex because
// gorilla/websocket permits only one concurrent writer per connection.
package gateway
