// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern. The API server uses
// it to push speed limit state changes to every subscriber.
package hub

// Message is one pre-encoded JSON payload queued for delivery to clients.
type Message struct {
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON bytes
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}
