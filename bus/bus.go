// Package bus holds the wire model shared with the gateway process: the
// envelope and its codec, snapshot types, inbound events and outbound requests.
package bus

import (
	"context"
)

const (
	// QueueRequests carries correlated requests to the gateway.
	QueueRequests = "gateway.requests"
	// QueueAudio carries fire-and-forget audio intents.
	QueueAudio = "audio.intents"
)

// Publisher hands an envelope to the bus transport.
type Publisher interface {
	Publish(ctx context.Context, queue string, env Envelope) error
}

// Typed is implemented by every message that travels on the bus.
type Typed interface {
	BusType() string
}

// NewEnvelope wraps msg in an uncorrelated envelope.
func NewEnvelope(msg Typed) Envelope {
	return Envelope{Type: msg.BusType(), Payload: msg}
}
