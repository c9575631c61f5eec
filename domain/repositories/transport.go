package repositories

import (
	"github.com/maremivazquez1/dta-client/domain/entities"
)

// Transport is the session's connection to the backend. Sends while the
// connection is not open are dropped with a logged warning rather than
// returned as errors; callers must not assume delivery.
type Transport interface {
	// SendText queues one UTF-8 text frame.
	SendText(payload []byte)

	// SendBinary queues one binary frame.
	SendBinary(payload []byte)

	// Frames yields inbound frames until the connection closes. The channel
	// is closed when the transport ends, whatever the cause.
	Frames() <-chan entities.InboundFrame

	State() entities.ConnState

	// Close is idempotent and safe to call from any state.
	Close() error
}
