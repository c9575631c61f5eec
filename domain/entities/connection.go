package entities

// ConnState is the lifecycle state of a session connection. At most one live
// transport exists per logical session.
type ConnState int32

const (
	ConnIdle ConnState = iota
	ConnConnecting
	ConnOpen
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FrameKind distinguishes the two wire representations of an inbound frame.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)

// InboundFrame is one discrete unit received over the socket. Frames are
// ephemeral: they are classified into a Message and not retained.
type InboundFrame struct {
	Kind    FrameKind
	Payload []byte
}
