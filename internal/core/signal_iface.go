package core

// Frame is one encoded signaling message as it goes over the wire.
type Frame []byte

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues the frame without blocking. Delivery is
	// fire-and-forget: a full per-recipient buffer is an error the
	// caller may drop on.
	TrySend(Frame) error
	Close()
}
