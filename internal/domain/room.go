package domain

type (
	// RoomID is the room locator clients join by (the meeting code).
	RoomID string

	// SessionID identifies one relay connection; stable for its lifetime.
	SessionID string
)

type Room struct {
	ID RoomID
}
