package domain

import "errors"

var (
	// ErrInvalidTransition is returned when an event is not legal in the
	// room's current state (e.g. answering before the battle starts).
	ErrInvalidTransition = errors.New("event not allowed in current room state")
	// ErrRoomFull is returned when a new user joins a room at capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomClosed is returned when a new user joins an ended or expired room.
	ErrRoomClosed = errors.New("room is closed")
	// ErrForbidden is returned for writes the sender is not allowed to make
	// (spectator writes, non-creator start, acting before joining).
	ErrForbidden = errors.New("sender not allowed to perform this action")
	// ErrDuplicateAnswer is returned when a question index was already scored.
	ErrDuplicateAnswer = errors.New("question already answered")
	// ErrRoomNotFound is returned when the room id is unknown.
	ErrRoomNotFound = errors.New("room not found")
	// ErrChapterNotFound is returned when a chapter label resolves to nothing.
	ErrChapterNotFound = errors.New("chapter not found")
)

// ErrorCode maps a room error to the stable code carried by the error event.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, ErrRoomClosed):
		return "ROOM_CLOSED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrDuplicateAnswer):
		return "DUPLICATE_ANSWER"
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrChapterNotFound):
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
