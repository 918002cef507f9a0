package server

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrGameStarted        = errors.New("match already started")
	ErrCodeSpaceExhausted = errors.New("could not generate a free room code")
	ErrSeatUnavailable    = errors.New("seat cannot be reclaimed")
	ErrNotInRoom          = errors.New("not in a room")
)

// userText is the error_message text for a registry error.
func userText(err error, code string) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "Room " + code + " not found. Check the code."
	case errors.Is(err, ErrRoomFull):
		return "Room is full (max 3 players)."
	case errors.Is(err, ErrGameStarted):
		return "The match has already started. You cannot join."
	case errors.Is(err, ErrSeatUnavailable):
		return "Your seat in room " + code + " is no longer available."
	case errors.Is(err, ErrCodeSpaceExhausted):
		return "Could not create a room, try again."
	default:
		return "Request failed."
	}
}
