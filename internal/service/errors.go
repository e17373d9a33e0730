package service

import "errors"

var (
	ErrInvalidRoomID  = errors.New("invalid room id: only letters, numbers, underscores, and dashes allowed")
	ErrEmptyRoomName  = errors.New("room name must not be empty")
	ErrUnauthorized   = errors.New("access denied: not the room owner")
	ErrInternalServer = errors.New("internal server error")
)
