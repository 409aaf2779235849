package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomNotReady    = errors.New("room not ready")
	ErrRoomFull        = errors.New("room is full")
	ErrKindMismatch    = errors.New("room kind mismatch")
	ErrAlreadyJoined   = errors.New("user already joined the room")
	ErrNotInRoom       = errors.New("user not in the room")
	ErrNotInvited      = errors.New("user not invited to the room")
	ErrMessageNotFound = errors.New("message not found")
	ErrQuotaExceeded   = errors.New("usage quota exceeded")
)
