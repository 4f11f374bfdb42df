package engine

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomClosed          = errors.New("room closed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidState        = errors.New("invalid state")
	ErrDuplicateSubmission = errors.New("hand already submitted this round")
	ErrCapacityExceeded    = errors.New("no room code available")
	ErrUnsupportedCommand  = errors.New("unsupported command")
)

// Wire codes carried by the Error message.
const (
	CodeDecodeError         = "DecodeError"
	CodeRoomNotFound        = "RoomNotFound"
	CodeRoomClosed          = "RoomClosed"
	CodeUnauthorized        = "Unauthorized"
	CodeInvalidState        = "InvalidState"
	CodeDuplicateSubmission = "DuplicateSubmission"
	CodeCapacityExceeded    = "CapacityExceeded"
	CodeRateLimited         = "RateLimited"
	CodeInternal            = "Internal"
)

// Code maps a domain error to the code sent back to the issuer.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, ErrRoomClosed):
		return CodeRoomClosed
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrUnsupportedCommand):
		return CodeInvalidState
	case errors.Is(err, ErrDuplicateSubmission):
		return CodeDuplicateSubmission
	case errors.Is(err, ErrCapacityExceeded):
		return CodeCapacityExceeded
	default:
		return CodeInternal
	}
}
