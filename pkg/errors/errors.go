package chat_errors

import "errors"

// Common errors
var (
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrInvalidParticipants  = errors.New("invalid participants")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotAParticipant      = errors.New("not a participant")
	ErrCreationFailed       = errors.New("conversation creation failed")
	ErrTransientStore       = errors.New("store temporarily unavailable")
	ErrMessageNotFound      = errors.New("message not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrRateLimited          = errors.New("rate limited")
	ErrSendInFlight         = errors.New("a message is already being sent")
)
