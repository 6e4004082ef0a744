package domain

import "errors"

var (
	ErrMissingCredential = errors.New("missing API key: set KEEPSAKE_API_KEY")
	ErrIncompleteInput   = errors.New("name, relationship, detail and mood are all required")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrSessionNotFound   = errors.New("session not found")
	ErrKeepsakeNotFound  = errors.New("keepsake not found")
	ErrNoImageData       = errors.New("no image data in response")
	ErrNoAudio           = errors.New("no audio available")
)

// ErrorKind distinguishes the two failures a user can see.
type ErrorKind string

const (
	ErrorKindQuota   ErrorKind = "quota"
	ErrorKindGeneric ErrorKind = "generic"
)

const (
	quotaMessage   = "So many memories are being written right now. Please wait a minute and try again."
	genericMessage = "The connection was lost while your letter was being written. Please try again."
)

// UserError is a failure already translated for the person using the app.
type UserError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *UserError) Error() string {
	return e.Message
}

// NewUserError builds the user-facing error for a letter failure.
func NewUserError(quota bool) *UserError {
	if quota {
		return &UserError{Kind: ErrorKindQuota, Message: quotaMessage}
	}
	return &UserError{Kind: ErrorKindGeneric, Message: genericMessage}
}
