package notification

import "errors"

var (
	// ErrNoRecipients is returned when no To recipients are provided
	ErrNoRecipients = errors.New("at least one recipient is required")

	// ErrInvalidRecipient is returned when a recipient has no usable email address
	ErrInvalidRecipient = errors.New("recipient must have a valid email address")

	// ErrNoShareURL is returned when the notice has nothing to link to
	ErrNoShareURL = errors.New("shareable URL is required")

	// ErrSendFailed is returned when the email fails to send
	ErrSendFailed = errors.New("failed to send email")
)
