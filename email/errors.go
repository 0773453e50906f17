package email

import "errors"

var (
	ErrFailedToSend   = errors.New("failed to send email")
	ErrInvalidConfig  = errors.New("invalid email config")
	ErrInvalidAddress = errors.New("invalid recipient address")
	ErrRenderTemplate = errors.New("failed to render email template")
)
