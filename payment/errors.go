package payment

import "errors"

var (
	ErrMissingAPIKey             = errors.New("payment provider API key is required")
	ErrMissingWebhookSecret      = errors.New("payment provider webhook secret is required")
	ErrInvalidEnvironment        = errors.New("invalid payment provider environment")
	ErrProviderError             = errors.New("payment provider error")
	ErrNoClientSecret            = errors.New("no checkout URL returned from provider")
	ErrIntentNotFound            = errors.New("payment intent not found")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
)
