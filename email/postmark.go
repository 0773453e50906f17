package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrz1836/postmark"
)

// Config holds email sender configuration. The Postmark tokens are optional
// so development environments can run with the DevSender instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}

type postmarkSender struct {
	client *postmark.Client
	config Config
}

// NewPostmarkSender creates a Postmark-backed Sender. All config fields are
// required here: a half-configured mailer should fail startup, not requests.
func NewPostmarkSender(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if !ValidAddress(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if !ValidAddress(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	return &postmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

func (s *postmarkSender) SendVerificationCode(ctx context.Context, to, code string, expiresIn time.Duration) error {
	body, err := renderVerification(code, formatExpiry(expiresIn))
	if err != nil {
		return err
	}
	return s.send(ctx, to, "Your device verification code", body, "device-verification")
}

func (s *postmarkSender) SendPurchaseConfirmation(ctx context.Context, to string, receipt Receipt) error {
	body, err := renderReceipt(receipt)
	if err != nil {
		return err
	}
	return s.send(ctx, to, fmt.Sprintf("Receipt: %s", receipt.ContentTitle), body, "purchase-receipt")
}

func (s *postmarkSender) send(ctx context.Context, to, subject, body, tag string) error {
	if !ValidAddress(to) {
		return ErrInvalidAddress
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.config.SenderEmail,
		ReplyTo:    s.config.SupportEmail,
		To:         to,
		Subject:    subject,
		Tag:        tag,
		HTMLBody:   body,
		TrackOpens: true,
	})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSend, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
