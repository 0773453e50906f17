package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DevSender implements Sender for local development: emails are written to
// a directory as HTML plus a JSON metadata file instead of being sent.
type DevSender struct {
	dir string
}

// NewDevSender creates a development sender that writes emails to dir.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir}
}

type devMetadata struct {
	Timestamp string `json:"timestamp"`
	SendTo    string `json:"send_to"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag"`
	Code      string `json:"code,omitempty"`
}

func (d *DevSender) SendVerificationCode(ctx context.Context, to, code string, expiresIn time.Duration) error {
	body, err := renderVerification(code, formatExpiry(expiresIn))
	if err != nil {
		return err
	}
	return d.write(devMetadata{
		SendTo:  to,
		Subject: "Your device verification code",
		Tag:     "device-verification",
		Code:    code,
	}, body)
}

func (d *DevSender) SendPurchaseConfirmation(ctx context.Context, to string, receipt Receipt) error {
	body, err := renderReceipt(receipt)
	if err != nil {
		return err
	}
	return d.write(devMetadata{
		SendTo:  to,
		Subject: fmt.Sprintf("Receipt: %s", receipt.ContentTitle),
		Tag:     "purchase-receipt",
	}, body)
}

func (d *DevSender) write(meta devMetadata, body string) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSend, err)
	}

	now := time.Now()
	meta.Timestamp = now.Format(time.RFC3339)
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02_150405"), meta.Tag)

	if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(body), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write HTML file: %v", ErrFailedToSend, err)
	}

	jsonData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal metadata: %v", ErrFailedToSend, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), jsonData, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write JSON file: %v", ErrFailedToSend, err)
	}
	return nil
}
