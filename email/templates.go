package email

import (
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Your verification code</h2>
  <p>Enter this code to view your purchase on this device:</p>
  <p style="font-size: 32px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
  <p>The code expires in {{.ExpiresIn}}. If you didn't request it, you can ignore this email.</p>
</body>
</html>`))

var receiptTmpl = template.Must(template.New("receipt").Parse(`<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Thanks for your purchase</h2>
  <p>You bought <strong>{{.ContentTitle}}</strong> for {{.Amount}}.</p>
  <p>Your content is available for {{.AccessWindow}} from the time of purchase.</p>
  <p>Keep this email: verifying a new device uses the same email address.</p>
</body>
</html>`))

func renderVerification(code, expiresIn string) (string, error) {
	var sb strings.Builder
	err := verificationTmpl.Execute(&sb, struct{ Code, ExpiresIn string }{code, expiresIn})
	if err != nil {
		return "", errors.Join(ErrRenderTemplate, err)
	}
	return sb.String(), nil
}

func renderReceipt(r Receipt) (string, error) {
	amount := fmt.Sprintf("%s %.2f", strings.ToUpper(r.Currency), float64(r.AmountCents)/100)

	var sb strings.Builder
	err := receiptTmpl.Execute(&sb, struct {
		ContentTitle string
		Amount       string
		AccessWindow string
	}{r.ContentTitle, amount, formatWindow(r)})
	if err != nil {
		return "", errors.Join(ErrRenderTemplate, err)
	}
	return sb.String(), nil
}

func formatExpiry(d time.Duration) string {
	if d < time.Hour {
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	h := int(d.Hours())
	if h == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", h)
}

func formatWindow(r Receipt) string {
	hours := int(r.AccessWindow.Hours())
	if hours >= 24 && hours%24 == 0 {
		days := hours / 24
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
