package entitlement

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/paygate/content"
	"github.com/dmitrymomot/paygate/email"
	"github.com/dmitrymomot/paygate/purchase"
)

// Config holds the entitlement policy knobs. The defaults are the
// production values; tests override them through the struct directly.
type Config struct {
	MaxTrustedDevices int           `env:"MAX_TRUSTED_DEVICES" envDefault:"3"`       // MaxTrustedDevices caps the trusted set per purchase.
	AccessWindow      time.Duration `env:"ACCESS_WINDOW" envDefault:"48h"`           // AccessWindow bounds access after purchase time.
	CodeExpiry        time.Duration `env:"VERIFICATION_CODE_EXPIRY" envDefault:"10m"` // CodeExpiry bounds verification code validity.
}

// Engine is the access entitlement state machine. Per (purchase,
// fingerprint) the conceptual states are: no access, pending verification,
// trusted, expired. State lives entirely in the stores; the engine is
// stateless and safe for concurrent use.
type Engine struct {
	purchases purchase.Store
	store     Store
	mailer    email.Sender
	resolver  *content.Resolver
	cfg       Config
	log       *slog.Logger
}

// NewEngine creates an entitlement engine.
func NewEngine(
	purchases purchase.Store,
	store Store,
	mailer email.Sender,
	resolver *content.Resolver,
	cfg Config,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		purchases: purchases,
		store:     store,
		mailer:    mailer,
		resolver:  resolver,
		cfg:       cfg,
		log:       log,
	}
}

// CheckEligibility evaluates whether the device may view the purchase.
// Domain outcomes are encoded in the Decision; the error return is for
// store failures only.
func (e *Engine) CheckEligibility(ctx context.Context, accessToken, fingerprint string) (Decision, error) {
	p, err := e.purchases.GetByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, purchase.ErrNotFound) {
			return Decision{Reason: ReasonInvalidToken}, nil
		}
		return Decision{}, err
	}
	if !p.IsPaid() || p.PurchasedAt == nil {
		return Decision{Reason: ReasonInvalidToken}, nil
	}

	expiresAt := p.PurchasedAt.Add(e.cfg.AccessWindow)
	if time.Now().After(expiresAt) {
		// The window overrides device trust entirely.
		return Decision{Reason: ReasonWindowExpired, IsExpired: true}, nil
	}

	trusted, err := e.store.IsTrusted(ctx, p.ID, fingerprint)
	if err != nil {
		return Decision{}, err
	}
	if trusted {
		return Decision{
			HasAccess:       true,
			Reason:          ReasonGranted,
			AccessExpiresAt: expiresAt,
			TimeRemaining:   int64(time.Until(expiresAt).Seconds()),
		}, nil
	}

	count, err := e.store.CountDevices(ctx, p.ID)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Reason:                 ReasonDeviceNotTrusted,
		NeedsEmailVerification: true,
		CanAddMoreDevices:      count < e.cfg.MaxTrustedDevices,
	}, nil
}

// AccessView is what an entitled device receives: the resolved content and
// the purchase's display state.
type AccessView struct {
	Content         *content.View `json:"content"`
	ViewCount       int64         `json:"view_count"`
	PurchasedAt     time.Time     `json:"purchased_at"`
	AccessExpiresAt time.Time     `json:"access_expires_at"`
}

// Access re-runs the full validation, then increments the view counter and
// resolves the content. It never trusts a prior eligibility check from a
// separate call; failures surface as the same typed errors the check
// produces.
func (e *Engine) Access(ctx context.Context, accessToken, fingerprint string) (*AccessView, error) {
	p, err := e.entitled(ctx, accessToken, fingerprint)
	if err != nil {
		return nil, err
	}

	if err := e.purchases.IncrementViewCount(ctx, p.ID); err != nil {
		return nil, err
	}

	view, err := e.resolver.Resolve(ctx, p.ContentID)
	if err != nil {
		return nil, err
	}

	return &AccessView{
		Content:         view,
		ViewCount:       p.ViewCount + 1,
		PurchasedAt:     *p.PurchasedAt,
		AccessExpiresAt: p.PurchasedAt.Add(e.cfg.AccessWindow),
	}, nil
}

// RequestDeviceVerification issues a verification code for an unrecognized
// fingerprint and emails it to the buyer. The device cap is re-checked
// here, never assumed from an earlier eligibility response.
func (e *Engine) RequestDeviceVerification(ctx context.Context, accessToken, fingerprint, toEmail string) error {
	toEmail = strings.ToLower(strings.TrimSpace(toEmail))
	if !email.ValidAddress(toEmail) {
		return email.ErrInvalidAddress
	}

	p, err := e.paidUnexpired(ctx, accessToken)
	if err != nil {
		return err
	}

	trusted, err := e.store.IsTrusted(ctx, p.ID, fingerprint)
	if err != nil {
		return err
	}
	if trusted {
		return ErrDeviceAlreadyTrusted
	}

	count, err := e.store.CountDevices(ctx, p.ID)
	if err != nil {
		return err
	}
	if count >= e.cfg.MaxTrustedDevices {
		return ErrDeviceLimitReached
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	now := time.Now()
	vc := &VerificationCode{
		ID:          uuid.New(),
		PurchaseID:  p.ID,
		Fingerprint: fingerprint,
		Code:        code,
		IssuedAt:    now,
		ExpiresAt:   now.Add(e.cfg.CodeExpiry),
	}
	if err := e.store.IssueCode(ctx, vc); err != nil {
		return err
	}

	// A code the buyer never receives is useless, so a mail failure fails
	// the request.
	if err := e.mailer.SendVerificationCode(ctx, toEmail, code, e.cfg.CodeExpiry); err != nil {
		return err
	}

	e.log.InfoContext(ctx, "device verification code issued", "purchase_id", p.ID)
	return nil
}

// VerifyDeviceCode validates the code and promotes the fingerprint into
// the trusted set. Consumption and insertion are one atomic store
// operation, so the cap holds even under concurrent verifications.
func (e *Engine) VerifyDeviceCode(ctx context.Context, accessToken, fingerprint, code string) error {
	p, err := e.paidUnexpired(ctx, accessToken)
	if err != nil {
		return err
	}

	vc, err := e.store.LatestCode(ctx, p.ID, fingerprint)
	if err != nil {
		return err
	}
	if vc.IsExpired() {
		return ErrVerificationCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(vc.Code), []byte(code)) != 1 {
		return ErrVerificationCodeMismatch
	}

	err = e.store.ConsumeAndTrust(ctx, vc.ID, p.ID, fingerprint, e.cfg.MaxTrustedDevices)
	if err != nil {
		return err
	}

	e.log.InfoContext(ctx, "device trusted", "purchase_id", p.ID)
	return nil
}

// entitled resolves the purchase and requires full entitlement: paid,
// inside the window, trusted fingerprint.
func (e *Engine) entitled(ctx context.Context, accessToken, fingerprint string) (*purchase.Purchase, error) {
	p, err := e.paidUnexpired(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	trusted, err := e.store.IsTrusted(ctx, p.ID, fingerprint)
	if err != nil {
		return nil, err
	}
	if !trusted {
		count, err := e.store.CountDevices(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return nil, &NotTrustedError{CanAddMoreDevices: count < e.cfg.MaxTrustedDevices}
	}
	return p, nil
}

// paidUnexpired resolves the purchase and requires it paid and inside the
// access window.
func (e *Engine) paidUnexpired(ctx context.Context, accessToken string) (*purchase.Purchase, error) {
	p, err := e.purchases.GetByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, purchase.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if !p.IsPaid() || p.PurchasedAt == nil {
		return nil, ErrTokenInvalid
	}
	if time.Now().After(p.PurchasedAt.Add(e.cfg.AccessWindow)) {
		return nil, ErrWindowExpired
	}
	return p, nil
}

// generateCode returns a 6-digit numeric code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
