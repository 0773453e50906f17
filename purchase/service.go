package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/paygate/content"
	"github.com/dmitrymomot/paygate/email"
	"github.com/dmitrymomot/paygate/payment"
	"github.com/dmitrymomot/paygate/pkg/token"
	"github.com/dmitrymomot/paygate/session"
)

// tokenPrefix marks purchase access tokens in logs and storage.
const tokenPrefix = "at_"

// Config holds purchase settings.
type Config struct {
	AccessWindow time.Duration `env:"ACCESS_WINDOW" envDefault:"48h"` // AccessWindow bounds content access after purchase; used here for receipt wording.
}

// Service orchestrates purchase creation and confirmation against the
// payment provider. All collaborators are injected interfaces.
type Service struct {
	store    Store
	contents content.Store
	sessions *session.Manager
	provider payment.Provider
	mailer   email.Sender
	cfg      Config
	log      *slog.Logger
}

// NewService creates a purchase service.
func NewService(
	store Store,
	contents content.Store,
	sessions *session.Manager,
	provider payment.Provider,
	mailer email.Sender,
	cfg Config,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:    store,
		contents: contents,
		sessions: sessions,
		provider: provider,
		mailer:   mailer,
		cfg:      cfg,
		log:      log,
	}
}

// CreateParams identifies what is being bought and by whom.
type CreateParams struct {
	ContentID    uuid.UUID
	BuyerEmail   string
	SessionToken string
}

// CreateResult is the outcome of Create. When AlreadyPurchased is true the
// buyer holds an existing entitlement: AccessToken is the original token
// and no new charge was made.
type CreateResult struct {
	AlreadyPurchased bool
	PurchaseID       uuid.UUID
	ClientSecret     string
	AmountCents      int64
	Currency         string
	AccessToken      string
}

// Create starts a purchase. An existing paid purchase for the same
// (content, buyer email) short-circuits to the original entitlement with
// no new charge and no new row. Otherwise a pending purchase is created
// with an inert access token and a payment intent is opened.
func (s *Service) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	buyerEmail := strings.ToLower(strings.TrimSpace(params.BuyerEmail))
	if !email.ValidAddress(buyerEmail) {
		return nil, ErrInvalidEmail
	}

	sess, err := s.sessions.Get(ctx, params.SessionToken)
	if err != nil {
		return nil, err
	}

	c, err := s.contents.Get(ctx, params.ContentID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.store.FindPaid(ctx, params.ContentID, buyerEmail); err == nil {
		return &CreateResult{
			AlreadyPurchased: true,
			PurchaseID:       existing.ID,
			AccessToken:      existing.AccessToken,
		}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	accessToken, err := token.New(tokenPrefix)
	if err != nil {
		return nil, err
	}

	p := &Purchase{
		ID:          uuid.New(),
		ContentID:   c.ID,
		BuyerEmail:  buyerEmail,
		SessionID:   sess.ID,
		AmountCents: c.PriceCents,
		Currency:    c.Currency,
		Status:      StatusPendingPayment,
		AccessToken: accessToken,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicatePaid) {
			// A concurrent request completed a purchase first; fall back to
			// the short-circuit rather than surfacing a conflict.
			if existing, ferr := s.store.FindPaid(ctx, params.ContentID, buyerEmail); ferr == nil {
				return &CreateResult{
					AlreadyPurchased: true,
					PurchaseID:       existing.ID,
					AccessToken:      existing.AccessToken,
				}, nil
			}
		}
		return nil, err
	}

	intent, err := s.provider.CreateIntent(ctx, payment.CreateIntentParams{
		PriceRef:    c.PriceRef,
		AmountCents: c.PriceCents,
		Currency:    c.Currency,
		Metadata: map[string]string{
			"purchase_id": p.ID.String(),
			"content_id":  c.ID.String(),
		},
	})
	if err != nil {
		if ferr := s.store.MarkFailed(ctx, p.ID); ferr != nil {
			s.log.ErrorContext(ctx, "failed to mark purchase failed after intent error",
				"purchase_id", p.ID, "error", ferr)
		}
		return nil, err
	}

	if err := s.store.SetPaymentIntent(ctx, p.ID, intent.Ref); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "purchase created",
		"purchase_id", p.ID, "content_id", c.ID, "amount_cents", c.PriceCents)

	return &CreateResult{
		PurchaseID:   p.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  c.PriceCents,
		Currency:     c.Currency,
		AccessToken:  accessToken,
	}, nil
}

// StatusResult is the read-only view returned by Verify. AccessToken is
// present only when the purchase is paid.
type StatusResult struct {
	PurchaseID  uuid.UUID
	Status      Status
	AccessToken string
	PurchasedAt *time.Time
}

// Verify reports the purchase's current status. Used for polling after
// asynchronous payment confirmation such as 3-D Secure challenges.
func (s *Service) Verify(ctx context.Context, purchaseID uuid.UUID) (*StatusResult, error) {
	p, err := s.store.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		PurchaseID:  p.ID,
		Status:      p.Status,
		PurchasedAt: p.PurchasedAt,
	}
	if p.IsPaid() {
		result.AccessToken = p.AccessToken
	}
	return result, nil
}

// ConfirmResult is the outcome of Confirm.
type ConfirmResult struct {
	PurchaseID  uuid.UUID
	Status      Status
	AccessToken string
}

// Confirm reconciles a payment confirmation into a paid purchase. The
// intent's success is re-checked with the provider; the client's word is
// never enough. Confirm is idempotent: repeating it on a paid purchase
// returns the same result without re-sending the receipt.
func (s *Service) Confirm(ctx context.Context, purchaseID uuid.UUID, intentRef string) (*ConfirmResult, error) {
	p, err := s.store.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	if p.IsPaid() {
		return &ConfirmResult{PurchaseID: p.ID, Status: p.Status, AccessToken: p.AccessToken}, nil
	}
	if p.Status != StatusPendingPayment {
		return nil, fmt.Errorf("%w: purchase is %s", ErrPaymentNotConfirmed, p.Status)
	}

	status, err := s.provider.GetIntentStatus(ctx, intentRef)
	if err != nil {
		return nil, err
	}
	if status != payment.IntentStatusSucceeded {
		return nil, fmt.Errorf("%w: intent status is %s", ErrPaymentNotConfirmed, status)
	}

	paidAt := time.Now()
	transitioned, err := s.store.MarkPaid(ctx, p.ID, intentRef, paidAt)
	if err != nil {
		if errors.Is(err, ErrDuplicatePaid) {
			// Another pending purchase for the same (content, buyer email)
			// was paid first. Retire this row and hand back the existing
			// entitlement; the buyer did pay and must not see a failure.
			if ferr := s.store.MarkFailed(ctx, p.ID); ferr != nil {
				s.log.ErrorContext(ctx, "failed to retire duplicate purchase",
					"purchase_id", p.ID, "error", ferr)
			}
			existing, ferr := s.store.FindPaid(ctx, p.ContentID, p.BuyerEmail)
			if ferr != nil {
				return nil, ferr
			}
			return &ConfirmResult{
				PurchaseID:  existing.ID,
				Status:      existing.Status,
				AccessToken: existing.AccessToken,
			}, nil
		}
		return nil, err
	}
	if !transitioned {
		// Lost the race to a concurrent confirmation; re-read for the
		// idempotent answer.
		p, err = s.store.GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if !p.IsPaid() {
			return nil, fmt.Errorf("%w: purchase is %s", ErrPaymentNotConfirmed, p.Status)
		}
		return &ConfirmResult{PurchaseID: p.ID, Status: p.Status, AccessToken: p.AccessToken}, nil
	}

	s.log.InfoContext(ctx, "purchase paid",
		"purchase_id", p.ID, "content_id", p.ContentID, "intent_ref", intentRef)

	// The receipt is a courtesy; a mail outage must not fail a completed
	// payment. This is the one place a collaborator error is logged
	// instead of returned.
	s.sendReceipt(ctx, p, paidAt)

	return &ConfirmResult{PurchaseID: p.ID, Status: StatusPaid, AccessToken: p.AccessToken}, nil
}

func (s *Service) sendReceipt(ctx context.Context, p *Purchase, paidAt time.Time) {
	c, err := s.contents.Get(ctx, p.ContentID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to load content for receipt", "purchase_id", p.ID, "error", err)
		return
	}
	err = s.mailer.SendPurchaseConfirmation(ctx, p.BuyerEmail, email.Receipt{
		ContentTitle: c.Title,
		AmountCents:  p.AmountCents,
		Currency:     p.Currency,
		PurchasedAt:  paidAt,
		AccessWindow: s.cfg.AccessWindow,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "failed to send purchase receipt", "purchase_id", p.ID, "error", err)
	}
}

// ListBySession returns the purchases made under a session token, newest
// first.
func (s *Service) ListBySession(ctx context.Context, sessionToken string) ([]Purchase, error) {
	sess, err := s.sessions.Get(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	return s.store.ListBySession(ctx, sess.ID)
}
