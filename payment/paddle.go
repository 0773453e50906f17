package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle payment provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider on the Paddle Billing API. A payment
// intent maps onto a Paddle transaction: the hosted checkout URL plays the
// role of the client secret and the transaction ID is the intent ref.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	config   PaddleConfig
}

// NewPaddleProvider creates a Paddle-backed payment provider.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		config:   cfg,
	}, nil
}

// CreateIntent opens a Paddle transaction for the content's catalog price.
// Amount and currency ride along in custom data so webhook reconciliation
// can cross-check the charge against the purchase record.
func (p *PaddleProvider) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	if params.PriceRef == "" {
		return nil, fmt.Errorf("%w: price ref is required", ErrProviderError)
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  params.PriceRef,
		Quantity: 1,
	})

	customData := paddle.CustomData{
		"amount_cents": fmt.Sprintf("%d", params.AmountCents),
		"currency":     params.Currency,
	}
	for k, v := range params.Metadata {
		customData[k] = v
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomData: customData,
	})
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	if transaction.Checkout == nil || transaction.Checkout.URL == nil || *transaction.Checkout.URL == "" {
		return nil, ErrNoClientSecret
	}

	return &Intent{
		ClientSecret: *transaction.Checkout.URL,
		Ref:          transaction.ID,
	}, nil
}

// GetIntentStatus reads the current transaction state from Paddle and
// normalizes it. Only a completed or paid transaction counts as succeeded.
func (p *PaddleProvider) GetIntentStatus(ctx context.Context, ref string) (IntentStatus, error) {
	if ref == "" {
		return "", ErrIntentNotFound
	}

	transaction, err := p.client.TransactionsClient.GetTransaction(ctx, &paddle.GetTransactionRequest{
		TransactionID: ref,
	})
	if err != nil {
		return "", errors.Join(ErrProviderError, err)
	}

	switch string(transaction.Status) {
	case "completed", "paid":
		return IntentStatusSucceeded, nil
	case "canceled":
		return IntentStatusFailed, nil
	default:
		// draft, ready, billed, past_due: the buyer has not finished paying.
		return IntentStatusPending, nil
	}
}

// WebhookEvent is a reduced view of a provider webhook: just enough to
// drive a purchase confirmation.
type WebhookEvent struct {
	EventType  string
	IntentRef  string
	PurchaseID string
	Status     string
}

// ParseWebhook verifies the Paddle signature and extracts the transaction
// reference plus the purchase ID planted in custom data at intent creation.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var paddleEvent struct {
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &paddleEvent); err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	event := &WebhookEvent{EventType: paddleEvent.EventType}
	if id, ok := paddleEvent.Data["id"].(string); ok {
		event.IntentRef = id
	}
	if status, ok := paddleEvent.Data["status"].(string); ok {
		event.Status = status
	}
	if customData, ok := paddleEvent.Data["custom_data"].(map[string]any); ok {
		if purchaseID, ok := customData["purchase_id"].(string); ok {
			event.PurchaseID = purchaseID
		}
	}

	return event, nil
}
