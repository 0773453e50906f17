package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/content"
	"github.com/dmitrymomot/paygate/email"
	"github.com/dmitrymomot/paygate/entitlement"
	"github.com/dmitrymomot/paygate/httpapi"
	"github.com/dmitrymomot/paygate/payment"
	"github.com/dmitrymomot/paygate/pkg/ratelimiter"
	"github.com/dmitrymomot/paygate/purchase"
	"github.com/dmitrymomot/paygate/session"
)

type stubProvider struct {
	mu     sync.Mutex
	status payment.IntentStatus
	event  *payment.WebhookEvent
}

func (p *stubProvider) CreateIntent(ctx context.Context, params payment.CreateIntentParams) (*payment.Intent, error) {
	return &payment.Intent{ClientSecret: "https://pay.test/checkout", Ref: "txn_" + uuid.NewString()}, nil
}

func (p *stubProvider) GetIntentStatus(ctx context.Context, ref string) (payment.IntentStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, nil
}

func (p *stubProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*payment.WebhookEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.event == nil {
		return nil, payment.ErrWebhookVerificationFailed
	}
	return p.event, nil
}

func (p *stubProvider) setStatus(s payment.IntentStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
}

type stubMailer struct {
	mu    sync.Mutex
	codes []string
}

func (m *stubMailer) SendVerificationCode(ctx context.Context, to, code string, expiresIn time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return nil
}

func (m *stubMailer) SendPurchaseConfirmation(ctx context.Context, to string, receipt email.Receipt) error {
	return nil
}

func (m *stubMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return ""
	}
	return m.codes[len(m.codes)-1]
}

type stubSigner struct{}

func (stubSigner) SignedURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	return "https://cdn.test/" + key, nil
}

type apiFixture struct {
	server    *httptest.Server
	provider  *stubProvider
	mailer    *stubMailer
	purchases purchase.Store
	contentID uuid.UUID
}

func newAPIFixture(t *testing.T, mutate func(*httpapi.Deps)) *apiFixture {
	t.Helper()

	contents := content.NewMemoryStore()
	contentID := uuid.New()
	contents.Put(content.Content{
		ID:          contentID,
		CreatorID:   uuid.New(),
		Title:       "Photo Pack",
		Description: "High-res photo set",
		PriceCents:  900,
		Currency:    "USD",
		PriceRef:    "pri_photos",
		Published:   true,
	}, content.Item{
		ID:         uuid.New(),
		ContentID:  contentID,
		Position:   1,
		Title:      "Archive",
		StorageKey: "packs/photos.zip",
	})

	provider := &stubProvider{status: payment.IntentStatusSucceeded}
	mailer := &stubMailer{}
	purchaseStore := purchase.NewMemoryStore()
	sessions := session.NewManager(session.NewMemoryStore(), session.Config{TTL: time.Hour}, nil)
	resolver := content.NewResolver(contents, stubSigner{}, 15*time.Minute, nil)

	purchases := purchase.NewService(purchaseStore, contents, sessions, provider, mailer,
		purchase.Config{AccessWindow: 48 * time.Hour}, nil)
	entitlements := entitlement.NewEngine(purchaseStore, entitlement.NewMemoryStore(), mailer, resolver,
		entitlement.Config{MaxTrustedDevices: 3, AccessWindow: 48 * time.Hour, CodeExpiry: 10 * time.Minute}, nil)

	deps := httpapi.Deps{
		Sessions:     sessions,
		Purchases:    purchases,
		Entitlements: entitlements,
		Contents:     contents,
		Webhooks:     provider,
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv := httptest.NewServer(httpapi.New(deps))
	t.Cleanup(srv.Close)

	return &apiFixture{
		server:    srv,
		provider:  provider,
		mailer:    mailer,
		purchases: purchaseStore,
		contentID: contentID,
	}
}

// call sends a JSON request and decodes the envelope.
func (f *apiFixture) call(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Device-Fingerprint", "fp-test")

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope map[string]any
	if resp.StatusCode != http.StatusTooManyRequests {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	}
	return resp.StatusCode, envelope
}

func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	d, ok := envelope["data"].(map[string]any)
	require.True(t, ok, "expected data object, got %v", envelope)
	return d
}

func errorCode(t *testing.T, envelope map[string]any) string {
	t.Helper()
	e, ok := envelope["error"].(map[string]any)
	require.True(t, ok, "expected error object, got %v", envelope)
	code, _ := e["code"].(string)
	return code
}

// buyAndConfirm walks the happy purchase path and returns the access token.
func (f *apiFixture) buyAndConfirm(t *testing.T) string {
	t.Helper()

	status, envelope := f.call(t, http.MethodPost, "/session", map[string]any{"fingerprint": "fp-test"})
	require.Equal(t, http.StatusOK, status)
	sessionToken := data(t, envelope)["session_token"].(string)

	status, envelope = f.call(t, http.MethodPost, "/purchase", map[string]any{
		"content_id":    f.contentID.String(),
		"buyer_email":   "buyer@example.com",
		"session_token": sessionToken,
	})
	require.Equal(t, http.StatusCreated, status)
	purchaseID := data(t, envelope)["purchase_id"].(string)
	accessToken := data(t, envelope)["access_token"].(string)

	p, err := f.purchases.GetByID(context.Background(), uuid.MustParse(purchaseID))
	require.NoError(t, err)

	status, _ = f.call(t, http.MethodPost, "/purchase/confirm", map[string]any{
		"purchase_id": purchaseID,
		"payment_ref": p.PaymentIntentRef,
	})
	require.Equal(t, http.StatusOK, status)

	return accessToken
}

func TestSessionEndpoint(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, nil)

	status, envelope := f.call(t, http.MethodPost, "/session", map[string]any{"fingerprint": "fp-test"})
	require.Equal(t, http.StatusOK, status)
	tok := data(t, envelope)["session_token"].(string)
	assert.Contains(t, tok, "ps_")

	// Same fingerprint, same session.
	status, envelope = f.call(t, http.MethodPost, "/session", map[string]any{"fingerprint": "fp-test"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, tok, data(t, envelope)["session_token"].(string))
}

func TestContentPreview(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, nil)

	status, envelope := f.call(t, http.MethodGet, "/content/"+f.contentID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	preview := data(t, envelope)
	assert.Equal(t, "Photo Pack", preview["title"])
	assert.Equal(t, float64(900), preview["price_cents"])
	assert.Equal(t, float64(1), preview["item_count"])
	assert.NotContains(t, preview, "items", "preview must not leak storage keys")

	status, envelope = f.call(t, http.MethodGet, "/content/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "content_not_found", errorCode(t, envelope))

	status, envelope = f.call(t, http.MethodGet, "/content/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", errorCode(t, envelope))
}

func TestPurchaseFlow(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, nil)

	status, envelope := f.call(t, http.MethodPost, "/session", map[string]any{"fingerprint": "fp-test"})
	require.Equal(t, http.StatusOK, status)
	sessionToken := data(t, envelope)["session_token"].(string)

	status, envelope = f.call(t, http.MethodPost, "/purchase", map[string]any{
		"content_id":    f.contentID.String(),
		"buyer_email":   "buyer@example.com",
		"session_token": sessionToken,
	})
	require.Equal(t, http.StatusCreated, status)
	created := data(t, envelope)
	assert.Equal(t, "https://pay.test/checkout", created["client_secret"])
	purchaseID := created["purchase_id"].(string)

	// Pending purchase exposes no token on the status endpoint.
	status, envelope = f.call(t, http.MethodGet, "/purchase/"+purchaseID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending_payment", data(t, envelope)["status"])
	assert.NotContains(t, data(t, envelope), "access_token")

	// Confirmation against a pending intent is refused.
	f.provider.setStatus(payment.IntentStatusPending)
	p, err := f.purchases.GetByID(context.Background(), uuid.MustParse(purchaseID))
	require.NoError(t, err)
	status, envelope = f.call(t, http.MethodPost, "/purchase/confirm", map[string]any{
		"purchase_id": purchaseID,
		"payment_ref": p.PaymentIntentRef,
	})
	require.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "payment_not_confirmed", errorCode(t, envelope))

	f.provider.setStatus(payment.IntentStatusSucceeded)
	status, envelope = f.call(t, http.MethodPost, "/purchase/confirm", map[string]any{
		"purchase_id": purchaseID,
		"payment_ref": p.PaymentIntentRef,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paid", data(t, envelope)["status"])

	// Buying again returns the existing entitlement with a 200.
	status, envelope = f.call(t, http.MethodPost, "/purchase", map[string]any{
		"content_id":    f.contentID.String(),
		"buyer_email":   "buyer@example.com",
		"session_token": sessionToken,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data(t, envelope)["already_purchased"])
	assert.Equal(t, purchaseID, data(t, envelope)["purchase_id"])

	// The session lists the purchase.
	status, envelope = f.call(t, http.MethodGet, "/session/"+sessionToken+"/purchases", nil)
	require.Equal(t, http.StatusOK, status)
	list, ok := envelope["data"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
}

func TestAccessFlow(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, nil)
	accessToken := f.buyAndConfirm(t)

	// Unverified device is told to verify.
	status, envelope := f.call(t, http.MethodPost, "/access", map[string]any{
		"access_token": accessToken,
		"fingerprint":  "fp-test",
	})
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "device_not_trusted", errorCode(t, envelope))

	status, envelope = f.call(t, http.MethodPost, "/access/check-eligibility", map[string]any{
		"access_token": accessToken,
		"fingerprint":  "fp-test",
	})
	require.Equal(t, http.StatusOK, status)
	decision := data(t, envelope)
	assert.Equal(t, false, decision["has_access"])
	assert.Equal(t, "device_not_trusted", decision["reason"])
	assert.Equal(t, true, decision["needs_email_verification"])

	// Verify the device by email code.
	status, _ = f.call(t, http.MethodPost, "/access/request-device-code", map[string]any{
		"access_token": accessToken,
		"fingerprint":  "fp-test",
		"email":        "buyer@example.com",
	})
	require.Equal(t, http.StatusAccepted, status)

	status, envelope = f.call(t, http.MethodPost, "/access/verify-device", map[string]any{
		"access_token": accessToken,
		"fingerprint":  "fp-test",
		"code":         f.mailer.lastCode(),
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data(t, envelope)["device_trusted"])

	// The trusted device now gets signed URLs.
	status, envelope = f.call(t, http.MethodPost, "/access", map[string]any{
		"access_token": accessToken,
		"fingerprint":  "fp-test",
	})
	require.Equal(t, http.StatusOK, status)
	view := data(t, envelope)
	contentView := view["content"].(map[string]any)
	items := contentView["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "https://cdn.test/packs/photos.zip", items[0].(map[string]any)["url"])
	assert.Equal(t, float64(1), view["view_count"])

	// Wrong code paths.
	status, envelope = f.call(t, http.MethodPost, "/access/verify-device", map[string]any{
		"access_token": accessToken,
		"fingerprint":  "fp-other",
		"code":         "123456",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "verification_code_mismatch", errorCode(t, envelope))

	status, envelope = f.call(t, http.MethodPost, "/access", map[string]any{
		"access_token": "at_bogus",
		"fingerprint":  "fp-test",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_token", errorCode(t, envelope))
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, nil)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/purchase", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status, envelope := f.call(t, http.MethodPost, "/purchase", map[string]any{
		"content_id":    f.contentID.String(),
		"buyer_email":   "nope",
		"session_token": "ps_x",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_email", errorCode(t, envelope))

	status, envelope = f.call(t, http.MethodPost, "/access", map[string]any{"fingerprint": "fp-test"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", errorCode(t, envelope))
}

func TestDeviceCodeRateLimit(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore()
	t.Cleanup(store.Stop)
	bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity: 2, RefillRate: 2, RefillInterval: 5 * time.Minute,
	})
	require.NoError(t, err)

	f := newAPIFixture(t, func(deps *httpapi.Deps) {
		deps.DeviceCodeLimiter = bucket
	})
	accessToken := f.buyAndConfirm(t)

	body := map[string]any{
		"access_token": accessToken,
		"fingerprint":  "fp-test",
		"email":        "buyer@example.com",
	}
	for i := range 2 {
		status, _ := f.call(t, http.MethodPost, "/access/request-device-code", body)
		require.Equal(t, http.StatusAccepted, status, "request %d should pass", i)
	}

	status, _ := f.call(t, http.MethodPost, "/access/request-device-code", body)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestPaymentWebhook(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, nil)

	status, envelope := f.call(t, http.MethodPost, "/session", map[string]any{"fingerprint": "fp-test"})
	require.Equal(t, http.StatusOK, status)
	sessionToken := data(t, envelope)["session_token"].(string)

	status, envelope = f.call(t, http.MethodPost, "/purchase", map[string]any{
		"content_id":    f.contentID.String(),
		"buyer_email":   "buyer@example.com",
		"session_token": sessionToken,
	})
	require.Equal(t, http.StatusCreated, status)
	purchaseID := data(t, envelope)["purchase_id"].(string)

	p, err := f.purchases.GetByID(context.Background(), uuid.MustParse(purchaseID))
	require.NoError(t, err)

	t.Run("rejects unverifiable payloads", func(t *testing.T) {
		status, envelope := f.call(t, http.MethodPost, "/purchase/webhook", map[string]any{"anything": true})
		require.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "webhook_verification_failed", errorCode(t, envelope))
	})

	t.Run("completed event confirms the purchase", func(t *testing.T) {
		f.provider.event = &payment.WebhookEvent{
			EventType:  "transaction.completed",
			IntentRef:  p.PaymentIntentRef,
			PurchaseID: purchaseID,
			Status:     "completed",
		}

		status, _ := f.call(t, http.MethodPost, "/purchase/webhook", map[string]any{"id": "evt_1"})
		require.Equal(t, http.StatusOK, status)

		confirmed, err := f.purchases.GetByID(context.Background(), uuid.MustParse(purchaseID))
		require.NoError(t, err)
		assert.Equal(t, purchase.StatusPaid, confirmed.Status)
	})
}
