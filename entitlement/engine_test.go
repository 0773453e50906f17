package entitlement_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/content"
	"github.com/dmitrymomot/paygate/email"
	"github.com/dmitrymomot/paygate/entitlement"
	"github.com/dmitrymomot/paygate/purchase"
)

type stubMailer struct {
	mu      sync.Mutex
	codes   []string
	sendErr error
}

func (m *stubMailer) SendVerificationCode(ctx context.Context, to, code string, expiresIn time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
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

type engineFixture struct {
	engine    *entitlement.Engine
	purchases purchase.Store
	store     entitlement.Store
	mailer    *stubMailer
	token     string
	purchase  *purchase.Purchase
}

const buyerEmail = "buyer@example.com"

func newEngineFixture(t *testing.T, cfg entitlement.Config) *engineFixture {
	t.Helper()

	contents := content.NewMemoryStore()
	contentID := uuid.New()
	contents.Put(content.Content{
		ID:        contentID,
		CreatorID: uuid.New(),
		Title:     "Course",
		Published: true,
		Currency:  "USD",
	}, content.Item{
		ID:         uuid.New(),
		ContentID:  contentID,
		Position:   1,
		Title:      "Lesson 1",
		StorageKey: "course/lesson-1.mp4",
	})

	purchases := purchase.NewMemoryStore()
	paidAt := time.Now().Add(-time.Hour)
	p := &purchase.Purchase{
		ID:          uuid.New(),
		ContentID:   contentID,
		BuyerEmail:  buyerEmail,
		SessionID:   uuid.New(),
		AmountCents: 1500,
		Currency:    "USD",
		Status:      purchase.StatusPendingPayment,
		AccessToken: "at_test_token",
		CreatedAt:   paidAt,
	}
	require.NoError(t, purchases.Create(context.Background(), p))
	_, err := purchases.MarkPaid(context.Background(), p.ID, "txn_1", paidAt)
	require.NoError(t, err)

	mailer := &stubMailer{}
	store := entitlement.NewMemoryStore()
	resolver := content.NewResolver(contents, stubSigner{}, 15*time.Minute, nil)
	engine := entitlement.NewEngine(purchases, store, mailer, resolver, cfg, nil)

	got, err := purchases.GetByID(context.Background(), p.ID)
	require.NoError(t, err)

	return &engineFixture{
		engine:    engine,
		purchases: purchases,
		store:     store,
		mailer:    mailer,
		token:     p.AccessToken,
		purchase:  got,
	}
}

func defaultConfig() entitlement.Config {
	return entitlement.Config{
		MaxTrustedDevices: 3,
		AccessWindow:      48 * time.Hour,
		CodeExpiry:        10 * time.Minute,
	}
}

// trust walks a fingerprint through the full verification flow.
func (f *engineFixture) trust(t *testing.T, fingerprint string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.engine.RequestDeviceVerification(ctx, f.token, fingerprint, buyerEmail))
	require.NoError(t, f.engine.VerifyDeviceCode(ctx, f.token, fingerprint, f.mailer.lastCode()))
}

func TestEngineCheckEligibility(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())

		d, err := f.engine.CheckEligibility(ctx, "at_nope", "fp-1")
		require.NoError(t, err)
		assert.False(t, d.HasAccess)
		assert.Equal(t, entitlement.ReasonInvalidToken, d.Reason)
	})

	t.Run("expired window wins over device trust", func(t *testing.T) {
		t.Parallel()
		cfg := defaultConfig()
		f := newEngineFixture(t, cfg)
		f.trust(t, "fp-1")

		// Shrink the window below the purchase age.
		cfg.AccessWindow = 30 * time.Minute
		shortEngine := entitlement.NewEngine(f.purchases, f.store, f.mailer, nil, cfg, nil)

		d, err := shortEngine.CheckEligibility(ctx, f.token, "fp-1")
		require.NoError(t, err)
		assert.False(t, d.HasAccess)
		assert.Equal(t, entitlement.ReasonWindowExpired, d.Reason)
		assert.True(t, d.IsExpired)
		assert.False(t, d.NeedsEmailVerification)
	})

	t.Run("untrusted device needs verification", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())

		d, err := f.engine.CheckEligibility(ctx, f.token, "fp-new")
		require.NoError(t, err)
		assert.False(t, d.HasAccess)
		assert.Equal(t, entitlement.ReasonDeviceNotTrusted, d.Reason)
		assert.True(t, d.NeedsEmailVerification)
		assert.True(t, d.CanAddMoreDevices)
	})

	t.Run("untrusted device with exhausted cap", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())
		for i := range 3 {
			f.trust(t, fmt.Sprintf("fp-%d", i))
		}

		d, err := f.engine.CheckEligibility(ctx, f.token, "fp-new")
		require.NoError(t, err)
		assert.False(t, d.HasAccess)
		assert.Equal(t, entitlement.ReasonDeviceNotTrusted, d.Reason)
		assert.False(t, d.CanAddMoreDevices)
	})

	t.Run("trusted device inside window", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())
		f.trust(t, "fp-1")

		d, err := f.engine.CheckEligibility(ctx, f.token, "fp-1")
		require.NoError(t, err)
		assert.True(t, d.HasAccess)
		assert.Equal(t, entitlement.ReasonGranted, d.Reason)
		assert.False(t, d.AccessExpiresAt.IsZero())
		assert.Positive(t, d.TimeRemaining)
	})
}

func TestEngineDeviceVerification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("full flow trusts the device", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())

		require.NoError(t, f.engine.RequestDeviceVerification(ctx, f.token, "fp-1", buyerEmail))
		code := f.mailer.lastCode()
		require.Len(t, code, 6)

		require.NoError(t, f.engine.VerifyDeviceCode(ctx, f.token, "fp-1", code))

		trusted, err := f.store.IsTrusted(ctx, f.purchase.ID, "fp-1")
		require.NoError(t, err)
		assert.True(t, trusted)
	})

	t.Run("wrong code", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())
		require.NoError(t, f.engine.RequestDeviceVerification(ctx, f.token, "fp-1", buyerEmail))

		err := f.engine.VerifyDeviceCode(ctx, f.token, "fp-1", "000000")
		if f.mailer.lastCode() == "000000" {
			t.Skip("generated code collided with the guess")
		}
		assert.ErrorIs(t, err, entitlement.ErrVerificationCodeMismatch)
	})

	t.Run("code is single use", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())
		require.NoError(t, f.engine.RequestDeviceVerification(ctx, f.token, "fp-1", buyerEmail))
		code := f.mailer.lastCode()

		require.NoError(t, f.engine.VerifyDeviceCode(ctx, f.token, "fp-1", code))
		err := f.engine.VerifyDeviceCode(ctx, f.token, "fp-1", code)
		assert.ErrorIs(t, err, entitlement.ErrVerificationCodeMismatch)
	})

	t.Run("expired code", func(t *testing.T) {
		t.Parallel()
		cfg := defaultConfig()
		cfg.CodeExpiry = -time.Minute
		f := newEngineFixture(t, cfg)
		require.NoError(t, f.engine.RequestDeviceVerification(ctx, f.token, "fp-1", buyerEmail))

		err := f.engine.VerifyDeviceCode(ctx, f.token, "fp-1", f.mailer.lastCode())
		assert.ErrorIs(t, err, entitlement.ErrVerificationCodeExpired)
	})

	t.Run("new code invalidates the previous one", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())
		require.NoError(t, f.engine.RequestDeviceVerification(ctx, f.token, "fp-1", buyerEmail))
		first := f.mailer.lastCode()
		require.NoError(t, f.engine.RequestDeviceVerification(ctx, f.token, "fp-1", buyerEmail))
		second := f.mailer.lastCode()

		if first != second {
			err := f.engine.VerifyDeviceCode(ctx, f.token, "fp-1", first)
			assert.ErrorIs(t, err, entitlement.ErrVerificationCodeMismatch)
		}
		require.NoError(t, f.engine.VerifyDeviceCode(ctx, f.token, "fp-1", second))
	})

	t.Run("already trusted device", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())
		f.trust(t, "fp-1")

		err := f.engine.RequestDeviceVerification(ctx, f.token, "fp-1", buyerEmail)
		assert.ErrorIs(t, err, entitlement.ErrDeviceAlreadyTrusted)
	})

	t.Run("cap blocks new verification requests", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())
		for i := range 3 {
			f.trust(t, fmt.Sprintf("fp-%d", i))
		}

		err := f.engine.RequestDeviceVerification(ctx, f.token, "fp-new", buyerEmail)
		assert.ErrorIs(t, err, entitlement.ErrDeviceLimitReached)
	})

	t.Run("invalid email", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())

		err := f.engine.RequestDeviceVerification(ctx, f.token, "fp-1", "nope")
		assert.ErrorIs(t, err, email.ErrInvalidAddress)
	})

	t.Run("mail failure fails the request", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())
		f.mailer.sendErr = assert.AnError

		err := f.engine.RequestDeviceVerification(ctx, f.token, "fp-1", buyerEmail)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestEngineConcurrentVerifyHonorsCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newEngineFixture(t, defaultConfig())

	// Issue codes for five devices while the set is still empty, then race
	// all five verifications. Exactly three may win.
	const devices = 5
	codes := make(map[string]string, devices)
	for i := range devices {
		fp := fmt.Sprintf("fp-%d", i)
		require.NoError(t, f.engine.RequestDeviceVerification(ctx, f.token, fp, buyerEmail))
		codes[fp] = f.mailer.lastCode()
	}

	var wg sync.WaitGroup
	errs := make(chan error, devices)
	for fp, code := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.engine.VerifyDeviceCode(ctx, f.token, fp, code)
		}()
	}
	wg.Wait()
	close(errs)

	var trusted, rejected int
	for err := range errs {
		switch {
		case err == nil:
			trusted++
		default:
			assert.ErrorIs(t, err, entitlement.ErrDeviceLimitReached)
			rejected++
		}
	}
	assert.Equal(t, 3, trusted)
	assert.Equal(t, 2, rejected)

	count, err := f.store.CountDevices(ctx, f.purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEngineAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("entitled device gets resolved content", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())
		f.trust(t, "fp-1")

		view, err := f.engine.Access(ctx, f.token, "fp-1")
		require.NoError(t, err)
		require.NotNil(t, view.Content)
		require.Len(t, view.Content.Items, 1)
		assert.Equal(t, "https://cdn.test/course/lesson-1.mp4", view.Content.Items[0].URL)
		assert.Equal(t, int64(1), view.ViewCount)
		assert.False(t, view.AccessExpiresAt.IsZero())

		// Each access counts.
		view, err = f.engine.Access(ctx, f.token, "fp-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), view.ViewCount)
	})

	t.Run("untrusted device is denied with the verification flag", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())

		_, err := f.engine.Access(ctx, f.token, "fp-1")
		require.ErrorIs(t, err, entitlement.ErrDeviceNotTrusted)

		var notTrusted *entitlement.NotTrustedError
		require.ErrorAs(t, err, &notTrusted)
		assert.True(t, notTrusted.CanAddMoreDevices)
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()
		f := newEngineFixture(t, defaultConfig())

		_, err := f.engine.Access(ctx, "at_nope", "fp-1")
		assert.ErrorIs(t, err, entitlement.ErrTokenInvalid)
	})

	t.Run("window expiry denies even trusted devices", func(t *testing.T) {
		t.Parallel()
		cfg := defaultConfig()
		f := newEngineFixture(t, cfg)
		f.trust(t, "fp-1")

		cfg.AccessWindow = 30 * time.Minute
		shortEngine := entitlement.NewEngine(f.purchases, f.store, f.mailer, nil, cfg, nil)

		_, err := shortEngine.Access(ctx, f.token, "fp-1")
		assert.ErrorIs(t, err, entitlement.ErrWindowExpired)
	})
}
