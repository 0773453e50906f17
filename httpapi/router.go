package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/paygate/content"
	"github.com/dmitrymomot/paygate/entitlement"
	"github.com/dmitrymomot/paygate/pkg/clientip"
	"github.com/dmitrymomot/paygate/pkg/fingerprint"
	"github.com/dmitrymomot/paygate/pkg/ratelimiter"
	"github.com/dmitrymomot/paygate/purchase"
	"github.com/dmitrymomot/paygate/session"
)

// fingerprintHeader lets clients pin an explicit fingerprint for rate
// limit keying; the request body field remains authoritative for domain
// decisions.
const fingerprintHeader = "X-Device-Fingerprint"

// Deps are the collaborators the API boundary wires together. Webhooks
// and the rate limit buckets are optional; nil disables the corresponding
// route or limit.
type Deps struct {
	Sessions     *session.Manager
	Purchases    *purchase.Service
	Entitlements *entitlement.Engine
	Contents     content.Store
	Webhooks     WebhookParser

	DeviceCodeLimiter *ratelimiter.Bucket
	VerifyLimiter     *ratelimiter.Bucket

	Healthcheck http.HandlerFunc

	Log *slog.Logger
}

type api struct {
	sessions     *session.Manager
	purchases    *purchase.Service
	entitlements *entitlement.Engine
	contents     content.Store
	webhooks     WebhookParser
	log          *slog.Logger
}

// New builds the HTTP router for the purchase and access API.
func New(deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = discardLogger
	}
	a := &api{
		sessions:     deps.Sessions,
		purchases:    deps.Purchases,
		entitlements: deps.Entitlements,
		contents:     deps.Contents,
		webhooks:     deps.Webhooks,
		log:          log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if deps.Healthcheck != nil {
		r.Get("/health", deps.Healthcheck)
	}

	r.Post("/session", a.createSession)
	r.Get("/session/{token}/purchases", a.listSessionPurchases)

	r.Get("/content/{id}", a.getContent)

	r.Post("/purchase", a.createPurchase)
	r.Get("/purchase/{id}", a.getPurchase)
	r.Post("/purchase/confirm", a.confirmPurchase)
	if a.webhooks != nil {
		r.Post("/purchase/webhook", a.paymentWebhook)
	}

	r.Route("/access", func(r chi.Router) {
		r.Post("/", a.access)
		r.Post("/check-eligibility", a.checkEligibility)

		r.Group(func(r chi.Router) {
			if deps.DeviceCodeLimiter != nil {
				r.Use(ratelimiter.Middleware(deps.DeviceCodeLimiter, deviceKey))
			}
			r.Post("/request-device-code", a.requestDeviceCode)
		})
		r.Group(func(r chi.Router) {
			if deps.VerifyLimiter != nil {
				r.Use(ratelimiter.Middleware(deps.VerifyLimiter, deviceKey))
			}
			r.Post("/verify-device", a.verifyDevice)
		})
	})

	return r
}

// deviceKey keys rate limits by device fingerprint plus client IP, so a
// single host cannot exhaust another device's budget and a single device
// cannot dodge the limit by hopping IPs within a window.
var deviceKey = ratelimiter.Composite(
	func(r *http.Request) string {
		if fp := r.Header.Get(fingerprintHeader); fp != "" {
			return fp
		}
		return fingerprint.Generate(r)
	},
	func(r *http.Request) string {
		return clientip.GetIP(r)
	},
)

// deviceFingerprint resolves the fingerprint for domain decisions: an
// explicit client-supplied value wins, the server-derived one is the
// fallback.
func deviceFingerprint(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fp := r.Header.Get(fingerprintHeader); fp != "" {
		return fp
	}
	return fingerprint.Generate(r)
}
