package fingerprint_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/paygate/pkg/fingerprint"
)

func newRequest(userAgent string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", userAgent)
	r.Header.Set("Accept", "text/html")
	r.Header.Set("Accept-Language", "en-US")
	r.RemoteAddr = "203.0.113.7:51234"
	return r
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	a := fingerprint.Generate(newRequest("Mozilla/5.0"))
	assert.Len(t, a, 32)

	// Deterministic for identical requests.
	assert.Equal(t, a, fingerprint.Generate(newRequest("Mozilla/5.0")))

	// Sensitive to client characteristics.
	assert.NotEqual(t, a, fingerprint.Generate(newRequest("curl/8.0")))

	other := newRequest("Mozilla/5.0")
	other.RemoteAddr = "198.51.100.2:443"
	assert.NotEqual(t, a, fingerprint.Generate(other))
}

func TestMatch(t *testing.T) {
	t.Parallel()

	a := fingerprint.Generate(newRequest("Mozilla/5.0"))
	b := fingerprint.Generate(newRequest("Mozilla/5.0"))
	c := fingerprint.Generate(newRequest("curl/8.0"))

	assert.True(t, fingerprint.Match(a, b))
	assert.False(t, fingerprint.Match(a, c))
	assert.False(t, fingerprint.Match(a, ""))
}
