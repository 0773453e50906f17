package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatExpiry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1 minute", formatExpiry(time.Minute))
	assert.Equal(t, "10 minutes", formatExpiry(10*time.Minute))
	assert.Equal(t, "1 hour", formatExpiry(time.Hour))
	assert.Equal(t, "2 hours", formatExpiry(2*time.Hour))
}

func TestFormatWindow(t *testing.T) {
	t.Parallel()

	window := func(d time.Duration) string {
		return formatWindow(Receipt{AccessWindow: d})
	}

	assert.Equal(t, "1 hour", window(time.Hour))
	assert.Equal(t, "12 hours", window(12*time.Hour))
	assert.Equal(t, "1 day", window(24*time.Hour))
	assert.Equal(t, "2 days", window(48*time.Hour))
	assert.Equal(t, "36 hours", window(36*time.Hour))
}
