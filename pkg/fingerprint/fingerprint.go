package fingerprint

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"

	"github.com/dmitrymomot/paygate/pkg/clientip"
)

// Generate derives a device fingerprint from the HTTP request. It combines
// User-Agent, Accept headers, client IP and the set of stable headers into
// a 32-character hex string. Clients that compute their own fingerprint may
// send it explicitly; this is the server-side fallback.
func Generate(r *http.Request) string {
	components := []string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		r.Header.Get("Accept"),
		clientip.GetIP(r),
		headerOrder(r),
	}

	var filtered []string
	for _, comp := range components {
		if comp != "" {
			filtered = append(filtered, comp)
		}
	}

	combined := strings.Join(filtered, "|")
	hash := sha256.Sum256([]byte(combined))

	return hex.EncodeToString(hash[:16])
}

// Match compares two fingerprints in constant time.
func Match(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// headerOrder fingerprints the presence of stable, commonly sent headers.
// Different browsers and HTTP clients send different subsets, which adds a
// distinguishing signal beyond the User-Agent string.
func headerOrder(r *http.Request) string {
	var names []string
	for name := range r.Header {
		switch strings.ToLower(name) {
		case "user-agent", "accept", "accept-language", "accept-encoding",
			"connection", "upgrade-insecure-requests", "sec-fetch-dest",
			"sec-fetch-mode", "sec-fetch-site", "cache-control":
			names = append(names, strings.ToLower(name))
		}
	}

	sort.Strings(names)
	return strings.Join(names, ",")
}
