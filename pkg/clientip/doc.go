// Package clientip extracts the real client IP from requests that may have
// passed through proxies or a CDN. Used for session records and rate limit
// keys; never as a security boundary on its own.
package clientip
