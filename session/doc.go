// Package session issues opaque anonymous buyer sessions bound to a device
// fingerprint. Sessions let a returning buyer see their purchases without
// an account; they do not gate content access.
package session
