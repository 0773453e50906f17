// Package httpapi is the HTTP boundary of the purchase and access engine.
// It binds requests, resolves device fingerprints, applies boundary rate
// limits, and maps domain errors to stable JSON error codes. All domain
// decisions live in the service packages; handlers only translate.
package httpapi
