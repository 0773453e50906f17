// Package fingerprint derives a device identifier from request attributes.
// Fingerprints bound how many devices can hold an entitlement at once; they
// are a friction mechanism, not an authentication mechanism.
package fingerprint
