// Package entitlement decides whether a device may open purchased content.
// A purchase entitles access for a limited window on a capped set of
// trusted devices; new devices join the set by proving control of the
// buyer email through a short-lived verification code. Every check
// returns a full Decision so callers can tell the buyer exactly what to
// do next instead of guessing from a boolean.
package entitlement
