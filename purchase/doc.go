// Package purchase owns the purchase lifecycle: creation against the
// payment provider, confirmation into the paid state, and the financial
// idempotency guarantee that one buyer is never charged twice for the same
// content.
package purchase
