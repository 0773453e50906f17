// Package content reads purchasable content and resolves it into
// deliverable views with short-lived signed URLs. Content authoring lives
// outside this service.
package content
