// Package storage is the object-storage collaborator: read-only, presigned
// URL resolution for purchased content items.
package storage
