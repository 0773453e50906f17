// Package binder decodes HTTP request bodies into typed request structs
// with strict content-type and unknown-field checking.
package binder
