// Package ratelimiter provides a token bucket rate limiter with pluggable
// storage. The verification endpoints use it at the HTTP boundary to blunt
// code enumeration and email spam; core logic never consults it.
package ratelimiter
