// Package payment defines the payment-provider contract consumed by the
// purchase service and its Paddle implementation. The core never stores
// card data or computes tax; the provider's hosted checkout handles both.
package payment
