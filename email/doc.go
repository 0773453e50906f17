// Package email sends the two transactional emails this service produces:
// device verification codes and purchase receipts. Production uses
// Postmark; development writes emails to disk.
package email
