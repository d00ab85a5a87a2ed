package utils

// NewTicketCredential returns the opaque string printed into a ticket
// QR code: 32 bytes of secure randomness as 64 hex characters. The
// value is unguessable; possession of the string is possession of the
// ticket.
func NewTicketCredential() (string, error) {
	return randomHex(32)
}
