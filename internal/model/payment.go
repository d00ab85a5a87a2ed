package model

import "time"

// PaymentStatus mirrors the provider-side lifecycle of a payment
// transaction. It tracks the order status but is not identical to it:
// an order can be cancelled while its payment never left
// requires_payment.
type PaymentStatus string

const (
	PaymentRequiresPayment PaymentStatus = "requires_payment"
	PaymentProcessing      PaymentStatus = "processing"
	PaymentSucceeded       PaymentStatus = "succeeded"
	PaymentFailed          PaymentStatus = "failed"
	PaymentCancelled       PaymentStatus = "cancelled"
	PaymentRefunded        PaymentStatus = "refunded"
)

// Terminal reports whether the provider can no longer change this
// transaction. A duplicate webhook for a terminal transaction is
// acknowledged and dropped.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentSucceeded, PaymentFailed, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

// PaymentTransaction mirrors the `payment_transactions` table,
// one-to-one with an order. ProviderRef is the provider's payment
// intent identifier; it is unique so replayed provider events resolve
// to exactly one row.
type PaymentTransaction struct {
	ID               uint64
	OrderID          uint64
	ProviderRef      string
	AmountCents      int64
	Currency         string
	Status           PaymentStatus
	ProviderCustomer string
	ProviderCharge   string
	RefundRef        string
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
