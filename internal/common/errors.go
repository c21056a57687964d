package common

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthorized = errors.New("not authorized")
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("subscriber not found")
	ErrIOFailure     = errors.New("ledger storage failure")
	ErrDelivery      = errors.New("message delivery failed")
	ErrRecipient     = errors.New("recipient unreachable")

	ErrNoActiveIntake       = errors.New("no purchase in progress")
	ErrProofRequired        = errors.New("payment screenshot expected")
	ErrNoPaymentMethods     = errors.New("no payment methods configured")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
)

// ValidationError wraps ErrValidation with the offending field.
func ValidationError(field, message string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, message)
}

// NotFoundError wraps ErrNotFound with the subscriber id.
func NotFoundError(subscriberID string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, subscriberID)
}

// IOError wraps ErrIOFailure around a storage error.
func IOError(operation string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrIOFailure, operation, err)
}

// DeliveryError wraps ErrDelivery around a gateway error.
func DeliveryError(recipient string, err error) error {
	return fmt.Errorf("%w: to %s: %v", ErrDelivery, recipient, err)
}
