package services

import (
	"github.com/eventsphere/backend/internal/models"
)

// CheckoutSession is the provider-agnostic result of creating a checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// SessionStatus reports the current state of a checkout session. A session's
// payment status is immutable once it reaches a terminal value.
type SessionStatus struct {
	Paid            bool
	PaymentIntentID string
}

// PaymentProvider defines the interface to the external card-payment gateway.
// The core never processes payments itself; it only creates sessions and
// reads back their status.
type PaymentProvider interface {
	// CreateCheckout creates a checkout session charging the booking's
	// final amount and returns the session id and redirect URL
	CreateCheckout(booking *models.Booking, event *models.Event, user *models.User) (*CheckoutSession, error)

	// RetrieveSession fetches the payment status of a session
	RetrieveSession(sessionID string) (*SessionStatus, error)

	// GetProviderName returns the name of the provider ("stripe")
	GetProviderName() string
}
