package services

import (
	"fmt"
	"math"
	"time"

	"github.com/eventsphere/backend/internal/config"
	"github.com/eventsphere/backend/internal/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// StripeProvider implements PaymentProvider for Stripe
type StripeProvider struct {
	cfg *config.Config
}

// NewStripeProvider creates a new Stripe payment provider
func NewStripeProvider(cfg *config.Config) *StripeProvider {
	stripe.Key = cfg.StripeSecretKey
	return &StripeProvider{cfg: cfg}
}

// GetProviderName returns "stripe"
func (p *StripeProvider) GetProviderName() string {
	return "stripe"
}

// CreateCheckout creates a Stripe checkout session. The single line item
// charges the booking's final amount, so the charge always matches the
// discounted price computed at initiation.
func (p *StripeProvider) CreateCheckout(booking *models.Booking, event *models.Event, user *models.User) (*CheckoutSession, error) {
	name := fmt.Sprintf("%s - %d ticket(s)", event.Title, booking.NumberOfTickets)
	description := fmt.Sprintf("Event on %s", event.StartsAt.Format("02 Jan 2006 15:04"))
	if booking.CouponCode != "" {
		description = fmt.Sprintf("%s (coupon %s applied)", description, booking.CouponCode)
	}

	lineItems := []*stripe.CheckoutSessionLineItemParams{
		{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(p.cfg.StripeCurrency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(name),
					Description: stripe.String(description),
				},
				UnitAmount: stripe.Int64(toCents(booking.FinalAmount)),
			},
			Quantity: stripe.Int64(1),
		},
	}

	successURL := fmt.Sprintf("%s?booking_id=%s&session_id={CHECKOUT_SESSION_ID}", p.cfg.StripeSuccessURL, booking.ID.String())
	cancelURL := fmt.Sprintf("%s?booking_id=%s", p.cfg.StripeCancelURL, booking.ID.String())

	// The session expires with the pending-booking TTL so the checkout
	// cannot complete after the stale sweep. Stripe requires at least 30min.
	expiry := p.cfg.PendingBookingTTL
	if expiry < 30*time.Minute {
		expiry = 30 * time.Minute
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
		CustomerEmail:      stripe.String(user.Email),
		ClientReferenceID:  stripe.String(booking.ID.String()),
		ExpiresAt:          stripe.Int64(time.Now().Add(expiry).Unix()),
		Metadata: map[string]string{
			"booking_id":  booking.ID.String(),
			"user_id":     user.ID.String(),
			"event_id":    event.ID.String(),
			"coupon_code": booking.CouponCode,
		},
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stripe session: %w", err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// RetrieveSession fetches a Stripe checkout session's payment status
func (p *StripeProvider) RetrieveSession(sessionID string) (*SessionStatus, error) {
	sess, err := session.Get(sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve Stripe session: %w", err)
	}

	status := &SessionStatus{
		Paid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if sess.PaymentIntent != nil {
		status.PaymentIntentID = sess.PaymentIntent.ID
	}
	return status, nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
