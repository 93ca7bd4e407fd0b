package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"

	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// CancellationWindow is the minimum time before the event start at which
// a paid booking may still be cancelled.
const CancellationWindow = 24 * time.Hour

type Booking struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	EventID         uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	NumberOfTickets int       `gorm:"not null" json:"number_of_tickets"`
	// TotalPrice is the pre-discount amount, FinalAmount what was charged.
	TotalPrice     float64    `gorm:"not null" json:"total_price"`
	DiscountAmount float64    `json:"discount_amount"`
	FinalAmount    float64    `gorm:"not null" json:"final_amount"`
	CouponID       *uuid.UUID `gorm:"type:uuid" json:"coupon_id,omitempty"`
	CouponCode     string     `gorm:"type:varchar(20)" json:"coupon_code,omitempty"`
	Status         string     `gorm:"type:varchar(20);not null;default:'confirmed'" json:"status"`         // confirmed, cancelled
	PaymentStatus  string     `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"` // pending, paid, failed

	// Stripe payment details
	StripeSessionID       string `gorm:"index" json:"-"`
	StripePaymentIntentID string `json:"-"`

	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relations
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Event   Event   `gorm:"foreignKey:EventID" json:"event,omitempty"`
	Coupon  *Coupon `gorm:"foreignKey:CouponID" json:"coupon,omitempty"`
	Tickets []Ticket `gorm:"foreignKey:BookingID" json:"tickets,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// CanBeCancelled checks the cancellation preconditions: a paid, confirmed
// booking with at least 24 hours remaining before the event start. Exactly
// 24 hours out is still cancellable. The event relation must be loaded.
func (b *Booking) CanBeCancelled(now time.Time) bool {
	if b.Status != BookingStatusConfirmed || b.PaymentStatus != PaymentStatusPaid {
		return false
	}
	if b.Event.ID == uuid.Nil {
		return false
	}
	return b.Event.StartsAt.Sub(now) >= CancellationWindow
}
