package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EventStatusActive   = "active"
	EventStatusPast     = "past"
	EventStatusCanceled = "canceled"
)

type Event struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	HostID      uuid.UUID `gorm:"type:uuid;not null;index" json:"host_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"type:varchar(50)" json:"category"`
	Tags        string    `json:"tags"` // comma-separated
	Location    string    `json:"location,omitempty"`
	OnlineURL   string    `json:"online_url,omitempty"`
	StartsAt    time.Time `gorm:"not null;index" json:"starts_at"`
	EndsAt      time.Time `gorm:"not null" json:"ends_at"`
	Price       float64   `gorm:"not null" json:"price"`
	// Capacity is the immutable total; SeatsRemaining is the live counter
	// adjusted only through BookingService confirmations and cancellations.
	Capacity       int       `gorm:"not null" json:"capacity"`
	SeatsRemaining int       `gorm:"not null" json:"seats_remaining"`
	Status         string    `gorm:"type:varchar(20);not null;default:'active'" json:"status"` // active, past, canceled
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relations
	Host     User      `gorm:"foreignKey:HostID" json:"host,omitempty"`
	Bookings []Booking `gorm:"foreignKey:EventID" json:"bookings,omitempty"`
	Coupons  []Coupon  `gorm:"foreignKey:EventID" json:"coupons,omitempty"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// IsBookable checks whether new bookings may be initiated for the event.
func (e *Event) IsBookable(now time.Time) bool {
	return e.Status == EventStatusActive && e.StartsAt.After(now)
}

// HasEnded reports whether the event is already over.
func (e *Event) HasEnded(now time.Time) bool {
	return e.EndsAt.Before(now)
}
