package models

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TicketStatusActive    = "active"
	TicketStatusCancelled = "cancelled"
	TicketStatusUsed      = "used"
)

const ticketNumberPrefix = "EVS"

// Ticket is one individually redeemable admission unit. A paid booking for
// N seats owns exactly N tickets.
type Ticket struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	BookingID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"booking_id"`
	EventID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"event_id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`
	TicketNumber string     `gorm:"uniqueIndex;not null" json:"ticket_number"`
	QRPayload    string     `gorm:"type:text;not null" json:"-"`
	Status       string     `gorm:"type:varchar(20);not null;default:'active'" json:"status"` // active, cancelled, used
	IssuedAt     time.Time  `gorm:"not null" json:"issued_at"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	Booking Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
	Event   Event   `gorm:"foreignKey:EventID" json:"event,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TicketPayload is the check-in payload embedded in each ticket's QR code.
type TicketPayload struct {
	TicketNumber string    `json:"ticket_number"`
	BookingID    uuid.UUID `json:"booking_id"`
	EventID      uuid.UUID `json:"event_id"`
	UserID       uuid.UUID `json:"user_id"`
	IssuedAt     time.Time `json:"issued_at"`
}

// GenerateTicketNumber returns a unique short ticket code, e.g. EVS-3F9A27C41B.
func GenerateTicketNumber() (string, error) {
	const alphabet = "0123456789ABCDEF"
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	code := make([]byte, 10)
	for i, v := range b {
		code[i*2] = alphabet[v>>4]
		code[i*2+1] = alphabet[v&0x0F]
	}
	return fmt.Sprintf("%s-%s", ticketNumberPrefix, code), nil
}

// EncodePayload marshals the check-in payload for QR embedding.
func EncodePayload(p TicketPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodePayload parses a scanned QR payload back into its fields.
func DecodePayload(raw string) (TicketPayload, error) {
	var p TicketPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return TicketPayload{}, err
	}
	return p, nil
}
