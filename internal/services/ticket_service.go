package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/eventsphere/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketCancelled   = errors.New("ticket has been cancelled")
	ErrTicketAlreadyUsed = errors.New("ticket has already been redeemed")
	ErrTicketUnpaid      = errors.New("ticket belongs to an unpaid booking")
	ErrEventOver         = errors.New("event has already taken place")
	ErrBookingUnpaid     = errors.New("tickets can only be issued for a paid booking")
)

// TicketMailer delivers a rendered ticket to an attendee.
type TicketMailer interface {
	SendTicketEmail(to string, data map[string]interface{}, pdf []byte) error
}

// IssueResult reports the outcome of a ticket issuance batch. Each seat is
// an independent job; one failing seat never rolls back the others.
type IssueResult struct {
	Issued int `json:"issued"`
	Failed int `json:"failed"`
}

type TicketService struct {
	db     *gorm.DB
	passes *PassService
	mailer TicketMailer
}

func NewTicketService(db *gorm.DB, passes *PassService) *TicketService {
	return &TicketService{db: db, passes: passes}
}

// AttachMailer wires the email delivery used for issued tickets
func (s *TicketService) AttachMailer(mailer TicketMailer) {
	s.mailer = mailer
}

// IssueTickets generates one ticket per purchased seat of a paid booking:
// unique number, QR check-in payload, printable PDF, and an email with the
// PDF attached. Re-invocation for a booking that already has tickets is a
// no-op, so a webhook/poller race cannot duplicate tickets.
func (s *TicketService) IssueTickets(bookingID uuid.UUID) (*IssueResult, error) {
	var booking models.Booking
	if err := s.db.Preload("Event").Preload("User").First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if booking.PaymentStatus != models.PaymentStatusPaid {
		return nil, ErrBookingUnpaid
	}

	var existing int64
	if err := s.db.Model(&models.Ticket{}).Where("booking_id = ?", bookingID).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return &IssueResult{Issued: int(existing)}, nil
	}

	result := &IssueResult{}
	var firstErr error
	for i := 0; i < booking.NumberOfTickets; i++ {
		if err := s.issueOne(&booking); err != nil {
			result.Failed++
			if firstErr == nil {
				firstErr = err
			}
			log.Printf("ERROR: issuing ticket %d/%d for booking %s: %v", i+1, booking.NumberOfTickets, bookingID, err)
			continue
		}
		result.Issued++
	}

	if result.Failed > 0 {
		return result, fmt.Errorf("issued %d of %d tickets: %w", result.Issued, booking.NumberOfTickets, firstErr)
	}
	return result, nil
}

func (s *TicketService) issueOne(booking *models.Booking) error {
	number, err := models.GenerateTicketNumber()
	if err != nil {
		return fmt.Errorf("failed to generate ticket number: %w", err)
	}

	issuedAt := time.Now().UTC()
	payload, err := models.EncodePayload(models.TicketPayload{
		TicketNumber: number,
		BookingID:    booking.ID,
		EventID:      booking.EventID,
		UserID:       booking.UserID,
		IssuedAt:     issuedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode ticket payload: %w", err)
	}

	ticket := &models.Ticket{
		BookingID:    booking.ID,
		EventID:      booking.EventID,
		UserID:       booking.UserID,
		TicketNumber: number,
		QRPayload:    payload,
		Status:       models.TicketStatusActive,
		IssuedAt:     issuedAt,
	}

	pdf, err := s.passes.RenderTicketPDF(ticket, &booking.Event, &booking.User)
	if err != nil {
		return fmt.Errorf("failed to render ticket PDF: %w", err)
	}

	if err := s.db.Create(ticket).Error; err != nil {
		return err
	}

	// A persisted ticket stays valid even when its email fails; delivery can
	// be retried out of band.
	if s.mailer != nil {
		err := s.mailer.SendTicketEmail(booking.User.Email, map[string]interface{}{
			"Name":         booking.User.Name,
			"EventTitle":   booking.Event.Title,
			"EventStart":   booking.Event.StartsAt.Format("02 Jan 2006 15:04"),
			"Location":     booking.Event.Location,
			"OnlineURL":    booking.Event.OnlineURL,
			"TicketNumber": ticket.TicketNumber,
		}, pdf)
		if err != nil {
			log.Printf("WARN: ticket %s persisted but email to %s failed: %v", ticket.TicketNumber, booking.User.Email, err)
		}
	}

	return nil
}

// ValidateTicket performs the read-only check-in lookup: the ticket must
// exist, belong to a paid booking, not be cancelled, and the event must not
// be over yet.
func (s *TicketService) ValidateTicket(ticketNumber string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.Preload("Booking").Preload("Event").Preload("User").
		Where("ticket_number = ?", ticketNumber).First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	if ticket.Booking.PaymentStatus != models.PaymentStatusPaid {
		return nil, ErrTicketUnpaid
	}
	if ticket.Status == models.TicketStatusCancelled {
		return nil, ErrTicketCancelled
	}
	if ticket.Event.HasEnded(time.Now()) {
		return nil, ErrEventOver
	}

	return &ticket, nil
}

// RedeemTicket marks a valid ticket as used, exactly once. The conditional
// update rejects a second scan of the same ticket.
func (s *TicketService) RedeemTicket(ticketNumber string) (*models.Ticket, error) {
	ticket, err := s.ValidateTicket(ticketNumber)
	if err != nil {
		return nil, err
	}
	if ticket.Status == models.TicketStatusUsed {
		return nil, ErrTicketAlreadyUsed
	}

	now := time.Now()
	result := s.db.Model(&models.Ticket{}).
		Where("id = ? AND status = ?", ticket.ID, models.TicketStatusActive).
		Updates(map[string]interface{}{
			"status":        models.TicketStatusUsed,
			"checked_in_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrTicketAlreadyUsed
	}

	ticket.Status = models.TicketStatusUsed
	ticket.CheckedInAt = &now
	return ticket, nil
}

// GetBookingTickets retrieves all tickets of a booking
func (s *TicketService) GetBookingTickets(bookingID uuid.UUID) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	err := s.db.Where("booking_id = ?", bookingID).Order("created_at ASC").Find(&tickets).Error
	return tickets, err
}

// GetUserTickets retrieves all tickets of a user with events preloaded
func (s *TicketService) GetUserTickets(userID uuid.UUID) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	err := s.db.Preload("Event").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tickets).Error
	return tickets, err
}
