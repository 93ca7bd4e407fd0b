package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/eventsphere/backend/internal/config"
	"github.com/eventsphere/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrBookingNotFound          = errors.New("booking not found")
	ErrPaymentIncomplete        = errors.New("payment not completed")
	ErrBookingNotPaid           = errors.New("only paid bookings can be cancelled")
	ErrAlreadyCancelled         = errors.New("booking is already cancelled")
	ErrCancellationWindowClosed = errors.New("bookings can only be cancelled up to 24 hours before the event")
)

// BookingService sequences the booking lifecycle: initiation, payment
// confirmation, ticket issuance and cancellation.
type BookingService struct {
	db            *gorm.DB
	cfg           *config.Config
	eventService  *EventService
	couponService *CouponService
	ticketService *TicketService
	provider      PaymentProvider
	emailService  *EmailService
}

func NewBookingService(db *gorm.DB, cfg *config.Config, eventService *EventService, couponService *CouponService, ticketService *TicketService, provider PaymentProvider) *BookingService {
	return &BookingService{
		db:            db,
		cfg:           cfg,
		eventService:  eventService,
		couponService: couponService,
		ticketService: ticketService,
		provider:      provider,
	}
}

// AttachEmailService wires the email service for cancellation confirmations
func (s *BookingService) AttachEmailService(emailService *EmailService) {
	s.emailService = emailService
}

// InitiateBooking validates the request, prices it (applying a coupon when
// given), persists a pending booking and creates a checkout session. Seats
// are not reserved here: inventory is only decremented once payment is
// confirmed, so abandoned checkouts never hold seats hostage.
func (s *BookingService) InitiateBooking(userID, eventID uuid.UUID, numberOfTickets int, couponCode string) (*models.Booking, string, error) {
	if numberOfTickets < 1 {
		return nil, "", ErrInvalidSeatCount
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	event, err := s.eventService.GetEventByID(eventID)
	if err != nil {
		return nil, "", err
	}
	if !event.IsBookable(time.Now()) {
		return nil, "", ErrEventNotBookable
	}
	// Advisory pre-check; the authoritative guard is the atomic reserve at
	// confirmation time.
	if event.SeatsRemaining < numberOfTickets {
		return nil, "", ErrInsufficientSeats
	}

	totalPrice := event.Price * float64(numberOfTickets)
	discountAmount := 0.0
	finalAmount := totalPrice
	var couponID *uuid.UUID
	appliedCode := ""

	if couponCode != "" {
		coupon, discount, final, err := s.couponService.ValidateAndPrice(eventID, couponCode, totalPrice)
		if err != nil {
			return nil, "", err
		}
		discountAmount = discount
		finalAmount = final
		couponID = &coupon.ID
		appliedCode = coupon.Code
	}

	booking := &models.Booking{
		UserID:          userID,
		EventID:         eventID,
		NumberOfTickets: numberOfTickets,
		TotalPrice:      totalPrice,
		DiscountAmount:  discountAmount,
		FinalAmount:     finalAmount,
		CouponID:        couponID,
		CouponCode:      appliedCode,
		Status:          models.BookingStatusConfirmed,
		PaymentStatus:   models.PaymentStatusPending,
	}

	if err := s.db.Create(booking).Error; err != nil {
		return nil, "", err
	}

	session, err := s.provider.CreateCheckout(booking, event, &user)
	if err != nil {
		// No pending booking without a session to pay it
		if delErr := s.db.Delete(booking).Error; delErr != nil {
			log.Printf("WARN: could not remove booking %s after checkout creation failed: %v",
				booking.ID, delErr)
		}
		return nil, "", err
	}

	booking.StripeSessionID = session.ID
	if err := s.db.Model(&models.Booking{}).Where("id = ?", booking.ID).
		Update("stripe_session_id", session.ID).Error; err != nil {
		return nil, "", err
	}

	return booking, session.URL, nil
}

// ConfirmPayment finalizes a booking once its checkout session is paid.
// Idempotent: a repeated call for an already-paid booking is a no-op
// success. Passing uuid.Nil as userID skips the ownership check (webhook
// and poller paths).
func (s *BookingService) ConfirmPayment(bookingID, userID uuid.UUID) (*models.Booking, *IssueResult, error) {
	booking, err := s.getBooking(bookingID, userID)
	if err != nil {
		return nil, nil, err
	}

	if booking.PaymentStatus == models.PaymentStatusPaid {
		return booking, nil, nil
	}
	if booking.StripeSessionID == "" {
		return nil, nil, ErrPaymentIncomplete
	}

	status, err := s.provider.RetrieveSession(booking.StripeSessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check payment status: %w", err)
	}
	if !status.Paid {
		return nil, nil, ErrPaymentIncomplete
	}

	// Idempotency gate: exactly one caller flips the booking to paid and
	// runs the side effects below. Failed is included so a booking swept as
	// stale still recovers when the customer completed checkout late; the
	// session is the source of truth.
	result := s.db.Model(&models.Booking{}).
		Where("id = ? AND payment_status IN ?", bookingID,
			[]string{models.PaymentStatusPending, models.PaymentStatusFailed}).
		Updates(map[string]interface{}{
			"payment_status":           models.PaymentStatusPaid,
			"stripe_payment_intent_id": status.PaymentIntentID,
		})
	if result.Error != nil {
		return nil, nil, result.Error
	}
	if result.RowsAffected == 0 {
		// A concurrent confirmation won the race
		booking, err = s.getBooking(bookingID, userID)
		if err != nil {
			return nil, nil, err
		}
		if booking.PaymentStatus == models.PaymentStatusPaid {
			return booking, nil, nil
		}
		return nil, nil, ErrPaymentIncomplete
	}

	if err := s.eventService.ReserveSeats(booking.EventID, booking.NumberOfTickets); err != nil {
		if errors.Is(err, ErrInsufficientSeats) {
			// Charged without seats left: cancel the booking and flag the
			// session for manual refund reconciliation.
			now := time.Now()
			s.db.Model(&models.Booking{}).Where("id = ?", bookingID).Updates(map[string]interface{}{
				"status":       models.BookingStatusCancelled,
				"cancelled_at": now,
			})
			log.Printf("ERROR: booking %s paid but event %s sold out; session %s needs manual refund",
				bookingID, booking.EventID, booking.StripeSessionID)
			return nil, nil, ErrInsufficientSeats
		}
		return nil, nil, err
	}

	// The price was locked at initiation; a concurrently exhausted usage
	// limit must not invalidate a booking the user already paid for.
	if booking.CouponID != nil {
		if err := s.couponService.RedeemCoupon(*booking.CouponID); err != nil {
			log.Printf("WARN: could not record redemption of coupon %s for booking %s: %v",
				booking.CouponCode, bookingID, err)
		}
	}

	issueResult, err := s.ticketService.IssueTickets(bookingID)
	if err != nil {
		// The charge succeeded; ticket delivery problems are a sub-status,
		// never a booking failure.
		log.Printf("ERROR: ticket issuance for booking %s: %v", bookingID, err)
	}

	booking, err = s.getBooking(bookingID, userID)
	if err != nil {
		return nil, issueResult, err
	}
	return booking, issueResult, nil
}

// ConfirmPaymentBySession resolves a checkout session id to its booking and
// confirms it. Used by the payment webhook and the pending-payment poller.
func (s *BookingService) ConfirmPaymentBySession(sessionID string) (*models.Booking, *IssueResult, error) {
	var booking models.Booking
	if err := s.db.Where("stripe_session_id = ?", sessionID).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrBookingNotFound
		}
		return nil, nil, err
	}
	return s.ConfirmPayment(booking.ID, uuid.Nil)
}

// CancelBooking cancels a paid booking more than 24 hours before the event
// starts, releases its seats and voids its tickets. Refund execution is
// handled asynchronously outside this service.
func (s *BookingService) CancelBooking(bookingID, userID uuid.UUID) error {
	booking, err := s.getBooking(bookingID, userID)
	if err != nil {
		return err
	}

	if booking.Status == models.BookingStatusCancelled {
		return ErrAlreadyCancelled
	}
	if booking.PaymentStatus != models.PaymentStatusPaid {
		return ErrBookingNotPaid
	}
	if !booking.CanBeCancelled(time.Now()) {
		return ErrCancellationWindowClosed
	}

	now := time.Now()
	result := s.db.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, models.BookingStatusConfirmed).
		Updates(map[string]interface{}{
			"status":       models.BookingStatusCancelled,
			"cancelled_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyCancelled
	}

	if err := s.eventService.ReleaseSeats(booking.EventID, booking.NumberOfTickets); err != nil {
		log.Printf("ERROR: failed to release %d seats for event %s after cancelling booking %s: %v",
			booking.NumberOfTickets, booking.EventID, bookingID, err)
	}

	if err := s.db.Model(&models.Ticket{}).
		Where("booking_id = ? AND status = ?", bookingID, models.TicketStatusActive).
		Update("status", models.TicketStatusCancelled).Error; err != nil {
		log.Printf("ERROR: failed to void tickets for booking %s: %v", bookingID, err)
	}

	if s.emailService != nil {
		if err := s.emailService.SendCancellationConfirmation(booking.User.Email, map[string]interface{}{
			"Name":       booking.User.Name,
			"EventTitle": booking.Event.Title,
			"Tickets":    booking.NumberOfTickets,
			"Amount":     booking.FinalAmount,
		}); err != nil {
			log.Printf("WARN: failed to send cancellation email for booking %s: %v", bookingID, err)
		}
	}

	return nil
}

// GetUserBookings retrieves all bookings for a user, newest first
func (s *BookingService) GetUserBookings(userID uuid.UUID) ([]*models.Booking, error) {
	var bookings []*models.Booking
	err := s.db.Preload("Event").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bookings).Error
	return bookings, err
}

// GetBookingByID retrieves one booking owned by the user
func (s *BookingService) GetBookingByID(bookingID, userID uuid.UUID) (*models.Booking, error) {
	return s.getBooking(bookingID, userID)
}

// CleanupStalePending marks pending bookings older than the configured TTL
// as failed so abandoned checkouts stop showing up as open orders. The
// gateway is consulted first: a checkout can complete right up to the
// session expiry, and a paid session must be confirmed, not written off.
func (s *BookingService) CleanupStalePending() (int64, error) {
	cutoff := time.Now().Add(-s.cfg.PendingBookingTTL)
	var bookings []*models.Booking
	if err := s.db.Where("payment_status = ? AND created_at < ?",
		models.PaymentStatusPending, cutoff).
		Find(&bookings).Error; err != nil {
		return 0, err
	}

	var expired int64
	for _, booking := range bookings {
		if booking.StripeSessionID != "" {
			status, err := s.provider.RetrieveSession(booking.StripeSessionID)
			if err != nil {
				// Leave it pending; the next sweep retries
				log.Printf("WARN: stale booking sweep could not check session %s: %v",
					booking.StripeSessionID, err)
				continue
			}
			if status.Paid {
				if _, _, err := s.ConfirmPayment(booking.ID, uuid.Nil); err != nil {
					log.Printf("WARN: stale booking sweep confirmation for booking %s: %v",
						booking.ID, err)
				}
				continue
			}
		}
		result := s.db.Model(&models.Booking{}).
			Where("id = ? AND payment_status = ?", booking.ID, models.PaymentStatusPending).
			Update("payment_status", models.PaymentStatusFailed)
		if result.Error != nil {
			return expired, result.Error
		}
		expired += result.RowsAffected
	}
	return expired, nil
}

// CheckPendingPayments polls the gateway for recent pending bookings and
// confirms any whose session has turned paid. Fallback for missed webhooks.
func (s *BookingService) CheckPendingPayments() (int, error) {
	cutoff := time.Now().Add(-s.cfg.PendingBookingTTL)
	var bookings []*models.Booking
	err := s.db.Where("payment_status = ? AND created_at >= ? AND stripe_session_id <> ''",
		models.PaymentStatusPending, cutoff).
		Find(&bookings).Error
	if err != nil {
		return 0, err
	}

	confirmed := 0
	for _, booking := range bookings {
		status, err := s.provider.RetrieveSession(booking.StripeSessionID)
		if err != nil {
			log.Printf("WARN: pending payment check for booking %s: %v", booking.ID, err)
			continue
		}
		if !status.Paid {
			continue
		}
		if _, _, err := s.ConfirmPayment(booking.ID, uuid.Nil); err != nil {
			log.Printf("WARN: pending payment confirmation for booking %s: %v", booking.ID, err)
			continue
		}
		confirmed++
	}
	return confirmed, nil
}

func (s *BookingService) getBooking(bookingID, userID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := s.db.Preload("Event").Preload("User").Where("id = ?", bookingID)
	if userID != uuid.Nil {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}
