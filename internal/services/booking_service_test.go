package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eventsphere/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingLifecycle(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	booking, checkoutURL, err := stack.bookings.InitiateBooking(user.ID, event.ID, 2, "")
	require.NoError(t, err)
	assert.NotEmpty(t, checkoutURL)
	assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
	assert.Equal(t, 100.00, booking.TotalPrice)
	assert.Equal(t, 100.00, booking.FinalAmount)

	// Initiation never holds seats
	current, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, current.SeatsRemaining)

	stack.gateway.markPaid(booking.StripeSessionID)

	confirmed, issueResult, err := stack.bookings.ConfirmPayment(booking.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, confirmed.PaymentStatus)
	assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)
	require.NotNil(t, issueResult)
	assert.Equal(t, 2, issueResult.Issued)
	assert.Equal(t, 0, issueResult.Failed)

	current, err = stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, current.SeatsRemaining)

	tickets, err := stack.tickets.GetBookingTickets(booking.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	for _, ticket := range tickets {
		assert.Equal(t, models.TicketStatusActive, ticket.Status)
		assert.NotEmpty(t, ticket.TicketNumber)
	}
	assert.Equal(t, 2, stack.mailer.sentCount())
}

func TestInitiateBookingWithCoupon(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)
	coupon := createTestCoupon(t, stack, event.ID, host.ID, nil)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 2, "save20")
	require.NoError(t, err)
	assert.Equal(t, 100.00, booking.TotalPrice)
	assert.Equal(t, 20.00, booking.DiscountAmount)
	assert.Equal(t, 80.00, booking.FinalAmount)
	assert.Equal(t, "SAVE20", booking.CouponCode)
	require.NotNil(t, booking.CouponID)
	assert.Equal(t, coupon.ID, *booking.CouponID)

	// Pricing a booking must not consume a redemption
	stored, err := stack.coupons.GetCouponByID(coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UsedCount)
}

func TestInitiateBookingRejectsInvalidRequests(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 1, 72*time.Hour)

	_, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 0, "")
	assert.ErrorIs(t, err, ErrInvalidSeatCount)

	_, _, err = stack.bookings.InitiateBooking(user.ID, event.ID, 2, "")
	assert.ErrorIs(t, err, ErrInsufficientSeats)

	_, _, err = stack.bookings.InitiateBooking(user.ID, uuid.New(), 1, "")
	assert.ErrorIs(t, err, ErrEventNotFound)

	require.NoError(t, stack.events.CancelEvent(event.ID, host.ID))
	_, _, err = stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	assert.ErrorIs(t, err, ErrEventNotBookable)
}

func TestInitiateBookingGatewayFailureLeavesNoBooking(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	stack.gateway.failCreate = true
	_, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.Error(t, err)

	var count int64
	require.NoError(t, stack.db.Model(&models.Booking{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConfirmPaymentRequiresPaidSession(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)

	_, _, err = stack.bookings.ConfirmPayment(booking.ID, user.ID)
	assert.ErrorIs(t, err, ErrPaymentIncomplete)

	// No seats taken, no tickets issued
	current, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, current.SeatsRemaining)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 2, "")
	require.NoError(t, err)
	stack.gateway.markPaid(booking.StripeSessionID)

	_, _, err = stack.bookings.ConfirmPayment(booking.ID, user.ID)
	require.NoError(t, err)

	// Second confirmation is a no-op success
	again, issueResult, err := stack.bookings.ConfirmPayment(booking.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, again.PaymentStatus)
	assert.Nil(t, issueResult)

	current, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, current.SeatsRemaining, "seats decremented exactly once")

	tickets, err := stack.tickets.GetBookingTickets(booking.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, 2, "tickets issued exactly once")
}

func TestConfirmPaymentBySession(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)
	stack.gateway.markPaid(booking.StripeSessionID)

	confirmed, issueResult, err := stack.bookings.ConfirmPaymentBySession(booking.StripeSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, confirmed.PaymentStatus)
	require.NotNil(t, issueResult)
	assert.Equal(t, 1, issueResult.Issued)

	_, _, err = stack.bookings.ConfirmPaymentBySession("cs_unknown")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestConfirmPaymentSoldOutCancelsBooking(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	first := createTestUser(t, stack.db, false)
	second := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 1, 72*time.Hour)

	// Both users check out the last seat before either payment confirms
	bookingA, _, err := stack.bookings.InitiateBooking(first.ID, event.ID, 1, "")
	require.NoError(t, err)
	bookingB, _, err := stack.bookings.InitiateBooking(second.ID, event.ID, 1, "")
	require.NoError(t, err)

	stack.gateway.markPaid(bookingA.StripeSessionID)
	stack.gateway.markPaid(bookingB.StripeSessionID)

	_, _, err = stack.bookings.ConfirmPayment(bookingA.ID, first.ID)
	require.NoError(t, err)

	_, _, err = stack.bookings.ConfirmPayment(bookingB.ID, second.ID)
	assert.ErrorIs(t, err, ErrInsufficientSeats)

	// The loser is cancelled and flagged for refund, never left half-confirmed
	loser, err := stack.bookings.GetBookingByID(bookingB.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, loser.Status)
	assert.NotNil(t, loser.CancelledAt)

	tickets, err := stack.tickets.GetBookingTickets(bookingB.ID)
	require.NoError(t, err)
	assert.Empty(t, tickets)

	current, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.SeatsRemaining)
}

func TestConcurrentConfirmationsNeverOversell(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	event := createTestEvent(t, stack, host.ID, 25.00, 3, 72*time.Hour)

	const buyers = 6
	bookings := make([]*models.Booking, buyers)
	users := make([]*models.User, buyers)
	for i := 0; i < buyers; i++ {
		users[i] = createTestUser(t, stack.db, false)
		booking, _, err := stack.bookings.InitiateBooking(users[i].ID, event.ID, 1, "")
		require.NoError(t, err)
		stack.gateway.markPaid(booking.StripeSessionID)
		bookings[i] = booking
	}

	var wg sync.WaitGroup
	var confirmed, soldOut int64
	wg.Add(buyers)
	for i := 0; i < buyers; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, err := stack.bookings.ConfirmPayment(bookings[i].ID, users[i].ID)
			switch {
			case err == nil:
				atomic.AddInt64(&confirmed, 1)
			case err == ErrInsufficientSeats:
				atomic.AddInt64(&soldOut, 1)
			default:
				t.Errorf("unexpected confirmation error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(3), confirmed)
	assert.Equal(t, int64(3), soldOut)

	current, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.SeatsRemaining)

	var ticketCount int64
	require.NoError(t, stack.db.Model(&models.Ticket{}).Where("event_id = ?", event.ID).Count(&ticketCount).Error)
	assert.Equal(t, int64(3), ticketCount)
}

func TestCancelBookingRestoresSeatsAndVoidsTickets(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 2, "")
	require.NoError(t, err)
	stack.gateway.markPaid(booking.StripeSessionID)
	_, _, err = stack.bookings.ConfirmPayment(booking.ID, user.ID)
	require.NoError(t, err)

	require.NoError(t, stack.bookings.CancelBooking(booking.ID, user.ID))

	cancelled, err := stack.bookings.GetBookingByID(booking.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	current, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, current.SeatsRemaining)

	tickets, err := stack.tickets.GetBookingTickets(booking.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	for _, ticket := range tickets {
		assert.Equal(t, models.TicketStatusCancelled, ticket.Status)
	}

	// Cancelling twice fails without touching the seat counter again
	err = stack.bookings.CancelBooking(booking.ID, user.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	current, err = stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, current.SeatsRemaining)
}

func TestCancelBookingWindowClosed(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 2*time.Hour)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)
	stack.gateway.markPaid(booking.StripeSessionID)
	_, _, err = stack.bookings.ConfirmPayment(booking.ID, user.ID)
	require.NoError(t, err)

	err = stack.bookings.CancelBooking(booking.ID, user.ID)
	assert.ErrorIs(t, err, ErrCancellationWindowClosed)
}

func TestCancelBookingRequiresPaid(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)

	err = stack.bookings.CancelBooking(booking.ID, user.ID)
	assert.ErrorIs(t, err, ErrBookingNotPaid)
}

func TestCancelBookingOwnership(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	other := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)

	err = stack.bookings.CancelBooking(booking.ID, other.ID)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCouponRedeemedOncePerPaidBooking(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)
	coupon := createTestCoupon(t, stack, event.ID, host.ID, func(c *models.Coupon) {
		c.UsageLimit = 5
	})

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, coupon.Code)
	require.NoError(t, err)
	stack.gateway.markPaid(booking.StripeSessionID)

	_, _, err = stack.bookings.ConfirmPayment(booking.ID, user.ID)
	require.NoError(t, err)
	_, _, err = stack.bookings.ConfirmPayment(booking.ID, user.ID)
	require.NoError(t, err)

	stored, err := stack.coupons.GetCouponByID(coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)
}

func TestCleanupStalePending(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	stale, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)
	fresh, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)

	// Age the first booking past the TTL
	require.NoError(t, stack.db.Model(&models.Booking{}).
		Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	expired, err := stack.bookings.CleanupStalePending()
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	staleAfter, err := stack.bookings.GetBookingByID(stale.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, staleAfter.PaymentStatus)

	freshAfter, err := stack.bookings.GetBookingByID(fresh.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, freshAfter.PaymentStatus)
}

func TestCleanupStalePendingConfirmsPaidSession(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 2, "")
	require.NoError(t, err)

	// Checkout completed, but the webhook never arrived and the booking
	// aged past the TTL
	stack.gateway.markPaid(booking.StripeSessionID)
	require.NoError(t, stack.db.Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	expired, err := stack.bookings.CleanupStalePending()
	require.NoError(t, err)
	assert.Equal(t, int64(0), expired)

	after, err := stack.bookings.GetBookingByID(booking.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, after.PaymentStatus)
	assert.Equal(t, models.BookingStatusConfirmed, after.Status)

	tickets, err := stack.tickets.GetBookingTickets(booking.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)

	eventAfter, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, eventAfter.SeatsRemaining)
}

func TestConfirmPaymentRecoversSweptBooking(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)

	require.NoError(t, stack.db.Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	expired, err := stack.bookings.CleanupStalePending()
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	// The customer completed checkout after the sweep wrote the booking
	// off; a late webhook must still be able to confirm it
	stack.gateway.markPaid(booking.StripeSessionID)

	confirmed, _, err := stack.bookings.ConfirmPaymentBySession(booking.StripeSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, confirmed.PaymentStatus)
	assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)

	tickets, err := stack.tickets.GetBookingTickets(booking.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)

	eventAfter, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, eventAfter.SeatsRemaining)
}

func TestCheckPendingPaymentsConfirmsPaidSessions(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	paidBooking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)
	unpaidBooking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)

	stack.gateway.markPaid(paidBooking.StripeSessionID)

	confirmed, err := stack.bookings.CheckPendingPayments()
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)

	after, err := stack.bookings.GetBookingByID(paidBooking.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, after.PaymentStatus)

	stillPending, err := stack.bookings.GetBookingByID(unpaidBooking.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stillPending.PaymentStatus)
}
