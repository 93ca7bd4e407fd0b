package services

import (
	"testing"
	"time"

	"github.com/eventsphere/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEventValidation(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)

	base := func() *models.Event {
		return &models.Event{
			HostID:   host.ID,
			Title:    "Launch Party",
			Location: "Main Hall",
			Price:    25,
			Capacity: 100,
			StartsAt: time.Now().Add(48 * time.Hour),
			EndsAt:   time.Now().Add(51 * time.Hour),
		}
	}

	event := base()
	require.NoError(t, stack.events.CreateEvent(event))
	assert.Equal(t, 100, event.SeatsRemaining)
	assert.Equal(t, models.EventStatusActive, event.Status)

	event = base()
	event.Title = ""
	assert.Error(t, stack.events.CreateEvent(event))

	event = base()
	event.Price = -1
	assert.Error(t, stack.events.CreateEvent(event))

	event = base()
	event.Capacity = 0
	assert.Error(t, stack.events.CreateEvent(event))

	event = base()
	event.StartsAt, event.EndsAt = event.EndsAt, event.StartsAt
	assert.Error(t, stack.events.CreateEvent(event))

	event = base()
	event.Location = ""
	event.OnlineURL = ""
	assert.Error(t, stack.events.CreateEvent(event))

	// Online-only events need no physical location
	event = base()
	event.Location = ""
	event.OnlineURL = "https://meet.example.com/launch"
	assert.NoError(t, stack.events.CreateEvent(event))
}

func TestReserveSeats(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	event := createTestEvent(t, stack, host.ID, 10.00, 5, 72*time.Hour)

	require.NoError(t, stack.events.ReserveSeats(event.ID, 3))

	current, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.SeatsRemaining)

	assert.ErrorIs(t, stack.events.ReserveSeats(event.ID, 3), ErrInsufficientSeats)
	assert.ErrorIs(t, stack.events.ReserveSeats(uuid.New(), 1), ErrEventNotFound)
	assert.ErrorIs(t, stack.events.ReserveSeats(event.ID, 0), ErrInvalidSeatCount)

	// Failure leaves the counter untouched
	current, err = stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.SeatsRemaining)
}

func TestReleaseSeatsClampsToCapacity(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	event := createTestEvent(t, stack, host.ID, 10.00, 5, 72*time.Hour)

	require.NoError(t, stack.events.ReserveSeats(event.ID, 2))
	require.NoError(t, stack.events.ReleaseSeats(event.ID, 2))

	current, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, current.SeatsRemaining)

	// A spurious extra release must not push the counter past capacity
	require.NoError(t, stack.events.ReleaseSeats(event.ID, 3))
	current, err = stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, current.SeatsRemaining)
}

func TestUpdateEventScheduleLockedWithPaidBookings(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	booking, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)
	stack.gateway.markPaid(booking.StripeSessionID)
	_, _, err = stack.bookings.ConfirmPayment(booking.ID, user.ID)
	require.NoError(t, err)

	newStart := time.Now().Add(96 * time.Hour)
	err = stack.events.UpdateEvent(event.ID, host.ID, map[string]interface{}{
		"starts_at": newStart,
		"ends_at":   newStart.Add(3 * time.Hour),
	})
	assert.ErrorIs(t, err, ErrScheduleChangeLocked)

	// Non-schedule fields stay editable
	require.NoError(t, stack.events.UpdateEvent(event.ID, host.ID, map[string]interface{}{
		"title": "Renamed Event",
	}))
	current, err := stack.events.GetEventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Event", current.Title)
}

func TestUpdateEventOwnership(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	other := createTestUser(t, stack.db, true)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	err := stack.events.UpdateEvent(event.ID, other.ID, map[string]interface{}{"title": "Hijacked"})
	assert.ErrorIs(t, err, ErrNotEventHost)

	err = stack.events.CancelEvent(event.ID, other.ID)
	assert.ErrorIs(t, err, ErrNotEventHost)
}

func TestDeleteEventBlockedWithBookings(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)

	_, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 1, "")
	require.NoError(t, err)

	assert.ErrorIs(t, stack.events.DeleteEvent(event.ID, host.ID), ErrEventHasBookings)

	empty := createTestEvent(t, stack, host.ID, 50.00, 10, 96*time.Hour)
	require.NoError(t, stack.events.DeleteEvent(empty.ID, host.ID))
	_, err = stack.events.GetEventByID(empty.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestGetUpcomingEventsExcludesCanceledAndPast(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)

	upcoming := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)
	canceled := createTestEvent(t, stack, host.ID, 50.00, 10, 96*time.Hour)
	require.NoError(t, stack.events.CancelEvent(canceled.ID, host.ID))

	past := &models.Event{
		HostID:         host.ID,
		Title:          "Past Event",
		Location:       "Old Hall",
		Price:          10,
		Capacity:       10,
		SeatsRemaining: 10,
		Status:         models.EventStatusActive,
		StartsAt:       time.Now().Add(-48 * time.Hour),
		EndsAt:         time.Now().Add(-45 * time.Hour),
	}
	require.NoError(t, stack.db.Create(past).Error)

	events, total, err := stack.events.GetUpcomingEvents(0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	assert.Equal(t, upcoming.ID, events[0].ID)
}

func TestMarkPastEvents(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)

	upcoming := createTestEvent(t, stack, host.ID, 50.00, 10, 72*time.Hour)
	canceled := createTestEvent(t, stack, host.ID, 50.00, 10, 96*time.Hour)
	require.NoError(t, stack.events.CancelEvent(canceled.ID, host.ID))

	ended := &models.Event{
		HostID:         host.ID,
		Title:          "Ended Event",
		Location:       "Old Hall",
		Price:          10,
		Capacity:       10,
		SeatsRemaining: 10,
		Status:         models.EventStatusActive,
		StartsAt:       time.Now().Add(-48 * time.Hour),
		EndsAt:         time.Now().Add(-45 * time.Hour),
	}
	require.NoError(t, stack.db.Create(ended).Error)

	marked, err := stack.events.MarkPastEvents()
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	endedAfter, err := stack.events.GetEventByID(ended.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPast, endedAfter.Status)

	upcomingAfter, err := stack.events.GetEventByID(upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusActive, upcomingAfter.Status)

	canceledAfter, err := stack.events.GetEventByID(canceled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCanceled, canceledAfter.Status)
}

func TestGetHostDashboard(t *testing.T) {
	stack := newTestStack(t)
	host := createTestUser(t, stack.db, true)
	user := createTestUser(t, stack.db, false)
	event := createTestEvent(t, stack, host.ID, 40.00, 10, 72*time.Hour)
	createTestEvent(t, stack, host.ID, 10.00, 10, 96*time.Hour)

	// One paid booking of 2 tickets, one abandoned pending booking
	paid, _, err := stack.bookings.InitiateBooking(user.ID, event.ID, 2, "")
	require.NoError(t, err)
	stack.gateway.markPaid(paid.StripeSessionID)
	_, _, err = stack.bookings.ConfirmPayment(paid.ID, user.ID)
	require.NoError(t, err)

	_, _, err = stack.bookings.InitiateBooking(user.ID, event.ID, 3, "")
	require.NoError(t, err)

	dashboard, err := stack.events.GetHostDashboard(host.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dashboard.TotalEvents)
	assert.Equal(t, int64(2), dashboard.UpcomingEvents)
	assert.Equal(t, int64(2), dashboard.TicketsSold)
	assert.Equal(t, 80.00, dashboard.Revenue)
}
