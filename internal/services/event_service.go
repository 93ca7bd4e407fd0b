package services

import (
	"errors"
	"time"

	"github.com/eventsphere/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrEventNotBookable     = errors.New("event is not open for booking")
	ErrInsufficientSeats    = errors.New("not enough seats available")
	ErrEventHasBookings     = errors.New("event has confirmed bookings")
	ErrNotEventHost         = errors.New("user is not the host of this event")
	ErrInvalidSeatCount     = errors.New("seat count must be at least 1")
	ErrScheduleChangeLocked = errors.New("event schedule cannot change once paid bookings exist")
)

type EventService struct {
	db *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{db: db}
}

// GetDB returns the database instance
func (s *EventService) GetDB() *gorm.DB {
	return s.db
}

// CreateEvent creates a new event for a host
func (s *EventService) CreateEvent(event *models.Event) error {
	if event.Title == "" {
		return errors.New("title is required")
	}
	if event.Price < 0 {
		return errors.New("price cannot be negative")
	}
	if event.Capacity <= 0 {
		return errors.New("capacity must be greater than 0")
	}
	if event.StartsAt.After(event.EndsAt) {
		return errors.New("start time must be before end time")
	}
	if event.Location == "" && event.OnlineURL == "" {
		return errors.New("either a location or an online URL is required")
	}

	event.SeatsRemaining = event.Capacity
	event.Status = models.EventStatusActive
	return s.db.Create(event).Error
}

// GetEventByID retrieves an event by ID
func (s *EventService) GetEventByID(eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := s.db.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

// UpdateEvent updates an event owned by the host. Date/time changes are
// rejected once paid bookings exist.
func (s *EventService) UpdateEvent(eventID, hostID uuid.UUID, updates map[string]interface{}) error {
	event, err := s.GetEventByID(eventID)
	if err != nil {
		return err
	}
	if event.HostID != hostID {
		return ErrNotEventHost
	}

	if v, ok := updates["title"].(string); ok && v != "" {
		event.Title = v
	}
	if v, ok := updates["description"].(string); ok {
		event.Description = v
	}
	if v, ok := updates["category"].(string); ok && v != "" {
		event.Category = v
	}
	if v, ok := updates["tags"].(string); ok {
		event.Tags = v
	}
	if v, ok := updates["location"].(string); ok {
		event.Location = v
	}
	if v, ok := updates["online_url"].(string); ok {
		event.OnlineURL = v
	}
	if v, ok := updates["price"].(float64); ok {
		if v < 0 {
			return errors.New("price cannot be negative")
		}
		event.Price = v
	}

	scheduleChanged := false
	if v, ok := updates["starts_at"].(time.Time); ok && !v.IsZero() && !v.Equal(event.StartsAt) {
		event.StartsAt = v
		scheduleChanged = true
	}
	if v, ok := updates["ends_at"].(time.Time); ok && !v.IsZero() && !v.Equal(event.EndsAt) {
		event.EndsAt = v
		scheduleChanged = true
	}

	if scheduleChanged {
		var paidCount int64
		err := s.db.Model(&models.Booking{}).
			Where("event_id = ? AND payment_status = ?", eventID, models.PaymentStatusPaid).
			Count(&paidCount).Error
		if err != nil {
			return err
		}
		if paidCount > 0 {
			return ErrScheduleChangeLocked
		}
	}

	if event.StartsAt.After(event.EndsAt) {
		return errors.New("start time must be before end time")
	}

	return s.db.Model(&models.Event{}).Where("id = ?", eventID).Updates(map[string]interface{}{
		"title":       event.Title,
		"description": event.Description,
		"category":    event.Category,
		"tags":        event.Tags,
		"location":    event.Location,
		"online_url":  event.OnlineURL,
		"price":       event.Price,
		"starts_at":   event.StartsAt,
		"ends_at":     event.EndsAt,
	}).Error
}

// CancelEvent marks a host's event as canceled. Events are never hard-deleted
// while bookings reference them.
func (s *EventService) CancelEvent(eventID, hostID uuid.UUID) error {
	event, err := s.GetEventByID(eventID)
	if err != nil {
		return err
	}
	if event.HostID != hostID {
		return ErrNotEventHost
	}

	result := s.db.Model(&models.Event{}).
		Where("id = ? AND status = ?", eventID, models.EventStatusActive).
		Update("status", models.EventStatusCanceled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotBookable
	}
	return nil
}

// DeleteEvent hard-deletes an event, only permitted while no bookings
// reference it.
func (s *EventService) DeleteEvent(eventID, hostID uuid.UUID) error {
	event, err := s.GetEventByID(eventID)
	if err != nil {
		return err
	}
	if event.HostID != hostID {
		return ErrNotEventHost
	}

	var bookingCount int64
	if err := s.db.Model(&models.Booking{}).Where("event_id = ?", eventID).Count(&bookingCount).Error; err != nil {
		return err
	}
	if bookingCount > 0 {
		return ErrEventHasBookings
	}

	return s.db.Delete(&models.Event{}, "id = ?", eventID).Error
}

// ReserveSeats atomically decrements the event's remaining seats by count.
// The conditional update is the oversell guard: concurrent reservations for
// the same event cannot push the counter below zero.
func (s *EventService) ReserveSeats(eventID uuid.UUID, count int) error {
	if count < 1 {
		return ErrInvalidSeatCount
	}

	result := s.db.Model(&models.Event{}).
		Where("id = ? AND seats_remaining >= ?", eventID, count).
		UpdateColumn("seats_remaining", gorm.Expr("seats_remaining - ?", count))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing event from an exhausted one
		var exists int64
		if err := s.db.Model(&models.Event{}).Where("id = ?", eventID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrEventNotFound
		}
		return ErrInsufficientSeats
	}
	return nil
}

// ReleaseSeats atomically returns count seats to the event, clamped to the
// original capacity so repeated releases can never drift above it.
func (s *EventService) ReleaseSeats(eventID uuid.UUID, count int) error {
	if count < 1 {
		return ErrInvalidSeatCount
	}

	result := s.db.Model(&models.Event{}).
		Where("id = ?", eventID).
		UpdateColumn("seats_remaining", gorm.Expr(
			"CASE WHEN seats_remaining + ? > capacity THEN capacity ELSE seats_remaining + ? END", count, count))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// MarkPastEvents flips active events whose end time has passed to the past
// status. Canceled events keep their status.
func (s *EventService) MarkPastEvents() (int64, error) {
	result := s.db.Model(&models.Event{}).
		Where("status = ? AND ends_at < ?", models.EventStatusActive, time.Now()).
		Update("status", models.EventStatusPast)
	return result.RowsAffected, result.Error
}

// GetUpcomingEvents retrieves upcoming active events
func (s *EventService) GetUpcomingEvents(offset, limit int) ([]*models.Event, int64, error) {
	var events []*models.Event
	var total int64

	now := time.Now()
	query := s.db.Model(&models.Event{}).Where("status = ? AND starts_at > ?", models.EventStatusActive, now)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Offset(offset).Limit(limit).Order("starts_at ASC").Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// GetHostEvents retrieves all events owned by a host
func (s *EventService) GetHostEvents(hostID uuid.UUID, offset, limit int) ([]*models.Event, int64, error) {
	var events []*models.Event
	var total int64

	query := s.db.Model(&models.Event{}).Where("host_id = ?", hostID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Offset(offset).Limit(limit).Order("starts_at DESC").Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// HostDashboard aggregates booking statistics across a host's events.
type HostDashboard struct {
	TotalEvents    int64   `json:"total_events"`
	UpcomingEvents int64   `json:"upcoming_events"`
	TicketsSold    int64   `json:"tickets_sold"`
	Revenue        float64 `json:"revenue"`
}

// GetHostDashboard computes dashboard statistics for a host from paid bookings.
func (s *EventService) GetHostDashboard(hostID uuid.UUID) (*HostDashboard, error) {
	dashboard := &HostDashboard{}

	if err := s.db.Model(&models.Event{}).Where("host_id = ?", hostID).Count(&dashboard.TotalEvents).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.Model(&models.Event{}).
		Where("host_id = ? AND status = ? AND starts_at > ?", hostID, models.EventStatusActive, now).
		Count(&dashboard.UpcomingEvents).Error; err != nil {
		return nil, err
	}

	var row struct {
		Tickets int64
		Revenue float64
	}
	err := s.db.Model(&models.Booking{}).
		Select("COALESCE(SUM(bookings.number_of_tickets), 0) as tickets, COALESCE(SUM(bookings.final_amount), 0) as revenue").
		Joins("JOIN events ON events.id = bookings.event_id").
		Where("events.host_id = ? AND bookings.payment_status = ? AND bookings.status = ?",
			hostID, models.PaymentStatusPaid, models.BookingStatusConfirmed).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	dashboard.TicketsSold = row.Tickets
	dashboard.Revenue = row.Revenue

	return dashboard, nil
}
