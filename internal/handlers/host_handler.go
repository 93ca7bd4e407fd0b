package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type HostHandler struct {
	eventService  *services.EventService
	couponService *services.CouponService
	ticketService *services.TicketService
}

func NewHostHandler(eventService *services.EventService, couponService *services.CouponService, ticketService *services.TicketService) *HostHandler {
	return &HostHandler{
		eventService:  eventService,
		couponService: couponService,
		ticketService: ticketService,
	}
}

func hostErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrEventNotFound),
		errors.Is(err, services.ErrCouponNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotEventHost):
		return http.StatusForbidden
	case errors.Is(err, services.ErrEventHasBookings),
		errors.Is(err, services.ErrScheduleChangeLocked),
		errors.Is(err, services.ErrCouponInUse),
		errors.Is(err, services.ErrCouponCodeTaken):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// CreateEvent creates a new event for the host
func (h *HostHandler) CreateEvent(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)

	var req struct {
		Title       string    `json:"title" binding:"required"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Tags        string    `json:"tags"`
		Location    string    `json:"location"`
		OnlineURL   string    `json:"online_url"`
		Price       float64   `json:"price"`
		Capacity    int       `json:"capacity" binding:"required,min=1"`
		StartsAt    time.Time `json:"starts_at" binding:"required"`
		EndsAt      time.Time `json:"ends_at" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := &models.Event{
		HostID:      hostID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		Location:    req.Location,
		OnlineURL:   req.OnlineURL,
		Price:       req.Price,
		Capacity:    req.Capacity,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}

	if err := h.eventService.CreateEvent(event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// UpdateEvent updates one of the host's events
func (h *HostHandler) UpdateEvent(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)

	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Category    *string    `json:"category"`
		Tags        *string    `json:"tags"`
		Location    *string    `json:"location"`
		OnlineURL   *string    `json:"online_url"`
		Price       *float64   `json:"price"`
		StartsAt    *time.Time `json:"starts_at"`
		EndsAt      *time.Time `json:"ends_at"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Tags != nil {
		updates["tags"] = *req.Tags
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.OnlineURL != nil {
		updates["online_url"] = *req.OnlineURL
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.StartsAt != nil {
		updates["starts_at"] = *req.StartsAt
	}
	if req.EndsAt != nil {
		updates["ends_at"] = *req.EndsAt
	}

	if err := h.eventService.UpdateEvent(eventID, hostID, updates); err != nil {
		c.JSON(hostErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event updated"})
}

// CancelEvent marks one of the host's events as canceled
func (h *HostHandler) CancelEvent(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)

	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	if err := h.eventService.CancelEvent(eventID, hostID); err != nil {
		c.JSON(hostErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event canceled"})
}

// DeleteEvent removes an event that has no bookings yet
func (h *HostHandler) DeleteEvent(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)

	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	if err := h.eventService.DeleteEvent(eventID, hostID); err != nil {
		c.JSON(hostErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event deleted"})
}

// GetEvents lists the host's events
func (h *HostHandler) GetEvents(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)
	offset, limit := paginationParams(c)

	events, total, err := h.eventService.GetHostEvents(hostID, offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "total": total})
}

// GetDashboard returns aggregated booking statistics for the host
func (h *HostHandler) GetDashboard(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)

	dashboard, err := h.eventService.GetHostDashboard(hostID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute dashboard"})
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

// CreateCoupon creates a coupon for one of the host's events
func (h *HostHandler) CreateCoupon(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)

	var req struct {
		EventID           string    `json:"event_id" binding:"required"`
		Code              string    `json:"code" binding:"required"`
		DiscountType      string    `json:"discount_type" binding:"required"`
		DiscountValue     float64   `json:"discount_value" binding:"required"`
		MinOrderAmount    float64   `json:"min_order_amount"`
		MaxDiscountAmount float64   `json:"max_discount_amount"`
		UsageLimit        int       `json:"usage_limit"`
		ValidFrom         time.Time `json:"valid_from" binding:"required"`
		ValidUntil        time.Time `json:"valid_until" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	coupon := &models.Coupon{
		EventID:           eventID,
		HostID:            hostID,
		Code:              req.Code,
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		UsageLimit:        req.UsageLimit,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		IsActive:          true,
	}

	if err := h.couponService.CreateCoupon(coupon); err != nil {
		c.JSON(hostErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"coupon": coupon})
}

// UpdateCoupon updates one of the host's coupons
func (h *HostHandler) UpdateCoupon(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)

	couponID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon ID"})
		return
	}

	var req struct {
		DiscountValue     *float64   `json:"discount_value"`
		MinOrderAmount    *float64   `json:"min_order_amount"`
		MaxDiscountAmount *float64   `json:"max_discount_amount"`
		UsageLimit        *int       `json:"usage_limit"`
		ValidFrom         *time.Time `json:"valid_from"`
		ValidUntil        *time.Time `json:"valid_until"`
		IsActive          *bool      `json:"is_active"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.DiscountValue != nil {
		updates["discount_value"] = *req.DiscountValue
	}
	if req.MinOrderAmount != nil {
		updates["min_order_amount"] = *req.MinOrderAmount
	}
	if req.MaxDiscountAmount != nil {
		updates["max_discount_amount"] = *req.MaxDiscountAmount
	}
	if req.UsageLimit != nil {
		updates["usage_limit"] = *req.UsageLimit
	}
	if req.ValidFrom != nil {
		updates["valid_from"] = *req.ValidFrom
	}
	if req.ValidUntil != nil {
		updates["valid_until"] = *req.ValidUntil
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := h.couponService.UpdateCoupon(couponID, hostID, updates); err != nil {
		c.JSON(hostErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon updated"})
}

// DeactivateCoupon turns a coupon off without deleting it
func (h *HostHandler) DeactivateCoupon(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)

	couponID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon ID"})
		return
	}

	if err := h.couponService.DeactivateCoupon(couponID, hostID); err != nil {
		c.JSON(hostErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon deactivated"})
}

// DeleteCoupon removes a never-redeemed coupon
func (h *HostHandler) DeleteCoupon(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)

	couponID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon ID"})
		return
	}

	if err := h.couponService.DeleteCoupon(couponID, hostID); err != nil {
		c.JSON(hostErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon deleted"})
}

// GetEventCoupons lists the coupons of one of the host's events
func (h *HostHandler) GetEventCoupons(c *gin.Context) {
	hostID := c.MustGet("userID").(uuid.UUID)

	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	coupons, err := h.couponService.ListEventCoupons(eventID, hostID)
	if err != nil {
		c.JSON(hostErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

// ValidateTicket checks a ticket for entry without consuming it
func (h *HostHandler) ValidateTicket(c *gin.Context) {
	ticketNumber := c.Param("number")

	ticket, err := h.ticketService.ValidateTicket(ticketNumber)
	if err != nil {
		c.JSON(ticketErrorStatus(err), gin.H{"error": err.Error(), "valid": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"ticket": gin.H{
			"ticket_number": ticket.TicketNumber,
			"status":        ticket.Status,
			"event_title":   ticket.Event.Title,
			"attendee":      ticket.User.Name,
		},
	})
}

// RedeemTicket marks a ticket as used at check-in
func (h *HostHandler) RedeemTicket(c *gin.Context) {
	ticketNumber := c.Param("number")

	ticket, err := h.ticketService.RedeemTicket(ticketNumber)
	if err != nil {
		c.JSON(ticketErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Ticket checked in",
		"ticket": gin.H{
			"ticket_number": ticket.TicketNumber,
			"status":        ticket.Status,
			"checked_in_at": ticket.CheckedInAt,
		},
	})
}

func ticketErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrTicketNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTicketAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, services.ErrTicketCancelled),
		errors.Is(err, services.ErrTicketUnpaid),
		errors.Is(err, services.ErrEventOver):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
