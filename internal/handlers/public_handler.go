package handlers

import (
	"net/http"
	"strconv"

	"github.com/eventsphere/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PublicHandler struct {
	eventService  *services.EventService
	couponService *services.CouponService
}

func NewPublicHandler(eventService *services.EventService, couponService *services.CouponService) *PublicHandler {
	return &PublicHandler{
		eventService:  eventService,
		couponService: couponService,
	}
}

func paginationParams(c *gin.Context) (offset, limit int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return (page - 1) * limit, limit
}

// GetUpcomingEvents lists upcoming bookable events
func (h *PublicHandler) GetUpcomingEvents(c *gin.Context) {
	offset, limit := paginationParams(c)

	events, total, err := h.eventService.GetUpcomingEvents(offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "total": total})
}

// GetEvent retrieves a single event
func (h *PublicHandler) GetEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	event, err := h.eventService.GetEventByID(eventID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}

// PreviewCoupon prices an order against a coupon without redeeming it
func (h *PublicHandler) PreviewCoupon(c *gin.Context) {
	var req struct {
		EventID         string `json:"event_id" binding:"required"`
		Code            string `json:"code" binding:"required"`
		NumberOfTickets int    `json:"number_of_tickets" binding:"required,min=1"`
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

	event, err := h.eventService.GetEventByID(eventID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	orderAmount := event.Price * float64(req.NumberOfTickets)
	coupon, discount, final, err := h.couponService.ValidateAndPrice(eventID, req.Code, orderAmount)
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error(), "valid": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":           true,
		"code":            coupon.Code,
		"discount_type":   coupon.DiscountType,
		"order_amount":    orderAmount,
		"discount_amount": discount,
		"final_amount":    final,
	})
}
