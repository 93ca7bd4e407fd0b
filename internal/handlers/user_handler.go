package handlers

import (
	"errors"
	"net/http"

	"github.com/eventsphere/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserHandler struct {
	bookingService *services.BookingService
	ticketService  *services.TicketService
	userService    *services.UserService
}

func NewUserHandler(bookingService *services.BookingService, ticketService *services.TicketService, userService *services.UserService) *UserHandler {
	return &UserHandler{
		bookingService: bookingService,
		ticketService:  ticketService,
		userService:    userService,
	}
}

// bookingErrorStatus maps booking lifecycle errors to HTTP status codes
func bookingErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrBookingNotFound),
		errors.Is(err, services.ErrEventNotFound),
		errors.Is(err, services.ErrCouponNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInsufficientSeats),
		errors.Is(err, services.ErrAlreadyCancelled),
		errors.Is(err, services.ErrCouponLimitReached):
		return http.StatusConflict
	case errors.Is(err, services.ErrPaymentIncomplete):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrEventNotBookable),
		errors.Is(err, services.ErrInvalidSeatCount),
		errors.Is(err, services.ErrBookingNotPaid),
		errors.Is(err, services.ErrCancellationWindowClosed),
		errors.Is(err, services.ErrCouponInactive),
		errors.Is(err, services.ErrCouponNotStarted),
		errors.Is(err, services.ErrCouponExpired),
		errors.Is(err, services.ErrMinimumOrderNotMet):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CreateBooking initiates a booking and returns the checkout URL
func (h *UserHandler) CreateBooking(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	var req struct {
		EventID         string `json:"event_id" binding:"required"`
		NumberOfTickets int    `json:"number_of_tickets" binding:"required,min=1"`
		CouponCode      string `json:"coupon_code"`
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

	booking, checkoutURL, err := h.bookingService.InitiateBooking(userID, eventID, req.NumberOfTickets, req.CouponCode)
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking": gin.H{
			"id":                booking.ID,
			"event_id":          booking.EventID,
			"number_of_tickets": booking.NumberOfTickets,
			"total_price":       booking.TotalPrice,
			"discount_amount":   booking.DiscountAmount,
			"final_amount":      booking.FinalAmount,
			"coupon_code":       booking.CouponCode,
			"payment_status":    booking.PaymentStatus,
		},
		"checkout_url": checkoutURL,
	})
}

// ConfirmBookingPayment confirms payment for a booking after checkout
func (h *UserHandler) ConfirmBookingPayment(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, issueResult, err := h.bookingService.ConfirmPayment(bookingID, userID)
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"message": "Payment confirmed",
		"booking": gin.H{
			"id":             booking.ID,
			"payment_status": booking.PaymentStatus,
			"status":         booking.Status,
			"final_amount":   booking.FinalAmount,
		},
	}
	if issueResult != nil {
		resp["tickets"] = issueResult
	}

	c.JSON(http.StatusOK, resp)
}

// GetBookings lists the user's bookings
func (h *UserHandler) GetBookings(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	bookings, err := h.bookingService.GetUserBookings(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetBooking retrieves one of the user's bookings with its tickets
func (h *UserHandler) GetBooking(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, err := h.bookingService.GetBookingByID(bookingID, userID)
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	tickets, err := h.ticketService.GetBookingTickets(bookingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tickets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking, "tickets": tickets})
}

// CancelBooking cancels a paid booking within the cancellation window
func (h *UserHandler) CancelBooking(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	if err := h.bookingService.CancelBooking(bookingID, userID); err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled"})
}

// GetTickets lists the user's tickets
func (h *UserHandler) GetTickets(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	tickets, err := h.ticketService.GetUserTickets(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tickets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// UpdateProfile updates the user's profile fields
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}

	if err := h.userService.UpdateUserProfile(userID, updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated"})
}
