package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/eventsphere/backend/internal/config"
	"github.com/eventsphere/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type StripeHandler struct {
	bookingService *services.BookingService
	cfg            *config.Config
}

func NewStripeHandler(bookingService *services.BookingService, cfg *config.Config) *StripeHandler {
	return &StripeHandler{
		bookingService: bookingService,
		cfg:            cfg,
	}
}

// HandleWebhook handles Stripe webhook events
func (h *StripeHandler) HandleWebhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("ERROR: Failed to read Stripe webhook request body: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	// Verify webhook signature
	signatureHeader := c.GetHeader("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, signatureHeader, h.cfg.StripeWebhookSecret)
	if err != nil {
		log.Printf("ERROR: Webhook signature verification failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	log.Printf("INFO: Received Stripe event type: %s, ID: %s", event.Type, event.ID)

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			log.Printf("ERROR: Failed to parse webhook JSON for checkout.session.completed: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Error parsing webhook JSON"})
			return
		}

		booking, issueResult, err := h.bookingService.ConfirmPaymentBySession(session.ID)
		if err != nil {
			log.Printf("ERROR: Failed to confirm payment for session %s: %v", session.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm payment"})
			return
		}

		if issueResult != nil {
			log.Printf("INFO: Payment confirmed for booking %s, tickets issued: %d, failed: %d",
				booking.ID, issueResult.Issued, issueResult.Failed)
		} else {
			log.Printf("INFO: Payment already confirmed for booking %s", booking.ID)
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Payment confirmed"})
		return

	case "payment_intent.payment_failed":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			log.Printf("ERROR: Failed to parse webhook JSON for payment_intent.payment_failed: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Error parsing webhook JSON"})
			return
		}
		var reason string
		if paymentIntent.LastPaymentError != nil {
			reason = paymentIntent.LastPaymentError.Msg
		}
		log.Printf("WARN: Payment failed for PaymentIntent %s. Reason: %s", paymentIntent.ID, reason)
		c.JSON(http.StatusOK, gin.H{"status": "success"})

	default:
		log.Printf("INFO: Unhandled Stripe event type: %s", event.Type)
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Unhandled event type"})
	}
}
