package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gotrip/booking-backend/internal/models"
	"github.com/gotrip/booking-backend/internal/services"
)

// PaymentHandler handles the gateway payment confirmation callback
type PaymentHandler struct {
	bookingService *services.BookingService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(bookingService *services.BookingService) *PaymentHandler {
	return &PaymentHandler{bookingService: bookingService}
}

// Callback processes a signed payment confirmation from the gateway.
// The route is unauthenticated; the signature check stands in for auth.
// POST /api/v1/payments/callback
func (h *PaymentHandler) Callback(c *gin.Context) {
	var req models.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.bookingService.HandlePaymentCallback(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id":   result.Booking.ID,
		"external_id":  result.Booking.ExternalID,
		"status":       result.Booking.Status,
		"coins_earned": result.CoinsEarned,
		"coin_balance": result.CoinBalance,
	})
}
