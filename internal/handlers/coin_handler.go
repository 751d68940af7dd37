package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gotrip/booking-backend/internal/middleware"
	"github.com/gotrip/booking-backend/internal/services"
)

// CoinHandler serves the caller's coin balance and ledger
type CoinHandler struct {
	coinService *services.CoinLedgerService
}

// NewCoinHandler creates a new CoinHandler
func NewCoinHandler(coinService *services.CoinLedgerService) *CoinHandler {
	return &CoinHandler{coinService: coinService}
}

// GetStatement returns the caller's coin statement: current balance,
// the balance implied by the ledger, and every ledger entry with its
// signed contribution.
// GET /api/v1/coins
func (h *CoinHandler) GetStatement(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	statement, err := h.coinService.Statement(userCtx.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	entries := make([]gin.H, 0, len(statement.Transactions))
	for i := range statement.Transactions {
		tx := &statement.Transactions[i]
		entries = append(entries, gin.H{
			"id":            tx.ID,
			"booking_id":    tx.BookingID,
			"type":          tx.Type,
			"amount":        tx.Amount,
			"signed_amount": tx.SignedAmount(),
			"description":   tx.Description,
			"status":        tx.Status,
			"created_at":    tx.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":        statement.Balance,
		"ledger_balance": statement.LedgerBalance,
		"consistent":     statement.Consistent,
		"transactions":   entries,
		"count":          len(entries),
	})
}
