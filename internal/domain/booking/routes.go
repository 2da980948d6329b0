package booking

import (
	"github.com/gin-gonic/gin"
)

// RoleGuard builds middleware admitting only the given token roles.
type RoleGuard func(roles ...string) gin.HandlerFunc

// RegisterRoutes mounts the booking API on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireRole RoleGuard) {
	bookings := rg.Group("/bookings")
	{
		bookings.POST("", requireRole("couple", "client", "admin", "coordinator"), h.CreateBooking)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/payment-summary", h.GetPaymentSummary)
		bookings.GET("/:id/history", h.GetHistory)
		bookings.GET("/:id/receipts", h.GetReceipts)

		bookings.POST("/:id/transitions", h.RequestTransition)
		bookings.POST("/:id/completion", h.RecordCompletion)
		bookings.POST("/:id/dispute/resolve", requireRole("admin", "coordinator"), h.ResolveDispute)

		bookings.POST("/:id/quotes", requireRole("vendor"), h.CreateQuote)
		bookings.GET("/:id/quotes", h.ListQuotes)
	}

	quotes := rg.Group("/quotes")
	{
		quotes.POST("/:id/accept", requireRole("couple", "client"), h.AcceptQuote)
		quotes.POST("/:id/reject", requireRole("couple", "client"), h.RejectQuote)
	}
}

// RegisterWebhookRoutes mounts the payment gateway callback. The group must
// carry the webhook token middleware.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/payments", h.PaymentWebhook)
}
