package booking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"weddinghub/internal/pkg/response"
)

type Handler struct {
	engine  *Engine
	loggerf func(format string, args ...interface{})
}

func NewHandler(engine *Engine, loggerf func(format string, args ...interface{})) *Handler {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Handler{engine: engine, loggerf: loggerf}
}

// CreateBooking godoc
// @Summary      Create booking request
// @Description  Couples book for themselves; admins may book on behalf of a couple
// @Tags         Bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body body CreateInput true "Booking request"
// @Success      201 {object} ResultResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      401 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Router       /bookings [post]
func (h *Handler) CreateBooking(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.engine.CreateBooking(c.Request.Context(), req, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, toResultResponse(res))
}

// GetBooking godoc
// @Summary      Get booking
// @Tags         Bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id path int true "Booking ID"
// @Success      200 {object} BookingResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Router       /bookings/{id} [get]
func (h *Handler) GetBooking(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	b, err := h.engine.GetBooking(c.Request.Context(), id, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b, "next_statuses": NextStatuses(b.Status)})
}

// GetPaymentSummary godoc
// @Summary      Get payment summary
// @Tags         Bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id path int true "Booking ID"
// @Success      200 {object} PaymentSummaryResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Router       /bookings/{id}/payment-summary [get]
func (h *Handler) GetPaymentSummary(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	summary, err := h.engine.PaymentSummary(c.Request.Context(), id, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// GetHistory godoc
// @Summary      List status history
// @Tags         Bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id path int true "Booking ID"
// @Success      200 {object} HistoryResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Router       /bookings/{id}/history [get]
func (h *Handler) GetHistory(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	entries, err := h.engine.History(c.Request.Context(), id, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"history": entries})
}

// GetReceipts godoc
// @Summary      List payment receipts
// @Tags         Payments
// @Security     BearerAuth
// @Produce      json
// @Param        id path int true "Booking ID"
// @Success      200 {object} ReceiptsResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Router       /bookings/{id}/receipts [get]
func (h *Handler) GetReceipts(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	receipts, err := h.engine.Receipts(c.Request.Context(), id, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"receipts": receipts})
}

// RequestTransition godoc
// @Summary      Move booking to another status
// @Description  Payment-bearing targets require a payment; if_version pins the expected version
// @Tags         Bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path int true "Booking ID"
// @Param        body body transitionRequest true "Target status"
// @Success      200 {object} ResultResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Failure      409 {object} ErrorResponseSwagger
// @Router       /bookings/{id}/transitions [post]
func (h *Handler) RequestTransition(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	target, err := ParseStatus(req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.engine.RequestTransition(c.Request.Context(), id, TransitionRequest{
		Target:    target,
		Actor:     actor,
		Reason:    req.Reason,
		IfVersion: req.IfVersion,
		Payment:   req.Payment,
	})
	if err != nil {
		h.writeResultError(c, res, err)
		return
	}
	response.Success(c, http.StatusOK, toResultResponse(res))
}

// RecordCompletion godoc
// @Summary      Confirm completion for one side
// @Description  Booking completes once vendor and couple have both confirmed
// @Tags         Bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path int true "Booking ID"
// @Param        body body completionRequest true "Confirming side"
// @Success      200 {object} ResultResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Failure      409 {object} ErrorResponseSwagger
// @Router       /bookings/{id}/completion [post]
func (h *Handler) RecordCompletion(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	side, err := ParseSide(req.Side)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.engine.RecordCompletion(c.Request.Context(), id, side, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toResultResponse(res))
}

// ResolveDispute godoc
// @Summary      Resolve dispute
// @Tags         Bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path int true "Booking ID"
// @Param        body body reasonRequest false "Resolution note"
// @Success      200 {object} ResultResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Failure      409 {object} ErrorResponseSwagger
// @Router       /bookings/{id}/dispute/resolve [post]
func (h *Handler) ResolveDispute(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}

	res, err := h.engine.ResolveDispute(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toResultResponse(res))
}

// CreateQuote godoc
// @Summary      Send or revise quote
// @Description  Supersedes any pending quote of the booking
// @Tags         Quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path int true "Booking ID"
// @Param        body body QuoteInput true "Quote lines"
// @Success      201 {object} ResultResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Failure      409 {object} ErrorResponseSwagger
// @Router       /bookings/{id}/quotes [post]
func (h *Handler) CreateQuote(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req QuoteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.engine.CreateQuote(c.Request.Context(), id, req, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, toResultResponse(res))
}

// ListQuotes godoc
// @Summary      List booking quotes
// @Tags         Quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id path int true "Booking ID"
// @Success      200 {object} QuotesResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Router       /bookings/{id}/quotes [get]
func (h *Handler) ListQuotes(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	quotes, err := h.engine.ListQuotes(c.Request.Context(), id, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quotes": quotes})
}

// AcceptQuote godoc
// @Summary      Accept quote
// @Description  Agrees booking amount and downpayment from the quote
// @Tags         Quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id path int true "Quote ID"
// @Success      200 {object} ResultResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Failure      409 {object} ErrorResponseSwagger
// @Router       /quotes/{id}/accept [post]
func (h *Handler) AcceptQuote(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	res, err := h.engine.AcceptQuote(c.Request.Context(), id, actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toResultResponse(res))
}

// RejectQuote godoc
// @Summary      Reject quote
// @Tags         Quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path int true "Quote ID"
// @Param        body body reasonRequest false "Rejection reason"
// @Success      200 {object} ResultResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      403 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Failure      409 {object} ErrorResponseSwagger
// @Router       /quotes/{id}/reject [post]
func (h *Handler) RejectQuote(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}

	res, err := h.engine.RejectQuote(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toResultResponse(res))
}

// PaymentWebhook godoc
// @Summary      Payment gateway callback
// @Description  Applies a verified gateway payment (idempotent by payment_reference). Replays answer 200 with duplicate=true
// @Tags         Payments
// @Security     WebhookToken
// @Accept       json
// @Produce      json
// @Param        body body paymentWebhookRequest true "Payment notification"
// @Success      200 {object} ResultResponseSwagger
// @Failure      400 {object} ErrorResponseSwagger
// @Failure      401 {object} ErrorResponseSwagger
// @Failure      404 {object} ErrorResponseSwagger
// @Failure      409 {object} ErrorResponseSwagger
// @Router       /webhooks/payments [post]
//
// The gateway signature is verified upstream; this endpoint only checks the
// shared bearer token.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var req paymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.loggerf("level=error msg=invalid payment webhook payload err=%v", err)
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	h.loggerf("level=info msg=payment webhook received booking_id=%d reference=%s amount=%s", req.BookingID, req.PaymentReference, req.Amount)
	res, err := h.engine.ApplyPayment(c.Request.Context(), PaymentRequest{
		BookingID: req.BookingID,
		PaymentInput: PaymentInput{
			Amount:    req.Amount,
			Reference: req.PaymentReference,
			Metadata:  req.Metadata,
		},
	})
	if err != nil {
		h.writeResultError(c, res, err)
		return
	}
	response.Success(c, http.StatusOK, toResultResponse(res))
}

// writeResultError answers a replayed payment with the original outcome.
func (h *Handler) writeResultError(c *gin.Context, res *Result, err error) {
	if errors.Is(err, ErrDuplicatePayment) && res != nil {
		out := toResultResponse(res)
		out.Duplicate = true
		out.Changed = false
		out.History = []StatusHistoryEntry{}
		response.Success(c, http.StatusOK, out)
		return
	}
	h.writeError(c, err)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	message := "Internal server error"

	switch Kind(err) {
	case ErrBookingNotFound:
		status, code, message = http.StatusNotFound, "BOOKING_NOT_FOUND", "Booking not found"
	case ErrQuoteNotFound:
		status, code, message = http.StatusNotFound, "QUOTE_NOT_FOUND", "Quote not found"
	case ErrInvalidTransition:
		status, code, message = http.StatusConflict, "INVALID_TRANSITION", err.Error()
	case ErrInvalidState:
		status, code, message = http.StatusConflict, "INVALID_STATE", err.Error()
	case ErrStaleQuote:
		status, code, message = http.StatusConflict, "STALE_QUOTE", err.Error()
	case ErrQuoteExpired:
		status, code, message = http.StatusConflict, "QUOTE_EXPIRED", err.Error()
	case ErrConcurrentModification:
		status, code, message = http.StatusConflict, "CONCURRENT_MODIFICATION", "Booking was modified concurrently, retry the request"
	case ErrDuplicatePayment:
		status, code, message = http.StatusConflict, "DUPLICATE_PAYMENT", err.Error()
	case ErrUnauthorizedActor:
		status, code, message = http.StatusForbidden, "UNAUTHORIZED_ACTOR", err.Error()
	case ErrPaymentRequired:
		status, code, message = http.StatusBadRequest, "PAYMENT_REQUIRED", err.Error()
	case ErrInvalidStatus:
		status, code, message = http.StatusBadRequest, "INVALID_STATUS", err.Error()
	case ErrValidation:
		status, code, message = http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	default:
		h.loggerf("level=error msg=booking request failed path=%s err=%v", c.FullPath(), err)
		_ = c.Error(err)
	}

	details := gin.H{"retryable": IsRetryable(err)}
	if current, ok := CurrentStatus(err); ok {
		details["current_status"] = current
	}
	response.ErrorWithDetails(c, status, code, message, details)
}

// actorFromContext reads the identity set by the JWT middleware.
func actorFromContext(c *gin.Context) (Actor, bool) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return Actor{}, false
	}
	actor, err := ActorFromRole(c.GetString("role"), userID)
	if err != nil {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Role is not allowed to manage bookings")
		return Actor{}, false
	}
	return actor, true
}

func actorAndID(c *gin.Context) (Actor, int64, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		return Actor{}, 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id")
		return Actor{}, 0, false
	}
	return actor, id, true
}
