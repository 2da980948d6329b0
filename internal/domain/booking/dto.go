package booking

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type transitionRequest struct {
	Status    string        `json:"status" binding:"required"`
	Reason    string        `json:"reason"`
	IfVersion *int64        `json:"if_version"`
	Payment   *PaymentInput `json:"payment"`
}

type completionRequest struct {
	Side string `json:"side" binding:"required"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type paymentWebhookRequest struct {
	BookingID        int64           `json:"booking_id" binding:"required,gt=0"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentReference string          `json:"payment_reference" binding:"required"`
	Metadata         json.RawMessage `json:"metadata"`
}

type resultResponse struct {
	Booking   *Booking             `json:"booking"`
	Summary   *PaymentSummary      `json:"payment_summary,omitempty"`
	History   []StatusHistoryEntry `json:"history"`
	Receipt   *Receipt             `json:"receipt,omitempty"`
	Quote     *Quote               `json:"quote,omitempty"`
	Changed   bool                 `json:"changed"`
	Duplicate bool                 `json:"duplicate,omitempty"`
}

func toResultResponse(res *Result) resultResponse {
	out := resultResponse{
		Booking: res.Booking,
		History: res.History,
		Receipt: res.Receipt,
		Quote:   res.Quote,
		Changed: res.Changed,
	}
	if out.History == nil {
		out.History = []StatusHistoryEntry{}
	}
	if res.Booking != nil {
		summary := summarize(res.Booking)
		out.Summary = &summary
	}
	return out
}
