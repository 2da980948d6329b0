package booking

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
)

type QuoteStatus string

const (
	QuotePending    QuoteStatus = "pending"
	QuoteAccepted   QuoteStatus = "accepted"
	QuoteRejected   QuoteStatus = "rejected"
	QuoteSuperseded QuoteStatus = "superseded"
)

type Quote struct {
	ID                 int64           `json:"id" gorm:"primaryKey"`
	BookingID          int64           `json:"booking_id" gorm:"not null;index"`
	QuoteNumber        string          `json:"quote_number" gorm:"type:varchar(48);not null;uniqueIndex"`
	Items              []QuoteItem     `json:"items" gorm:"foreignKey:QuoteID"`
	Subtotal           decimal.Decimal `json:"subtotal" gorm:"type:decimal(14,2);not null"`
	TaxRate            decimal.Decimal `json:"tax_rate" gorm:"type:decimal(5,2);not null;default:0"`
	Tax                decimal.Decimal `json:"tax" gorm:"type:decimal(14,2);not null"`
	Total              decimal.Decimal `json:"total" gorm:"type:decimal(14,2);not null"`
	DownpaymentPercent decimal.Decimal `json:"downpayment_percent" gorm:"type:decimal(5,2);not null"`
	DownpaymentAmount  decimal.Decimal `json:"downpayment_amount" gorm:"type:decimal(14,2);not null"`
	Balance            decimal.Decimal `json:"balance" gorm:"type:decimal(14,2);not null"`
	ValidUntil         time.Time       `json:"valid_until"`
	Message            string          `json:"message,omitempty" gorm:"type:text"`
	Terms              string          `json:"terms,omitempty" gorm:"type:text"`
	Status             QuoteStatus     `json:"status" gorm:"type:varchar(16);not null;index"`
	StatusReason       string          `json:"status_reason,omitempty" gorm:"type:text"`
	CreatedBy          int64           `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (Quote) TableName() string { return "booking_quotes" }

type QuoteItem struct {
	ID          int64           `json:"id" gorm:"primaryKey"`
	QuoteID     int64           `json:"quote_id" gorm:"not null;index"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null"`
	Description string          `json:"description,omitempty" gorm:"type:text"`
	Quantity    int64           `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(14,2);not null"`
	LineTotal   decimal.Decimal `json:"line_total" gorm:"type:decimal(14,2);not null"`
}

func (QuoteItem) TableName() string { return "booking_quote_items" }

// QuoteItemInput is one priced line offered by the vendor.
type QuoteItemInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type QuoteInput struct {
	Items              []QuoteItemInput `json:"items" validate:"required,min=1,dive"`
	TaxRate            *decimal.Decimal `json:"tax_rate,omitempty"`
	DownpaymentPercent *decimal.Decimal `json:"downpayment_percent,omitempty"`
	ValidDays          int              `json:"valid_days" validate:"gte=0,lte=365"`
	Message            string           `json:"message"`
	Terms              string           `json:"terms"`
}

// QuoteDefaults fill in terms the vendor left out.
type QuoteDefaults struct {
	TaxRate            decimal.Decimal
	DownpaymentPercent decimal.Decimal
	ValidDays          int
}

// priceQuote computes line totals and the derived amounts of a quote.
func priceQuote(in QuoteInput, defaults QuoteDefaults, createdAt time.Time) (*Quote, error) {
	taxRate := defaults.TaxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	pct := defaults.DownpaymentPercent
	if in.DownpaymentPercent != nil {
		pct = *in.DownpaymentPercent
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return nil, validationErr("tax_rate must be between 0 and 100")
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return nil, validationErr("downpayment_percent must be between 0 and 100")
	}
	validDays := in.ValidDays
	if validDays == 0 {
		validDays = defaults.ValidDays
	}

	q := &Quote{
		TaxRate:            taxRate,
		DownpaymentPercent: pct,
		Message:            in.Message,
		Terms:              in.Terms,
		Status:             QuotePending,
		ValidUntil:         now.With(createdAt.AddDate(0, 0, validDays)).EndOfDay(),
	}

	subtotal := decimal.Zero
	for i, item := range in.Items {
		if item.UnitPrice.IsNegative() {
			return nil, validationErr("items[%d].unit_price must not be negative", i)
		}
		line := money(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
		q.Items = append(q.Items, QuoteItem{
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   money(item.UnitPrice),
			LineTotal:   line,
		})
		subtotal = subtotal.Add(line)
	}
	if !subtotal.IsPositive() {
		return nil, validationErr("quote total must be positive")
	}

	q.Subtotal = money(subtotal)
	q.Tax = percentOf(q.Subtotal, taxRate)
	q.Total = q.Subtotal.Add(q.Tax)
	q.DownpaymentAmount = percentOf(q.Total, pct)
	q.Balance = q.Total.Sub(q.DownpaymentAmount)
	return q, nil
}

func quoteNumber(bookingID int64, seq int64, at time.Time) string {
	return fmt.Sprintf("QT-%s-%06d-%02d", at.Format("20060102"), bookingID, seq)
}
