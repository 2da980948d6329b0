package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Booking struct {
	ID          int64      `json:"id" gorm:"primaryKey"`
	CoupleID    int64      `json:"couple_id" gorm:"not null;index"`
	VendorID    int64      `json:"vendor_id" gorm:"not null;index"`
	ServiceName string     `json:"service_name" gorm:"type:varchar(255)"`
	EventDate   *time.Time `json:"event_date,omitempty"`
	Notes       string     `json:"notes,omitempty" gorm:"type:text"`

	Status       Status `json:"status" gorm:"type:varchar(32);not null;index"`
	StatusReason string `json:"status_reason,omitempty" gorm:"type:text"`

	Amount           decimal.NullDecimal `json:"amount" gorm:"type:decimal(14,2)"`
	TotalPaid        decimal.Decimal     `json:"total_paid" gorm:"type:decimal(14,2);not null;default:0"`
	RemainingBalance decimal.NullDecimal `json:"remaining_balance" gorm:"type:decimal(14,2)"`
	DepositAmount    decimal.Decimal     `json:"deposit_amount" gorm:"type:decimal(14,2);not null;default:0"`

	VendorCompleted   bool       `json:"vendor_completed" gorm:"not null;default:false"`
	VendorCompletedAt *time.Time `json:"vendor_completed_at,omitempty"`
	CoupleCompleted   bool       `json:"couple_completed" gorm:"not null;default:false"`
	CoupleCompletedAt *time.Time `json:"couple_completed_at,omitempty"`
	FullyCompleted    bool       `json:"fully_completed" gorm:"not null;default:false"`
	FullyCompletedAt  *time.Time `json:"fully_completed_at,omitempty"`

	Version   int64     `json:"version" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

// reconcile recomputes the fields derived from amount, payments and the
// completion flags.
func (b *Booking) reconcile() {
	if b.Amount.Valid {
		b.RemainingBalance = decimal.NullDecimal{Decimal: remaining(b.Amount.Decimal, b.TotalPaid), Valid: true}
	} else {
		b.RemainingBalance = decimal.NullDecimal{}
	}
}

// ProgressPercent is total_paid as a share of amount, capped at 100.
func (b *Booking) ProgressPercent() decimal.Decimal {
	if !b.Amount.Valid || !b.Amount.Decimal.IsPositive() {
		return decimal.Zero
	}
	pct := b.TotalPaid.Mul(hundred).Div(b.Amount.Decimal)
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	return pct.Round(2)
}

type StatusHistoryEntry struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	BookingID      int64     `json:"booking_id" gorm:"not null;index"`
	PreviousStatus Status    `json:"previous_status" gorm:"type:varchar(32)"`
	NewStatus      Status    `json:"new_status" gorm:"type:varchar(32);not null"`
	ActorType      ActorType `json:"actor_type" gorm:"type:varchar(16);not null"`
	ActorID        int64     `json:"actor_id"`
	Reason         string    `json:"reason" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

func (StatusHistoryEntry) TableName() string { return "booking_status_history" }

type Receipt struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	ReceiptNumber    string          `json:"receipt_number" gorm:"type:varchar(48);not null;uniqueIndex"`
	BookingID        int64           `json:"booking_id" gorm:"not null;index"`
	PaymentReference string          `json:"payment_reference" gorm:"type:varchar(128);not null;uniqueIndex"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	TotalPaidAfter   decimal.Decimal `json:"total_paid_after" gorm:"type:decimal(14,2);not null"`
	RemainingAfter   decimal.Decimal `json:"remaining_after" gorm:"type:decimal(14,2);not null"`
	Metadata         datatypes.JSON  `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (Receipt) TableName() string { return "booking_receipts" }

func (r *Receipt) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Models lists every table owned by this package, in migration order.
func Models() []any {
	return []any{&Booking{}, &StatusHistoryEntry{}, &Receipt{}, &Quote{}, &QuoteItem{}}
}
