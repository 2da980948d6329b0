package booking

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the gorm-backed persistence of bookings and their ledgers. A Store
// obtained inside Transaction is bound to that transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// LockBooking loads a booking with a row lock. SQLite ignores the locking
// clause and relies on its database-level write lock instead.
func (s *Store) LockBooking(ctx context.Context, id int64) (*Booking, error) {
	var b Booking
	err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	var b Booking
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *Booking) error {
	return s.db.WithContext(ctx).Create(b).Error
}

// SaveBooking writes every mutable column of b if the stored version still
// equals expected. b.Version must already hold the new version.
func (s *Store) SaveBooking(ctx context.Context, b *Booking, expected int64) error {
	res := s.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ? AND version = ?", b.ID, expected).
		Updates(map[string]interface{}{
			"status":              b.Status,
			"status_reason":       b.StatusReason,
			"amount":              b.Amount,
			"total_paid":          b.TotalPaid,
			"remaining_balance":   b.RemainingBalance,
			"deposit_amount":      b.DepositAmount,
			"vendor_completed":    b.VendorCompleted,
			"vendor_completed_at": b.VendorCompletedAt,
			"couple_completed":    b.CoupleCompleted,
			"couple_completed_at": b.CoupleCompletedAt,
			"fully_completed":     b.FullyCompleted,
			"fully_completed_at":  b.FullyCompletedAt,
			"version":             b.Version,
			"updated_at":          b.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, entries []StatusHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&entries).Error
}

func (s *Store) ListHistory(ctx context.Context, bookingID int64) ([]StatusHistoryEntry, error) {
	var out []StatusHistoryEntry
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("id asc").Find(&out).Error
	return out, err
}

// ReceiptByReference returns nil, nil when the reference was never applied.
func (s *Store) ReceiptByReference(ctx context.Context, reference string) (*Receipt, error) {
	var r Receipt
	err := s.db.WithContext(ctx).Where("payment_reference = ?", reference).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CountReceipts(ctx context.Context, bookingID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Receipt{}).Where("booking_id = ?", bookingID).Count(&n).Error
	return n, err
}

// CreateReceipt maps a unique violation on the payment reference to
// ErrDuplicatePayment.
func (s *Store) CreateReceipt(ctx context.Context, r *Receipt) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicatePayment
		}
		return err
	}
	return nil
}

func (s *Store) ListReceipts(ctx context.Context, bookingID int64) ([]Receipt, error) {
	var out []Receipt
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at asc, receipt_number asc").Find(&out).Error
	return out, err
}

func (s *Store) CreateQuote(ctx context.Context, q *Quote) error {
	return s.db.WithContext(ctx).Create(q).Error
}

func (s *Store) GetQuote(ctx context.Context, id int64) (*Quote, error) {
	var q Quote
	if err := s.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	return &q, nil
}

// LatestQuote returns the newest quote of a booking, or ErrQuoteNotFound.
func (s *Store) LatestQuote(ctx context.Context, bookingID int64) (*Quote, error) {
	var q Quote
	err := s.db.WithContext(ctx).Preload("Items").
		Where("booking_id = ?", bookingID).
		Order("id desc").
		First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (s *Store) ListQuotes(ctx context.Context, bookingID int64) ([]Quote, error) {
	var out []Quote
	err := s.db.WithContext(ctx).Preload("Items").Where("booking_id = ?", bookingID).Order("id desc").Find(&out).Error
	return out, err
}

func (s *Store) CountQuotes(ctx context.Context, bookingID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Quote{}).Where("booking_id = ?", bookingID).Count(&n).Error
	return n, err
}

// SupersedePending marks every pending quote of a booking superseded.
func (s *Store) SupersedePending(ctx context.Context, bookingID int64, reason string) error {
	return s.db.WithContext(ctx).Model(&Quote{}).
		Where("booking_id = ? AND status = ?", bookingID, QuotePending).
		Updates(map[string]interface{}{"status": QuoteSuperseded, "status_reason": reason}).Error
}

// SetQuoteStatus moves a pending quote to status. It fails with
// ErrStaleQuote if the quote stopped being pending meanwhile.
func (s *Store) SetQuoteStatus(ctx context.Context, q *Quote, status QuoteStatus, reason string) error {
	res := s.db.WithContext(ctx).Model(&Quote{}).
		Where("id = ? AND status = ?", q.ID, QuotePending).
		Updates(map[string]interface{}{"status": status, "status_reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleQuote
	}
	q.Status = status
	q.StatusReason = reason
	return nil
}

func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}
