package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"weddinghub/internal/database"
	"weddinghub/internal/domain/booking"
	jwtsvc "weddinghub/internal/pkg/jwt"
	"weddinghub/internal/pkg/lock"
)

const (
	coupleID int64 = 1001
	vendorID int64 = 2001
	adminID  int64 = 1
)

// seed walks demo bookings through the lifecycle using engine commands only,
// so every row has a consistent history and ledger.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "weddinghub.db"
	}

	db, err := database.Connect(dsn, database.Options{})
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}
	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db, booking.Models()...); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	engine := booking.NewEngine(booking.NewStore(db), lock.NewLocal(5*time.Second), nil, booking.EngineConfig{
		MaxRetries: 3,
		Quotes: booking.QuoteDefaults{
			DownpaymentPercent: decimal.NewFromInt(30),
			ValidDays:          14,
		},
	}, log.Printf)

	ctx := context.Background()
	couple, vendor, system := booking.Couple(coupleID), booking.Vendor(vendorID), booking.System()

	eventDate := time.Now().AddDate(0, 4, 0)
	quote := booking.QuoteInput{
		Items: []booking.QuoteItemInput{
			{Name: "Full-day photo coverage", Quantity: 1, UnitPrice: decimal.NewFromInt(15000)},
			{Name: "Printed album", Quantity: 2, UnitPrice: decimal.NewFromInt(2500)},
		},
		Message: "Looking forward to your day!",
	}

	// A booking waiting for the vendor's quote.
	must(engine.CreateBooking(ctx, booking.CreateInput{VendorID: vendorID, ServiceName: "Engagement shoot", EventDate: &eventDate}, couple))

	// A booking with the downpayment paid.
	res := must(engine.CreateBooking(ctx, booking.CreateInput{VendorID: vendorID, ServiceName: "Wedding photography", EventDate: &eventDate}, couple))
	id := res.Booking.ID
	res = must(engine.CreateQuote(ctx, id, quote, vendor))
	must(engine.AcceptQuote(ctx, res.Quote.ID, couple))
	must(engine.ApplyPayment(ctx, booking.PaymentRequest{
		BookingID:    id,
		PaymentInput: booking.PaymentInput{Amount: decimal.NewFromInt(6000), Reference: fmt.Sprintf("seed-%d-dp", id)},
	}))

	// A completed booking.
	res = must(engine.CreateBooking(ctx, booking.CreateInput{VendorID: vendorID, ServiceName: "Wedding videography", EventDate: &eventDate}, couple))
	id = res.Booking.ID
	res = must(engine.CreateQuote(ctx, id, quote, vendor))
	must(engine.AcceptQuote(ctx, res.Quote.ID, couple))
	must(engine.RequestTransition(ctx, id, booking.TransitionRequest{
		Target:  booking.StatusDownpayment,
		Actor:   system,
		Payment: &booking.PaymentInput{Amount: decimal.NewFromInt(20000), Reference: fmt.Sprintf("seed-%d-full", id)},
	}))
	must(engine.RecordCompletion(ctx, id, booking.SideVendor, vendor))
	must(engine.RecordCompletion(ctx, id, booking.SideCouple, couple))

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "change-me-jwt-secret"
	}
	j := jwtsvc.New(secret, 30*24*time.Hour)
	for _, u := range []struct {
		id   int64
		role string
	}{{coupleID, "couple"}, {vendorID, "vendor"}, {adminID, "admin"}} {
		token, err := j.GenerateToken(u.id, u.role)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("dev token role=%s user_id=%d token=%s", u.role, u.id, token)
	}
	log.Println("Seed complete")
}

func must(res *booking.Result, err error) *booking.Result {
	if err != nil {
		log.Fatal("seed step failed: ", err)
	}
	return res
}
