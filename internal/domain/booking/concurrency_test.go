package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu          sync.Mutex
	transitions []string
	payments    int
	duplicates  int
	completions int
	failures    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{failures: make(map[string]int)}
}

func (r *countingRecorder) TransitionApplied(from, to Status, _ ActorType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, fmt.Sprintf("%s->%s", from, to))
}

func (r *countingRecorder) PaymentApplied(duplicate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if duplicate {
		r.duplicates++
		return
	}
	r.payments++
}

func (r *countingRecorder) CompletionRecorded(Side, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions++
}

func (r *countingRecorder) OperationFailed(_ string, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[kind]++
}

// inProgressBooking returns a 20,000 booking with the downpayment paid and
// work started.
func inProgressBooking(t *testing.T, e *Engine) *Booking {
	t.Helper()
	b := acceptedBooking(t, e)
	pay(t, e, b.ID, "6000", fmt.Sprintf("dp-%d", b.ID))
	res, err := e.RequestTransition(context.Background(), b.ID, TransitionRequest{Target: StatusInProgress, Actor: Vendor(testVendor)})
	require.NoError(t, err)
	return res.Booking
}

// Scenario D: a vendor confirmation racing two balance payments loses no
// update regardless of interleaving.
func TestScenarioD_ConcurrentCompletionAndPayments(t *testing.T) {
	for _, tc := range []struct {
		name   string
		locker bool
	}{
		{"keyed lock", true},
		{"optimistic only", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := setupTestEngine(t)
			if !tc.locker {
				e.locker = nopLocker{}
			}
			ctx := context.Background()
			b := inProgressBooking(t, e)

			var wg sync.WaitGroup
			errs := make(chan error, 3)
			wg.Add(3)
			go func() {
				defer wg.Done()
				_, err := e.RecordCompletion(ctx, b.ID, SideVendor, Vendor(testVendor))
				errs <- err
			}()
			for i, amount := range []string{"7000", "7000"} {
				go func(i int, amount string) {
					defer wg.Done()
					_, err := e.ApplyPayment(ctx, PaymentRequest{
						BookingID:    b.ID,
						PaymentInput: PaymentInput{Amount: dec(amount), Reference: fmt.Sprintf("split-%d", i)},
					})
					errs <- err
				}(i, amount)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			stored := assertConsistent(t, e, b.ID)
			assert.Equal(t, StatusInProgress, stored.Status)
			assert.True(t, stored.VendorCompleted)
			assert.False(t, stored.CoupleCompleted)
			assertMoney(t, "20000", stored.TotalPaid)
			assertMoney(t, "0", stored.RemainingBalance.Decimal)
			assert.Equal(t, b.Version+3, stored.Version)

			receipts, err := e.Receipts(ctx, b.ID, Admin(testAdmin))
			require.NoError(t, err)
			require.Len(t, receipts, 3)
			numbers := map[string]bool{}
			for _, r := range receipts {
				numbers[r.ReceiptNumber] = true
			}
			assert.Len(t, numbers, 3)
		})
	}
}

func TestApplyPayment_ConcurrentReplaysApplyOnce(t *testing.T) {
	e := setupTestEngine(t)
	rec := newCountingRecorder()
	e.recorder = rec
	ctx := context.Background()

	b := acceptedBooking(t, e)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.ApplyPayment(ctx, PaymentRequest{
				BookingID:    b.ID,
				PaymentInput: PaymentInput{Amount: dec("6000"), Reference: "gw-burst"},
			})
			if err == nil || errors.Is(err, ErrDuplicatePayment) {
				assert.NotNil(t, res)
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var applied, duplicates int
	for err := range results {
		switch {
		case err == nil:
			applied++
		case errors.Is(err, ErrDuplicatePayment):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, callers-1, duplicates)

	stored := assertConsistent(t, e, b.ID)
	assertMoney(t, "6000", stored.TotalPaid)
	assert.Equal(t, StatusDownpayment, stored.Status)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.payments)
	assert.Equal(t, callers-1, rec.duplicates)
}

func TestMutate_RetriesLostWrite(t *testing.T) {
	e := setupTestEngine(t)
	ctx := context.Background()

	b := createBooking(t, e)
	rec := newCountingRecorder()
	e.recorder = rec

	calls := 0
	res, err := e.mutate(ctx, "test_op", b.ID, nil, func(ctx context.Context, c *change) error {
		calls++
		if calls == 1 {
			// Another writer bumps the version between our read and write.
			if err := c.tx.DB().Model(&Booking{}).Where("id = ?", c.b.ID).Update("version", c.b.Version+1).Error; err != nil {
				return err
			}
		}
		c.move(StatusQuoteRequested, Couple(testCouple), "retry")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, StatusQuoteRequested, res.Booking.Status)
	assert.Equal(t, b.Version+1, res.Booking.Version)
	assertConsistent(t, e, b.ID)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"request->quote_requested"}, rec.transitions)
}

func TestMutate_GivesUpAfterMaxRetries(t *testing.T) {
	e := setupTestEngine(t)
	e.cfg.MaxRetries = 1
	rec := newCountingRecorder()
	e.recorder = rec
	ctx := context.Background()

	b := createBooking(t, e)

	calls := 0
	_, err := e.mutate(ctx, "test_op", b.ID, nil, func(ctx context.Context, c *change) error {
		calls++
		if err := c.tx.DB().Model(&Booking{}).Where("id = ?", c.b.ID).Update("version", c.b.Version+1).Error; err != nil {
			return err
		}
		c.touch()
		return nil
	})
	requireKind(t, err, ErrConcurrentModification)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 2, calls)
	assert.Equal(t, b.Version, reload(t, e, b.ID).Version)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.failures[ErrConcurrentModification.Error()])
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) BookingChanged(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func TestNotifier_SeesOnlyCommittedChanges(t *testing.T) {
	e := setupTestEngine(t)
	n := &recordingNotifier{}
	e.SetNotifier(n)
	ctx := context.Background()

	b := acceptedBooking(t, e)
	pay(t, e, b.ID, "6000", "gw-note")

	_, err := e.ApplyPayment(ctx, PaymentRequest{BookingID: b.ID, PaymentInput: PaymentInput{Amount: dec("6000"), Reference: "gw-note"}})
	requireKind(t, err, ErrDuplicatePayment)
	_, err = e.RequestTransition(ctx, b.ID, TransitionRequest{Target: StatusCompleted, Actor: System()})
	requireKind(t, err, ErrInvalidTransition)

	n.mu.Lock()
	defer n.mu.Unlock()
	ops := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		ops = append(ops, ev.Op)
	}
	assert.Equal(t, []string{"create_booking", "create_quote", "accept_quote", "apply_payment"}, ops)

	last := n.events[len(n.events)-1]
	assert.Equal(t, b.ID, last.BookingID)
	assert.Equal(t, testCouple, last.CoupleID)
	assert.Equal(t, StatusDownpayment, last.Status)
	assert.NotEmpty(t, last.Receipt)
	require.Len(t, last.Transitions, 1)
	assertMoney(t, "14000", last.Summary.RemainingBalance.Decimal)
}
