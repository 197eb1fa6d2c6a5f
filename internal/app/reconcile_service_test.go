package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/clock"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/domain"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/inbox"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/venmo"
)

type fakeStore struct {
	orders map[string]*domain.Order
	writes int
}

func newFakeStore(orders ...domain.Order) *fakeStore {
	s := &fakeStore{orders: make(map[string]*domain.Order)}
	for i := range orders {
		o := orders[i]
		s.orders[o.OrderCode] = &o
	}
	return s
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) FindByCodeForUpdate(_ context.Context, code string) (*domain.Order, error) {
	o, ok := f.orders[code]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, code string, paidAt time.Time, payerName, note string) error {
	o, ok := f.orders[code]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPending {
		return domain.ErrOrderNotPending
	}
	f.writes++
	o.Status = domain.OrderStatusPaid
	o.PaidAt = &paidAt
	o.PayerName = payerName
	o.PaymentNote = note
	return nil
}

func (f *fakeStore) FlagPayment(_ context.Context, code, payerName, note string) error {
	o, ok := f.orders[code]
	if !ok {
		return domain.ErrOrderNotFound
	}
	f.writes++
	o.PayerName = payerName
	o.PaymentNote = note
	return nil
}

func (f *fakeStore) ExpirePending(_ context.Context, now time.Time) (int, error) {
	count := 0
	for _, o := range f.orders {
		if o.Status == domain.OrderStatusPending && !o.ReservedUntil.IsZero() && o.ReservedUntil.Before(now) {
			o.Status = domain.OrderStatusExpired
			count++
		}
	}
	return count, nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) SendTicket(_ context.Context, order domain.Order) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, order.OrderCode)
	return nil
}

type fakeInbox struct {
	messages    []inbox.Message
	undecodable int
	err         error
}

func (f *fakeInbox) Unread(_ context.Context) ([]inbox.Message, int, error) {
	return f.messages, f.undecodable, f.err
}

var testNow = time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(store *fakeStore, in *fakeInbox, notifier *fakeNotifier) *ReconcileService {
	return NewReconcileService(
		store,
		in,
		notifier,
		venmo.NewParser("DA25"),
		clock.NewFixed(testNow),
		zap.NewNop().Sugar(),
		0,
	)
}

func pendingTestOrder(code string, amount string) domain.Order {
	return domain.Order{
		ID:            "order-" + code,
		OrderCode:     code,
		Name:          "Jane Doe",
		Email:         "jane@example.com",
		NumTickets:    1,
		TotalAmount:   decimal.RequireFromString(amount),
		ShowTime:      "7PM-8PM",
		Status:        domain.OrderStatusPending,
		ReservedUntil: testNow.Add(time.Hour),
	}
}

func TestReconcileService_Reconcile(t *testing.T) {
	t.Parallel()

	t.Run("settles a matching payment", func(t *testing.T) {
		store := newFakeStore(pendingTestOrder("DA25-AB12CD", "25.00"))
		notifier := &fakeNotifier{}
		svc := newTestEngine(store, &fakeInbox{}, notifier)

		res, err := svc.Reconcile(context.Background(), domain.Payment{
			OrderCode: "DA25-AB12CD",
			Amount:    decimal.RequireFromString("25.00"),
			PayerName: "Jane Doe",
			Note:      "DA25-AB12CD",
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Outcome != OutcomeSettled {
			t.Fatalf("expected Settled, got %s", res.Outcome)
		}

		order := store.orders["DA25-AB12CD"]
		if order.Status != domain.OrderStatusPaid {
			t.Fatalf("expected paid, got %s", order.Status)
		}
		if order.PayerName != "Jane Doe" {
			t.Fatalf("expected payer Jane Doe, got %q", order.PayerName)
		}
		if order.PaidAt == nil || !order.PaidAt.Equal(testNow) {
			t.Fatalf("expected paid_at %v, got %v", testNow, order.PaidAt)
		}
		if len(notifier.sent) != 1 || notifier.sent[0] != "DA25-AB12CD" {
			t.Fatalf("expected ticket email sent, got %v", notifier.sent)
		}
	})

	t.Run("second delivery is an idempotent no-op", func(t *testing.T) {
		store := newFakeStore(pendingTestOrder("DA25-AB12CD", "25.00"))
		notifier := &fakeNotifier{}
		svc := newTestEngine(store, &fakeInbox{}, notifier)

		payment := domain.Payment{
			OrderCode: "DA25-AB12CD",
			Amount:    decimal.RequireFromString("25.00"),
			PayerName: "Jane Doe",
			Note:      "DA25-AB12CD",
		}

		first, err := svc.Reconcile(context.Background(), payment)
		if err != nil {
			t.Fatalf("first reconcile: %v", err)
		}
		if first.Outcome != OutcomeSettled {
			t.Fatalf("expected Settled, got %s", first.Outcome)
		}

		paidAt := *store.orders["DA25-AB12CD"].PaidAt

		// Redelivered email, different claimed payer.
		payment.PayerName = "Somebody Else"
		second, err := svc.Reconcile(context.Background(), payment)
		if err != nil {
			t.Fatalf("second reconcile: %v", err)
		}
		if second.Outcome != OutcomeAlreadySettled {
			t.Fatalf("expected AlreadySettled, got %s", second.Outcome)
		}

		order := store.orders["DA25-AB12CD"]
		if order.PayerName != "Jane Doe" {
			t.Fatalf("payer changed on redelivery: %q", order.PayerName)
		}
		if !order.PaidAt.Equal(paidAt) {
			t.Fatalf("paid_at changed on redelivery: %v", order.PaidAt)
		}
		if len(notifier.sent) != 1 {
			t.Fatalf("expected exactly one ticket email, got %d", len(notifier.sent))
		}
	})

	t.Run("unknown reference is NotFound", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestEngine(store, &fakeInbox{}, &fakeNotifier{})

		res, err := svc.Reconcile(context.Background(), domain.Payment{
			OrderCode: "DA25-NOPE01",
			Amount:    decimal.RequireFromString("25.00"),
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Outcome != OutcomeNotFound {
			t.Fatalf("expected NotFound, got %s", res.Outcome)
		}
		if store.writes != 0 {
			t.Fatalf("expected no writes, got %d", store.writes)
		}
	})

	t.Run("amount mismatch flags without settling", func(t *testing.T) {
		store := newFakeStore(pendingTestOrder("DA25-AB12CD", "25.00"))
		notifier := &fakeNotifier{}
		svc := newTestEngine(store, &fakeInbox{}, notifier)

		res, err := svc.Reconcile(context.Background(), domain.Payment{
			OrderCode: "DA25-AB12CD",
			Amount:    decimal.RequireFromString("24.00"),
			PayerName: "Jane Doe",
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Outcome != OutcomeAmountMismatch {
			t.Fatalf("expected AmountMismatch, got %s", res.Outcome)
		}
		if !res.Expected.Equal(decimal.RequireFromString("25.00")) || !res.Received.Equal(decimal.RequireFromString("24.00")) {
			t.Fatalf("unexpected mismatch amounts: expected=%s received=%s", res.Expected, res.Received)
		}

		order := store.orders["DA25-AB12CD"]
		if order.Status != domain.OrderStatusPending {
			t.Fatalf("mismatch must not settle, got %s", order.Status)
		}
		if order.PaymentNote == "" {
			t.Fatalf("expected mismatch note recorded for review")
		}
		if len(notifier.sent) != 0 {
			t.Fatalf("expected no ticket email, got %v", notifier.sent)
		}
	})

	t.Run("tolerance is one cent inclusive", func(t *testing.T) {
		cases := []struct {
			amount string
			want   Outcome
		}{
			{"25.01", OutcomeSettled},
			{"24.99", OutcomeSettled},
			{"25.011", OutcomeAmountMismatch},
			{"24.989", OutcomeAmountMismatch},
			{"0", OutcomeAmountMismatch},
		}
		for _, tc := range cases {
			store := newFakeStore(pendingTestOrder("DA25-AB12CD", "25.00"))
			svc := newTestEngine(store, &fakeInbox{}, &fakeNotifier{})

			res, err := svc.Reconcile(context.Background(), domain.Payment{
				OrderCode: "DA25-AB12CD",
				Amount:    decimal.RequireFromString(tc.amount),
			})
			if err != nil {
				t.Fatalf("amount %s: %v", tc.amount, err)
			}
			if res.Outcome != tc.want {
				t.Fatalf("amount %s: expected %s, got %s", tc.amount, tc.want, res.Outcome)
			}
		}
	})

	t.Run("cancelled order is skipped", func(t *testing.T) {
		order := pendingTestOrder("DA25-AB12CD", "25.00")
		order.Status = domain.OrderStatusCancelled
		store := newFakeStore(order)
		svc := newTestEngine(store, &fakeInbox{}, &fakeNotifier{})

		res, err := svc.Reconcile(context.Background(), domain.Payment{
			OrderCode: "DA25-AB12CD",
			Amount:    decimal.RequireFromString("25.00"),
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Outcome != OutcomeSkipped {
			t.Fatalf("expected Skipped, got %s", res.Outcome)
		}
		if store.writes != 0 {
			t.Fatalf("expected no writes, got %d", store.writes)
		}
	})

	t.Run("notify failure keeps the settlement", func(t *testing.T) {
		store := newFakeStore(pendingTestOrder("DA25-AB12CD", "25.00"))
		notifier := &fakeNotifier{err: errors.New("smtp down")}
		svc := newTestEngine(store, &fakeInbox{}, notifier)

		res, err := svc.Reconcile(context.Background(), domain.Payment{
			OrderCode: "DA25-AB12CD",
			Amount:    decimal.RequireFromString("25.00"),
			PayerName: "Jane Doe",
		})
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Outcome != OutcomeSettled {
			t.Fatalf("expected Settled, got %s", res.Outcome)
		}
		if !res.NotifyFailed {
			t.Fatalf("expected NotifyFailed to be set")
		}
		if store.orders["DA25-AB12CD"].Status != domain.OrderStatusPaid {
			t.Fatalf("settlement must survive a notify failure")
		}
	})
}

func TestReconcileService_RunOnce(t *testing.T) {
	t.Parallel()

	t.Run("settles matching payment from inbox", func(t *testing.T) {
		store := newFakeStore(pendingTestOrder("DA25-AB12CD", "25.00"))
		in := &fakeInbox{messages: []inbox.Message{
			{Subject: "Jane Doe paid you", Body: `Jane Doe paid you $25.00. For: "DA25-AB12CD"`},
		}}
		notifier := &fakeNotifier{}
		svc := newTestEngine(store, in, notifier)

		summary, err := svc.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("run once: %v", err)
		}
		if summary.Settled != 1 || summary.Errors != 0 {
			t.Fatalf("unexpected summary: %+v", summary)
		}
		if store.orders["DA25-AB12CD"].Status != domain.OrderStatusPaid {
			t.Fatalf("expected order paid")
		}
		if store.orders["DA25-AB12CD"].PayerName != "Jane Doe" {
			t.Fatalf("expected payer Jane Doe, got %q", store.orders["DA25-AB12CD"].PayerName)
		}
	})

	t.Run("wrong amount is counted and leaves order pending", func(t *testing.T) {
		store := newFakeStore(pendingTestOrder("DA25-AB12CD", "25.00"))
		in := &fakeInbox{messages: []inbox.Message{
			{Subject: "Jane Doe paid you", Body: `Jane Doe paid you $24.00. For: "DA25-AB12CD"`},
		}}
		svc := newTestEngine(store, in, &fakeNotifier{})

		summary, err := svc.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("run once: %v", err)
		}
		if summary.Settled != 0 || summary.Errors != 1 {
			t.Fatalf("unexpected summary: %+v", summary)
		}
		if store.orders["DA25-AB12CD"].Status != domain.OrderStatusPending {
			t.Fatalf("expected order still pending")
		}
	})

	t.Run("message without reference causes no store writes", func(t *testing.T) {
		store := newFakeStore(pendingTestOrder("DA25-AB12CD", "25.00"))
		in := &fakeInbox{messages: []inbox.Message{
			{Subject: "Jane Doe paid you", Body: `$25.00 For: "thanks for the show!"`},
			{Subject: "Weekly digest", Body: `$25.00 For: "DA25-AB12CD"`},
		}}
		svc := newTestEngine(store, in, &fakeNotifier{})

		summary, err := svc.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("run once: %v", err)
		}
		if summary.Settled != 0 || summary.Errors != 0 {
			t.Fatalf("unexpected summary: %+v", summary)
		}
		if store.writes != 0 {
			t.Fatalf("expected no writes, got %d", store.writes)
		}
	})

	t.Run("expiry sweep runs before reconciliation", func(t *testing.T) {
		stale := pendingTestOrder("DA25-STALE1", "25.00")
		stale.ReservedUntil = testNow.Add(-time.Minute)
		store := newFakeStore(stale, pendingTestOrder("DA25-AB12CD", "25.00"))
		svc := newTestEngine(store, &fakeInbox{}, &fakeNotifier{})

		summary, err := svc.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("run once: %v", err)
		}
		if summary.Expired != 1 {
			t.Fatalf("expected 1 expired, got %d", summary.Expired)
		}
		if store.orders["DA25-STALE1"].Status != domain.OrderStatusExpired {
			t.Fatalf("expected stale order expired")
		}
	})

	t.Run("inbox failure reports expired count with the error", func(t *testing.T) {
		stale := pendingTestOrder("DA25-STALE1", "25.00")
		stale.ReservedUntil = testNow.Add(-time.Minute)
		store := newFakeStore(stale)
		in := &fakeInbox{err: errors.New("imap unreachable")}
		svc := newTestEngine(store, in, &fakeNotifier{})

		summary, err := svc.RunOnce(context.Background())
		if err == nil {
			t.Fatalf("expected error from inbox failure")
		}
		if summary.Expired != 1 {
			t.Fatalf("expected expiry sweep to have run, got %+v", summary)
		}
	})

	t.Run("one bad candidate does not block the rest", func(t *testing.T) {
		store := newFakeStore(pendingTestOrder("DA25-AB12CD", "25.00"))
		in := &fakeInbox{messages: []inbox.Message{
			{Subject: "Ghost paid you", Body: `$10.00 For: "DA25-GHOST1"`},
			{Subject: "Jane Doe paid you", Body: `$25.00 For: "DA25-AB12CD"`},
		}}
		svc := newTestEngine(store, in, &fakeNotifier{})

		summary, err := svc.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("run once: %v", err)
		}
		if summary.Settled != 1 || summary.Errors != 1 {
			t.Fatalf("unexpected summary: %+v", summary)
		}
	})

	t.Run("undecodable messages count as errors", func(t *testing.T) {
		store := newFakeStore(pendingTestOrder("DA25-AB12CD", "25.00"))
		in := &fakeInbox{
			messages: []inbox.Message{
				{Subject: "Jane Doe paid you", Body: `$25.00 For: "DA25-AB12CD"`},
			},
			undecodable: 2,
		}
		svc := newTestEngine(store, in, &fakeNotifier{})

		summary, err := svc.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("run once: %v", err)
		}
		if summary.Settled != 1 {
			t.Fatalf("expected 1 settled, got %d", summary.Settled)
		}
		if summary.Errors != 2 {
			t.Fatalf("expected 2 errors for consumed undecodable messages, got %d", summary.Errors)
		}
	})
}
