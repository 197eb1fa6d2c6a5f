package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/clock"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/domain"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/inbox"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/venmo"
)

type ReconcileRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindByCodeForUpdate(ctx context.Context, code string) (*domain.Order, error)
	MarkPaid(ctx context.Context, code string, paidAt time.Time, payerName, note string) error
	FlagPayment(ctx context.Context, code, payerName, note string) error
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

// Notifier delivers the ticket email once an order settles.
type Notifier interface {
	SendTicket(ctx context.Context, order domain.Order) error
}

// Inbox supplies unread payment-notification messages and marks them
// consumed. The int reports messages that were consumed but could not be
// decoded; they are gone from the inbox, so the caller must account for them.
type Inbox interface {
	Unread(ctx context.Context) ([]inbox.Message, int, error)
}

type Outcome int

const (
	OutcomeSettled Outcome = iota
	OutcomeAlreadySettled
	OutcomeNotFound
	OutcomeAmountMismatch
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSettled:
		return "settled"
	case OutcomeAlreadySettled:
		return "already_settled"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeAmountMismatch:
		return "amount_mismatch"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

type ReconcileResult struct {
	Outcome  Outcome
	Expected decimal.Decimal
	Received decimal.Decimal
	// NotifyFailed is set when the order settled but the ticket email did
	// not go out. The settlement stands; recovery is the admin resend.
	NotifyFailed bool
}

// amountTolerance absorbs floating rounding in extracted amounts. A payment
// off by more than a cent never auto-settles.
var amountTolerance = decimal.New(1, -2)

// ReconcileService matches extracted Venmo payments against pending orders
// and settles them exactly once.
type ReconcileService struct {
	repo       ReconcileRepository
	inbox      Inbox
	notifier   Notifier
	parser     *venmo.Parser
	clock      clock.Clock
	logger     *zap.SugaredLogger
	passBudget time.Duration
}

func NewReconcileService(
	repo ReconcileRepository,
	in Inbox,
	notifier Notifier,
	parser *venmo.Parser,
	clk clock.Clock,
	logger *zap.SugaredLogger,
	passBudget time.Duration,
) *ReconcileService {
	return &ReconcileService{
		repo:       repo,
		inbox:      in,
		notifier:   notifier,
		parser:     parser,
		clock:      clk,
		logger:     logger,
		passBudget: passBudget,
	}
}

// Reconcile applies a single payment candidate. The read and the state
// transition run in one transaction with the order row locked, so two
// deliveries of the same payment email cannot double-settle: the loser of the
// race reads the order as already paid.
func (s *ReconcileService) Reconcile(ctx context.Context, payment domain.Payment) (ReconcileResult, error) {
	var result ReconcileResult
	var settled *domain.Order

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.FindByCodeForUpdate(txCtx, payment.OrderCode)
		if err != nil {
			return err
		}
		if order == nil {
			result = ReconcileResult{Outcome: OutcomeNotFound}
			return nil
		}

		if order.Status == domain.OrderStatusPaid {
			result = ReconcileResult{Outcome: OutcomeAlreadySettled}
			return nil
		}
		if order.Status != domain.OrderStatusPending {
			// Cancelled or expired orders never auto-settle; the payment
			// needs a human decision.
			result = ReconcileResult{Outcome: OutcomeSkipped}
			return nil
		}

		diff := payment.Amount.Sub(order.TotalAmount).Abs()
		if diff.GreaterThan(amountTolerance) {
			note := fmt.Sprintf("AMOUNT MISMATCH: received $%s, expected $%s. %s",
				payment.Amount.StringFixed(2), order.TotalAmount.StringFixed(2), payment.Note)
			if err := s.repo.FlagPayment(txCtx, order.OrderCode, payment.PayerName, note); err != nil {
				return err
			}
			result = ReconcileResult{
				Outcome:  OutcomeAmountMismatch,
				Expected: order.TotalAmount,
				Received: payment.Amount,
			}
			return nil
		}

		now := s.clock.Now()
		if err := s.repo.MarkPaid(txCtx, order.OrderCode, now, payment.PayerName, payment.Note); err != nil {
			return err
		}

		paid := *order
		paid.Status = domain.OrderStatusPaid
		paid.PaidAt = &now
		paid.PayerName = payment.PayerName
		paid.PaymentNote = payment.Note
		settled = &paid
		result = ReconcileResult{Outcome: OutcomeSettled}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	if settled != nil {
		// The settlement is committed; an email failure must not undo it.
		if err := s.notifier.SendTicket(ctx, *settled); err != nil {
			s.logger.Errorw("ticket email failed after settlement",
				"order_code", settled.OrderCode, "error", err)
			result.NotifyFailed = true
		}
	}
	return result, nil
}

type Summary struct {
	Settled int
	Errors  int
	Expired int
}

// RunOnce performs one reconciliation pass: expire stale reservations, then
// pull unread Venmo notifications and reconcile each. Messages are isolated
// from each other; a bad one is counted and skipped, never aborting the pass.
func (s *ReconcileService) RunOnce(ctx context.Context) (Summary, error) {
	if s.passBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.passBudget)
		defer cancel()
	}

	var summary Summary

	expired, err := s.repo.ExpirePending(ctx, s.clock.Now())
	if err != nil {
		return summary, fmt.Errorf("expire reservations: %w", err)
	}
	summary.Expired = expired
	if expired > 0 {
		s.logger.Infow("expired stale reservations", "count", expired)
	}

	messages, undecodable, err := s.inbox.Unread(ctx)
	if err != nil {
		return summary, fmt.Errorf("poll inbox: %w", err)
	}
	if undecodable > 0 {
		summary.Errors += undecodable
		s.logger.Warnw("undecodable messages consumed", "count", undecodable)
	}

	for _, msg := range messages {
		payment, parsed := s.parser.Parse(msg.Subject, msg.Body)
		switch parsed {
		case venmo.NotAPayment:
			continue
		case venmo.NoReference:
			// Unmatched money is not an error; it just cannot be
			// auto-attributed to an order.
			s.logger.Infow("payment without order reference skipped", "subject", msg.Subject)
			continue
		}

		res, err := s.Reconcile(ctx, payment)
		if err != nil {
			summary.Errors++
			s.logger.Errorw("reconcile failed", "order_code", payment.OrderCode, "error", err)
			continue
		}

		switch res.Outcome {
		case OutcomeSettled:
			summary.Settled++
			s.logger.Infow("order settled",
				"order_code", payment.OrderCode, "payer", payment.PayerName,
				"email_sent", !res.NotifyFailed)
		case OutcomeAlreadySettled:
			s.logger.Infow("order already paid", "order_code", payment.OrderCode)
		case OutcomeNotFound:
			summary.Errors++
			s.logger.Warnw("payment references unknown order", "order_code", payment.OrderCode)
		case OutcomeAmountMismatch:
			summary.Errors++
			s.logger.Warnw("amount mismatch flagged for review",
				"order_code", payment.OrderCode,
				"expected", res.Expected.StringFixed(2),
				"received", res.Received.StringFixed(2))
		case OutcomeSkipped:
			s.logger.Warnw("payment for non-pending order skipped", "order_code", payment.OrderCode)
		}
	}

	return summary, nil
}
