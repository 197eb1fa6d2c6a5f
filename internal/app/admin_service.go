package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/clock"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/domain"
)

type AdminRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListOrders(ctx context.Context) ([]domain.Order, error)
	FindByCode(ctx context.Context, code string) (*domain.Order, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*domain.Order, error)
	MarkPaid(ctx context.Context, code string, paidAt time.Time, payerName, note string) error
	SetCancelled(ctx context.Context, code string, now time.Time) error
	CodeExists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, order domain.Order) error
}

// AdminService backs the dashboard: order listing, manual overrides, and
// ticket resends.
type AdminService struct {
	repo        AdminRepository
	clock       clock.Clock
	notifier    Notifier
	ticketPrice decimal.Decimal
	codePrefix  string
	showTimes   []string
}

func NewAdminService(repo AdminRepository, clk clock.Clock, notifier Notifier, cfg OrderServiceConfig) *AdminService {
	return &AdminService{
		repo:        repo,
		clock:       clk,
		notifier:    notifier,
		ticketPrice: cfg.TicketPrice,
		codePrefix:  cfg.CodePrefix,
		showTimes:   cfg.ShowTimes,
	}
}

func (s *AdminService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx)
}

// CancelOrder releases a pending order's seats. Paid and expired orders are
// left alone; only pending orders can transition to cancelled.
func (s *AdminService) CancelOrder(ctx context.Context, orderCode string) error {
	if orderCode == "" {
		return domain.ErrOrderCodeRequired
	}
	code := normalizeCode(orderCode)

	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.FindByCodeForUpdate(txCtx, code)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if order.Status == domain.OrderStatusCancelled {
			return domain.ErrOrderAlreadyCancelled
		}
		if order.Status != domain.OrderStatusPending {
			return domain.ErrOrderNotPending
		}
		return s.repo.SetCancelled(txCtx, code, s.clock.Now())
	})
}

type MarkPaidResult struct {
	Order       domain.Order
	AlreadyPaid bool
	EmailSent   bool
}

// MarkPaid is the manual override for payments that arrived outside the
// reconciliation path (cash, Venmo without a note). Idempotent on paid orders.
func (s *AdminService) MarkPaid(ctx context.Context, orderCode string) (MarkPaidResult, error) {
	if orderCode == "" {
		return MarkPaidResult{}, domain.ErrOrderCodeRequired
	}
	code := normalizeCode(orderCode)

	var result MarkPaidResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.FindByCodeForUpdate(txCtx, code)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if order.Status == domain.OrderStatusPaid {
			result = MarkPaidResult{Order: *order, AlreadyPaid: true}
			return nil
		}
		if order.Status != domain.OrderStatusPending {
			return domain.ErrOrderNotPending
		}

		now := s.clock.Now()
		if err := s.repo.MarkPaid(txCtx, code, now, "Manual Admin Override", "Manually marked as paid"); err != nil {
			return err
		}

		paid := *order
		paid.Status = domain.OrderStatusPaid
		paid.PaidAt = &now
		paid.PayerName = "Manual Admin Override"
		result = MarkPaidResult{Order: paid}
		return nil
	})
	if err != nil {
		return MarkPaidResult{}, err
	}

	if !result.AlreadyPaid {
		result.EmailSent = s.notifier.SendTicket(ctx, result.Order) == nil
	}
	return result, nil
}

// ResendTicket re-delivers the confirmation email for a paid order. This is
// the recovery path for notification failures after settlement.
func (s *AdminService) ResendTicket(ctx context.Context, orderCode string) error {
	if orderCode == "" {
		return domain.ErrOrderCodeRequired
	}

	order, err := s.repo.FindByCode(ctx, normalizeCode(orderCode))
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPaid {
		return domain.ErrOrderNotPaid
	}

	if err := s.notifier.SendTicket(ctx, *order); err != nil {
		return fmt.Errorf("send ticket email: %w", err)
	}
	return nil
}

type ManualTicketInput struct {
	Name       string
	Email      string
	NumTickets int
	ShowTime   string
}

type ManualTicketResult struct {
	Order     domain.Order
	EmailSent bool
}

// CreateManualTicket issues an already-paid order directly, for comp tickets
// and door sales.
func (s *AdminService) CreateManualTicket(ctx context.Context, in ManualTicketInput) (ManualTicketResult, error) {
	if in.Email == "" {
		return ManualTicketResult{}, domain.ErrEmailRequired
	}
	if !emailRe.MatchString(in.Email) {
		return ManualTicketResult{}, domain.ErrInvalidEmail
	}
	if in.NumTickets < 1 || in.NumTickets > maxTicketsPerOrder {
		return ManualTicketResult{}, domain.ErrInvalidTicketCount
	}
	name := in.Name
	if name == "" {
		name = "Manual Entry"
	}
	showTime := in.ShowTime
	if showTime == "" && len(s.showTimes) > 0 {
		showTime = s.showTimes[0]
	}

	now := s.clock.Now()
	var created domain.Order

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		code, err := s.allocateCode(txCtx)
		if err != nil {
			return err
		}
		order := domain.Order{
			ID:          newID(),
			OrderCode:   code,
			Name:        name,
			Email:       in.Email,
			NumTickets:  in.NumTickets,
			TotalAmount: s.ticketPrice.Mul(decimal.NewFromInt(int64(in.NumTickets))),
			ShowTime:    showTime,
			Status:      domain.OrderStatusPaid,
			PaidAt:      &now,
			PayerName:   "Manual Admin Entry",
			PaymentNote: "Manually sent by admin",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(txCtx, order); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return ManualTicketResult{}, err
	}

	emailSent := s.notifier.SendTicket(ctx, created) == nil
	return ManualTicketResult{Order: created, EmailSent: emailSent}, nil
}

func (s *AdminService) allocateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeGenAttempts; i++ {
		code := newOrderCode(s.codePrefix)
		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", domain.ErrOrderCodeExhausted
}
