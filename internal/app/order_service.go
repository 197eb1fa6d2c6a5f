package app

import (
	"context"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/clock"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/domain"
	"github.com/jessebugclark-dot/Jesselovesmovies/internal/venmo"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CodeExists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, order domain.Order) error
	FindByCode(ctx context.Context, code string) (*domain.Order, error)
	SumReservedSeats(ctx context.Context, showTime string, now time.Time) (int, error)
}

const (
	maxTicketsPerOrder = 10
	codeGenAttempts    = 5
	defaultReservation = 30 * time.Minute
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// OrderService handles intake of new ticket orders and public order queries.
type OrderService struct {
	repo           OrderRepository
	clock          clock.Clock
	ticketPrice    decimal.Decimal
	codePrefix     string
	reservationTTL time.Duration
	showTimes      []string
	seatsPerShow   int
	venmoHandle    string
}

type OrderServiceConfig struct {
	TicketPrice    decimal.Decimal
	CodePrefix     string
	ReservationTTL time.Duration
	ShowTimes      []string
	SeatsPerShow   int
	VenmoHandle    string
}

func NewOrderService(repo OrderRepository, clk clock.Clock, cfg OrderServiceConfig) *OrderService {
	svc := &OrderService{
		repo:           repo,
		clock:          clk,
		ticketPrice:    cfg.TicketPrice,
		codePrefix:     cfg.CodePrefix,
		reservationTTL: cfg.ReservationTTL,
		showTimes:      cfg.ShowTimes,
		seatsPerShow:   cfg.SeatsPerShow,
		venmoHandle:    cfg.VenmoHandle,
	}
	if svc.reservationTTL <= 0 {
		svc.reservationTTL = defaultReservation
	}
	return svc
}

type CreateOrderInput struct {
	Name       string
	Email      string
	NumTickets int
	ShowTime   string
}

type CreateOrderResult struct {
	Order       domain.Order
	VenmoHandle string
	VenmoNote   string
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	if in.Name == "" {
		return CreateOrderResult{}, domain.ErrNameRequired
	}
	if in.Email == "" {
		return CreateOrderResult{}, domain.ErrEmailRequired
	}
	if !emailRe.MatchString(in.Email) {
		return CreateOrderResult{}, domain.ErrInvalidEmail
	}
	if in.NumTickets < 1 || in.NumTickets > maxTicketsPerOrder {
		return CreateOrderResult{}, domain.ErrInvalidTicketCount
	}
	if !s.validShowTime(in.ShowTime) {
		return CreateOrderResult{}, domain.ErrInvalidShowTime
	}

	now := s.clock.Now()
	var created domain.Order

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		reserved, err := s.repo.SumReservedSeats(txCtx, in.ShowTime, now)
		if err != nil {
			return err
		}
		if reserved+in.NumTickets > s.seatsPerShow {
			return domain.ErrInsufficientSeats
		}

		code, err := s.allocateCode(txCtx)
		if err != nil {
			return err
		}

		order := domain.Order{
			ID:            newID(),
			OrderCode:     code,
			Name:          in.Name,
			Email:         in.Email,
			NumTickets:    in.NumTickets,
			TotalAmount:   s.ticketPrice.Mul(decimal.NewFromInt(int64(in.NumTickets))),
			ShowTime:      in.ShowTime,
			Status:        domain.OrderStatusPending,
			ReservedUntil: now.Add(s.reservationTTL),
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := s.repo.Insert(txCtx, order); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return CreateOrderResult{}, err
	}

	return CreateOrderResult{
		Order:       created,
		VenmoHandle: s.venmoHandle,
		VenmoNote:   venmo.Note(created.OrderCode, created.Email),
	}, nil
}

// allocateCode draws random codes until one is free, bounded at a handful of
// attempts. The unique index on order_code remains the real guarantee; a
// collision slipping through the existence check surfaces as ErrOrderCodeTaken.
func (s *OrderService) allocateCode(ctx context.Context) (string, error) {
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

type OrderStatusResult struct {
	OrderCode string
	Status    domain.OrderStatus
	IsPaid    bool
	PaidAt    *time.Time
}

// GetStatus reports the buyer-facing state of an order. A pending order whose
// reservation deadline has passed reads as expired even before the sweep has
// written the transition.
func (s *OrderService) GetStatus(ctx context.Context, orderCode string) (OrderStatusResult, error) {
	if orderCode == "" {
		return OrderStatusResult{}, domain.ErrOrderCodeRequired
	}

	order, err := s.repo.FindByCode(ctx, normalizeCode(orderCode))
	if err != nil {
		return OrderStatusResult{}, err
	}
	if order == nil {
		return OrderStatusResult{}, domain.ErrOrderNotFound
	}

	status := order.Status
	if status == domain.OrderStatusPending && !order.ReservedUntil.IsZero() && !order.ReservedUntil.After(s.clock.Now()) {
		status = domain.OrderStatusExpired
	}

	return OrderStatusResult{
		OrderCode: order.OrderCode,
		Status:    status,
		IsPaid:    status == domain.OrderStatusPaid,
		PaidAt:    order.PaidAt,
	}, nil
}

type ShowTimeSeats struct {
	ShowTime  string
	Total     int
	Reserved  int
	Available int
}

// Seats reports availability per show time. Reserved counts paid orders plus
// pending orders whose reservation window is still open; expired reservations
// free their seats.
func (s *OrderService) Seats(ctx context.Context) ([]ShowTimeSeats, error) {
	now := s.clock.Now()
	out := make([]ShowTimeSeats, 0, len(s.showTimes))
	for _, showTime := range s.showTimes {
		reserved, err := s.repo.SumReservedSeats(ctx, showTime, now)
		if err != nil {
			return nil, err
		}
		available := s.seatsPerShow - reserved
		if available < 0 {
			available = 0
		}
		out = append(out, ShowTimeSeats{
			ShowTime:  showTime,
			Total:     s.seatsPerShow,
			Reserved:  reserved,
			Available: available,
		})
	}
	return out, nil
}

func (s *OrderService) validShowTime(showTime string) bool {
	for _, st := range s.showTimes {
		if st == showTime {
			return true
		}
	}
	return false
}
