package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents a ticket purchase. The order code is the token buyers put
// in their Venmo payment note; it is assigned at creation and never changes.
type Order struct {
	ID          string
	OrderCode   string
	Name        string
	Email       string
	NumTickets  int
	TotalAmount decimal.Decimal
	ShowTime    string
	Status      OrderStatus
	// ReservedUntil bounds how long a pending order holds its seats.
	ReservedUntil time.Time
	PaidAt        *time.Time
	PayerName     string
	PaymentNote   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
