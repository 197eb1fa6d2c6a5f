package domain

import "github.com/shopspring/decimal"

// Payment is a candidate extracted from a single Venmo notification email.
// It is matched against an order and discarded; it is never persisted.
type Payment struct {
	OrderCode string
	Amount    decimal.Decimal
	PayerName string
	Note      string
}
