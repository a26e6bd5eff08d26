package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusPaid     OrderStatus = "PAID"
	OrderStatusFailed   OrderStatus = "FAILED"
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

// Order is the persisted result of a successful checkout.
type Order struct {
	ID        string
	UserID    string
	Total     decimal.Decimal
	Status    OrderStatus
	Items     []OrderLineItem
	CreatedAt time.Time
}

// OrderLineItem freezes the unit price a product had when it was bought.
type OrderLineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (li OrderLineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}
