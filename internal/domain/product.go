package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable catalog entry. Stock never drops below zero.
type Product struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	Category    string
	Price       decimal.Decimal
	Stock       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartItem is one requested line of a checkout.
type CartItem struct {
	ProductID string
	Quantity  int
}
