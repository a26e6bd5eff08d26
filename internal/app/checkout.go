package app

import (
	"context"
	"errors"
	"sort"

	"github.com/carlosjeferson/e-commerce/internal/clock"
	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/carlosjeferson/e-commerce/internal/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnitOfWork runs fn so that every store call made with the ctx it receives
// commits together or not at all.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProductStore interface {
	GetByID(ctx context.Context, id string) (domain.Product, error)
	// LockProducts takes row locks on the existing products among ids.
	LockProducts(ctx context.Context, ids []string) error
	// DecrementStockIfSufficient returns domain.ErrInsufficientStock or
	// domain.ErrProductNotFound when nothing was changed.
	DecrementStockIfSufficient(ctx context.Context, id string, quantity int) error
}

type OrderStore interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
}

type OutboxWriter interface {
	Insert(ctx context.Context, rec events.Record) error
}

// CheckoutTransaction turns a cart into a paid order while decrementing stock,
// all inside one unit of work.
type CheckoutTransaction struct {
	uow      UnitOfWork
	products ProductStore
	orders   OrderStore
	outbox   OutboxWriter
	clock    clock.Clock
}

type CheckoutTransactionOption func(*CheckoutTransaction)

// WithOutbox records an order.paid event in the same unit of work as the order.
func WithOutbox(w OutboxWriter) CheckoutTransactionOption {
	return func(t *CheckoutTransaction) {
		t.outbox = w
	}
}

func NewCheckoutTransaction(uow UnitOfWork, products ProductStore, orders OrderStore, clk clock.Clock, opts ...CheckoutTransactionOption) *CheckoutTransaction {
	t := &CheckoutTransaction{
		uow:      uow,
		products: products,
		orders:   orders,
		clock:    clk,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *CheckoutTransaction) Execute(ctx context.Context, userID string, items []domain.CartItem) (domain.Order, error) {
	if len(items) == 0 {
		return domain.Order{}, &domain.InvalidRequestError{Reason: "cart is empty"}
	}
	for _, item := range items {
		if item.ProductID == "" {
			return domain.Order{}, &domain.InvalidRequestError{Reason: "productId is required"}
		}
		if item.Quantity < 1 {
			return domain.Order{}, &domain.InvalidRequestError{Reason: "quantity must be at least 1"}
		}
	}

	var result domain.Order
	err := t.uow.WithTx(ctx, func(txCtx context.Context) error {
		// Lock in id order so carts sharing products cannot deadlock each other.
		if err := t.products.LockProducts(txCtx, lockOrder(items)); err != nil {
			return err
		}

		total := decimal.Zero
		lines := make([]domain.OrderLineItem, 0, len(items))
		for _, item := range items {
			product, err := t.products.GetByID(txCtx, item.ProductID)
			if err != nil {
				if errors.Is(err, domain.ErrProductNotFound) {
					return &domain.ProductNotFoundError{ProductID: item.ProductID}
				}
				return err
			}
			if product.Stock < item.Quantity {
				return &domain.InsufficientStockError{
					ProductID: item.ProductID,
					Available: product.Stock,
					Requested: item.Quantity,
				}
			}

			line := domain.OrderLineItem{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
			}
			total = total.Add(line.Amount())

			if err := t.products.DecrementStockIfSufficient(txCtx, item.ProductID, item.Quantity); err != nil {
				switch {
				case errors.Is(err, domain.ErrInsufficientStock):
					return &domain.InsufficientStockError{
						ProductID: item.ProductID,
						Available: product.Stock,
						Requested: item.Quantity,
					}
				case errors.Is(err, domain.ErrProductNotFound):
					return &domain.ProductNotFoundError{ProductID: item.ProductID}
				}
				return err
			}
			lines = append(lines, line)
		}

		order, err := t.orders.Create(txCtx, domain.Order{
			ID:        uuid.NewString(),
			UserID:    userID,
			Total:     total,
			Status:    domain.OrderStatusPaid,
			Items:     lines,
			CreatedAt: t.clock.Now(),
		})
		if err != nil {
			return err
		}

		if t.outbox != nil {
			rec, err := events.NewOrderPaidRecord(order, order.CreatedAt)
			if err != nil {
				return err
			}
			if err := t.outbox.Insert(txCtx, rec); err != nil {
				return err
			}
		}

		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, classifyCheckoutError(err)
	}
	return result, nil
}

func lockOrder(items []domain.CartItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Strings(ids)
	return ids
}

func classifyCheckoutError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrStorageFailure):
		return err
	}
	return &domain.StorageError{Op: "checkout", Err: err}
}
