package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	defaultCheckoutTimeout = 5 * time.Second
	defaultMaxCartItems    = 100
)

// Checkout outcomes reported to the observer and the logs.
const (
	OutcomePaid              = "paid"
	OutcomeInvalidRequest    = "invalid_request"
	OutcomeUnauthorized      = "unauthorized"
	OutcomeProductNotFound   = "product_not_found"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeStorageFailure    = "storage_failure"
)

type CheckoutExecutor interface {
	Execute(ctx context.Context, userID string, items []domain.CartItem) (domain.Order, error)
}

type CheckoutObserver interface {
	ObserveCheckout(outcome string)
}

// CheckoutService adapts raw request payloads to CheckoutTransaction.
type CheckoutService struct {
	tx       CheckoutExecutor
	logger   *slog.Logger
	observer CheckoutObserver
	timeout  time.Duration
	maxItems int
}

type CheckoutServiceOption func(*CheckoutService)

func WithCheckoutTimeout(d time.Duration) CheckoutServiceOption {
	return func(s *CheckoutService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMaxCartItems(n int) CheckoutServiceOption {
	return func(s *CheckoutService) {
		if n > 0 {
			s.maxItems = n
		}
	}
}

func WithCheckoutObserver(o CheckoutObserver) CheckoutServiceOption {
	return func(s *CheckoutService) {
		s.observer = o
	}
}

func WithCheckoutLogger(l *slog.Logger) CheckoutServiceOption {
	return func(s *CheckoutService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewCheckoutService(tx CheckoutExecutor, opts ...CheckoutServiceOption) *CheckoutService {
	svc := &CheckoutService{
		tx:       tx,
		logger:   slog.Default(),
		timeout:  defaultCheckoutTimeout,
		maxItems: defaultMaxCartItems,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CheckoutResult struct {
	OrderID string
	Total   decimal.Decimal
}

type cartPayload struct {
	Items []cartItemPayload `json:"items"`
}

type cartItemPayload struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

// Handle decodes raw into a cart and checks it out on behalf of the caller.
func (s *CheckoutService) Handle(ctx context.Context, caller domain.Identity, raw []byte) (CheckoutResult, error) {
	if caller.UserID == "" {
		s.observe(OutcomeUnauthorized)
		return CheckoutResult{}, domain.ErrUnauthorized
	}

	items, err := s.parseCart(raw)
	if err != nil {
		s.observe(OutcomeInvalidRequest)
		s.logger.Info("checkout rejected", "user_id", caller.UserID, "outcome", OutcomeInvalidRequest, "reason", err.Error())
		return CheckoutResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	order, err := s.tx.Execute(ctx, caller.UserID, items)
	if err != nil {
		outcome := OutcomeOf(err)
		s.observe(outcome)
		if outcome == OutcomeStorageFailure {
			s.logger.Error("checkout failed", "user_id", caller.UserID, "items", len(items), "error", err)
		} else {
			s.logger.Info("checkout rejected", "user_id", caller.UserID, "outcome", outcome, "reason", err.Error())
		}
		return CheckoutResult{}, err
	}

	s.observe(OutcomePaid)
	s.logger.Info("checkout completed",
		"order_id", order.ID,
		"user_id", caller.UserID,
		"items", len(order.Items),
		"total", order.Total.StringFixed(2),
	)
	return CheckoutResult{OrderID: order.ID, Total: order.Total}, nil
}

func (s *CheckoutService) parseCart(raw []byte) ([]domain.CartItem, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &domain.InvalidRequestError{Reason: "request body is empty"}
	}

	var payload cartPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, &domain.InvalidRequestError{Reason: "malformed cart payload"}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &domain.InvalidRequestError{Reason: "unexpected data after cart payload"}
	}

	if len(payload.Items) == 0 {
		return nil, &domain.InvalidRequestError{Reason: "cart is empty"}
	}
	if len(payload.Items) > s.maxItems {
		return nil, &domain.InvalidRequestError{Reason: fmt.Sprintf("cart has more than %d items", s.maxItems)}
	}

	items := make([]domain.CartItem, 0, len(payload.Items))
	for i, it := range payload.Items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return nil, &domain.InvalidRequestError{Reason: fmt.Sprintf("items[%d].productId is required", i)}
		}
		if it.Quantity == nil || *it.Quantity < 1 {
			return nil, &domain.InvalidRequestError{Reason: fmt.Sprintf("items[%d].quantity must be at least 1", i)}
		}
		items = append(items, domain.CartItem{ProductID: id, Quantity: *it.Quantity})
	}
	return items, nil
}

func (s *CheckoutService) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveCheckout(outcome)
	}
}

// OutcomeOf maps a checkout error to its outcome label.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomePaid
	case errors.Is(err, domain.ErrInvalidRequest):
		return OutcomeInvalidRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, domain.ErrProductNotFound):
		return OutcomeProductNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return OutcomeInsufficientStock
	default:
		return OutcomeStorageFailure
	}
}
