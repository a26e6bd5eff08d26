package app

import (
	"context"

	"github.com/carlosjeferson/e-commerce/internal/domain"
)

type OrderReader interface {
	GetByID(ctx context.Context, id string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

// OrderQueryService serves read access to placed orders.
type OrderQueryService struct {
	repo OrderReader
}

func NewOrderQueryService(repo OrderReader) *OrderQueryService {
	return &OrderQueryService{repo: repo}
}

func (s *OrderQueryService) ListOrders(ctx context.Context, caller domain.Identity) ([]domain.Order, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.repo.ListByUser(ctx, caller.UserID)
}

// GetOrder returns the order when the caller owns it or is an admin. Other
// callers get ErrOrderNotFound so order ids cannot be probed.
func (s *OrderQueryService) GetOrder(ctx context.Context, caller domain.Identity, id string) (domain.Order, error) {
	if caller.UserID == "" {
		return domain.Order{}, domain.ErrUnauthorized
	}
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != caller.UserID && !caller.IsAdmin() {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}
