package http

import (
	"context"
	"net/http"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/domain"
)

// OrderQueries is the minimal interface needed for order read endpoints.
type OrderQueries interface {
	ListOrders(ctx context.Context, caller domain.Identity) ([]domain.Order, error)
	GetOrder(ctx context.Context, caller domain.Identity, id string) (domain.Order, error)
}

func HandleListOrders(svc OrderQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		orders, err := svc.ListOrders(r.Context(), identity)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			resp = append(resp, toOrderResponse(o))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleGetOrder(svc OrderQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		order, err := svc.GetOrder(r.Context(), identity, r.PathValue("id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

type orderResponse struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	Total     string              `json:"total"`
	Status    string              `json:"status"`
	Items     []orderItemResponse `json:"items"`
	CreatedAt time.Time           `json:"createdAt"`
}

type orderItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Amount    string `json:"amount"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, li := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice.StringFixed(2),
			Amount:    li.Amount().StringFixed(2),
		})
	}
	return orderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Total:     o.Total.StringFixed(2),
		Status:    string(o.Status),
		Items:     items,
		CreatedAt: o.CreatedAt,
	}
}
