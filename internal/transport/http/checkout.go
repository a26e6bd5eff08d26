package http

import (
	"context"
	"io"
	"net/http"

	"github.com/carlosjeferson/e-commerce/internal/app"
	"github.com/carlosjeferson/e-commerce/internal/domain"
)

// CheckoutHandler is the minimal interface needed to place an order.
type CheckoutHandler interface {
	Handle(ctx context.Context, caller domain.Identity, raw []byte) (app.CheckoutResult, error)
}

// HandleCheckout passes the raw cart payload and the authenticated identity to
// the checkout service. Storage failures are logged by the service and
// reported to the client as a generic 500.
func HandleCheckout(svc CheckoutHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.Handle(r.Context(), identity, raw)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, checkoutResponse{
			Success: true,
			OrderID: res.OrderID,
			Total:   res.Total.StringFixed(2),
		})
	}
}

type checkoutResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Total   string `json:"total"`
}
