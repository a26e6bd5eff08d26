package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carlosjeferson/e-commerce/internal/app"
	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/shopspring/decimal"
)

func TestHandleCheckout(t *testing.T) {
	t.Parallel()

	customer := domain.Identity{UserID: "user-1", Role: domain.RoleCustomer}

	tests := []struct {
		name           string
		identity       *domain.Identity
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			identity:       &customer,
			expectedStatus: http.StatusOK,
			expectedSubstr: `"orderId":"order-1","total":"20.00"`,
		},
		{
			name:           "anonymous",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid request",
			identity:       &customer,
			serviceErr:     &domain.InvalidRequestError{Reason: "cart is empty"},
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: `"code":"invalid_request"`,
		},
		{
			name:           "product not found",
			identity:       &customer,
			serviceErr:     &domain.ProductNotFoundError{ProductID: "p-9"},
			expectedStatus: http.StatusNotFound,
			expectedSubstr: `"code":"product_not_found"`,
		},
		{
			name:           "insufficient stock",
			identity:       &customer,
			serviceErr:     &domain.InsufficientStockError{ProductID: "p-1", Available: 1, Requested: 2},
			expectedStatus: http.StatusConflict,
			expectedSubstr: `"code":"insufficient_stock"`,
		},
		{
			name:           "storage failure hides cause",
			identity:       &customer,
			serviceErr:     &domain.StorageError{Op: "checkout", Err: errors.New("FATAL: password authentication failed for user store")},
			expectedStatus: http.StatusInternalServerError,
			expectedSubstr: `{"error":"internal error","code":"internal_error"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubCheckout{
				result: app.CheckoutResult{OrderID: "order-1", Total: decimal.NewFromInt(20)},
				err:    tt.serviceErr,
			}
			body := `{"items":[{"productId":"p-1","quantity":2}]}`
			req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewBufferString(body))
			if tt.identity != nil {
				req = req.WithContext(context.WithValue(req.Context(), ctxKeyIdentity, *tt.identity))
			}
			rec := httptest.NewRecorder()

			HandleCheckout(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "password") {
				t.Fatalf("storage detail leaked: %q", rec.Body.String())
			}
			if tt.identity != nil {
				if svc.caller != *tt.identity {
					t.Fatalf("expected caller %+v, got %+v", *tt.identity, svc.caller)
				}
				if string(svc.raw) != body {
					t.Fatalf("expected raw body to be forwarded, got %q", svc.raw)
				}
			}
		})
	}
}

type stubCheckout struct {
	result app.CheckoutResult
	err    error
	caller domain.Identity
	raw    []byte
}

func (s *stubCheckout) Handle(_ context.Context, caller domain.Identity, raw []byte) (app.CheckoutResult, error) {
	s.caller = caller
	s.raw = raw
	if s.err != nil {
		return app.CheckoutResult{}, s.err
	}
	return s.result, nil
}
