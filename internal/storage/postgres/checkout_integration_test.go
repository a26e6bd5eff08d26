package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/carlosjeferson/e-commerce/internal/app"
	"github.com/carlosjeferson/e-commerce/internal/clock"
	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/carlosjeferson/e-commerce/internal/testutil"
	"github.com/shopspring/decimal"
)

func TestCheckout_PostgresIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)

	outbox := NewOutboxRepository(pool)
	checkout := app.NewCheckoutTransaction(
		NewUnitOfWork(pool),
		NewProductRepository(pool),
		NewOrderRepository(pool),
		clock.NewSystem(),
		app.WithOutbox(outbox),
	)

	t.Run("computes total, decrements stock and records event", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		userID := testutil.InsertUser(t, ctx, pool, "buyer@example.com", "CUSTOMER")
		a := testutil.InsertProduct(t, ctx, pool, "A", "10.00", 5)

		order, err := checkout.Execute(ctx, userID, []domain.CartItem{{ProductID: a, Quantity: 2}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !order.Total.Equal(decimal.RequireFromString("20.00")) {
			t.Fatalf("expected total 20.00, got %s", order.Total)
		}
		if got := testutil.ProductStock(t, ctx, pool, a); got != 3 {
			t.Fatalf("expected stock 3, got %d", got)
		}

		pending, err := outbox.FetchPending(ctx, 10)
		if err != nil {
			t.Fatalf("fetch outbox: %v", err)
		}
		if len(pending) != 1 || pending[0].Key != order.ID {
			t.Fatalf("expected one outbox record for order, got %+v", pending)
		}
	})

	t.Run("price stays frozen after product update", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		userID := testutil.InsertUser(t, ctx, pool, "buyer@example.com", "CUSTOMER")
		a := testutil.InsertProduct(t, ctx, pool, "A", "10.00", 5)

		order, err := checkout.Execute(ctx, userID, []domain.CartItem{{ProductID: a, Quantity: 1}})
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}
		if _, err := pool.Exec(ctx, `UPDATE products SET price = 99.99 WHERE id = $1`, a); err != nil {
			t.Fatalf("update price: %v", err)
		}

		stored, err := NewOrderRepository(pool).GetByID(ctx, order.ID)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if !stored.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")) {
			t.Fatalf("expected frozen unit price 10.00, got %s", stored.Items[0].UnitPrice)
		}
	})

	t.Run("failure on second item rolls everything back", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		userID := testutil.InsertUser(t, ctx, pool, "buyer@example.com", "CUSTOMER")
		a := testutil.InsertProduct(t, ctx, pool, "A", "10.00", 5)
		b := testutil.InsertProduct(t, ctx, pool, "B", "3.00", 1)

		_, err := checkout.Execute(ctx, userID, []domain.CartItem{
			{ProductID: a, Quantity: 2},
			{ProductID: b, Quantity: 2},
		})
		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if stockErr.ProductID != b || stockErr.Available != 1 || stockErr.Requested != 2 {
			t.Fatalf("unexpected error detail: %+v", stockErr)
		}
		if got := testutil.ProductStock(t, ctx, pool, a); got != 5 {
			t.Fatalf("expected stock of A unchanged, got %d", got)
		}
		if n := testutil.CountRows(t, ctx, pool, "orders"); n != 0 {
			t.Fatalf("expected no orders, got %d", n)
		}
		if n := testutil.CountRows(t, ctx, pool, "outbox"); n != 0 {
			t.Fatalf("expected no outbox records, got %d", n)
		}
	})

	t.Run("unknown product aborts regardless of position", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		userID := testutil.InsertUser(t, ctx, pool, "buyer@example.com", "CUSTOMER")
		a := testutil.InsertProduct(t, ctx, pool, "A", "10.00", 5)

		for _, cart := range [][]domain.CartItem{
			{{ProductID: "00000000-0000-0000-0000-000000000009", Quantity: 1}, {ProductID: a, Quantity: 1}},
			{{ProductID: a, Quantity: 1}, {ProductID: "00000000-0000-0000-0000-000000000009", Quantity: 1}},
		} {
			_, err := checkout.Execute(ctx, userID, cart)
			if !errors.Is(err, domain.ErrProductNotFound) {
				t.Fatalf("expected ErrProductNotFound, got %v", err)
			}
		}
		if got := testutil.ProductStock(t, ctx, pool, a); got != 5 {
			t.Fatalf("expected stock unchanged, got %d", got)
		}
	})

	t.Run("concurrent checkouts of the last unit never oversell", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		userID := testutil.InsertUser(t, ctx, pool, "buyer@example.com", "CUSTOMER")
		a := testutil.InsertProduct(t, ctx, pool, "A", "10.00", 1)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = checkout.Execute(ctx, userID, []domain.CartItem{{ProductID: a, Quantity: 1}})
			}(i)
		}
		close(start)
		wg.Wait()

		var ok, insufficient int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || insufficient != 1 {
			t.Fatalf("expected one success and one InsufficientStock, got %d/%d", ok, insufficient)
		}
		if got := testutil.ProductStock(t, ctx, pool, a); got != 0 {
			t.Fatalf("expected final stock 0, got %d", got)
		}
	})

	t.Run("cancelled context leaves no durable effect", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		userID := testutil.InsertUser(t, ctx, pool, "buyer@example.com", "CUSTOMER")
		a := testutil.InsertProduct(t, ctx, pool, "A", "10.00", 5)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := checkout.Execute(cctx, userID, []domain.CartItem{{ProductID: a, Quantity: 1}})
		if !errors.Is(err, domain.ErrStorageFailure) {
			t.Fatalf("expected storage failure, got %v", err)
		}
		if got := testutil.ProductStock(t, ctx, pool, a); got != 5 {
			t.Fatalf("expected stock unchanged, got %d", got)
		}
	})
}
