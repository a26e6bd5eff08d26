package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/carlosjeferson/e-commerce/internal/testutil"
)

func TestProductRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewProductRepository(pool)
	uow := NewUnitOfWork(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("GetByID returns product and is repeatable", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertProduct(t, ctx, pool, "Mug", "10.50", 7)

		first, err := repo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := repo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if first.Stock != 7 || second.Stock != 7 {
			t.Fatalf("expected stock 7, got %d and %d", first.Stock, second.Stock)
		}
		if !first.Price.Equal(second.Price) || first.Price.String() != "10.5" {
			t.Fatalf("unexpected prices %s and %s", first.Price, second.Price)
		}
	})

	t.Run("GetByID maps missing and malformed ids to ErrProductNotFound", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if _, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000001"); !errors.Is(err, domain.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
		if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
	})

	t.Run("DecrementStockIfSufficient guards stock", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertProduct(t, ctx, pool, "Mug", "10.00", 3)

		err := uow.WithTx(ctx, func(txCtx context.Context) error {
			if err := repo.LockProducts(txCtx, []string{id, "not-a-uuid"}); err != nil {
				return err
			}
			return repo.DecrementStockIfSufficient(txCtx, id, 2)
		})
		if err != nil {
			t.Fatalf("decrement: %v", err)
		}
		if got := testutil.ProductStock(t, ctx, pool, id); got != 1 {
			t.Fatalf("expected stock 1, got %d", got)
		}

		if err := repo.DecrementStockIfSufficient(ctx, id, 2); !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}
		if err := repo.DecrementStockIfSufficient(ctx, "00000000-0000-0000-0000-000000000001", 1); !errors.Is(err, domain.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
		if got := testutil.ProductStock(t, ctx, pool, id); got != 1 {
			t.Fatalf("expected stock to stay 1, got %d", got)
		}
	})

	t.Run("rolled back unit of work leaves stock untouched", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertProduct(t, ctx, pool, "Mug", "10.00", 5)

		boom := errors.New("boom")
		err := uow.WithTx(ctx, func(txCtx context.Context) error {
			if err := repo.DecrementStockIfSufficient(txCtx, id, 5); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if got := testutil.ProductStock(t, ctx, pool, id); got != 5 {
			t.Fatalf("expected stock 5, got %d", got)
		}
	})

	t.Run("Update and Delete report missing products", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		err := repo.Update(ctx, domain.Product{ID: "00000000-0000-0000-0000-000000000001", Name: "x"})
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, "00000000-0000-0000-0000-000000000001"); !errors.Is(err, domain.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
	})
}
