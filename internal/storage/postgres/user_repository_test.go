package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/carlosjeferson/e-commerce/internal/testutil"
	"github.com/google/uuid"
)

func TestUserRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         "Ana",
		Email:        "ana@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleCustomer,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := user
	dup.ID = uuid.NewString()
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if err := repo.UpdateUserRole(ctx, user.ID, domain.RoleAdmin); err != nil {
		t.Fatalf("update role: %v", err)
	}
	got, err := repo.GetUserByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ID != user.ID || got.Role != domain.RoleAdmin {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := repo.GetUserByEmail(ctx, "missing@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
