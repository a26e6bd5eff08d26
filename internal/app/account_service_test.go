package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/clock"
	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/carlosjeferson/e-commerce/internal/storage/memory"
)

var accountNow = time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

func newAccountService(t *testing.T) (*AccountService, *memory.Store, *fakeTokens) {
	t.Helper()
	store := memory.New()
	tokens := &fakeTokens{}
	return NewAccountService(store, plainHasher{}, tokens, clock.NewManual(accountNow)), store, tokens
}

func TestAccountService_Register(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      RegisterInput
		wantErr error
	}{
		{name: "valid", in: RegisterInput{Name: "Ana", Email: " Ana@Example.com ", Password: "secret123"}},
		{name: "missing name", in: RegisterInput{Email: "a@example.com", Password: "secret123"}, wantErr: domain.ErrNameRequired},
		{name: "bad email", in: RegisterInput{Name: "Ana", Email: "not-an-email", Password: "secret123"}, wantErr: domain.ErrInvalidRequest},
		{name: "display name email", in: RegisterInput{Name: "Ana", Email: "Ana <a@example.com>", Password: "secret123"}, wantErr: domain.ErrInvalidRequest},
		{name: "short password", in: RegisterInput{Name: "Ana", Email: "a@example.com", Password: "short"}, wantErr: domain.ErrInvalidRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _, _ := newAccountService(t)

			user, err := svc.Register(context.Background(), tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if user.Role != domain.RoleCustomer {
				t.Fatalf("expected CUSTOMER, got %s", user.Role)
			}
			if user.Email != "ana@example.com" {
				t.Fatalf("expected normalized email, got %q", user.Email)
			}
			if user.PasswordHash == tt.in.Password {
				t.Fatalf("password stored unhashed")
			}
			if !user.CreatedAt.Equal(accountNow) {
				t.Fatalf("unexpected created_at %s", user.CreatedAt)
			}
		})
	}
}

func TestAccountService_RegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAccountService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret123"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Name: "Other", Email: "ANA@example.com", Password: "secret123"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAccountService_Login(t *testing.T) {
	t.Parallel()

	svc, _, tokens := newAccountService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := svc.Login(ctx, "ANA@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "token-"+user.ID || res.User.ID != user.ID {
		t.Fatalf("unexpected login result: %+v", res)
	}
	if tokens.role != domain.RoleCustomer {
		t.Fatalf("expected token for CUSTOMER, got %s", tokens.role)
	}

	for _, tc := range []struct{ email, password string }{
		{"ana@example.com", "wrong-password"},
		{"nobody@example.com", "secret123"},
		{"garbage", "secret123"},
	} {
		if _, err := svc.Login(ctx, tc.email, tc.password); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("login(%q): expected ErrInvalidCredentials, got %v", tc.email, err)
		}
	}
}

func TestAccountService_EnsureAdmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("creates missing admin", func(t *testing.T) {
		svc, store, _ := newAccountService(t)
		admin, err := svc.EnsureAdmin(ctx, "root@example.com", "supersecret")
		if err != nil {
			t.Fatalf("ensure admin: %v", err)
		}
		if admin.Role != domain.RoleAdmin {
			t.Fatalf("expected ADMIN, got %s", admin.Role)
		}
		stored, err := store.GetUserByEmail(ctx, "root@example.com")
		if err != nil || stored.Role != domain.RoleAdmin {
			t.Fatalf("expected stored admin, got %+v (%v)", stored, err)
		}
	})

	t.Run("promotes existing customer", func(t *testing.T) {
		svc, store, _ := newAccountService(t)
		if _, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret123"}); err != nil {
			t.Fatalf("register: %v", err)
		}
		if _, err := svc.EnsureAdmin(ctx, "ana@example.com", "ignored-password"); err != nil {
			t.Fatalf("ensure admin: %v", err)
		}
		stored, err := store.GetUserByEmail(ctx, "ana@example.com")
		if err != nil || stored.Role != domain.RoleAdmin {
			t.Fatalf("expected promoted admin, got %+v (%v)", stored, err)
		}
		if _, err := svc.Login(ctx, "ana@example.com", "secret123"); err != nil {
			t.Fatalf("existing password should still work: %v", err)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		svc, _, _ := newAccountService(t)
		first, err := svc.EnsureAdmin(ctx, "root@example.com", "supersecret")
		if err != nil {
			t.Fatalf("first: %v", err)
		}
		second, err := svc.EnsureAdmin(ctx, "root@example.com", "supersecret")
		if err != nil {
			t.Fatalf("second: %v", err)
		}
		if first.ID != second.ID {
			t.Fatalf("expected same admin, got %s and %s", first.ID, second.ID)
		}
	})
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type fakeTokens struct {
	role domain.Role
}

func (f *fakeTokens) Issue(userID string, role domain.Role) (string, time.Time, error) {
	f.role = role
	return "token-" + userID, accountNow.Add(time.Hour), nil
}
