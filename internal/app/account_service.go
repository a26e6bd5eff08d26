package app

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/clock"
	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/google/uuid"
)

const minPasswordLength = 8

type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateUserRole(ctx context.Context, id string, role domain.Role) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type TokenIssuer interface {
	Issue(userID string, role domain.Role) (token string, expiresAt time.Time, err error)
}

// AccountService registers users and exchanges credentials for identity tokens.
type AccountService struct {
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	clock  clock.Clock
}

func NewAccountService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, clk clock.Clock) *AccountService {
	return &AccountService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		clock:  clk,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a CUSTOMER account. Admins are only created through EnsureAdmin.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	return s.createUser(ctx, in, domain.RoleCustomer)
}

func (s *AccountService) createUser(ctx context.Context, in RegisterInput, role domain.Role) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.User{}, domain.ErrNameRequired
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if len(in.Password) < minPasswordLength {
		return domain.User{}, &domain.InvalidRequestError{Reason: "password must have at least 8 characters"}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

func (s *AccountService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: exp, User: user}, nil
}

// EnsureAdmin makes sure an ADMIN account exists for email, promoting an
// existing account if needed.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) (domain.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.GetUserByEmail(ctx, normalized)
	switch {
	case err == nil:
		if user.Role != domain.RoleAdmin {
			if err := s.users.UpdateUserRole(ctx, user.ID, domain.RoleAdmin); err != nil {
				return domain.User{}, err
			}
			user.Role = domain.RoleAdmin
		}
		return user, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return s.createUser(ctx, RegisterInput{Name: "Administrator", Email: normalized, Password: password}, domain.RoleAdmin)
	default:
		return domain.User{}, err
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &domain.InvalidRequestError{Reason: "invalid email"}
	}
	return email, nil
}
