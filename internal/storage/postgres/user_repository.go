package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	conn
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{conn: conn{pool: pool}}
}

func (r *UserRepository) CreateUser(ctx context.Context, u domain.User) error {
	const stmt = `
INSERT INTO users (id, name, email, password_hash, role, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
SELECT id, name, email, password_hash, role, created_at
FROM users
WHERE email = $1`

	var u domain.User
	err := r.queryRow(ctx, query, email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) UpdateUserRole(ctx context.Context, id string, role domain.Role) error {
	if !validUUID(id) {
		return domain.ErrUserNotFound
	}
	tag, err := r.exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
