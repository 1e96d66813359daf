package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var (
		u     models.User
		token sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, fcm_token FROM users WHERE email = $1`, email).Scan(&u.ID, &u.Email, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.FCMToken = token.String
	return &u, nil
}
