package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
)

// revenueStatus marks payments whose amount counts as revenue.
const revenueStatus = "captured"

// PaymentRepository reads the payments table owned by the payment service.
type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) GetByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	var (
		p                       models.Payment
		amount                  sql.NullInt64
		currency, email, userID sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, gateway_payment_id, amount, currency, user_email, user_id, status, created_at
		FROM payments WHERE gateway_payment_id = $1
	`, gatewayPaymentID).Scan(&p.ID, &p.GatewayPaymentID, &amount, &currency, &email, &userID, &p.Status, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if amount.Valid {
		m := models.Money(amount.Int64)
		p.Amount = &m
	}
	p.Currency = currency.String
	p.UserEmail = email.String
	p.UserID = userID.String
	return &p, nil
}

func (r *PaymentRepository) TotalRevenue(ctx context.Context) (models.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = $1`, revenueStatus).Scan(&total)
	return models.Money(total), err
}
