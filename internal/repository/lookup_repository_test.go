package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/repository"
)

var paymentCols = []string{"id", "gateway_payment_id", "amount", "currency", "user_email", "user_id", "status", "created_at"}

func TestPaymentGetByGatewayID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPaymentRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE gateway_payment_id = $1`)).
		WithArgs("pay_1").
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow("1", "pay_1", int64(10000), "INR", "u@example.com", "u1", "captured", now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE gateway_payment_id = $1`)).
		WithArgs("pay_2").
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow("2", "pay_2", nil, "INR", nil, nil, "captured", now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE gateway_payment_id = $1`)).
		WithArgs("pay_3").
		WillReturnRows(sqlmock.NewRows(paymentCols))

	p, err := repo.GetByGatewayID(context.Background(), "pay_1")
	require.NoError(t, err)
	require.NotNil(t, p.Amount)
	assert.Equal(t, models.Money(10000), *p.Amount)
	assert.Equal(t, "u@example.com", p.UserEmail)

	p, err = repo.GetByGatewayID(context.Background(), "pay_2")
	require.NoError(t, err)
	assert.Nil(t, p.Amount, "unknown amount stays nil")

	_, err = repo.GetByGatewayID(context.Background(), "pay_3")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPaymentTotalRevenue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE status = $1`)).
		WithArgs("captured").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(500000)))

	total, err := repository.NewPaymentRepository(db).TotalRevenue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.Money(500000), total)
}

func TestUserFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("u@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "fcm_token"}).AddRow("u1", "u@example.com", nil))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "fcm_token"}))

	u, err := repo.FindByEmail(context.Background(), "u@example.com")
	require.NoError(t, err)
	assert.Empty(t, u.FCMToken)

	_, err = repo.FindByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
