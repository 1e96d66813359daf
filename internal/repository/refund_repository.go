package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
)

type RefundRepository struct {
	db *sql.DB
}

func NewRefundRepository(db *sql.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS refunds (
			refund_id VARCHAR(255) PRIMARY KEY,
			payment_id VARCHAR(255) NOT NULL,
			amount BIGINT NOT NULL,
			currency VARCHAR(10) NOT NULL,
			status VARCHAR(20) NOT NULL,
			speed_requested VARCHAR(20),
			speed_processed VARCHAR(20),
			user_email VARCHAR(255),
			user_id VARCHAR(255),
			processed_by VARCHAR(255),
			reason TEXT,
			notes TEXT,
			receipt VARCHAR(255),
			acquirer_data JSONB,
			batch_id VARCHAR(255),
			error_code VARCHAR(255),
			error_description TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			processed_at TIMESTAMP,
			failed_at TIMESTAMP,
			last_reconciled_at TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`ALTER TABLE refunds ADD COLUMN IF NOT EXISTS last_reconciled_at TIMESTAMP`,
		`CREATE INDEX IF NOT EXISTS idx_refunds_payment_id ON refunds(payment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_refunds_status_created ON refunds(status, created_at)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

const refundColumns = `refund_id, payment_id, amount, currency, status, speed_requested, speed_processed,
	user_email, user_id, processed_by, reason, notes, receipt, acquirer_data, batch_id,
	error_code, error_description, created_at, processed_at, failed_at`

func (r *RefundRepository) Get(ctx context.Context, refundID string) (*models.Refund, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+refundColumns+` FROM refunds WHERE refund_id = $1`, refundID)
	refund, err := scanRefund(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return refund, err
}

// Create inserts the refund unless its id is already stored.
func (r *RefundRepository) Create(ctx context.Context, refund *models.Refund) (bool, error) {
	var acquirer any
	if refund.AcquirerData != nil {
		raw, err := json.Marshal(refund.AcquirerData)
		if err != nil {
			return false, fmt.Errorf("encode acquirer data: %w", err)
		}
		acquirer = string(raw)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO refunds (`+refundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (refund_id) DO NOTHING
	`,
		refund.RefundID, refund.PaymentID, int64(refund.Amount), refund.Currency, string(refund.Status),
		speedValue(refund.SpeedRequested), speedValue(refund.SpeedProcessed),
		refund.UserEmail, refund.UserID, refund.ProcessedBy, refund.Reason, refund.Notes,
		refund.Receipt, acquirer, refund.BatchID, refund.ErrorCode, refund.ErrorDescription,
		refund.CreatedAt, refund.ProcessedAt, refund.FailedAt,
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// UpdateStatus is a compare-and-swap on status. processed_at and failed_at keep
// their first stamp; error details are only overwritten when the transition
// supplies them.
func (r *RefundRepository) UpdateStatus(ctx context.Context, t models.StatusTransition) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refunds
		SET status = $1,
			processed_at = COALESCE(processed_at, $2),
			failed_at = COALESCE(failed_at, $3),
			error_code = COALESCE($4, error_code),
			error_description = COALESCE($5, error_description),
			updated_at = NOW()
		WHERE refund_id = $6 AND status = $7
	`, string(t.To), t.ProcessedAt, t.FailedAt, t.ErrorCode, t.ErrorDescription, t.RefundID, string(t.From))
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *RefundRepository) ListByPayment(ctx context.Context, paymentID string) ([]*models.Refund, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE payment_id = $1 ORDER BY created_at DESC`, paymentID)
	if err != nil {
		return nil, err
	}
	return scanRefunds(rows)
}

func (r *RefundRepository) TotalRefundedForPayment(ctx context.Context, paymentID string) (models.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM refunds
		WHERE payment_id = $1 AND status <> $2
	`, paymentID, string(models.RefundFailed)).Scan(&total)
	return models.Money(total), err
}

func (r *RefundRepository) ListAll(ctx context.Context, filter models.RefundFilter) ([]*models.Refund, int64, error) {
	where, args := filterClause(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refunds`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM refunds%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		refundColumns, where, n+1, n+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, 0, err
	}
	refunds, err := scanRefunds(rows)
	if err != nil {
		return nil, 0, err
	}
	return refunds, total, nil
}

func filterClause(filter models.RefundFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DateRange.From != nil {
		args = append(args, *filter.DateRange.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.DateRange.To != nil {
		args = append(args, *filter.DateRange.To)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListPendingOlderThan returns the least recently reconciled pending refunds first,
// so a batch that never settles does not hide the rows behind it.
func (r *RefundRepository) ListPendingOlderThan(ctx context.Context, before time.Time, limit int) ([]*models.Refund, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+refundColumns+` FROM refunds
		WHERE status = $1 AND created_at < $2
		ORDER BY last_reconciled_at ASC NULLS FIRST, created_at ASC LIMIT $3`, string(models.RefundPending), before, limit)
	if err != nil {
		return nil, err
	}
	return scanRefunds(rows)
}

func (r *RefundRepository) MarkReconciled(ctx context.Context, refundIDs []string, at time.Time) error {
	if len(refundIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE refunds SET last_reconciled_at = $1 WHERE refund_id = ANY($2)`, at, pq.Array(refundIDs))
	return err
}

// Reporting aggregates count PROCESSED refunds only.

func (r *RefundRepository) TotalRefundedAmount(ctx context.Context) (models.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE status = $1`, string(models.RefundProcessed)).Scan(&total)
	return models.Money(total), err
}

func (r *RefundRepository) MonthlyRefundedAmount(ctx context.Context, month time.Time) (models.Money, error) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM refunds
		WHERE status = $1 AND created_at >= $2 AND created_at < $3
	`, string(models.RefundProcessed), start, start.AddDate(0, 1, 0)).Scan(&total)
	return models.Money(total), err
}

func (r *RefundRepository) CountBySpeed(ctx context.Context) (map[models.RefundSpeed]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(speed_processed, speed_requested) AS speed, COUNT(*)
		FROM refunds
		WHERE COALESCE(speed_processed, speed_requested) IS NOT NULL
		GROUP BY speed
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.RefundSpeed]int64)
	for rows.Next() {
		var (
			speed string
			n     int64
		)
		if err := rows.Scan(&speed, &n); err != nil {
			return nil, err
		}
		counts[models.RefundSpeed(speed)] = n
	}
	return counts, rows.Err()
}

func (r *RefundRepository) AverageProcessingTimeHours(ctx context.Context) (float64, error) {
	var hours float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (processed_at - created_at)) / 3600), 0)
		FROM refunds
		WHERE status = $1 AND processed_at IS NOT NULL
	`, string(models.RefundProcessed)).Scan(&hours)
	return hours, err
}

func (r *RefundRepository) MonthlyTrend(ctx context.Context, since time.Time) ([]models.TrendPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT TO_CHAR(created_at, 'YYYY-MM') AS month, COALESCE(SUM(amount), 0), COUNT(*)
		FROM refunds
		WHERE status = $1 AND created_at >= $2
		GROUP BY month
		ORDER BY month
	`, string(models.RefundProcessed), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.TrendPoint
	for rows.Next() {
		var (
			p      models.TrendPoint
			amount int64
		)
		if err := rows.Scan(&p.Month, &amount, &p.Count); err != nil {
			return nil, err
		}
		p.Amount = models.Money(amount)
		points = append(points, p)
	}
	return points, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefund(row rowScanner) (*models.Refund, error) {
	var (
		refund                          models.Refund
		amount                          int64
		status                          string
		speedRequested, speedProcessed  sql.NullString
		userEmail, userID, processedBy  sql.NullString
		reason, notes, receipt, batchID sql.NullString
		errorCode, errorDescription     sql.NullString
		acquirer                        []byte
		processedAt, failedAt           sql.NullTime
	)
	err := row.Scan(
		&refund.RefundID, &refund.PaymentID, &amount, &refund.Currency, &status,
		&speedRequested, &speedProcessed, &userEmail, &userID, &processedBy,
		&reason, &notes, &receipt, &acquirer, &batchID, &errorCode, &errorDescription,
		&refund.CreatedAt, &processedAt, &failedAt,
	)
	if err != nil {
		return nil, err
	}

	refund.Amount = models.Money(amount)
	refund.Status = models.RefundStatus(status)
	refund.SpeedRequested = speedPtr(speedRequested)
	refund.SpeedProcessed = speedPtr(speedProcessed)
	refund.UserEmail = userEmail.String
	refund.UserID = userID.String
	refund.ProcessedBy = processedBy.String
	refund.Reason = reason.String
	refund.Notes = notes.String
	refund.Receipt = stringPtr(receipt)
	refund.BatchID = stringPtr(batchID)
	refund.ErrorCode = stringPtr(errorCode)
	refund.ErrorDescription = stringPtr(errorDescription)
	if processedAt.Valid {
		refund.ProcessedAt = &processedAt.Time
	}
	if failedAt.Valid {
		refund.FailedAt = &failedAt.Time
	}
	if len(acquirer) > 0 {
		if err := json.Unmarshal(acquirer, &refund.AcquirerData); err != nil {
			return nil, fmt.Errorf("decode acquirer data for refund %s: %w", refund.RefundID, err)
		}
	}
	return &refund, nil
}

func scanRefunds(rows *sql.Rows) ([]*models.Refund, error) {
	defer rows.Close()

	var refunds []*models.Refund
	for rows.Next() {
		refund, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, refund)
	}
	return refunds, rows.Err()
}

func speedValue(s *models.RefundSpeed) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func speedPtr(ns sql.NullString) *models.RefundSpeed {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	s := models.RefundSpeed(ns.String)
	return &s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
