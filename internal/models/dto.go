package models

import "time"

type RefundDTO struct {
	RefundID         string         `json:"refund_id"`
	PaymentID        string         `json:"payment_id"`
	Amount           Money          `json:"amount"`
	Currency         string         `json:"currency"`
	Status           RefundStatus   `json:"status"`
	SpeedRequested   *RefundSpeed   `json:"speed_requested,omitempty"`
	SpeedProcessed   *RefundSpeed   `json:"speed_processed,omitempty"`
	UserEmail        string         `json:"user_email"`
	UserID           string         `json:"user_id"`
	ProcessedBy      string         `json:"processed_by"`
	Reason           string         `json:"reason,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	Receipt          *string        `json:"receipt,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
	FailedAt         *time.Time     `json:"failed_at,omitempty"`
	AcquirerData     map[string]any `json:"acquirer_data,omitempty"`
	BatchID          *string        `json:"batch_id,omitempty"`
	ErrorCode        *string        `json:"error_code,omitempty"`
	ErrorDescription *string        `json:"error_description,omitempty"`
}

func NewRefundDTO(r *Refund) *RefundDTO {
	if r == nil {
		return nil
	}
	return &RefundDTO{
		RefundID:         r.RefundID,
		PaymentID:        r.PaymentID,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Status:           r.Status,
		SpeedRequested:   r.SpeedRequested,
		SpeedProcessed:   r.SpeedProcessed,
		UserEmail:        r.UserEmail,
		UserID:           r.UserID,
		ProcessedBy:      r.ProcessedBy,
		Reason:           r.Reason,
		Notes:            r.Notes,
		Receipt:          r.Receipt,
		CreatedAt:        r.CreatedAt,
		ProcessedAt:      r.ProcessedAt,
		FailedAt:         r.FailedAt,
		AcquirerData:     r.AcquirerData,
		BatchID:          r.BatchID,
		ErrorCode:        r.ErrorCode,
		ErrorDescription: r.ErrorDescription,
	}
}

// RefundResponse is the business-outcome channel. Success=false is a valid answer
// (payment not found, nothing left to refund), not an infrastructure failure.
type RefundResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Refund  *RefundDTO `json:"refund,omitempty"`
}

type PaymentRefundSummary struct {
	PaymentID           string       `json:"payment_id"`
	PaymentAmount       Money        `json:"payment_amount"`
	Currency            string       `json:"currency"`
	TotalRefunded       Money        `json:"total_refunded"`
	RemainingRefundable Money        `json:"remaining_refundable"`
	FullyRefunded       bool         `json:"fully_refunded"`
	BillType            BillType     `json:"bill_type"`
	Refunds             []*RefundDTO `json:"refunds"`
	// SyncedWithGateway is false when the gateway could not be reached and the
	// summary reflects local state only.
	SyncedWithGateway bool `json:"synced_with_gateway"`
}

type PaymentRefundsResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Summary *PaymentRefundSummary `json:"summary,omitempty"`
}

type RefundHistoryPage struct {
	Refunds  []*RefundDTO `json:"refunds"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

type DashboardMetrics struct {
	TotalRefunded          Money                 `json:"total_refunded"`
	MonthlyRefunded        Money                 `json:"monthly_refunded"`
	TotalRevenue           Money                 `json:"total_revenue"`
	RefundRate             float64               `json:"refund_rate"`
	CountBySpeed           map[RefundSpeed]int64 `json:"count_by_speed"`
	AverageProcessingHours float64               `json:"average_processing_hours"`
	Trend                  []TrendPoint          `json:"trend"`
}

type WebhookResult struct {
	Success   bool         `json:"success"`
	Duplicate bool         `json:"duplicate"`
	Created   bool         `json:"created"`
	RefundID  string       `json:"refund_id"`
	Status    RefundStatus `json:"status"`
}
