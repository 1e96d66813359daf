package gateway

import "github.com/akylbek/payment-system/refund-reconciler/internal/models"

type CreateRefundRequest struct {
	PaymentID string
	Amount    models.Money
	Speed     string // "optimum" or "normal"; empty leaves the gateway default
	Notes     map[string]string
	Receipt   string
}

type createRefundBody struct {
	Amount  models.Money      `json:"amount"`
	Speed   string            `json:"speed,omitempty"`
	Notes   map[string]string `json:"notes,omitempty"`
	Receipt string            `json:"receipt,omitempty"`
}

// RefundResponse is the gateway's refund entity.
type RefundResponse struct {
	ID               string         `json:"id"`
	Entity           string         `json:"entity"`
	Amount           models.Money   `json:"amount"`
	Currency         string         `json:"currency"`
	PaymentID        string         `json:"payment_id"`
	Notes            map[string]any `json:"notes"`
	Receipt          *string        `json:"receipt"`
	AcquirerData     map[string]any `json:"acquirer_data"`
	CreatedAt        int64          `json:"created_at"`
	BatchID          *string        `json:"batch_id"`
	Status           string         `json:"status"`
	SpeedProcessed   string         `json:"speed_processed"`
	SpeedRequested   string         `json:"speed_requested"`
	ErrorCode        *string        `json:"error_code"`
	ErrorDescription *string        `json:"error_description"`
}

type refundCollection struct {
	Entity string           `json:"entity"`
	Count  int              `json:"count"`
	Items  []RefundResponse `json:"items"`
}
