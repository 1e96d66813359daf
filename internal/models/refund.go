package models

import "time"

type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundProcessed RefundStatus = "PROCESSED"
	RefundFailed    RefundStatus = "FAILED"
)

// IsTerminal reports whether no ordinary transition leaves the status.
func (s RefundStatus) IsTerminal() bool {
	return s == RefundProcessed || s == RefundFailed
}

type RefundSpeed string

const (
	SpeedOptimum RefundSpeed = "OPTIMUM"
	SpeedNormal  RefundSpeed = "NORMAL"
)

const (
	ReasonAutoSyncedGateway = "auto-synced from gateway"
	ReasonAutoSyncedWebhook = "auto-synced from webhook"
	ProcessedBySystem       = "system"
)

// Refund is the authoritative local record of a gateway refund. RefundID is the
// gateway-assigned id and the idempotency key for every write.
type Refund struct {
	RefundID         string
	PaymentID        string
	Amount           Money
	Currency         string
	Status           RefundStatus
	SpeedRequested   *RefundSpeed
	SpeedProcessed   *RefundSpeed
	UserEmail        string
	UserID           string
	ProcessedBy      string
	Reason           string
	Notes            string
	Receipt          *string
	CreatedAt        time.Time
	ProcessedAt      *time.Time
	FailedAt         *time.Time
	AcquirerData     map[string]any
	BatchID          *string
	ErrorCode        *string
	ErrorDescription *string
}

// RefundType is the speed that best describes the refund: processed speed when the
// gateway reported one, otherwise the requested speed.
func (r *Refund) RefundType() *RefundSpeed {
	if r.SpeedProcessed != nil {
		return r.SpeedProcessed
	}
	return r.SpeedRequested
}

// StatusTransition is a conditional status write: it applies only while the stored
// status still equals From.
type StatusTransition struct {
	RefundID         string
	From             RefundStatus
	To               RefundStatus
	ProcessedAt      *time.Time
	FailedAt         *time.Time
	ErrorCode        *string
	ErrorDescription *string
}

type DateRange struct {
	From *time.Time
	To   *time.Time
}

type RefundFilter struct {
	Page      int
	PageSize  int
	Status    *RefundStatus
	DateRange DateRange
}

type TrendPoint struct {
	Month  string `json:"month"` // yyyy-MM
	Amount Money  `json:"amount"`
	Count  int64  `json:"count"`
}
