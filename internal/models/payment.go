package models

import (
	"fmt"
	"time"
)

// Money is an amount in minor currency units (paise, cents). It is never a float;
// conversion to major units happens only when rendering.
type Money int64

// Major renders the amount in major units with two decimals, e.g. 4000 -> "40.00".
func (m Money) Major() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Payment is a captured payment as seen by the refund engine. Read-only here.
type Payment struct {
	ID               string
	GatewayPaymentID string
	Amount           *Money // nil when the amount was never recorded
	Currency         string
	UserEmail        string
	UserID           string
	Status           string
	CreatedAt        time.Time
}

type User struct {
	ID       string
	Email    string
	FCMToken string
}
