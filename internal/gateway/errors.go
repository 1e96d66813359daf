package gateway

import "fmt"

// Error is a non-2xx answer from the gateway.
type Error struct {
	StatusCode int
	Message    string
	RawBody    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error (%d): %s", e.StatusCode, e.Message)
}
