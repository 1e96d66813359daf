package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
)

const defaultTimeout = 15 * time.Second

// Config is built once at startup; credentials come from the secrets provider.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateRefund always sends the amount, including for full refunds.
func (c *Client) CreateRefund(ctx context.Context, req CreateRefundRequest) (*RefundResponse, error) {
	body, err := json.Marshal(createRefundBody{
		Amount:  req.Amount,
		Speed:   req.Speed,
		Notes:   req.Notes,
		Receipt: req.Receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode refund request: %w", err)
	}

	path := "/payments/" + url.PathEscape(req.PaymentID) + "/refund"
	raw, err := c.do(ctx, "create_refund", http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	var refund RefundResponse
	if err := json.Unmarshal(NormalizeBody(raw), &refund); err != nil {
		return nil, fmt.Errorf("decode refund response: %w", err)
	}
	return &refund, nil
}

func (c *Client) ListRefunds(ctx context.Context, paymentID string) ([]RefundResponse, error) {
	path := "/payments/" + url.PathEscape(paymentID) + "/refunds"
	raw, err := c.do(ctx, "list_refunds", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var coll refundCollection
	if err := json.Unmarshal(NormalizeBody(raw), &coll); err != nil {
		return nil, fmt.Errorf("decode refund collection: %w", err)
	}
	return coll.Items, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "gateway."+op)
	defer span.End()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	telemetry.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.GatewayRequests.WithLabelValues(op, "transport_error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("gateway %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.GatewayRequests.WithLabelValues(op, "transport_error").Inc()
		return nil, fmt.Errorf("read gateway %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.GatewayRequests.WithLabelValues(op, "gateway_error").Inc()
		msg := ErrorMessage(raw)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		telemetry.Logger.Warn("Gateway returned error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return nil, &Error{StatusCode: resp.StatusCode, Message: msg, RawBody: string(raw)}
	}

	telemetry.GatewayRequests.WithLabelValues(op, "ok").Inc()
	return raw, nil
}
