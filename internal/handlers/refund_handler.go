package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/service"
)

// AdminHeader carries the admin identity set by the upstream auth proxy.
const AdminHeader = "X-Admin-Email"

type RefundEngine interface {
	InitiateRefund(ctx context.Context, in service.InitiateRefundInput) (*models.RefundResponse, error)
	GetRefund(ctx context.Context, refundID string) (*models.RefundResponse, error)
	GetPaymentRefunds(ctx context.Context, paymentID string) (*models.PaymentRefundsResponse, error)
	CheckPaymentRefundStatus(ctx context.Context, paymentID string) (*models.PaymentRefundsResponse, error)
}

type RefundReports interface {
	Dashboard(ctx context.Context) (*models.DashboardMetrics, error)
	History(ctx context.Context, filter models.RefundFilter) (*models.RefundHistoryPage, error)
	ExportCSV(ctx context.Context, w io.Writer, filter models.RefundFilter) error
}

type RefundHandler struct {
	engine  RefundEngine
	reports RefundReports
}

func NewRefundHandler(engine RefundEngine, reports RefundReports) *RefundHandler {
	return &RefundHandler{engine: engine, reports: reports}
}

type initiateRefundRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
	Amount    *int64 `json:"amount"`
	Speed     string `json:"speed"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes"`
	Receipt   string `json:"receipt"`
}

func (h *RefundHandler) InitiateRefund(c *gin.Context) {
	admin := strings.TrimSpace(c.GetHeader(AdminHeader))
	if admin == "" {
		writeError(c, &models.ValidationError{Message: AdminHeader + " header is required"})
		return
	}

	var req initiateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &models.ValidationError{Message: "invalid request body: " + err.Error()})
		return
	}
	speed, err := parseSpeed(req.Speed)
	if err != nil {
		writeError(c, err)
		return
	}

	in := service.InitiateRefundInput{
		AdminEmail: admin,
		PaymentID:  req.PaymentID,
		Speed:      speed,
		Reason:     req.Reason,
		Notes:      req.Notes,
		Receipt:    req.Receipt,
	}
	if req.Amount != nil {
		amount := models.Money(*req.Amount)
		in.Amount = &amount
	}

	resp, err := h.engine.InitiateRefund(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RefundHandler) GetRefund(c *gin.Context) {
	resp, err := h.engine.GetRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !resp.Success {
		c.JSON(http.StatusNotFound, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RefundHandler) GetPaymentRefunds(c *gin.Context) {
	resp, err := h.engine.GetPaymentRefunds(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RefundHandler) SyncPaymentRefunds(c *gin.Context) {
	resp, err := h.engine.CheckPaymentRefundStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RefundHandler) ListRefunds(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.reports.History(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *RefundHandler) Metrics(c *gin.Context) {
	metrics, err := h.reports.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// Export renders the whole CSV before writing so a mid-export failure is a clean 500.
func (h *RefundHandler) Export(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.reports.ExportCSV(c.Request.Context(), &buf, filter); err != nil {
		writeError(c, err)
		return
	}
	filename := fmt.Sprintf("refunds-%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func parseSpeed(s string) (*models.RefundSpeed, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case string(models.SpeedOptimum):
		speed := models.SpeedOptimum
		return &speed, nil
	case string(models.SpeedNormal):
		speed := models.SpeedNormal
		return &speed, nil
	}
	return nil, &models.ValidationError{Message: fmt.Sprintf("speed must be OPTIMUM or NORMAL, got %q", s)}
}

func parseFilter(c *gin.Context) (models.RefundFilter, error) {
	var filter models.RefundFilter

	for key, dst := range map[string]*int{"page": &filter.Page, "page_size": &filter.PageSize} {
		if v := c.Query(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return filter, &models.ValidationError{Message: fmt.Sprintf("%s must be a positive integer", key)}
			}
			*dst = n
		}
	}

	if v := c.Query("status"); v != "" {
		status := models.RefundStatus(strings.ToUpper(v))
		if status != models.RefundPending && !status.IsTerminal() {
			return filter, &models.ValidationError{Message: fmt.Sprintf("unknown status %q", v)}
		}
		filter.Status = &status
	}

	from, err := parseDate(c.Query("from"), false)
	if err != nil {
		return filter, err
	}
	to, err := parseDate(c.Query("to"), true)
	if err != nil {
		return filter, err
	}
	filter.DateRange = models.DateRange{From: from, To: to}
	return filter, nil
}

// parseDate accepts RFC 3339 or a bare date; a bare "to" date covers the whole day.
func parseDate(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, &models.ValidationError{Message: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", v)}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
