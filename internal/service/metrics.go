package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/akylbek/payment-system/refund-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
	"github.com/akylbek/payment-system/refund-reconciler/internal/telemetry"
)

const (
	trendMonths     = 12
	defaultPageSize = 20
	maxPageSize     = 100
	exportPageSize  = 500
	csvTimeLayout   = "2006-01-02 15:04:05"
)

var csvHeader = []string{
	"Refund ID", "Payment ID", "User Email", "Amount", "Currency", "Status",
	"Refund Type", "Reason", "Processed By", "Created Date", "Processed Date",
}

// MetricsAggregator answers read-only reporting queries over the refund store.
type MetricsAggregator struct {
	refunds  interfaces.RefundStore
	payments interfaces.PaymentLookup
	now      func() time.Time
}

func NewMetricsAggregator(refunds interfaces.RefundStore, payments interfaces.PaymentLookup) *MetricsAggregator {
	return &MetricsAggregator{
		refunds:  refunds,
		payments: payments,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MetricsAggregator) Dashboard(ctx context.Context) (*models.DashboardMetrics, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "refund.metrics")
	defer span.End()

	now := m.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	trendStart := monthStart.AddDate(0, -(trendMonths - 1), 0)

	var (
		out    models.DashboardMetrics
		points []models.TrendPoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalRefunded, err = m.refunds.TotalRefundedAmount(gctx)
		return wrap("total refunded", err)
	})
	g.Go(func() (err error) {
		out.MonthlyRefunded, err = m.refunds.MonthlyRefundedAmount(gctx, monthStart)
		return wrap("monthly refunded", err)
	})
	g.Go(func() (err error) {
		out.TotalRevenue, err = m.payments.TotalRevenue(gctx)
		return wrap("total revenue", err)
	})
	g.Go(func() (err error) {
		out.CountBySpeed, err = m.refunds.CountBySpeed(gctx)
		return wrap("count by speed", err)
	})
	g.Go(func() (err error) {
		out.AverageProcessingHours, err = m.refunds.AverageProcessingTimeHours(gctx)
		return wrap("average processing time", err)
	})
	g.Go(func() (err error) {
		points, err = m.refunds.MonthlyTrend(gctx, trendStart)
		return wrap("monthly trend", err)
	})
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out.RefundRate = RefundRate(out.TotalRefunded, out.TotalRevenue)
	out.Trend = padTrend(points, trendStart, trendMonths)
	if out.CountBySpeed == nil {
		out.CountBySpeed = map[models.RefundSpeed]int64{}
	}
	return &out, nil
}

// RefundRate is refunded as a percentage of revenue, rounded to two places; zero
// revenue yields zero.
func RefundRate(refunded, revenue models.Money) float64 {
	if revenue == 0 {
		return 0
	}
	rate := float64(refunded) / float64(revenue) * 100
	return math.Round(rate*100) / 100
}

// padTrend returns one point per calendar month from start, oldest first, filling
// months the store had nothing for with zeroes.
func padTrend(points []models.TrendPoint, start time.Time, months int) []models.TrendPoint {
	byMonth := make(map[string]models.TrendPoint, len(points))
	for _, p := range points {
		byMonth[p.Month] = p
	}
	out := make([]models.TrendPoint, 0, months)
	for i := 0; i < months; i++ {
		key := start.AddDate(0, i, 0).Format("2006-01")
		p, ok := byMonth[key]
		if !ok {
			p = models.TrendPoint{Month: key}
		}
		out = append(out, p)
	}
	return out
}

func (m *MetricsAggregator) History(ctx context.Context, filter models.RefundFilter) (*models.RefundHistoryPage, error) {
	filter = normalizeFilter(filter)
	refunds, total, err := m.refunds.ListAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	page := &models.RefundHistoryPage{
		Refunds:  make([]*models.RefundDTO, 0, len(refunds)),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	for _, r := range refunds {
		page.Refunds = append(page.Refunds, models.NewRefundDTO(r))
	}
	return page, nil
}

func normalizeFilter(f models.RefundFilter) models.RefundFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return f
}

// ExportCSV writes every refund matching the filter's status and date range; its
// paging fields are ignored.
func (m *MetricsAggregator) ExportCSV(ctx context.Context, w io.Writer, filter models.RefundFilter) error {
	if _, err := io.WriteString(w, strings.Join(csvHeader, ",")+"\n"); err != nil {
		return err
	}

	filter.PageSize = exportPageSize
	var written int64
	for page := 1; ; page++ {
		filter.Page = page
		refunds, total, err := m.refunds.ListAll(ctx, filter)
		if err != nil {
			return fmt.Errorf("list refunds for export: %w", err)
		}
		for _, r := range refunds {
			if _, err := io.WriteString(w, csvRow(r)+"\n"); err != nil {
				return err
			}
		}
		written += int64(len(refunds))
		if len(refunds) < exportPageSize || written >= total {
			return nil
		}
	}
}

func csvRow(r *models.Refund) string {
	refundType := ""
	if t := r.RefundType(); t != nil {
		refundType = string(*t)
	}
	processed := ""
	if r.ProcessedAt != nil {
		processed = r.ProcessedAt.Format(csvTimeLayout)
	}
	return strings.Join([]string{
		r.RefundID,
		r.PaymentID,
		quoteField(r.UserEmail),
		r.Amount.Major(),
		r.Currency,
		string(r.Status),
		refundType,
		`"` + sanitizeReason(r.Reason) + `"`,
		quoteField(r.ProcessedBy),
		r.CreatedAt.Format(csvTimeLayout),
		processed,
	}, ",")
}

var reasonReplacer = strings.NewReplacer(
	",", ";",
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
	`"`, `""`,
)

// quoteField quotes s only when it would otherwise break the row.
func quoteField(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func sanitizeReason(s string) string {
	return reasonReplacer.Replace(s)
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
