package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/akylbek/payment-system/refund-reconciler/internal/gateway"
	"github.com/akylbek/payment-system/refund-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/refund-reconciler/internal/models"
)

// memStore is an in-memory RefundStore with the same conditional-write semantics as
// the Postgres store.
type memStore struct {
	mu        sync.Mutex
	refunds   map[string]*models.Refund
	createErr error
	updates   int

	// last reconciliation time per refund id
	reconciled map[string]time.Time
}

func newMemStore(refunds ...*models.Refund) *memStore {
	s := &memStore{refunds: map[string]*models.Refund{}, reconciled: map[string]time.Time{}}
	for _, r := range refunds {
		s.refunds[r.RefundID] = r
	}
	return s
}

func (s *memStore) Get(ctx context.Context, id string) (*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refunds[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) Create(ctx context.Context, r *models.Refund) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return false, s.createErr
	}
	if _, ok := s.refunds[r.RefundID]; ok {
		return false, nil
	}
	cp := *r
	s.refunds[r.RefundID] = &cp
	return true, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, t models.StatusTransition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refunds[t.RefundID]
	if !ok || r.Status != t.From {
		return false, nil
	}
	updated := applyTransition(r, t)
	s.refunds[t.RefundID] = updated
	s.updates++
	return true, nil
}

func (s *memStore) ListByPayment(ctx context.Context, paymentID string) ([]*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Refund
	for _, r := range s.refunds {
		if r.PaymentID == paymentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RefundID < out[j].RefundID })
	return out, nil
}

func (s *memStore) TotalRefundedForPayment(ctx context.Context, paymentID string) (models.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total models.Money
	for _, r := range s.refunds {
		if r.PaymentID == paymentID && r.Status != models.RefundFailed {
			total += r.Amount
		}
	}
	return total, nil
}

func (s *memStore) ListAll(ctx context.Context, f models.RefundFilter) ([]*models.Refund, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*models.Refund
	for _, r := range s.refunds {
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RefundID < all[j].RefundID })
	start := (f.Page - 1) * f.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + f.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (s *memStore) ListPendingOlderThan(ctx context.Context, before time.Time, limit int) ([]*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Refund
	for _, r := range s.refunds {
		if r.Status == models.RefundPending && r.CreatedAt.Before(before) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, iok := s.reconciled[out[i].RefundID]
		tj, jok := s.reconciled[out[j].RefundID]
		if iok != jok {
			return !iok
		}
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].RefundID < out[j].RefundID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) MarkReconciled(ctx context.Context, refundIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range refundIDs {
		s.reconciled[id] = at
	}
	return nil
}

func (s *memStore) TotalRefundedAmount(ctx context.Context) (models.Money, error) {
	return 0, nil
}

func (s *memStore) MonthlyRefundedAmount(ctx context.Context, month time.Time) (models.Money, error) {
	return 0, nil
}

func (s *memStore) CountBySpeed(ctx context.Context) (map[models.RefundSpeed]int64, error) {
	return nil, nil
}

func (s *memStore) AverageProcessingTimeHours(ctx context.Context) (float64, error) {
	return 0, nil
}

func (s *memStore) MonthlyTrend(ctx context.Context, since time.Time) ([]models.TrendPoint, error) {
	return nil, nil
}

func (s *memStore) status(id string) models.RefundStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refunds[id].Status
}

type mockPayments struct {
	payments map[string]*models.Payment
	revenue  models.Money
	err      error
}

func (m *mockPayments) GetByGatewayID(ctx context.Context, id string) (*models.Payment, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.payments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (m *mockPayments) TotalRevenue(ctx context.Context) (models.Money, error) {
	return m.revenue, m.err
}

// mockGateway hands out sequential refund ids and records what it was asked.
type mockGateway struct {
	mu        sync.Mutex
	next      int
	status    string
	createErr error
	listErr   error
	listed    []gateway.RefundResponse
	requests  []gateway.CreateRefundRequest
	delay     time.Duration
}

func (g *mockGateway) CreateRefund(ctx context.Context, req gateway.CreateRefundRequest) (*gateway.RefundResponse, error) {
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.next++
	status := g.status
	if status == "" {
		status = "pending"
	}
	return &gateway.RefundResponse{
		ID:             refundIDFor(g.next),
		Entity:         "refund",
		Amount:         req.Amount,
		Currency:       "INR",
		PaymentID:      req.PaymentID,
		Status:         status,
		SpeedRequested: req.Speed,
	}, nil
}

func (g *mockGateway) ListRefunds(ctx context.Context, paymentID string) ([]gateway.RefundResponse, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]gateway.RefundResponse, len(g.listed))
	copy(out, g.listed)
	return out, nil
}

func refundIDFor(n int) string {
	return "rfnd_" + string(rune('A'+n-1))
}

type mockUsers struct {
	users map[string]*models.User
}

func (m *mockUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

type sentMessage struct {
	Token, Title, Body string
}

type mockSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockSender) Send(ctx context.Context, token, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{token, title, body})
	return nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// mockCanceller replays results in order, repeating the last one.
type mockCanceller struct {
	mu      sync.Mutex
	results []interfaces.CancelResult
	errs    []error
	calls   int
}

func (m *mockCanceller) CancelUserSubscription(ctx context.Context, admin, target string) (interfaces.CancelResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	var err error
	if len(m.errs) > 0 {
		err = m.errs[min(i, len(m.errs)-1)]
	}
	res := interfaces.CancelResult{Success: true}
	if len(m.results) > 0 {
		res = m.results[min(i, len(m.results)-1)]
	}
	return res, err
}

type staticSecrets map[string]string

func (s staticSecrets) GetSecret(ctx context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", errors.New("secret not found")
	}
	return v, nil
}

// memLocker is a process-local Locker.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}

type publishedEvent struct {
	RefundID string
	Status   models.RefundStatus
	Previous models.RefundStatus
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (m *mockPublisher) PublishRefundEvent(ctx context.Context, r *models.Refund, previous models.RefundStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{r.RefundID, r.Status, previous})
	return nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }
