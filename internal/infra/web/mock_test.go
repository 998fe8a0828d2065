//go:build !integration

package web

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Mock Repositories (Ports) ---

type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

type mockEntRepo struct {
	mu      sync.Mutex
	store   map[string]*model.Entitlement
	FindErr error
	SaveErr error
}

func newMockEntRepo() *mockEntRepo {
	return &mockEntRepo{store: make(map[string]*model.Entitlement)}
}

func (m *mockEntRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Entitlement, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockEntRepo) Save(ctx context.Context, tx repository.Tx, ent *model.Entitlement) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ent
	m.store[ent.UserID] = &cp
	return nil
}

func (m *mockEntRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	return nil
}

func (m *mockEntRepo) seed(ent *model.Entitlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ent
	m.store[ent.UserID] = &cp
}

type mockCodeRepo struct {
	mu    sync.Mutex
	store map[string]*model.RedemptionCode
}

func newMockCodeRepo() *mockCodeRepo {
	return &mockCodeRepo{store: make(map[string]*model.RedemptionCode)}
}

func (m *mockCodeRepo) Save(ctx context.Context, tx repository.Tx, code *model.RedemptionCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *code
	m.store[code.Code] = &cp
	return nil
}

func (m *mockCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.RedemptionCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
	if !ok {
		return nil, domain.ErrCodeNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCodeRepo) Consume(ctx context.Context, tx repository.Tx, code, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
	if !ok || c.IsUsed {
		return domain.ErrCodeAlreadyUsed
	}
	c.IsUsed = true
	c.UsedByUserID = &userID
	return nil
}

type mockLedger struct {
	mu      sync.Mutex
	applied map[string]struct{}
}

func newMockLedger() *mockLedger {
	return &mockLedger{applied: make(map[string]struct{})}
}

func (m *mockLedger) MarkApplied(ctx context.Context, tx repository.Tx, p *model.ProcessedPayment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.applied[p.PaymentID]; dup {
		return false, nil
	}
	m.applied[p.PaymentID] = struct{}{}
	return true, nil
}

func (m *mockLedger) Exists(ctx context.Context, tx repository.Tx, paymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.applied[paymentID]
	return ok, nil
}

// --- Mock provider ---

type mockProvider struct {
	CreateCheckoutFunc func(ctx context.Context, plan *model.Plan, externalReference string) (string, string, error)
	GetPaymentFunc     func(ctx context.Context, paymentID string) (*model.PaymentInfo, error)
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) CreateCheckout(ctx context.Context, plan *model.Plan, externalReference string) (string, string, error) {
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(ctx, plan, externalReference)
	}
	return "pref-1", "https://pay.example/pref-1", nil
}

func (m *mockProvider) GetPayment(ctx context.Context, paymentID string) (*model.PaymentInfo, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, paymentID)
	}
	return nil, domain.ErrNotFound
}

// --- Mock entitlement observer (gate tests) ---

type mockObserver struct {
	ent *model.Entitlement
	err error
}

func (m *mockObserver) Observe(ctx context.Context, userID string) (*model.Entitlement, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.ent != nil {
		return m.ent, nil
	}
	return model.NewEntitlement(userID, time.Now()), nil
}
