//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/adapter"
	"business-suite-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so test output stays
// readable.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Calls      int
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately with NoTX unless a test installs
// its own WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Redemption codes ----

type MockCodeRepo struct {
	mu    sync.Mutex
	store map[string]*model.RedemptionCode

	SaveFunc       func(ctx context.Context, tx repository.Tx, code *model.RedemptionCode) error
	FindByCodeFunc func(ctx context.Context, tx repository.Tx, code string) (*model.RedemptionCode, error)
	ConsumeFunc    func(ctx context.Context, tx repository.Tx, code, userID string) error
}

func NewMockCodeRepo() *MockCodeRepo {
	return &MockCodeRepo{store: make(map[string]*model.RedemptionCode)}
}

var _ repository.RedemptionCodeRepository = (*MockCodeRepo)(nil)

func (m *MockCodeRepo) Save(ctx context.Context, tx repository.Tx, code *model.RedemptionCode) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *code
	m.store[code.Code] = &cp
	return nil
}

func (m *MockCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.RedemptionCode, error) {
	if m.FindByCodeFunc != nil {
		return m.FindByCodeFunc(ctx, tx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[code]
	if !ok {
		return nil, domain.ErrCodeNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCodeRepo) Consume(ctx context.Context, tx repository.Tx, code, userID string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, tx, code, userID)
	}
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

// ---- Entitlements ----

type MockEntitlementRepo struct {
	mu    sync.Mutex
	store map[string]*model.Entitlement
	Locks int

	FindByUserIDFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.Entitlement, error)
	SaveFunc         func(ctx context.Context, tx repository.Tx, ent *model.Entitlement) error
	LockUserFunc     func(ctx context.Context, tx repository.Tx, userID string) error
}

func NewMockEntitlementRepo() *MockEntitlementRepo {
	return &MockEntitlementRepo{store: make(map[string]*model.Entitlement)}
}

var _ repository.EntitlementRepository = (*MockEntitlementRepo)(nil)

func (m *MockEntitlementRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Entitlement, error) {
	if m.FindByUserIDFunc != nil {
		return m.FindByUserIDFunc(ctx, tx, userID)
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

func (m *MockEntitlementRepo) Save(ctx context.Context, tx repository.Tx, ent *model.Entitlement) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, ent)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ent
	m.store[ent.UserID] = &cp
	return nil
}

func (m *MockEntitlementRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	if m.LockUserFunc != nil {
		return m.LockUserFunc(ctx, tx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locks++
	return nil
}

// Seed puts an entitlement into the store without going through Save
// hooks.
func (m *MockEntitlementRepo) Seed(ent *model.Entitlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ent
	m.store[ent.UserID] = &cp
}

// Stored retrieves the raw stored record for assertions.
func (m *MockEntitlementRepo) Stored(userID string) *model.Entitlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[userID]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// ---- Processed payments ledger ----

type MockProcessedPaymentRepo struct {
	mu      sync.Mutex
	applied map[string]struct{}

	MarkAppliedFunc func(ctx context.Context, tx repository.Tx, p *model.ProcessedPayment) (bool, error)
	ExistsFunc      func(ctx context.Context, tx repository.Tx, paymentID string) (bool, error)
}

func NewMockProcessedPaymentRepo() *MockProcessedPaymentRepo {
	return &MockProcessedPaymentRepo{applied: make(map[string]struct{})}
}

var _ repository.ProcessedPaymentRepository = (*MockProcessedPaymentRepo)(nil)

func (m *MockProcessedPaymentRepo) MarkApplied(ctx context.Context, tx repository.Tx, p *model.ProcessedPayment) (bool, error) {
	if m.MarkAppliedFunc != nil {
		return m.MarkAppliedFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.applied[p.PaymentID]; dup {
		return false, nil
	}
	m.applied[p.PaymentID] = struct{}{}
	return true, nil
}

func (m *MockProcessedPaymentRepo) Exists(ctx context.Context, tx repository.Tx, paymentID string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, tx, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.applied[paymentID]
	return ok, nil
}

// ---- Checkout provider ----

type MockProvider struct {
	CreateCheckoutFunc func(ctx context.Context, plan *model.Plan, externalReference string) (string, string, error)
	GetPaymentFunc     func(ctx context.Context, paymentID string) (*model.PaymentInfo, error)
}

var _ adapter.CheckoutProvider = (*MockProvider)(nil)

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) CreateCheckout(ctx context.Context, plan *model.Plan, externalReference string) (string, string, error) {
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(ctx, plan, externalReference)
	}
	return "pref-1", "https://pay.example/pref-1", nil
}

func (m *MockProvider) GetPayment(ctx context.Context, paymentID string) (*model.PaymentInfo, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, paymentID)
	}
	return nil, domain.ErrNotFound
}

// ---- Applied cache ----

type MockAppliedCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMockAppliedCache() *MockAppliedCache {
	return &MockAppliedCache{seen: make(map[string]struct{})}
}

func (m *MockAppliedCache) Seen(ctx context.Context, paymentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[paymentID]
	return ok
}

func (m *MockAppliedCache) Remember(ctx context.Context, paymentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[paymentID] = struct{}{}
}
