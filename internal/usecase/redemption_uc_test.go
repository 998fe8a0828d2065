//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgconn"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/repository"
	"business-suite-billing/internal/usecase"
)

func TestRedemptionUseCase_Redeem(t *testing.T) {
	ctx := context.Background()
	testLogger := newTestLogger()
	mockTxManager := NewMockTxManager()

	monthCode := &model.RedemptionCode{
		Code:      "AAAA-BBBB-CCCC",
		Duration:  model.PlanDuration{Months: 1},
		CreatedAt: time.Now(),
	}

	t.Run("should activate a fresh user and consume the code", func(t *testing.T) {
		// --- Arrange ---
		codeRepo := NewMockCodeRepo()
		entRepo := NewMockEntitlementRepo()
		_ = codeRepo.Save(ctx, repository.NoTX, monthCode)

		uc := usecase.NewRedemptionUseCase(codeRepo, entRepo, mockTxManager, testLogger)

		// --- Act ---
		ent, err := uc.Redeem(ctx, "user-123", "aaaa-bbbb-cccc")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if ent.Status != model.EntitlementStatusActive {
			t.Errorf("expected status 'active', got '%s'", ent.Status)
		}
		if ent.ExpiresAt == nil {
			t.Fatal("expected an expiry to be set")
		}
		wantMin := time.Now().AddDate(0, 1, 0).Add(-time.Minute)
		if ent.ExpiresAt.Before(wantMin) {
			t.Errorf("expiry %v is earlier than ~one month from now", ent.ExpiresAt)
		}
		stored, _ := codeRepo.FindByCode(ctx, repository.NoTX, monthCode.Code)
		if !stored.IsUsed {
			t.Error("expected the code to be marked used")
		}
		if saved := entRepo.Stored("user-123"); saved == nil {
			t.Error("expected the entitlement to be persisted")
		}
	})

	t.Run("should stack onto an unexpired entitlement", func(t *testing.T) {
		// --- Arrange ---
		codeRepo := NewMockCodeRepo()
		entRepo := NewMockEntitlementRepo()
		_ = codeRepo.Save(ctx, repository.NoTX, monthCode)

		current := time.Now().Add(10 * 24 * time.Hour)
		entRepo.Seed(&model.Entitlement{
			UserID:    "user-123",
			Status:    model.EntitlementStatusActive,
			ExpiresAt: &current,
		})

		uc := usecase.NewRedemptionUseCase(codeRepo, entRepo, mockTxManager, testLogger)

		// --- Act ---
		ent, err := uc.Redeem(ctx, "user-123", monthCode.Code)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		want := current.AddDate(0, 1, 0)
		if !ent.ExpiresAt.Equal(want) {
			t.Errorf("expected expiry %v (current + 1 month), got %v", want, ent.ExpiresAt)
		}
	})

	t.Run("should return ErrCodeNotFound for an unknown code", func(t *testing.T) {
		codeRepo := NewMockCodeRepo()
		entRepo := NewMockEntitlementRepo()
		uc := usecase.NewRedemptionUseCase(codeRepo, entRepo, mockTxManager, testLogger)

		_, err := uc.Redeem(ctx, "user-123", "ZZZZ-ZZZZ-ZZZZ")
		if !errors.Is(err, domain.ErrCodeNotFound) {
			t.Errorf("expected ErrCodeNotFound, got: %v", err)
		}
	})

	t.Run("should return ErrCodeAlreadyUsed for a spent code", func(t *testing.T) {
		codeRepo := NewMockCodeRepo()
		entRepo := NewMockEntitlementRepo()
		used := *monthCode
		used.IsUsed = true
		_ = codeRepo.Save(ctx, repository.NoTX, &used)

		uc := usecase.NewRedemptionUseCase(codeRepo, entRepo, mockTxManager, testLogger)

		_, err := uc.Redeem(ctx, "user-456", used.Code)
		if !errors.Is(err, domain.ErrCodeAlreadyUsed) {
			t.Errorf("expected ErrCodeAlreadyUsed, got: %v", err)
		}
		if entRepo.Stored("user-456") != nil {
			t.Error("expected no entitlement write for a spent code")
		}
	})

	t.Run("should roll back the entitlement when the consume races", func(t *testing.T) {
		// --- Arrange ---
		// The read sees an unused code, but the conditional consume
		// loses the race. Nothing must persist.
		codeRepo := NewMockCodeRepo()
		entRepo := NewMockEntitlementRepo()
		_ = codeRepo.Save(ctx, repository.NoTX, monthCode)
		codeRepo.ConsumeFunc = func(ctx context.Context, tx repository.Tx, code, userID string) error {
			return domain.ErrCodeAlreadyUsed
		}
		var saved bool
		entRepo.SaveFunc = func(ctx context.Context, tx repository.Tx, ent *model.Entitlement) error {
			saved = true
			return nil
		}

		uc := usecase.NewRedemptionUseCase(codeRepo, entRepo, mockTxManager, testLogger)

		// --- Act ---
		_, err := uc.Redeem(ctx, "user-123", monthCode.Code)

		// --- Assert ---
		if !errors.Is(err, domain.ErrCodeAlreadyUsed) {
			t.Errorf("expected ErrCodeAlreadyUsed, got: %v", err)
		}
		if saved {
			t.Error("entitlement save must come after a successful consume")
		}
	})

	t.Run("should rerun the transaction after a serialization abort", func(t *testing.T) {
		// --- Arrange ---
		// Serializable isolation aborts the loser of a concurrent
		// redemption with SQLSTATE 40001; the rerun sees the committed
		// state and settles cleanly.
		codeRepo := NewMockCodeRepo()
		entRepo := NewMockEntitlementRepo()
		tm := NewMockTxManager()
		_ = codeRepo.Save(ctx, repository.NoTX, monthCode)
		attempts := 0
		codeRepo.ConsumeFunc = func(ctx context.Context, tx repository.Tx, code, userID string) error {
			attempts++
			if attempts == 1 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		}

		uc := usecase.NewRedemptionUseCase(codeRepo, entRepo, tm, testLogger)

		// --- Act ---
		ent, err := uc.Redeem(ctx, "user-123", monthCode.Code)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected the rerun to succeed, but got: %v", err)
		}
		if tm.Calls != 2 {
			t.Errorf("expected 2 transaction attempts, got %d", tm.Calls)
		}
		if ent.Status != model.EntitlementStatusActive {
			t.Errorf("expected status 'active', got '%s'", ent.Status)
		}
	})

	t.Run("should surface a persistent serialization abort as a spent code", func(t *testing.T) {
		// --- Arrange ---
		codeRepo := NewMockCodeRepo()
		entRepo := NewMockEntitlementRepo()
		tm := NewMockTxManager()
		_ = codeRepo.Save(ctx, repository.NoTX, monthCode)
		codeRepo.ConsumeFunc = func(ctx context.Context, tx repository.Tx, code, userID string) error {
			return fmt.Errorf("%w: %w", domain.ErrOperationFailed, &pgconn.PgError{Code: "40001"})
		}

		uc := usecase.NewRedemptionUseCase(codeRepo, entRepo, tm, testLogger)

		// --- Act ---
		_, err := uc.Redeem(ctx, "user-123", monthCode.Code)

		// --- Assert ---
		if !errors.Is(err, domain.ErrCodeAlreadyUsed) {
			t.Errorf("expected ErrCodeAlreadyUsed, got: %v", err)
		}
		if tm.Calls != 2 {
			t.Errorf("expected exactly one retry, got %d attempts", tm.Calls)
		}
	})

	t.Run("should reject empty input", func(t *testing.T) {
		uc := usecase.NewRedemptionUseCase(NewMockCodeRepo(), NewMockEntitlementRepo(), mockTxManager, testLogger)

		if _, err := uc.Redeem(ctx, "", "AAAA-BBBB-CCCC"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty user, got: %v", err)
		}
		if _, err := uc.Redeem(ctx, "user-123", "   "); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for blank code, got: %v", err)
		}
	})
}

func TestRedemptionUseCase_GenerateCode(t *testing.T) {
	ctx := context.Background()
	testLogger := newTestLogger()
	mockTxManager := NewMockTxManager()

	t.Run("should mint a well-formed unused code", func(t *testing.T) {
		codeRepo := NewMockCodeRepo()
		uc := usecase.NewRedemptionUseCase(codeRepo, NewMockEntitlementRepo(), mockTxManager, testLogger)

		code, err := uc.GenerateCode(ctx, model.PlanDuration{Months: 3})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		parts := strings.Split(code.Code, "-")
		if len(parts) != 3 {
			t.Fatalf("expected XXXX-XXXX-XXXX format, got %q", code.Code)
		}
		for _, p := range parts {
			if len(p) != 4 {
				t.Errorf("expected 4-char groups, got %q", code.Code)
			}
		}
		if code.IsUsed {
			t.Error("fresh codes must start unused")
		}
		if _, err := codeRepo.FindByCode(ctx, repository.NoTX, code.Code); err != nil {
			t.Errorf("expected the code to be persisted: %v", err)
		}
	})

	t.Run("should reject a zero duration", func(t *testing.T) {
		uc := usecase.NewRedemptionUseCase(NewMockCodeRepo(), NewMockEntitlementRepo(), mockTxManager, testLogger)

		if _, err := uc.GenerateCode(ctx, model.PlanDuration{}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got: %v", err)
		}
	})
}

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"aaaa-bbbb-cccc", "AAAA-BBBB-CCCC"},
		{"  AAAA-BBBB-CCCC  ", "AAAA-BBBB-CCCC"},
		{"", ""},
	}
	for _, c := range cases {
		if got := usecase.NormalizeCode(c.in); got != c.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
