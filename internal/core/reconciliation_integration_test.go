package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
)

func setupReconTestDB(t *testing.T) (*pgxpool.Pool, core.ReconciliationService, core.OrderLedgerService) {
	pool := setupTestDB(t)

	rules := core.NewRuleService(pool)
	seedDefaultRules(t, rules)

	companies := core.NewCompanyService(pool)
	recons := core.NewReconciliationService(pool, companies)
	ledger := core.NewOrderLedgerService(pool, rules)
	return pool, recons, ledger
}

func recordOrder(t *testing.T, ledger core.OrderLedgerService, orderID string, distance int64, status core.OrderStatus, occurredAt time.Time) {
	t.Helper()
	_, err := ledger.RecordOrderOutcome(context.Background(), core.OrderOutcome{
		OrderID:     orderID,
		CompanyCode: "ACME",
		Distance:    decimal.NewFromInt(distance),
		Status:      status,
		OccurredAt:  occurredAt,
	})
	if err != nil {
		t.Fatalf("failed to record order %s: %v", orderID, err)
	}
}

func TestReconciliation_GenerateDailyAggregates(t *testing.T) {
	pool, recons, ledger := setupReconTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recordOrder(t, ledger, "ord-1", 10, core.OrderDelivered, day.Add(9*time.Hour))  // 30.00
	recordOrder(t, ledger, "ord-2", 5, core.OrderDelivered, day.Add(12*time.Hour)) // 20.00
	recordOrder(t, ledger, "ord-3", 8, core.OrderCancelled, day.Add(15*time.Hour)) // 0
	// Next day, must not leak into June 1.
	recordOrder(t, ledger, "ord-4", 10, core.OrderDelivered, day.Add(25*time.Hour))

	recon, err := recons.GenerateDaily(ctx, "ACME", "2025-06-01")
	if err != nil {
		t.Fatalf("GenerateDaily failed: %v", err)
	}

	if recon.TotalOrders != 3 || recon.DeliveredOrders != 2 || recon.CancelledOrders != 1 {
		t.Errorf("unexpected counts: %+v", recon)
	}
	if !recon.TotalAmount.Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("expected total 50.00, got %s", recon.TotalAmount)
	}
	// Gross billing: net equals the delivered total.
	if !recon.NetAmount.Equal(recon.TotalAmount) {
		t.Errorf("expected net == total, got net %s total %s", recon.NetAmount, recon.TotalAmount)
	}
	if !recon.RemainingAmount.Equal(recon.NetAmount) || !recon.PaidAmount.IsZero() {
		t.Errorf("fresh reconciliation must be fully unpaid: %+v", recon)
	}
	if recon.Status != core.ReconPending {
		t.Errorf("expected PENDING, got %s", recon.Status)
	}
	// commission 15% of 50 = 7.50, courier cost the rest
	if !recon.PlatformCommission.Equal(decimal.RequireFromString("7.50")) {
		t.Errorf("expected commission 7.50, got %s", recon.PlatformCommission)
	}
	if !recon.CourierCost.Equal(decimal.RequireFromString("42.50")) {
		t.Errorf("expected courier cost 42.50, got %s", recon.CourierCost)
	}
}

func TestReconciliation_RegenerationIsIdempotent(t *testing.T) {
	pool, recons, ledger := setupReconTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recordOrder(t, ledger, "ord-1", 10, core.OrderDelivered, day.Add(9*time.Hour))

	first, err := recons.GenerateDaily(ctx, "ACME", "2025-06-01")
	if err != nil {
		t.Fatalf("first GenerateDaily failed: %v", err)
	}
	second, err := recons.GenerateDaily(ctx, "ACME", "2025-06-01")
	if err != nil {
		t.Fatalf("second GenerateDaily failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("regeneration created a new row: %d vs %d", first.ID, second.ID)
	}
	if !first.NetAmount.Equal(second.NetAmount) || first.TotalOrders != second.TotalOrders {
		t.Errorf("regeneration changed amounts with no new orders: %+v vs %+v", first, second)
	}

	var count int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM daily_reconciliations WHERE company_id = 1",
	).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one reconciliation row, got %d", count)
	}
}

func TestReconciliation_RegenerationPreservesPayments(t *testing.T) {
	pool, recons, ledger := setupReconTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recordOrder(t, ledger, "ord-1", 10, core.OrderDelivered, day.Add(9*time.Hour)) // net 30

	recon, err := recons.GenerateDaily(ctx, "ACME", "2025-06-01")
	if err != nil {
		t.Fatalf("GenerateDaily failed: %v", err)
	}

	payments := core.NewPaymentService(pool)
	if _, err := payments.ApplyPayment(ctx, core.ApplyPaymentRequest{
		CompanyCode:      "ACME",
		Amount:           decimal.RequireFromString("12.00"),
		PaymentMethod:    "BANK_TRANSFER",
		ReconciliationID: &recon.ID,
	}); err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}

	// New order lands on the same day, then the day is regenerated.
	recordOrder(t, ledger, "ord-2", 5, core.OrderDelivered, day.Add(18*time.Hour)) // +20

	regen, err := recons.GenerateDaily(ctx, "ACME", "2025-06-01")
	if err != nil {
		t.Fatalf("regeneration failed: %v", err)
	}

	if !regen.PaidAmount.Equal(decimal.RequireFromString("12.00")) {
		t.Errorf("regeneration reset paid amount: %s", regen.PaidAmount)
	}
	if regen.Status != core.ReconPartiallyPaid {
		t.Errorf("regeneration reset status: %s", regen.Status)
	}
	if !regen.NetAmount.Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("expected recomputed net 50.00, got %s", regen.NetAmount)
	}
	if !regen.RemainingAmount.Equal(decimal.RequireFromString("38.00")) {
		t.Errorf("expected remaining 38.00, got %s", regen.RemainingAmount)
	}
	if !regen.PaidAmount.Add(regen.RemainingAmount).Equal(regen.NetAmount) {
		t.Errorf("conservation violated: %s + %s != %s", regen.PaidAmount, regen.RemainingAmount, regen.NetAmount)
	}

	detail, err := recons.GetReconciliation(ctx, recon.ID)
	if err != nil {
		t.Fatalf("GetReconciliation failed: %v", err)
	}
	if len(detail.Payments) != 1 {
		t.Errorf("payment history altered by regeneration: %+v", detail.Payments)
	}
	if len(detail.Orders) != 2 {
		t.Errorf("expected 2 orders in detail, got %d", len(detail.Orders))
	}
}

func TestReconciliation_BatchIsolatesFailures(t *testing.T) {
	pool, recons, ledger := setupReconTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recordOrder(t, ledger, "ord-1", 10, core.OrderDelivered, day.Add(9*time.Hour))

	// A company with a broken timezone must fail alone, not abort the run.
	if _, err := pool.Exec(ctx, `
		INSERT INTO companies (company_code, name, timezone, is_active)
		VALUES ('BRKN', 'Broken Co', 'Not/AZone', true)
	`); err != nil {
		t.Fatalf("failed to insert broken company: %v", err)
	}

	results, err := recons.GenerateForAllActive(ctx, "2025-06-01")
	if err != nil {
		t.Fatalf("GenerateForAllActive failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 per-company results, got %d", len(results))
	}

	byCode := make(map[string]core.GenerationResult)
	for _, r := range results {
		byCode[r.CompanyCode] = r
	}
	if byCode["ACME"].Error != "" || byCode["ACME"].Reconciliation == nil {
		t.Errorf("ACME should succeed: %+v", byCode["ACME"])
	}
	if byCode["BETA"].Error != "" {
		t.Errorf("BETA (no orders) should still produce an empty statement: %+v", byCode["BETA"])
	}
	if byCode["BRKN"].Error == "" {
		t.Errorf("BRKN should report its failure: %+v", byCode["BRKN"])
	}
}

func TestReconciliation_StatusTransitions(t *testing.T) {
	pool, recons, ledger := setupReconTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recordOrder(t, ledger, "ord-1", 10, core.OrderDelivered, day.Add(9*time.Hour))
	recon, err := recons.GenerateDaily(ctx, "ACME", "2025-06-01")
	if err != nil {
		t.Fatalf("GenerateDaily failed: %v", err)
	}

	if _, err := recons.UpdateStatus(ctx, recon.ID, core.ReconRejected, ""); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("rejection without reason must fail with ErrInvalidInput, got %v", err)
	}

	approved, err := recons.UpdateStatus(ctx, recon.ID, core.ReconApproved, "checked by ops")
	if err != nil {
		t.Fatalf("approval failed: %v", err)
	}
	if approved.Status != core.ReconApproved {
		t.Errorf("expected APPROVED, got %s", approved.Status)
	}

	if _, err := recons.UpdateStatus(ctx, recon.ID, core.ReconRejected, "too late"); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("rejecting an approved statement must fail, got %v", err)
	}

	if _, err := recons.UpdateStatus(ctx, recon.ID, core.ReconPaid, ""); !errors.Is(err, core.ErrInvalidOperation) {
		t.Errorf("manual PAID must fail with ErrInvalidOperation, got %v", err)
	}

	overdue, err := recons.UpdateStatus(ctx, recon.ID, core.ReconOverdue, "")
	if err != nil {
		t.Fatalf("overdue transition failed: %v", err)
	}
	if !overdue.NetAmount.Equal(recon.NetAmount) || !overdue.PaidAmount.Equal(recon.PaidAmount) {
		t.Errorf("OVERDUE must not alter amounts: %+v", overdue)
	}
}
