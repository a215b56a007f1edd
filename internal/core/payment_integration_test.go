package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
)

// setupPaymentTestDB seeds one ACME reconciliation for 2025-06-01 with a
// net amount of 100.00 (two delivered orders of 30 and 70).
func setupPaymentTestDB(t *testing.T) (*pgxpool.Pool, core.PaymentService, core.ReconciliationService, *core.DailyReconciliation) {
	pool := setupTestDB(t)
	ctx := context.Background()

	rules := core.NewRuleService(pool)
	if _, err := rules.CreateRule(ctx, "base", core.RuleBaseFee, []byte(`{"amount": 0}`), 1); err != nil {
		t.Fatalf("failed to seed base rule: %v", err)
	}
	if _, err := rules.CreateRule(ctx, "per km", core.RuleDistance, []byte(`{"pricePerKm": 1}`), 2); err != nil {
		t.Fatalf("failed to seed distance rule: %v", err)
	}

	ledger := core.NewOrderLedgerService(pool, rules)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, o := range []struct {
		id       string
		distance int64
	}{{"ord-1", 30}, {"ord-2", 70}} {
		if _, err := ledger.RecordOrderOutcome(ctx, core.OrderOutcome{
			OrderID:     o.id,
			CompanyCode: "ACME",
			Distance:    decimal.NewFromInt(o.distance),
			Status:      core.OrderDelivered,
			OccurredAt:  day.Add(10 * time.Hour),
		}); err != nil {
			t.Fatalf("failed to record order %s: %v", o.id, err)
		}
	}

	companies := core.NewCompanyService(pool)
	recons := core.NewReconciliationService(pool, companies)
	recon, err := recons.GenerateDaily(ctx, "ACME", "2025-06-01")
	if err != nil {
		t.Fatalf("GenerateDaily failed: %v", err)
	}
	if !recon.NetAmount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("test setup expects net 100.00, got %s", recon.NetAmount)
	}

	return pool, core.NewPaymentService(pool), recons, recon
}

func TestPayment_PartialThenFullThenRejected(t *testing.T) {
	pool, payments, recons, recon := setupPaymentTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	pay := func(amount string) error {
		_, err := payments.ApplyPayment(ctx, core.ApplyPaymentRequest{
			CompanyCode:      "ACME",
			Amount:           decimal.RequireFromString(amount),
			PaymentMethod:    "BANK_TRANSFER",
			ReconciliationID: &recon.ID,
		})
		return err
	}

	if err := pay("60.00"); err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	detail, err := recons.GetReconciliation(ctx, recon.ID)
	if err != nil {
		t.Fatalf("GetReconciliation failed: %v", err)
	}
	if !detail.PaidAmount.Equal(decimal.RequireFromString("60.00")) ||
		!detail.RemainingAmount.Equal(decimal.RequireFromString("40.00")) ||
		detail.Status != core.ReconPartiallyPaid {
		t.Errorf("after 60: paid=%s remaining=%s status=%s", detail.PaidAmount, detail.RemainingAmount, detail.Status)
	}

	if err := pay("40.00"); err != nil {
		t.Fatalf("second payment failed: %v", err)
	}
	detail, err = recons.GetReconciliation(ctx, recon.ID)
	if err != nil {
		t.Fatalf("GetReconciliation failed: %v", err)
	}
	if !detail.RemainingAmount.IsZero() || detail.Status != core.ReconPaid {
		t.Errorf("after 100: remaining=%s status=%s", detail.RemainingAmount, detail.Status)
	}

	if err := pay("0.01"); !errors.Is(err, core.ErrInvalidOperation) {
		t.Errorf("payment against a settled statement must fail with ErrInvalidOperation, got %v", err)
	}
}

func TestPayment_OverpaymentLeavesNoPartialState(t *testing.T) {
	pool, payments, recons, recon := setupPaymentTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	_, err := payments.ApplyPayment(ctx, core.ApplyPaymentRequest{
		CompanyCode:      "ACME",
		Amount:           decimal.RequireFromString("150.00"),
		PaymentMethod:    "BANK_TRANSFER",
		ReconciliationID: &recon.ID,
	})
	if !errors.Is(err, core.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}

	// Atomicity: no payment row written, amounts untouched.
	var count int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM company_payments WHERE reconciliation_id = $1", recon.ID,
	).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("rejected payment left %d ledger rows behind", count)
	}
	detail, err := recons.GetReconciliation(ctx, recon.ID)
	if err != nil {
		t.Fatalf("GetReconciliation failed: %v", err)
	}
	if !detail.PaidAmount.IsZero() || detail.Status != core.ReconPending {
		t.Errorf("rejected payment mutated the statement: %+v", detail.DailyReconciliation)
	}
}

func TestPayment_NonPositiveAmountRejected(t *testing.T) {
	pool, payments, _, _ := setupPaymentTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	for _, amount := range []string{"0", "-25.00"} {
		_, err := payments.ApplyPayment(ctx, core.ApplyPaymentRequest{
			CompanyCode:   "ACME",
			Amount:        decimal.RequireFromString(amount),
			PaymentMethod: "CASH",
		})
		if !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("amount %s: expected ErrInvalidInput, got %v", amount, err)
		}
	}
}

func TestPayment_DuplicateReferenceRejected(t *testing.T) {
	pool, payments, _, recon := setupPaymentTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	ref := uuid.NewString()
	req := core.ApplyPaymentRequest{
		CompanyCode:          "ACME",
		Amount:               decimal.RequireFromString("10.00"),
		PaymentMethod:        "BANK_TRANSFER",
		ReconciliationID:     &recon.ID,
		TransactionReference: ref,
	}
	if _, err := payments.ApplyPayment(ctx, req); err != nil {
		t.Fatalf("first payment failed: %v", err)
	}

	// A client retry with the same reference must not double-apply.
	if _, err := payments.ApplyPayment(ctx, req); !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected ErrConflict on retried reference, got %v", err)
	}

	var paid decimal.Decimal
	if err := pool.QueryRow(ctx,
		"SELECT paid_amount FROM daily_reconciliations WHERE id = $1", recon.ID,
	).Scan(&paid); err != nil {
		t.Fatalf("paid query failed: %v", err)
	}
	if !paid.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("retry double-applied: paid=%s", paid)
	}
}

func TestPayment_RejectedReconciliationAcceptsNoPayments(t *testing.T) {
	pool, payments, recons, recon := setupPaymentTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	if _, err := recons.UpdateStatus(ctx, recon.ID, core.ReconRejected, "disputed by company"); err != nil {
		t.Fatalf("rejection failed: %v", err)
	}

	_, err := payments.ApplyPayment(ctx, core.ApplyPaymentRequest{
		CompanyCode:      "ACME",
		Amount:           decimal.RequireFromString("10.00"),
		PaymentMethod:    "BANK_TRANSFER",
		ReconciliationID: &recon.ID,
	})
	if !errors.Is(err, core.ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestRefund_BoundsAndFullRefund(t *testing.T) {
	pool, payments, recons, recon := setupPaymentTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	payment, err := payments.ApplyPayment(ctx, core.ApplyPaymentRequest{
		CompanyCode:      "ACME",
		Amount:           decimal.RequireFromString("50.00"),
		PaymentMethod:    "CREDIT_CARD",
		ReconciliationID: &recon.ID,
	})
	if err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}

	tooMuch := decimal.RequireFromString("70.00")
	if _, err := payments.Refund(ctx, payment.ID, "customer complaint", &tooMuch); !errors.Is(err, core.ErrInvalidOperation) {
		t.Errorf("refund above captured amount must fail, got %v", err)
	}

	refund, err := payments.Refund(ctx, payment.ID, "customer complaint", nil)
	if err != nil {
		t.Fatalf("full refund failed: %v", err)
	}
	if !refund.Amount.Equal(decimal.RequireFromString("-50.00")) {
		t.Errorf("expected refund row of -50.00, got %s", refund.Amount)
	}
	if refund.RelatedPaymentID == nil || *refund.RelatedPaymentID != payment.ID {
		t.Errorf("refund not linked to original: %+v", refund)
	}
	if refund.PaymentType != core.PaymentRefund {
		t.Errorf("expected REFUND type, got %s", refund.PaymentType)
	}

	original, err := payments.GetPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if original.Status != core.PaymentRefunded {
		t.Errorf("expected original REFUNDED, got %s", original.Status)
	}
	if !original.RefundedAmount.Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("expected refunded_amount 50.00, got %s", original.RefundedAmount)
	}

	// The refund flows back into the statement the payment fed.
	detail, err := recons.GetReconciliation(ctx, recon.ID)
	if err != nil {
		t.Fatalf("GetReconciliation failed: %v", err)
	}
	if !detail.PaidAmount.IsZero() {
		t.Errorf("expected paid back to zero, got %s", detail.PaidAmount)
	}
	if !detail.RemainingAmount.Equal(detail.NetAmount) {
		t.Errorf("conservation violated after refund: %+v", detail.DailyReconciliation)
	}

	// A fully refunded payment cannot be refunded again.
	if _, err := payments.Refund(ctx, payment.ID, "again", nil); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("second refund must fail with ErrInvalidState, got %v", err)
	}
}

func TestRefund_PartialKeepsRunningTotal(t *testing.T) {
	pool, payments, _, recon := setupPaymentTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	payment, err := payments.ApplyPayment(ctx, core.ApplyPaymentRequest{
		CompanyCode:      "ACME",
		Amount:           decimal.RequireFromString("80.00"),
		PaymentMethod:    "CREDIT_CARD",
		ReconciliationID: &recon.ID,
	})
	if err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}

	part := decimal.RequireFromString("30.00")
	if _, err := payments.Refund(ctx, payment.ID, "partial dispute", &part); err != nil {
		t.Fatalf("partial refund failed: %v", err)
	}

	original, err := payments.GetPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if original.Status != core.PaymentPartiallyRefunded {
		t.Errorf("expected PARTIALLY_REFUNDED, got %s", original.Status)
	}

	// Remaining refundable is 50; asking for 60 must fail, 50 succeeds.
	over := decimal.RequireFromString("60.00")
	if _, err := payments.Refund(ctx, payment.ID, "too much", &over); !errors.Is(err, core.ErrInvalidOperation) {
		t.Errorf("refund above unrefunded remainder must fail, got %v", err)
	}
	rest := decimal.RequireFromString("50.00")
	if _, err := payments.Refund(ctx, payment.ID, "close out", &rest); err != nil {
		t.Fatalf("closing refund failed: %v", err)
	}
	original, _ = payments.GetPayment(ctx, payment.ID)
	if original.Status != core.PaymentRefunded {
		t.Errorf("expected REFUNDED after closing refund, got %s", original.Status)
	}
}

func TestBalance_NetsUntiedPaymentsAgainstDebt(t *testing.T) {
	pool, payments, _, recon := setupPaymentTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	// 25 tied to the statement, 30 as untied manual credit.
	if _, err := payments.ApplyPayment(ctx, core.ApplyPaymentRequest{
		CompanyCode:      "ACME",
		Amount:           decimal.RequireFromString("25.00"),
		PaymentMethod:    "BANK_TRANSFER",
		ReconciliationID: &recon.ID,
	}); err != nil {
		t.Fatalf("tied payment failed: %v", err)
	}
	if _, err := payments.ApplyPayment(ctx, core.ApplyPaymentRequest{
		CompanyCode:   "ACME",
		Amount:        decimal.RequireFromString("30.00"),
		PaymentMethod: "CASH",
		Description:   "on-account payment",
	}); err != nil {
		t.Fatalf("manual payment failed: %v", err)
	}

	reporting := core.NewReportingService(pool)
	balance, err := reporting.GetCompanyBalance(ctx, "ACME")
	if err != nil {
		t.Fatalf("GetCompanyBalance failed: %v", err)
	}

	// remaining 75 minus untied 30
	if !balance.CurrentDebt.Equal(decimal.RequireFromString("45.00")) {
		t.Errorf("expected current debt 45.00, got %s", balance.CurrentDebt)
	}
	if !balance.TotalDebts.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("expected total debts 100.00, got %s", balance.TotalDebts)
	}
	if !balance.TotalPayments.Equal(decimal.RequireFromString("55.00")) {
		t.Errorf("expected total payments 55.00, got %s", balance.TotalPayments)
	}
	if balance.PaymentCount != 2 {
		t.Errorf("expected 2 payments, got %d", balance.PaymentCount)
	}

	plan, err := payments.AllocatePayments(ctx, "ACME")
	if err != nil {
		t.Fatalf("AllocatePayments failed: %v", err)
	}
	if !plan.UntiedCredit.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("expected untied credit 30.00, got %s", plan.UntiedCredit)
	}
	if len(plan.Lines) != 1 {
		t.Fatalf("expected one outstanding statement, got %+v", plan.Lines)
	}
	if !plan.Lines[0].Applied.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("expected oldest-first application of 30.00, got %s", plan.Lines[0].Applied)
	}
	if !plan.CreditLeft.IsZero() {
		t.Errorf("expected no credit left, got %s", plan.CreditLeft)
	}
}
