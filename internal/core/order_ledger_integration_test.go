package core_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed test DB. Test companies run in UTC so day windows in
	// assertions are unambiguous.
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE company_payments, daily_reconciliations, order_ledger_entries,
		               pricing_rules, companies CASCADE;
		DELETE FROM system_settings;

		INSERT INTO system_settings (key, value) VALUES ('commission_rate', '0.15');

		INSERT INTO companies (id, company_code, name, timezone, is_active) VALUES
		(1, 'ACME', 'Acme Lojistik', 'UTC', true),
		(2, 'BETA', 'Beta Kargo', 'UTC', true);
		SELECT setval('companies_id_seq', 10);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func seedDefaultRules(t *testing.T, rules core.RuleService) {
	t.Helper()
	ctx := context.Background()
	seed := []struct {
		ruleType core.RuleType
		params   string
		priority int
	}{
		{core.RuleBaseFee, `{"amount": 10}`, 1},
		{core.RuleDistance, `{"pricePerKm": 2}`, 2},
		{core.RuleMinimumOrder, `{"amount": 20}`, 3},
	}
	for _, r := range seed {
		if _, err := rules.CreateRule(ctx, string(r.ruleType), r.ruleType, []byte(r.params), r.priority); err != nil {
			t.Fatalf("failed to seed rule %s: %v", r.ruleType, err)
		}
	}
}

func TestOrderLedger_RecordDeliveredOrder(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	rules := core.NewRuleService(pool)
	ledger := core.NewOrderLedgerService(pool, rules)
	seedDefaultRules(t, rules)

	courier := "courier-7"
	entry, err := ledger.RecordOrderOutcome(ctx, core.OrderOutcome{
		OrderID:     "ord-1001",
		CompanyCode: "ACME",
		CourierID:   &courier,
		Distance:    decimal.NewFromInt(10),
		Status:      core.OrderDelivered,
		OccurredAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordOrderOutcome failed: %v", err)
	}

	// base 10 + distance 20 = 30; commission 15% = 4.50; earning 25.50
	if !entry.GrossPrice.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("expected gross 30.00, got %s", entry.GrossPrice)
	}
	if !entry.PlatformCommission.Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("expected commission 4.50, got %s", entry.PlatformCommission)
	}
	if !entry.CourierEarning.Equal(decimal.RequireFromString("25.50")) {
		t.Errorf("expected earning 25.50, got %s", entry.CourierEarning)
	}
	if !entry.CourierEarning.Add(entry.PlatformCommission).Equal(entry.GrossPrice) {
		t.Errorf("gross != earning + commission: %s != %s + %s",
			entry.GrossPrice, entry.CourierEarning, entry.PlatformCommission)
	}
	if !entry.CommissionRate.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("expected frozen commission rate 0.15, got %s", entry.CommissionRate)
	}
}

func TestOrderLedger_DuplicateOrderRejected(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	rules := core.NewRuleService(pool)
	ledger := core.NewOrderLedgerService(pool, rules)
	seedDefaultRules(t, rules)

	outcome := core.OrderOutcome{
		OrderID:     "ord-2001",
		CompanyCode: "ACME",
		Distance:    decimal.NewFromInt(5),
		Status:      core.OrderDelivered,
		OccurredAt:  time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	if _, err := ledger.RecordOrderOutcome(ctx, outcome); err != nil {
		t.Fatalf("first RecordOrderOutcome failed: %v", err)
	}

	_, err := ledger.RecordOrderOutcome(ctx, outcome)
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate order, got %v", err)
	}

	// Retry path: the existing entry is still readable.
	entry, err := ledger.GetEntry(ctx, "ord-2001")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if entry.OrderID != "ord-2001" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestOrderLedger_CancelledOrderContributesZero(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	rules := core.NewRuleService(pool)
	ledger := core.NewOrderLedgerService(pool, rules)
	seedDefaultRules(t, rules)

	entry, err := ledger.RecordOrderOutcome(ctx, core.OrderOutcome{
		OrderID:     "ord-3001",
		CompanyCode: "ACME",
		Distance:    decimal.NewFromInt(50),
		Status:      core.OrderCancelled,
		OccurredAt:  time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordOrderOutcome failed: %v", err)
	}
	if !entry.GrossPrice.IsZero() || !entry.CourierEarning.IsZero() || !entry.PlatformCommission.IsZero() {
		t.Errorf("cancelled order must carry zero amounts, got %+v", entry)
	}
}

func TestOrderLedger_CommissionRateFrozenAtWrite(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	rules := core.NewRuleService(pool)
	ledger := core.NewOrderLedgerService(pool, rules)
	seedDefaultRules(t, rules)

	first, err := ledger.RecordOrderOutcome(ctx, core.OrderOutcome{
		OrderID:     "ord-4001",
		CompanyCode: "ACME",
		Distance:    decimal.NewFromInt(10),
		Status:      core.OrderDelivered,
		OccurredAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordOrderOutcome failed: %v", err)
	}

	if _, err := pool.Exec(ctx,
		"UPDATE system_settings SET value = '0.20' WHERE key = 'commission_rate'",
	); err != nil {
		t.Fatalf("failed to change commission rate: %v", err)
	}

	second, err := ledger.RecordOrderOutcome(ctx, core.OrderOutcome{
		OrderID:     "ord-4002",
		CompanyCode: "ACME",
		Distance:    decimal.NewFromInt(10),
		Status:      core.OrderDelivered,
		OccurredAt:  time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordOrderOutcome failed: %v", err)
	}

	// The old entry keeps its historical rate; only new entries see 0.20.
	stored, err := ledger.GetEntry(ctx, first.OrderID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if !stored.CommissionRate.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("historical entry rate changed: %s", stored.CommissionRate)
	}
	if !second.CommissionRate.Equal(decimal.RequireFromString("0.20")) {
		t.Errorf("expected new entry rate 0.20, got %s", second.CommissionRate)
	}
}
