package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// defaultCommissionRate applies when the commission_rate system setting is
// absent or unparseable.
const defaultCommissionRate = "0.15"

// OrderOutcome is what order fulfillment emits when an order reaches a
// terminal state.
type OrderOutcome struct {
	OrderID     string          `json:"order_id"`
	CompanyCode string          `json:"company_code"`
	CourierID   *string         `json:"courier_id,omitempty"`
	Distance    decimal.Decimal `json:"distance"`
	PackageType string          `json:"package_type"`
	Urgency     string          `json:"urgency"`
	Zone        string          `json:"zone,omitempty"`
	Status      OrderStatus     `json:"status"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// OrderLedgerService writes and reads the append-only order ledger.
type OrderLedgerService interface {
	// RecordOrderOutcome prices the order and writes its ledger entry
	// exactly once. A second call for the same order fails with Conflict.
	RecordOrderOutcome(ctx context.Context, outcome OrderOutcome) (*OrderLedgerEntry, error)
	GetEntry(ctx context.Context, orderID string) (*OrderLedgerEntry, error)
	GetEntries(ctx context.Context, companyCode string, from, to time.Time) ([]OrderLedgerEntry, error)
}

type orderLedgerService struct {
	pool  *pgxpool.Pool
	rules RuleService
}

func NewOrderLedgerService(pool *pgxpool.Pool, rules RuleService) OrderLedgerService {
	return &orderLedgerService{pool: pool, rules: rules}
}

func (s *orderLedgerService) RecordOrderOutcome(ctx context.Context, outcome OrderOutcome) (*OrderLedgerEntry, error) {
	if outcome.OrderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if outcome.Status != OrderDelivered && outcome.Status != OrderCancelled {
		return nil, fmt.Errorf("%w: order status must be DELIVERED or CANCELLED, got %q", ErrInvalidInput, outcome.Status)
	}
	if outcome.OccurredAt.IsZero() {
		outcome.OccurredAt = time.Now()
	}

	companyID, err := resolveCompanyID(ctx, s.pool, outcome.CompanyCode)
	if err != nil {
		return nil, err
	}

	gross := decimal.Zero
	commission := decimal.Zero
	earning := decimal.Zero
	rate := decimal.Zero
	var breakdown []BreakdownLine

	if outcome.Status == OrderDelivered {
		rules, err := s.rules.ActiveRules(ctx)
		if err != nil {
			return nil, err
		}
		quote := CalculatePrice(PriceInput{
			Distance:    outcome.Distance,
			PackageType: outcome.PackageType,
			Urgency:     outcome.Urgency,
			Zone:        outcome.Zone,
		}, rules)

		rate, err = s.effectiveCommissionRate(ctx)
		if err != nil {
			return nil, err
		}

		gross = quote.TotalPrice
		commission = gross.Mul(rate).Round(2)
		// Earning is derived by subtraction so the gross = earning +
		// commission invariant holds exactly after rounding.
		earning = gross.Sub(commission)
		breakdown = quote.Breakdown
	}

	if breakdown == nil {
		breakdown = []BreakdownLine{}
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to encode price breakdown: %w", err)
	}

	var e OrderLedgerEntry
	err = s.pool.QueryRow(ctx, `
		INSERT INTO order_ledger_entries
			(order_id, company_id, courier_id, gross_price, courier_earning,
			 platform_commission, commission_rate, status, breakdown, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, order_id, company_id, courier_id, gross_price, courier_earning,
		          platform_commission, commission_rate, status, occurred_at, created_at
	`, outcome.OrderID, companyID, outcome.CourierID, gross, earning,
		commission, rate, outcome.Status, breakdownJSON, outcome.OccurredAt).Scan(
		&e.ID, &e.OrderID, &e.CompanyID, &e.CourierID, &e.GrossPrice, &e.CourierEarning,
		&e.PlatformCommission, &e.CommissionRate, &e.Status, &e.OccurredAt, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: ledger entry for order %s already exists", ErrConflict, outcome.OrderID)
		}
		return nil, fmt.Errorf("failed to insert ledger entry for order %s: %w", outcome.OrderID, err)
	}
	e.Breakdown = breakdown
	return &e, nil
}

// effectiveCommissionRate reads the current commission rate from
// system_settings. The value is frozen onto each ledger entry at write time
// so historical reconciliations survive rate changes untouched.
func (s *orderLedgerService) effectiveCommissionRate(ctx context.Context) (decimal.Decimal, error) {
	value := defaultCommissionRate
	err := s.pool.QueryRow(ctx,
		"SELECT value FROM system_settings WHERE key = 'commission_rate'",
	).Scan(&value)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to read commission rate: %w", err)
	}

	rate, err := decimal.NewFromString(value)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		rate, _ = decimal.NewFromString(defaultCommissionRate)
	}
	return rate, nil
}

func (s *orderLedgerService) GetEntry(ctx context.Context, orderID string) (*OrderLedgerEntry, error) {
	var e OrderLedgerEntry
	var breakdownJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_id, company_id, courier_id, gross_price, courier_earning,
		       platform_commission, commission_rate, status, breakdown, occurred_at, created_at
		FROM order_ledger_entries
		WHERE order_id = $1
	`, orderID).Scan(
		&e.ID, &e.OrderID, &e.CompanyID, &e.CourierID, &e.GrossPrice, &e.CourierEarning,
		&e.PlatformCommission, &e.CommissionRate, &e.Status, &breakdownJSON, &e.OccurredAt, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: ledger entry for order %s", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to fetch ledger entry for order %s: %w", orderID, err)
	}
	if len(breakdownJSON) > 0 {
		_ = json.Unmarshal(breakdownJSON, &e.Breakdown)
	}
	return &e, nil
}

func (s *orderLedgerService) GetEntries(ctx context.Context, companyCode string, from, to time.Time) ([]OrderLedgerEntry, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, company_id, courier_id, gross_price, courier_earning,
		       platform_commission, commission_rate, status, occurred_at, created_at
		FROM order_ledger_entries
		WHERE company_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at ASC, id ASC
	`, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []OrderLedgerEntry
	for rows.Next() {
		var e OrderLedgerEntry
		if err := rows.Scan(
			&e.ID, &e.OrderID, &e.CompanyID, &e.CourierID, &e.GrossPrice, &e.CourierEarning,
			&e.PlatformCommission, &e.CommissionRate, &e.Status, &e.OccurredAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}
	return entries, nil
}
