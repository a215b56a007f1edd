package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GenerationResult is one company's outcome of a batch daily run. Failures
// are isolated per company, never aborting the whole run.
type GenerationResult struct {
	CompanyCode    string               `json:"company_code"`
	Reconciliation *DailyReconciliation `json:"reconciliation,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// ReconciliationDetail is the dashboard read model: the statement plus the
// orders and payments behind it.
type ReconciliationDetail struct {
	DailyReconciliation
	Orders   []OrderLedgerEntry `json:"orders"`
	Payments []CompanyPayment   `json:"payments"`
}

// ReconciliationService aggregates the order ledger into daily per-company
// statements and runs their status state machine.
type ReconciliationService interface {
	// GenerateDaily upserts the statement for (company, date). Re-running
	// recomputes counts and amounts but never touches paid_amount, status
	// or payment history. date is YYYY-MM-DD in the company's local day.
	GenerateDaily(ctx context.Context, companyCode, date string) (*DailyReconciliation, error)

	// GenerateForAllActive runs GenerateDaily for every active company,
	// reporting per-company success or failure.
	GenerateForAllActive(ctx context.Context, date string) ([]GenerationResult, error)

	GetCompanyReconciliations(ctx context.Context, companyCode, fromDate, toDate string) ([]DailyReconciliation, error)
	GetReconciliation(ctx context.Context, id int) (*ReconciliationDetail, error)

	// UpdateStatus applies an admin transition (approve, reject, overdue).
	// Rejection requires notes. Monetary statuses are payment-driven only.
	UpdateStatus(ctx context.Context, id int, status ReconciliationStatus, notes string) (*DailyReconciliation, error)
}

type reconciliationService struct {
	pool      *pgxpool.Pool
	companies CompanyService
}

func NewReconciliationService(pool *pgxpool.Pool, companies CompanyService) ReconciliationService {
	return &reconciliationService{pool: pool, companies: companies}
}

const reconColumns = `id, company_id, recon_date::text, total_orders, delivered_orders, cancelled_orders,
	total_amount, courier_cost, platform_commission, net_amount, paid_amount, remaining_amount,
	status, notes, created_at, updated_at`

func scanReconciliation(row pgx.Row) (*DailyReconciliation, error) {
	var r DailyReconciliation
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.Date, &r.TotalOrders, &r.DeliveredOrders, &r.CancelledOrders,
		&r.TotalAmount, &r.CourierCost, &r.PlatformCommission, &r.NetAmount, &r.PaidAmount,
		&r.RemainingAmount, &r.Status, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// dayWindow returns the [start, end) UTC instants of the company-local
// calendar day.
func dayWindow(date string, timezone string) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, timezone)
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", ErrInvalidInput, date)
	}
	return day, day.AddDate(0, 0, 1), nil
}

func (s *reconciliationService) GenerateDaily(ctx context.Context, companyCode, date string) (*DailyReconciliation, error) {
	company, err := s.companies.GetCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	dayStart, dayEnd, err := dayWindow(date, company.Timezone)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock any existing statement so regeneration and payment application
	// never interleave on the same row.
	var existingID *int
	err = tx.QueryRow(ctx,
		"SELECT id FROM daily_reconciliations WHERE company_id = $1 AND recon_date = $2 FOR UPDATE",
		company.ID, date,
	).Scan(&existingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to lock reconciliation: %w", err)
	}

	// The order ledger is append-only, so the day's aggregates can only
	// grow between runs; remaining = net - paid stays non-negative because
	// overpayment was rejected against the smaller previous net.
	var agg struct {
		total, delivered, cancelled          int
		totalAmount, courierCost, commission string
	}
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'DELIVERED'),
		       COUNT(*) FILTER (WHERE status = 'CANCELLED'),
		       COALESCE(SUM(gross_price)         FILTER (WHERE status = 'DELIVERED'), 0)::text,
		       COALESCE(SUM(courier_earning)     FILTER (WHERE status = 'DELIVERED'), 0)::text,
		       COALESCE(SUM(platform_commission) FILTER (WHERE status = 'DELIVERED'), 0)::text
		FROM order_ledger_entries
		WHERE company_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`, company.ID, dayStart, dayEnd).Scan(
		&agg.total, &agg.delivered, &agg.cancelled,
		&agg.totalAmount, &agg.courierCost, &agg.commission,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ledger entries: %w", err)
	}

	// Billing policy: the company owes the gross delivered amount; courier
	// cost and commission stay informational breakdowns.
	var recon *DailyReconciliation
	if existingID != nil {
		recon, err = scanReconciliation(tx.QueryRow(ctx, `
			UPDATE daily_reconciliations
			SET total_orders = $1, delivered_orders = $2, cancelled_orders = $3,
			    total_amount = $4, courier_cost = $5, platform_commission = $6,
			    net_amount = $4, remaining_amount = $4::numeric - paid_amount,
			    updated_at = NOW()
			WHERE id = $7
			RETURNING `+reconColumns,
			agg.total, agg.delivered, agg.cancelled,
			agg.totalAmount, agg.courierCost, agg.commission, *existingID,
		))
	} else {
		recon, err = scanReconciliation(tx.QueryRow(ctx, `
			INSERT INTO daily_reconciliations
				(company_id, recon_date, total_orders, delivered_orders, cancelled_orders,
				 total_amount, courier_cost, platform_commission, net_amount,
				 paid_amount, remaining_amount, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $6, 0, $6, 'PENDING')
			RETURNING `+reconColumns,
			company.ID, date, agg.total, agg.delivered, agg.cancelled,
			agg.totalAmount, agg.courierCost, agg.commission,
		))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert reconciliation for %s %s: %w", companyCode, date, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return recon, nil
}

func (s *reconciliationService) GenerateForAllActive(ctx context.Context, date string) ([]GenerationResult, error) {
	companies, err := s.companies.GetActiveCompanies(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]GenerationResult, 0, len(companies))
	for _, c := range companies {
		recon, err := s.GenerateDaily(ctx, c.CompanyCode, date)
		if err != nil {
			results = append(results, GenerationResult{CompanyCode: c.CompanyCode, Error: err.Error()})
			continue
		}
		results = append(results, GenerationResult{CompanyCode: c.CompanyCode, Reconciliation: recon})
	}
	return results, nil
}

func (s *reconciliationService) GetCompanyReconciliations(ctx context.Context, companyCode, fromDate, toDate string) ([]DailyReconciliation, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + reconColumns + " FROM daily_reconciliations WHERE company_id = $1"
	args := []any{companyID}
	if fromDate != "" {
		args = append(args, fromDate)
		query += fmt.Sprintf(" AND recon_date >= $%d", len(args))
	}
	if toDate != "" {
		args = append(args, toDate)
		query += fmt.Sprintf(" AND recon_date <= $%d", len(args))
	}
	query += " ORDER BY recon_date DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliations: %w", err)
	}
	defer rows.Close()

	var recons []DailyReconciliation
	for rows.Next() {
		r, err := scanReconciliation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation: %w", err)
		}
		recons = append(recons, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reconciliations: %w", err)
	}
	return recons, nil
}

func (s *reconciliationService) GetReconciliation(ctx context.Context, id int) (*ReconciliationDetail, error) {
	recon, err := scanReconciliation(s.pool.QueryRow(ctx,
		"SELECT "+reconColumns+" FROM daily_reconciliations WHERE id = $1", id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: reconciliation %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch reconciliation %d: %w", id, err)
	}

	var companyCode, timezone string
	if err := s.pool.QueryRow(ctx,
		"SELECT company_code, timezone FROM companies WHERE id = $1", recon.CompanyID,
	).Scan(&companyCode, &timezone); err != nil {
		return nil, fmt.Errorf("failed to resolve company for reconciliation %d: %w", id, err)
	}

	dayStart, dayEnd, err := dayWindow(recon.Date, timezone)
	if err != nil {
		return nil, err
	}

	detail := &ReconciliationDetail{DailyReconciliation: *recon}

	orderRows, err := s.pool.Query(ctx, `
		SELECT id, order_id, company_id, courier_id, gross_price, courier_earning,
		       platform_commission, commission_rate, status, occurred_at, created_at
		FROM order_ledger_entries
		WHERE company_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at ASC, id ASC
	`, recon.CompanyID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation orders: %w", err)
	}
	defer orderRows.Close()
	for orderRows.Next() {
		var e OrderLedgerEntry
		if err := orderRows.Scan(
			&e.ID, &e.OrderID, &e.CompanyID, &e.CourierID, &e.GrossPrice, &e.CourierEarning,
			&e.PlatformCommission, &e.CommissionRate, &e.Status, &e.OccurredAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation order: %w", err)
		}
		detail.Orders = append(detail.Orders, e)
	}
	if err := orderRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reconciliation orders: %w", err)
	}

	payRows, err := s.pool.Query(ctx, `
		SELECT id, company_id, reconciliation_id, payment_type, amount, payment_method,
		       transaction_reference, description, related_payment_id, refunded_amount,
		       status, processed_at
		FROM company_payments
		WHERE reconciliation_id = $1
		ORDER BY processed_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation payments: %w", err)
	}
	defer payRows.Close()
	for payRows.Next() {
		var p CompanyPayment
		if err := payRows.Scan(
			&p.ID, &p.CompanyID, &p.ReconciliationID, &p.PaymentType, &p.Amount, &p.PaymentMethod,
			&p.TransactionReference, &p.Description, &p.RelatedPaymentID, &p.RefundedAmount,
			&p.Status, &p.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation payment: %w", err)
		}
		detail.Payments = append(detail.Payments, p)
	}
	if err := payRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reconciliation payments: %w", err)
	}

	return detail, nil
}

func (s *reconciliationService) UpdateStatus(ctx context.Context, id int, status ReconciliationStatus, notes string) (*DailyReconciliation, error) {
	if status == ReconRejected && notes == "" {
		return nil, fmt.Errorf("%w: rejection requires a reason", ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current ReconciliationStatus
	err = tx.QueryRow(ctx,
		"SELECT status FROM daily_reconciliations WHERE id = $1 FOR UPDATE", id,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: reconciliation %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch reconciliation %d: %w", id, err)
	}

	if err := ValidateStatusTransition(current, status); err != nil {
		return nil, err
	}

	recon, err := scanReconciliation(tx.QueryRow(ctx, `
		UPDATE daily_reconciliations
		SET status = $1, notes = COALESCE(NULLIF($2, ''), notes), updated_at = NOW()
		WHERE id = $3
		RETURNING `+reconColumns, status, notes, id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update reconciliation %d status: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}
	return recon, nil
}
