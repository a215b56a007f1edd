package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// PlatformSummary aggregates delivered orders platform-wide for a period:
// how much was billed gross, what couriers earned, and what the platform
// kept as commission.
type PlatformSummary struct {
	FromDate        string          `json:"from_date"`
	ToDate          string          `json:"to_date"`
	DeliveredOrders int             `json:"delivered_orders"`
	GrossRevenue    decimal.Decimal `json:"gross_revenue"`
	CourierCost     decimal.Decimal `json:"courier_cost"`
	Commission      decimal.Decimal `json:"commission"`
}

// OutstandingDebt is one company's open position for the debt overview.
type OutstandingDebt struct {
	CompanyCode string          `json:"company_code"`
	CompanyName string          `json:"company_name"`
	Remaining   decimal.Decimal `json:"remaining"`
	OldestDate  string          `json:"oldest_date"`
}

// ReportingService provides read-only rollups over the reconciliation and
// payment tables. Every result is recomputed from source rows on each call.
type ReportingService interface {
	// GetCompanyBalance rebuilds the derived balance: current debt nets
	// outstanding statement remainders against untied payments.
	GetCompanyBalance(ctx context.Context, companyCode string) (*CompanyBalance, error)

	// GetPlatformSummary totals delivered-order money over [fromDate, toDate].
	GetPlatformSummary(ctx context.Context, fromDate, toDate string) (*PlatformSummary, error)

	// GetOutstandingDebts lists companies with open statement balances,
	// largest debt first.
	GetOutstandingDebts(ctx context.Context) ([]OutstandingDebt, error)
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

func (s *reportingService) GetCompanyBalance(ctx context.Context, companyCode string) (*CompanyBalance, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	// The three aggregates are independent reads over different tables;
	// fetch them concurrently and combine into one immutable result.
	var (
		totalDebts, remaining decimal.Decimal
		totalPayments         decimal.Decimal
		paymentCount          int
		untiedCredit          decimal.Decimal
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.pool.QueryRow(gctx, `
			SELECT COALESCE(SUM(net_amount), 0), COALESCE(SUM(remaining_amount), 0)
			FROM daily_reconciliations
			WHERE company_id = $1 AND status != 'REJECTED'
		`, companyID).Scan(&totalDebts, &remaining)
		if err != nil {
			return fmt.Errorf("failed to sum reconciliation debts: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := s.pool.QueryRow(gctx, `
			SELECT COALESCE(SUM(amount), 0),
			       COUNT(*) FILTER (WHERE payment_type != 'REFUND')
			FROM company_payments
			WHERE company_id = $1
		`, companyID).Scan(&totalPayments, &paymentCount)
		if err != nil {
			return fmt.Errorf("failed to sum payments: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := s.pool.QueryRow(gctx, `
			SELECT COALESCE(SUM(amount), 0)
			FROM company_payments
			WHERE company_id = $1 AND reconciliation_id IS NULL
		`, companyID).Scan(&untiedCredit)
		if err != nil {
			return fmt.Errorf("failed to sum untied payments: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &CompanyBalance{
		CompanyID:     companyID,
		CurrentDebt:   remaining.Sub(untiedCredit),
		TotalDebts:    totalDebts,
		TotalPayments: totalPayments,
		PaymentCount:  paymentCount,
	}, nil
}

func (s *reportingService) GetPlatformSummary(ctx context.Context, fromDate, toDate string) (*PlatformSummary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(gross_price), 0),
		       COALESCE(SUM(courier_earning), 0),
		       COALESCE(SUM(platform_commission), 0)
		FROM order_ledger_entries
		WHERE status = 'DELIVERED'
	`
	var args []any
	if fromDate != "" {
		args = append(args, fromDate)
		query += fmt.Sprintf(" AND occurred_at >= $%d::date", len(args))
	}
	if toDate != "" {
		args = append(args, toDate)
		query += fmt.Sprintf(" AND occurred_at < ($%d::date + 1)", len(args))
	}

	summary := &PlatformSummary{FromDate: fromDate, ToDate: toDate}
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&summary.DeliveredOrders, &summary.GrossRevenue, &summary.CourierCost, &summary.Commission,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build platform summary: %w", err)
	}
	return summary, nil
}

func (s *reportingService) GetOutstandingDebts(ctx context.Context) ([]OutstandingDebt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.company_code, c.name,
		       SUM(r.remaining_amount),
		       MIN(r.recon_date)::text
		FROM daily_reconciliations r
		JOIN companies c ON c.id = r.company_id
		WHERE r.status != 'REJECTED' AND r.remaining_amount > 0
		GROUP BY c.id, c.company_code, c.name
		ORDER BY SUM(r.remaining_amount) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query outstanding debts: %w", err)
	}
	defer rows.Close()

	var debts []OutstandingDebt
	for rows.Next() {
		var d OutstandingDebt
		if err := rows.Scan(&d.CompanyCode, &d.CompanyName, &d.Remaining, &d.OldestDate); err != nil {
			return nil, fmt.Errorf("failed to scan outstanding debt: %w", err)
		}
		debts = append(debts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outstanding debts: %w", err)
	}
	return debts, nil
}
