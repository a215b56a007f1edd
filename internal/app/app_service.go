package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xuri/excelize/v2"

	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
)

type appService struct {
	pool      *pgxpool.Pool
	companies core.CompanyService
	rules     core.RuleService
	ledger    core.OrderLedgerService
	recons    core.ReconciliationService
	payments  core.PaymentService
	reporting core.ReportingService
	export    core.ExportService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	companies core.CompanyService,
	rules core.RuleService,
	ledger core.OrderLedgerService,
	recons core.ReconciliationService,
	payments core.PaymentService,
	reporting core.ReportingService,
	export core.ExportService,
) ApplicationService {
	return &appService{
		pool:      pool,
		companies: companies,
		rules:     rules,
		ledger:    ledger,
		recons:    recons,
		payments:  payments,
		reporting: reporting,
		export:    export,
	}
}

// QuotePrice runs the active rules against the request without persisting.
func (s *appService) QuotePrice(ctx context.Context, req QuoteRequest) (*QuoteResult, error) {
	if req.Distance.IsNegative() {
		return nil, fmt.Errorf("distance must not be negative: %w", core.ErrInvalidInput)
	}
	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	quote := core.CalculatePrice(core.PriceInput{
		Distance:    req.Distance,
		PackageType: req.PackageType,
		Urgency:     req.Urgency,
		Zone:        req.Zone,
	}, rules)
	return &QuoteResult{Quote: quote}, nil
}

func (s *appService) CreateRule(ctx context.Context, req RuleRequest) (*RuleResult, error) {
	rule, err := s.rules.CreateRule(ctx, req.Name, req.Type, req.Parameters, req.Priority)
	if err != nil {
		return nil, err
	}
	return &RuleResult{Rule: rule}, nil
}

func (s *appService) UpdateRule(ctx context.Context, id int, req RuleRequest) (*RuleResult, error) {
	rule, err := s.rules.UpdateRule(ctx, id, req.Name, req.Parameters, req.Priority)
	if err != nil {
		return nil, err
	}
	return &RuleResult{Rule: rule}, nil
}

func (s *appService) SetRuleActive(ctx context.Context, id int, active bool) (*RuleResult, error) {
	rule, err := s.rules.SetRuleActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	return &RuleResult{Rule: rule}, nil
}

func (s *appService) GetRule(ctx context.Context, id int) (*RuleResult, error) {
	rule, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RuleResult{Rule: rule}, nil
}

func (s *appService) ListRules(ctx context.Context) (*RuleListResult, error) {
	rules, err := s.rules.GetRules(ctx)
	if err != nil {
		return nil, err
	}
	return &RuleListResult{Rules: rules}, nil
}

func (s *appService) CreateCompany(ctx context.Context, req CreateCompanyRequest) (*CompanyResult, error) {
	company, err := s.companies.CreateCompany(ctx, req.Code, req.Name, req.Timezone)
	if err != nil {
		return nil, err
	}
	return &CompanyResult{Company: company}, nil
}

func (s *appService) GetCompany(ctx context.Context, code string) (*CompanyResult, error) {
	company, err := s.companies.GetCompany(ctx, code)
	if err != nil {
		return nil, err
	}
	return &CompanyResult{Company: company}, nil
}

func (s *appService) ListActiveCompanies(ctx context.Context) (*CompanyListResult, error) {
	companies, err := s.companies.GetActiveCompanies(ctx)
	if err != nil {
		return nil, err
	}
	return &CompanyListResult{Companies: companies}, nil
}

func (s *appService) SetCompanyActive(ctx context.Context, code string, active bool) (*CompanyResult, error) {
	company, err := s.companies.SetCompanyActive(ctx, code, active)
	if err != nil {
		return nil, err
	}
	return &CompanyResult{Company: company}, nil
}

func (s *appService) RecordOrderOutcome(ctx context.Context, req RecordOrderRequest) (*OrderEntryResult, error) {
	entry, err := s.ledger.RecordOrderOutcome(ctx, core.OrderOutcome{
		OrderID:     req.OrderID,
		CompanyCode: req.CompanyCode,
		CourierID:   req.CourierID,
		Distance:    req.Distance,
		PackageType: req.PackageType,
		Urgency:     req.Urgency,
		Zone:        req.Zone,
		Status:      req.Status,
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		return nil, err
	}
	return &OrderEntryResult{Entry: entry}, nil
}

func (s *appService) GetLedgerEntry(ctx context.Context, orderID string) (*OrderEntryResult, error) {
	entry, err := s.ledger.GetEntry(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderEntryResult{Entry: entry}, nil
}

// ListLedgerEntries resolves the company's timezone so the date bounds cover
// its local calendar days, the same window reconciliation uses.
func (s *appService) ListLedgerEntries(ctx context.Context, companyCode, fromDate, toDate string) (*OrderEntryListResult, error) {
	company, err := s.companies.GetCompany(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(company.Timezone)
	if err != nil {
		return nil, fmt.Errorf("company %s has unusable timezone %q: %w", companyCode, company.Timezone, err)
	}
	from, err := time.ParseInLocation("2006-01-02", fromDate, loc)
	if err != nil {
		return nil, fmt.Errorf("from date %q: %w", fromDate, core.ErrInvalidInput)
	}
	to, err := time.ParseInLocation("2006-01-02", toDate, loc)
	if err != nil {
		return nil, fmt.Errorf("to date %q: %w", toDate, core.ErrInvalidInput)
	}

	entries, err := s.ledger.GetEntries(ctx, companyCode, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return &OrderEntryListResult{Entries: entries, CompanyCode: companyCode}, nil
}

func (s *appService) GenerateReconciliation(ctx context.Context, companyCode, date string) (*ReconciliationResult, error) {
	recon, err := s.recons.GenerateDaily(ctx, companyCode, date)
	if err != nil {
		return nil, err
	}
	return &ReconciliationResult{Reconciliation: recon}, nil
}

func (s *appService) GenerateAllReconciliations(ctx context.Context, date string) (*BatchGenerationResult, error) {
	results, err := s.recons.GenerateForAllActive(ctx, date)
	if err != nil {
		return nil, err
	}
	return &BatchGenerationResult{Date: date, Results: results}, nil
}

func (s *appService) ListReconciliations(ctx context.Context, companyCode, fromDate, toDate string) (*ReconciliationListResult, error) {
	recons, err := s.recons.GetCompanyReconciliations(ctx, companyCode, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	return &ReconciliationListResult{Reconciliations: recons, CompanyCode: companyCode}, nil
}

func (s *appService) GetReconciliation(ctx context.Context, id int) (*ReconciliationDetailResult, error) {
	detail, err := s.recons.GetReconciliation(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ReconciliationDetailResult{Detail: detail}, nil
}

func (s *appService) UpdateReconciliationStatus(ctx context.Context, id int, status core.ReconciliationStatus, notes string) (*ReconciliationResult, error) {
	recon, err := s.recons.UpdateStatus(ctx, id, status, notes)
	if err != nil {
		return nil, err
	}
	return &ReconciliationResult{Reconciliation: recon}, nil
}

func (s *appService) ApplyPayment(ctx context.Context, req core.ApplyPaymentRequest) (*PaymentResult, error) {
	payment, err := s.payments.ApplyPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment}, nil
}

func (s *appService) RefundPayment(ctx context.Context, req RefundRequest) (*PaymentResult, error) {
	payment, err := s.payments.Refund(ctx, req.PaymentID, req.Reason, req.Amount)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment}, nil
}

func (s *appService) GetPayment(ctx context.Context, id int) (*PaymentResult, error) {
	payment, err := s.payments.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment}, nil
}

func (s *appService) ListPayments(ctx context.Context, companyCode string) (*PaymentListResult, error) {
	payments, err := s.payments.GetCompanyPayments(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return &PaymentListResult{Payments: payments, CompanyCode: companyCode}, nil
}

func (s *appService) AllocatePayments(ctx context.Context, companyCode string) (*core.AllocationPlan, error) {
	return s.payments.AllocatePayments(ctx, companyCode)
}

func (s *appService) GetCompanyBalance(ctx context.Context, companyCode string) (*core.CompanyBalance, error) {
	return s.reporting.GetCompanyBalance(ctx, companyCode)
}

func (s *appService) GetPlatformSummary(ctx context.Context, fromDate, toDate string) (*core.PlatformSummary, error) {
	return s.reporting.GetPlatformSummary(ctx, fromDate, toDate)
}

func (s *appService) GetOutstandingDebts(ctx context.Context) (*DebtListResult, error) {
	debts, err := s.reporting.GetOutstandingDebts(ctx)
	if err != nil {
		return nil, err
	}
	return &DebtListResult{Debts: debts}, nil
}

func (s *appService) ExportStatement(ctx context.Context, companyCode, fromDate, toDate string) (*excelize.File, error) {
	return s.export.ExportCompanyStatement(ctx, companyCode, fromDate, toDate)
}
