package app

import (
	"context"

	"github.com/xuri/excelize/v2"

	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
)

// ApplicationService is the single interface all adapters (Web, CLI) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no HTTP status codes, and no display logic of any kind.
type ApplicationService interface {
	// QuotePrice runs the active pricing rules against a quote request
	// without writing anything.
	QuotePrice(ctx context.Context, req QuoteRequest) (*QuoteResult, error)

	// CreateRule registers a new pricing rule.
	CreateRule(ctx context.Context, req RuleRequest) (*RuleResult, error)

	// UpdateRule replaces the name, parameters and priority of a rule.
	UpdateRule(ctx context.Context, id int, req RuleRequest) (*RuleResult, error)

	// SetRuleActive toggles a rule in or out of the pricing pipeline.
	SetRuleActive(ctx context.Context, id int, active bool) (*RuleResult, error)

	// GetRule returns one pricing rule by ID.
	GetRule(ctx context.Context, id int) (*RuleResult, error)

	// ListRules returns all pricing rules, active and inactive.
	ListRules(ctx context.Context) (*RuleListResult, error)

	// CreateCompany registers a courier company.
	CreateCompany(ctx context.Context, req CreateCompanyRequest) (*CompanyResult, error)

	// GetCompany returns a company by its code.
	GetCompany(ctx context.Context, code string) (*CompanyResult, error)

	// ListActiveCompanies returns the companies included in batch reconciliation.
	ListActiveCompanies(ctx context.Context) (*CompanyListResult, error)

	// SetCompanyActive toggles whether a company participates in batch runs.
	SetCompanyActive(ctx context.Context, code string, active bool) (*CompanyResult, error)

	// RecordOrderOutcome prices a finished order and appends the immutable
	// ledger entry. A repeated orderID returns core.ErrConflict.
	RecordOrderOutcome(ctx context.Context, req RecordOrderRequest) (*OrderEntryResult, error)

	// GetLedgerEntry returns the ledger entry for an external order ID.
	GetLedgerEntry(ctx context.Context, orderID string) (*OrderEntryResult, error)

	// ListLedgerEntries returns a company's entries within [from, to) as
	// YYYY-MM-DD dates interpreted in the company's timezone.
	ListLedgerEntries(ctx context.Context, companyCode, fromDate, toDate string) (*OrderEntryListResult, error)

	// GenerateReconciliation builds or rebuilds the daily statement for one
	// company and local calendar day.
	GenerateReconciliation(ctx context.Context, companyCode, date string) (*ReconciliationResult, error)

	// GenerateAllReconciliations runs the daily batch over every active
	// company, isolating per-company failures.
	GenerateAllReconciliations(ctx context.Context, date string) (*BatchGenerationResult, error)

	// ListReconciliations returns a company's statements in a date range.
	ListReconciliations(ctx context.Context, companyCode, fromDate, toDate string) (*ReconciliationListResult, error)

	// GetReconciliation returns one statement with its orders and payments.
	GetReconciliation(ctx context.Context, id int) (*ReconciliationDetailResult, error)

	// UpdateReconciliationStatus applies an administrative status change.
	UpdateReconciliationStatus(ctx context.Context, id int, status core.ReconciliationStatus, notes string) (*ReconciliationResult, error)

	// ApplyPayment records a payment, optionally settling a reconciliation.
	ApplyPayment(ctx context.Context, req core.ApplyPaymentRequest) (*PaymentResult, error)

	// RefundPayment reverses all or part of a completed payment.
	RefundPayment(ctx context.Context, req RefundRequest) (*PaymentResult, error)

	// GetPayment returns one payment row.
	GetPayment(ctx context.Context, id int) (*PaymentResult, error)

	// ListPayments returns a company's payment history in processing order.
	ListPayments(ctx context.Context, companyCode string) (*PaymentListResult, error)

	// AllocatePayments previews how untied credit would settle outstanding
	// statements oldest first.
	AllocatePayments(ctx context.Context, companyCode string) (*core.AllocationPlan, error)

	// GetCompanyBalance returns the company's aggregate financial position.
	GetCompanyBalance(ctx context.Context, companyCode string) (*core.CompanyBalance, error)

	// GetPlatformSummary returns platform-wide revenue totals for a range.
	GetPlatformSummary(ctx context.Context, fromDate, toDate string) (*core.PlatformSummary, error)

	// GetOutstandingDebts lists companies that still owe money.
	GetOutstandingDebts(ctx context.Context) (*DebtListResult, error)

	// ExportStatement renders a company's statements and payments as a
	// spreadsheet for the finance team.
	ExportStatement(ctx context.Context, companyCode, fromDate, toDate string) (*excelize.File, error)
}
