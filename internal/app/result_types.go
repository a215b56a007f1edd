package app

import "github.com/hodoxnet/kuryemburada-sub001/internal/core"

// QuoteResult is returned by QuotePrice.
type QuoteResult struct {
	Quote core.PriceQuote
}

// RuleResult is returned by single-rule operations.
type RuleResult struct {
	Rule *core.PricingRule
}

// RuleListResult is returned by ListRules.
type RuleListResult struct {
	Rules []core.PricingRule
}

// CompanyResult is returned by company operations.
type CompanyResult struct {
	Company *core.Company
}

// CompanyListResult is returned by ListActiveCompanies.
type CompanyListResult struct {
	Companies []core.Company
}

// OrderEntryResult is returned by ledger write and lookup operations.
type OrderEntryResult struct {
	Entry *core.OrderLedgerEntry
}

// OrderEntryListResult is returned by ListLedgerEntries.
type OrderEntryListResult struct {
	Entries     []core.OrderLedgerEntry
	CompanyCode string
}

// ReconciliationResult is returned by single-statement operations.
type ReconciliationResult struct {
	Reconciliation *core.DailyReconciliation
}

// ReconciliationListResult is returned by ListReconciliations.
type ReconciliationListResult struct {
	Reconciliations []core.DailyReconciliation
	CompanyCode     string
}

// ReconciliationDetailResult is returned by GetReconciliation.
type ReconciliationDetailResult struct {
	Detail *core.ReconciliationDetail
}

// BatchGenerationResult is returned by GenerateAllReconciliations.
type BatchGenerationResult struct {
	Date    string
	Results []core.GenerationResult
}

// PaymentResult is returned by payment and refund operations.
type PaymentResult struct {
	Payment *core.CompanyPayment
}

// PaymentListResult is returned by ListPayments.
type PaymentListResult struct {
	Payments    []core.CompanyPayment
	CompanyCode string
}

// DebtListResult is returned by GetOutstandingDebts.
type DebtListResult struct {
	Debts []core.OutstandingDebt
}
