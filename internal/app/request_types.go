package app

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
)

// QuoteRequest is the input for a dry-run price calculation.
type QuoteRequest struct {
	Distance    decimal.Decimal
	PackageType string
	Urgency     string
	Zone        string
}

// RuleRequest is the input for creating or updating a pricing rule.
// Parameters is the raw JSON parameter object for the rule type.
type RuleRequest struct {
	Name       string
	Type       core.RuleType
	Parameters json.RawMessage
	Priority   int
}

// CreateCompanyRequest is the input for registering a courier company.
// Timezone is an IANA name; empty means Europe/Istanbul.
type CreateCompanyRequest struct {
	Code     string
	Name     string
	Timezone string
}

// RecordOrderRequest is the input for appending an order outcome to the ledger.
type RecordOrderRequest struct {
	OrderID     string
	CompanyCode string
	CourierID   *string
	Distance    decimal.Decimal
	PackageType string
	Urgency     string
	Zone        string
	Status      core.OrderStatus
	OccurredAt  time.Time
}

// RefundRequest is the input for reversing a payment. Amount nil means the
// full unrefunded remainder.
type RefundRequest struct {
	PaymentID int
	Reason    string
	Amount    *decimal.Decimal
}
