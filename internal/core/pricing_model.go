package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type RuleType string

const (
	RuleBaseFee      RuleType = "BASE_FEE"
	RuleDistance     RuleType = "DISTANCE"
	RulePackageType  RuleType = "PACKAGE_TYPE"
	RuleUrgency      RuleType = "URGENCY"
	RuleZone         RuleType = "ZONE"
	RuleTimeSlot     RuleType = "TIME_SLOT"
	RuleMinimumOrder RuleType = "MINIMUM_ORDER"
)

// PricingRule is one configurable step of the price pipeline. Parameters is
// the stored JSON bag; each rule type owns a typed view of it (below) and a
// bag that fails to decode simply contributes nothing to the price.
type PricingRule struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	Type       RuleType        `json:"type"`
	Parameters json.RawMessage `json:"parameters"`
	Priority   int             `json:"priority"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AmountParams covers BASE_FEE and MINIMUM_ORDER: a single flat amount.
type AmountParams struct {
	Amount decimal.Decimal `json:"amount"`
}

type DistanceParams struct {
	PricePerKm  decimal.Decimal  `json:"pricePerKm"`
	MinDistance *decimal.Decimal `json:"minDistance,omitempty"`
	MaxDistance *decimal.Decimal `json:"maxDistance,omitempty"`
}

// LookupParams covers PACKAGE_TYPE, URGENCY, ZONE and TIME_SLOT: a mapping
// from an order attribute value to a multiplier or flat fee.
type LookupParams map[string]decimal.Decimal

// amountParams decodes the bag as a flat-amount parameter set. ok is false
// when the bag is malformed or the amount is absent.
func (r PricingRule) amountParams() (AmountParams, bool) {
	var p AmountParams
	if err := json.Unmarshal(r.Parameters, &p); err != nil {
		return AmountParams{}, false
	}
	return p, true
}

func (r PricingRule) distanceParams() (DistanceParams, bool) {
	var p DistanceParams
	if err := json.Unmarshal(r.Parameters, &p); err != nil {
		return DistanceParams{}, false
	}
	return p, true
}

func (r PricingRule) lookupParams() (LookupParams, bool) {
	var p LookupParams
	if err := json.Unmarshal(r.Parameters, &p); err != nil {
		return nil, false
	}
	return p, true
}

// PriceInput carries the raw order attributes the pipeline prices.
type PriceInput struct {
	Distance    decimal.Decimal `json:"distance"`
	PackageType string          `json:"package_type"`
	Urgency     string          `json:"urgency"`
	Zone        string          `json:"zone,omitempty"`
}

// BreakdownLine is one applied pipeline step, preserved for audit and for
// the dashboards that render the quote.
type BreakdownLine struct {
	Type   RuleType        `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Detail string          `json:"detail,omitempty"`
}

// PriceQuote is the calculator result: the final total (rounded half-up to
// two decimals) and the ordered audit trail that produced it.
type PriceQuote struct {
	TotalPrice decimal.Decimal `json:"total_price"`
	Breakdown  []BreakdownLine `json:"breakdown"`
}
