package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type Company struct {
	ID          int       `json:"id"`
	CompanyCode string    `json:"company_code"`
	Name        string    `json:"name"`
	Timezone    string    `json:"timezone"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type OrderStatus string

const (
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// OrderLedgerEntry is the immutable monetary record of a terminal order.
// For DELIVERED entries gross_price = courier_earning + platform_commission;
// CANCELLED entries carry zero amounts. The commission rate effective at
// write time is frozen on the row so later rate changes never rewrite
// history.
type OrderLedgerEntry struct {
	ID                 int             `json:"id"`
	OrderID            string          `json:"order_id"`
	CompanyID          int             `json:"company_id"`
	CourierID          *string         `json:"courier_id,omitempty"`
	GrossPrice         decimal.Decimal `json:"gross_price"`
	CourierEarning     decimal.Decimal `json:"courier_earning"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
	CommissionRate     decimal.Decimal `json:"commission_rate"`
	Status             OrderStatus     `json:"status"`
	Breakdown          []BreakdownLine `json:"breakdown,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
	CreatedAt          time.Time       `json:"created_at"`
}

type ReconciliationStatus string

const (
	ReconPending       ReconciliationStatus = "PENDING"
	ReconApproved      ReconciliationStatus = "APPROVED"
	ReconPartiallyPaid ReconciliationStatus = "PARTIALLY_PAID"
	ReconPaid          ReconciliationStatus = "PAID"
	ReconOverdue       ReconciliationStatus = "OVERDUE"
	ReconRejected      ReconciliationStatus = "REJECTED"
)

// DailyReconciliation is the per-company daily statement. One row per
// (company_id, recon_date). paid_amount + remaining_amount == net_amount at
// all times; remaining_amount never goes negative.
type DailyReconciliation struct {
	ID                 int                  `json:"id"`
	CompanyID          int                  `json:"company_id"`
	Date               string               `json:"date"` // YYYY-MM-DD, company-local
	TotalOrders        int                  `json:"total_orders"`
	DeliveredOrders    int                  `json:"delivered_orders"`
	CancelledOrders    int                  `json:"cancelled_orders"`
	TotalAmount        decimal.Decimal      `json:"total_amount"`
	CourierCost        decimal.Decimal      `json:"courier_cost"`
	PlatformCommission decimal.Decimal      `json:"platform_commission"`
	NetAmount          decimal.Decimal      `json:"net_amount"`
	PaidAmount         decimal.Decimal      `json:"paid_amount"`
	RemainingAmount    decimal.Decimal      `json:"remaining_amount"`
	Status             ReconciliationStatus `json:"status"`
	Notes              *string              `json:"notes,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

type PaymentType string

const (
	PaymentManual         PaymentType = "MANUAL_PAYMENT"
	PaymentReconciliation PaymentType = "DAILY_RECONCILIATION"
	PaymentRefund         PaymentType = "REFUND"
)

type PaymentStatus string

const (
	PaymentCompleted         PaymentStatus = "COMPLETED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// CompanyPayment is one row of the append-only payment audit log. Refunds
// are separate negative-amount rows pointing at the original via
// RelatedPaymentID; existing rows are never edited beyond the running
// refunded_amount/status bookkeeping on the refunded original.
type CompanyPayment struct {
	ID                   int             `json:"id"`
	CompanyID            int             `json:"company_id"`
	ReconciliationID     *int            `json:"reconciliation_id,omitempty"`
	PaymentType          PaymentType     `json:"payment_type"`
	Amount               decimal.Decimal `json:"amount"`
	PaymentMethod        string          `json:"payment_method"`
	TransactionReference *string         `json:"transaction_reference,omitempty"`
	Description          *string         `json:"description,omitempty"`
	RelatedPaymentID     *int            `json:"related_payment_id,omitempty"`
	RefundedAmount       decimal.Decimal `json:"refunded_amount"`
	Status               PaymentStatus   `json:"status"`
	ProcessedAt          time.Time       `json:"processed_at"`
}

// CompanyBalance is a derived rollup over reconciliations and payments. It
// is recomputed from the source tables on every read, never stored.
type CompanyBalance struct {
	CompanyID     int             `json:"company_id"`
	CurrentDebt   decimal.Decimal `json:"current_debt"`
	TotalDebts    decimal.Decimal `json:"total_debts"`
	TotalPayments decimal.Decimal `json:"total_payments"`
	PaymentCount  int             `json:"payment_count"`
}
