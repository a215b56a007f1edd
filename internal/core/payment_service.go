package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ApplyPaymentRequest is the mutating payment input. Amount must be
// positive; refunds go through Refund, never through negative amounts here.
type ApplyPaymentRequest struct {
	CompanyCode          string          `json:"company_code"`
	Amount               decimal.Decimal `json:"amount"`
	PaymentMethod        string          `json:"payment_method"`
	ReconciliationID     *int            `json:"reconciliation_id,omitempty"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
	Description          string          `json:"description,omitempty"`
}

// AllocationLine is one step of the deterministic oldest-first plan mapping
// untied credit onto outstanding reconciliations.
type AllocationLine struct {
	ReconciliationID int             `json:"reconciliation_id"`
	Date             string          `json:"date"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	Applied          decimal.Decimal `json:"applied"`
}

// AllocationPlan is a read model: how the company's untied payments would
// cover its outstanding statements, oldest first. It never mutates the
// ledger; balances already net untied credit in aggregate.
type AllocationPlan struct {
	CompanyID    int              `json:"company_id"`
	UntiedCredit decimal.Decimal  `json:"untied_credit"`
	Lines        []AllocationLine `json:"lines"`
	CreditLeft   decimal.Decimal  `json:"credit_left"`
}

// PaymentService is the payment ledger and balance reconciler: it applies
// payments against statements, issues refunds, and keeps the conservation
// invariant paid + remaining == net on every touched reconciliation.
type PaymentService interface {
	ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*CompanyPayment, error)

	// Refund creates a negative ledger row against a completed payment.
	// amount nil means the full remaining unrefunded amount.
	Refund(ctx context.Context, paymentID int, reason string, amount *decimal.Decimal) (*CompanyPayment, error)

	GetPayment(ctx context.Context, id int) (*CompanyPayment, error)
	GetCompanyPayments(ctx context.Context, companyCode string) ([]CompanyPayment, error)

	// AllocatePayments returns the oldest-first allocation plan for the
	// company's untied credit.
	AllocatePayments(ctx context.Context, companyCode string) (*AllocationPlan, error)
}

type paymentService struct {
	pool *pgxpool.Pool
}

func NewPaymentService(pool *pgxpool.Pool) PaymentService {
	return &paymentService{pool: pool}
}

const paymentColumns = `id, company_id, reconciliation_id, payment_type, amount, payment_method,
	transaction_reference, description, related_payment_id, refunded_amount, status, processed_at`

func scanPayment(row pgx.Row) (*CompanyPayment, error) {
	var p CompanyPayment
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.ReconciliationID, &p.PaymentType, &p.Amount, &p.PaymentMethod,
		&p.TransactionReference, &p.Description, &p.RelatedPaymentID, &p.RefundedAmount,
		&p.Status, &p.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *paymentService) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*CompanyPayment, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive, got %s", ErrInvalidInput, req.Amount)
	}
	if req.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	companyID, err := resolveCompanyID(ctx, tx, req.CompanyCode)
	if err != nil {
		return nil, err
	}

	paymentType := PaymentManual
	if req.ReconciliationID != nil {
		paymentType = PaymentReconciliation
		if err := s.applyToReconciliationTx(ctx, tx, companyID, *req.ReconciliationID, req.Amount, req.TransactionReference); err != nil {
			return nil, err
		}
	} else if req.TransactionReference != "" {
		// Manual payments are idempotent per company on the reference.
		var exists bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM company_payments
				WHERE company_id = $1 AND reconciliation_id IS NULL AND transaction_reference = $2
			)
		`, companyID, req.TransactionReference).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check transaction reference: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("%w: transaction reference %s already recorded for company %s",
				ErrConflict, req.TransactionReference, req.CompanyCode)
		}
	}

	payment, err := scanPayment(tx.QueryRow(ctx, `
		INSERT INTO company_payments
			(company_id, reconciliation_id, payment_type, amount, payment_method,
			 transaction_reference, description)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING `+paymentColumns,
		companyID, req.ReconciliationID, paymentType, req.Amount, req.PaymentMethod,
		req.TransactionReference, req.Description,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return payment, nil
}

// applyToReconciliationTx locks the target statement, enforces the monetary
// invariants, and moves paid/remaining/status. The payment row insert and
// this update share one transaction so both land or neither does.
func (s *paymentService) applyToReconciliationTx(ctx context.Context, tx pgx.Tx, companyID, reconID int, amount decimal.Decimal, reference string) error {
	var reconCompanyID int
	var status ReconciliationStatus
	var paid, net decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT company_id, status, paid_amount, net_amount
		FROM daily_reconciliations
		WHERE id = $1
		FOR UPDATE
	`, reconID).Scan(&reconCompanyID, &status, &paid, &net)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: reconciliation %d", ErrNotFound, reconID)
		}
		return fmt.Errorf("failed to lock reconciliation %d: %w", reconID, err)
	}
	if reconCompanyID != companyID {
		return fmt.Errorf("%w: reconciliation %d belongs to another company", ErrInvalidOperation, reconID)
	}
	if status == ReconRejected {
		return fmt.Errorf("%w: reconciliation %d is REJECTED and accepts no payments", ErrInvalidOperation, reconID)
	}

	if reference != "" {
		var exists bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM company_payments
				WHERE reconciliation_id = $1 AND transaction_reference = $2
			)
		`, reconID, reference).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check transaction reference: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: transaction reference %s already applied to reconciliation %d",
				ErrConflict, reference, reconID)
		}
	}

	newPaid := paid.Add(amount)
	if newPaid.GreaterThan(net) {
		return fmt.Errorf("%w: payment of %s would exceed net amount %s (already paid %s)",
			ErrInvalidOperation, amount, net, paid)
	}

	newStatus := statusAfterPayment(status, newPaid, net)
	_, err = tx.Exec(ctx, `
		UPDATE daily_reconciliations
		SET paid_amount = $1, remaining_amount = net_amount - $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`, newPaid, newStatus, reconID)
	if err != nil {
		return fmt.Errorf("failed to update reconciliation %d amounts: %w", reconID, err)
	}
	return nil
}

func (s *paymentService) Refund(ctx context.Context, paymentID int, reason string, amount *decimal.Decimal) (*CompanyPayment, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: refund reason is required", ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	original, err := scanPayment(tx.QueryRow(ctx,
		"SELECT "+paymentColumns+" FROM company_payments WHERE id = $1 FOR UPDATE", paymentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment %d", ErrNotFound, paymentID)
		}
		return nil, fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}

	if original.PaymentType == PaymentRefund {
		return nil, fmt.Errorf("%w: payment %d is itself a refund", ErrInvalidOperation, paymentID)
	}
	if original.Status != PaymentCompleted && original.Status != PaymentPartiallyRefunded {
		return nil, fmt.Errorf("%w: payment %d has status %s, refunds require a completed capture",
			ErrInvalidState, paymentID, original.Status)
	}

	unrefunded := original.Amount.Sub(original.RefundedAmount)
	refundAmount := unrefunded
	if amount != nil {
		refundAmount = *amount
	}
	if !refundAmount.IsPositive() {
		return nil, fmt.Errorf("%w: refund amount must be positive, got %s", ErrInvalidInput, refundAmount)
	}
	if refundAmount.GreaterThan(unrefunded) {
		return nil, fmt.Errorf("%w: refund of %s exceeds unrefunded amount %s of payment %d",
			ErrInvalidOperation, refundAmount, unrefunded, paymentID)
	}

	refund, err := scanPayment(tx.QueryRow(ctx, `
		INSERT INTO company_payments
			(company_id, reconciliation_id, payment_type, amount, payment_method,
			 description, related_payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+paymentColumns,
		original.CompanyID, original.ReconciliationID, PaymentRefund, refundAmount.Neg(),
		original.PaymentMethod, reason, original.ID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert refund row: %w", err)
	}

	newRefunded := original.RefundedAmount.Add(refundAmount)
	newStatus := PaymentPartiallyRefunded
	if newRefunded.Equal(original.Amount) {
		newStatus = PaymentRefunded
	}
	_, err = tx.Exec(ctx,
		"UPDATE company_payments SET refunded_amount = $1, status = $2 WHERE id = $3",
		newRefunded, newStatus, original.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update refunded payment %d: %w", original.ID, err)
	}

	// Reflect the refund back into the statement the original payment fed.
	if original.ReconciliationID != nil {
		var status ReconciliationStatus
		var paid, net decimal.Decimal
		err = tx.QueryRow(ctx, `
			SELECT status, paid_amount, net_amount
			FROM daily_reconciliations
			WHERE id = $1
			FOR UPDATE
		`, *original.ReconciliationID).Scan(&status, &paid, &net)
		if err != nil {
			return nil, fmt.Errorf("failed to lock reconciliation %d: %w", *original.ReconciliationID, err)
		}

		newPaid := paid.Sub(refundAmount)
		if newPaid.IsNegative() {
			return nil, fmt.Errorf("%w: refund of %s would drive reconciliation %d paid amount negative",
				ErrInvalidOperation, refundAmount, *original.ReconciliationID)
		}
		reconStatus := statusAfterPayment(status, newPaid, net)
		_, err = tx.Exec(ctx, `
			UPDATE daily_reconciliations
			SET paid_amount = $1, remaining_amount = net_amount - $1, status = $2, updated_at = NOW()
			WHERE id = $3
		`, newPaid, reconStatus, *original.ReconciliationID)
		if err != nil {
			return nil, fmt.Errorf("failed to update reconciliation %d after refund: %w", *original.ReconciliationID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit refund: %w", err)
	}
	return refund, nil
}

func (s *paymentService) GetPayment(ctx context.Context, id int) (*CompanyPayment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx,
		"SELECT "+paymentColumns+" FROM company_payments WHERE id = $1", id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch payment %d: %w", id, err)
	}
	return p, nil
}

func (s *paymentService) GetCompanyPayments(ctx context.Context, companyCode string) ([]CompanyPayment, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+paymentColumns+" FROM company_payments WHERE company_id = $1 ORDER BY processed_at ASC, id ASC",
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []CompanyPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payments: %w", err)
	}
	return payments, nil
}

func (s *paymentService) AllocatePayments(ctx context.Context, companyCode string) (*AllocationPlan, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	var untied decimal.Decimal
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM company_payments
		WHERE company_id = $1 AND reconciliation_id IS NULL
	`, companyID).Scan(&untied)
	if err != nil {
		return nil, fmt.Errorf("failed to sum untied payments: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, recon_date::text, remaining_amount
		FROM daily_reconciliations
		WHERE company_id = $1 AND status != 'REJECTED' AND remaining_amount > 0
		ORDER BY recon_date ASC, id ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outstanding reconciliations: %w", err)
	}
	defer rows.Close()

	plan := &AllocationPlan{CompanyID: companyID, UntiedCredit: untied, CreditLeft: untied}
	for rows.Next() {
		var line AllocationLine
		if err := rows.Scan(&line.ReconciliationID, &line.Date, &line.Outstanding); err != nil {
			return nil, fmt.Errorf("failed to scan outstanding reconciliation: %w", err)
		}
		if plan.CreditLeft.IsPositive() {
			line.Applied = decimal.Min(plan.CreditLeft, line.Outstanding)
			plan.CreditLeft = plan.CreditLeft.Sub(line.Applied)
		}
		plan.Lines = append(plan.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outstanding reconciliations: %w", err)
	}
	return plan, nil
}
