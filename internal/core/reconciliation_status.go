package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidateStatusTransition enforces the admin-facing part of the
// reconciliation state machine. Monetary statuses (PARTIALLY_PAID, PAID) are
// reached only through payment application, never set by hand; REJECTED is
// terminal.
func ValidateStatusTransition(from, to ReconciliationStatus) error {
	if from == to {
		return fmt.Errorf("%w: reconciliation is already %s", ErrInvalidOperation, to)
	}
	if from == ReconRejected {
		return fmt.Errorf("%w: reconciliation is REJECTED (terminal)", ErrInvalidState)
	}

	switch to {
	case ReconApproved:
		if from != ReconPending {
			return fmt.Errorf("%w: only PENDING reconciliations can be approved (is %s)", ErrInvalidState, from)
		}
	case ReconRejected:
		if from != ReconPending {
			return fmt.Errorf("%w: only PENDING reconciliations can be rejected (is %s)", ErrInvalidState, from)
		}
	case ReconOverdue:
		if from == ReconPaid {
			return fmt.Errorf("%w: a PAID reconciliation cannot become OVERDUE", ErrInvalidState)
		}
	case ReconPartiallyPaid, ReconPaid:
		return fmt.Errorf("%w: %s is set by payment application, not manually", ErrInvalidOperation, to)
	case ReconPending:
		return fmt.Errorf("%w: reconciliations cannot return to PENDING", ErrInvalidOperation)
	default:
		return fmt.Errorf("%w: unknown reconciliation status %q", ErrInvalidInput, to)
	}
	return nil
}

// statusAfterPayment derives the status that follows a paid-amount change.
// Exact conservation holds before this is called: 0 <= paid <= net.
// A statement refunded back to zero returns to APPROVED; approval is an
// admin fact that money movement does not undo.
func statusAfterPayment(current ReconciliationStatus, paid, net decimal.Decimal) ReconciliationStatus {
	switch {
	case net.IsPositive() && paid.Equal(net):
		return ReconPaid
	case paid.IsPositive():
		return ReconPartiallyPaid
	case current == ReconPartiallyPaid || current == ReconPaid:
		return ReconApproved
	default:
		return current
	}
}
