package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hodoxnet/kuryemburada-sub001/internal/app"
	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
)

// applyPayment handles POST /api/payments.
// Body: { company_code, amount, payment_method, reconciliation_id?,
//         transaction_reference?, description? }
func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CompanyCode          string      `json:"company_code"`
		Amount               json.Number `json:"amount"`
		PaymentMethod        string      `json:"payment_method"`
		ReconciliationID     *int        `json:"reconciliation_id"`
		TransactionReference string      `json:"transaction_reference"`
		Description          string      `json:"description"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.CompanyCode == "" {
		writeError(w, r, "company_code is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(body.Amount.String())
	if err != nil {
		writeError(w, r, "amount must be numeric", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ApplyPayment(r.Context(), core.ApplyPaymentRequest{
		CompanyCode:          body.CompanyCode,
		Amount:               amount,
		PaymentMethod:        body.PaymentMethod,
		ReconciliationID:     body.ReconciliationID,
		TransactionReference: body.TransactionReference,
		Description:          body.Description,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Payment)
}

// getPayment handles GET /api/payments/{id}.
func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetPayment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Payment)
}

// refundPayment handles POST /api/payments/{id}/refund.
// Body: { reason, amount? }; omitted amount refunds the full remainder.
func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Reason string      `json:"reason"`
		Amount json.Number `json:"amount"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	var amount *decimal.Decimal
	if body.Amount != "" {
		a, err := decimal.NewFromString(body.Amount.String())
		if err != nil {
			writeError(w, r, "amount must be numeric", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		amount = &a
	}

	result, err := h.svc.RefundPayment(r.Context(), app.RefundRequest{
		PaymentID: id,
		Reason:    body.Reason,
		Amount:    amount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Payment)
}

// listPayments handles GET /api/companies/{code}/payments.
func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPayments(r.Context(), companyCode(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Payments)
}

// allocatePayments handles POST /api/companies/{code}/allocate.
func (h *Handler) allocatePayments(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.AllocatePayments(r.Context(), companyCode(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, plan)
}

// companyBalance handles GET /api/companies/{code}/balance.
func (h *Handler) companyBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.svc.GetCompanyBalance(r.Context(), companyCode(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, balance)
}

// platformSummary handles GET /api/reports/platform-summary?from=&to=.
func (h *Handler) platformSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetPlatformSummary(r.Context(),
		r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

// outstandingDebts handles GET /api/reports/outstanding-debts.
func (h *Handler) outstandingDebts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOutstandingDebts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Debts)
}

// downloadStatement handles GET /api/companies/{code}/statement.xlsx?from=&to=.
// Defaults to the trailing 30 days when the range is omitted.
func (h *Handler) downloadStatement(w http.ResponseWriter, r *http.Request) {
	code := companyCode(r)
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		now := time.Now().UTC()
		to = now.Format("2006-01-02")
		from = now.AddDate(0, 0, -30).Format("2006-01-02")
	}

	f, err := h.svc.ExportStatement(r.Context(), code, from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", code+"-statement-"+from+"-"+to+".xlsx"))
	_ = f.Write(w)
}
