package web

import (
	"net/http"

	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
)

// generateReconciliation handles POST /api/reconciliations/generate.
// Body: { company_code, date }
func (h *Handler) generateReconciliation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CompanyCode string `json:"company_code"`
		Date        string `json:"date"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.CompanyCode == "" || body.Date == "" {
		writeError(w, r, "company_code and date are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.GenerateReconciliation(r.Context(), body.CompanyCode, body.Date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Reconciliation)
}

// generateAllReconciliations handles POST /api/reconciliations/generate-all.
// Body: { date }
func (h *Handler) generateAllReconciliations(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date string `json:"date"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Date == "" {
		writeError(w, r, "date is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.GenerateAllReconciliations(r.Context(), body.Date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// listReconciliations handles GET /api/companies/{code}/reconciliations?from=&to=.
func (h *Handler) listReconciliations(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListReconciliations(r.Context(), companyCode(r),
		r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Reconciliations)
}

// getReconciliation handles GET /api/reconciliations/{id}.
func (h *Handler) getReconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetReconciliation(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Detail)
}

// updateReconciliationStatus handles PATCH /api/reconciliations/{id}/status.
// Body: { status, notes? }
func (h *Handler) updateReconciliationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Status == "" {
		writeError(w, r, "status is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.UpdateReconciliationStatus(r.Context(), id, core.ReconciliationStatus(body.Status), body.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Reconciliation)
}
