package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hodoxnet/kuryemburada-sub001/internal/app"
	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
)

// recordOrder handles POST /api/orders/ledger.
// Body: { order_id, company_code, courier_id?, distance, package_type?,
//         urgency?, zone?, status, occurred_at? }
func (h *Handler) recordOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID     string      `json:"order_id"`
		CompanyCode string      `json:"company_code"`
		CourierID   *string     `json:"courier_id"`
		Distance    json.Number `json:"distance"`
		PackageType string      `json:"package_type"`
		Urgency     string      `json:"urgency"`
		Zone        string      `json:"zone"`
		Status      string      `json:"status"`
		OccurredAt  string      `json:"occurred_at"` // RFC 3339; empty means now
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.OrderID == "" {
		writeError(w, r, "order_id is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if body.CompanyCode == "" {
		writeError(w, r, "company_code is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	distance := decimal.Zero
	if body.Distance != "" {
		d, err := decimal.NewFromString(body.Distance.String())
		if err != nil {
			writeError(w, r, "distance must be numeric", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		distance = d
	}

	occurredAt := time.Now().UTC()
	if body.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, body.OccurredAt)
		if err != nil {
			writeError(w, r, "occurred_at must be RFC 3339", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		occurredAt = t
	}

	result, err := h.svc.RecordOrderOutcome(r.Context(), app.RecordOrderRequest{
		OrderID:     body.OrderID,
		CompanyCode: body.CompanyCode,
		CourierID:   body.CourierID,
		Distance:    distance,
		PackageType: body.PackageType,
		Urgency:     body.Urgency,
		Zone:        body.Zone,
		Status:      core.OrderStatus(body.Status),
		OccurredAt:  occurredAt,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Entry)
}

// getOrderEntry handles GET /api/orders/ledger/{orderID}.
func (h *Handler) getOrderEntry(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetLedgerEntry(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Entry)
}

// listOrderEntries handles GET /api/companies/{code}/orders?from=&to=.
func (h *Handler) listOrderEntries(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, r, "from and to query parameters are required (YYYY-MM-DD)", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ListLedgerEntries(r.Context(), companyCode(r), from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Entries)
}
