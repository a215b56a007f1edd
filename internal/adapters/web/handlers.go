package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hodoxnet/kuryemburada-sub001/internal/app"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/healthz", h.health)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// Pricing
		r.Post("/api/quote", h.quote)
		r.Get("/api/rules", h.listRules)
		r.Post("/api/rules", h.createRule)
		r.Get("/api/rules/{id}", h.getRule)
		r.Put("/api/rules/{id}", h.updateRule)
		r.Patch("/api/rules/{id}/active", h.setRuleActive)

		// Companies
		r.Get("/api/companies", h.listCompanies)
		r.Post("/api/companies", h.createCompany)
		r.Get("/api/companies/{code}", h.getCompany)
		r.Patch("/api/companies/{code}/active", h.setCompanyActive)

		// Order ledger
		r.Post("/api/orders/ledger", h.recordOrder)
		r.Get("/api/orders/ledger/{orderID}", h.getOrderEntry)
		r.Get("/api/companies/{code}/orders", h.listOrderEntries)

		// Reconciliations
		r.Post("/api/reconciliations/generate", h.generateReconciliation)
		r.Post("/api/reconciliations/generate-all", h.generateAllReconciliations)
		r.Get("/api/companies/{code}/reconciliations", h.listReconciliations)
		r.Get("/api/reconciliations/{id}", h.getReconciliation)
		r.Patch("/api/reconciliations/{id}/status", h.updateReconciliationStatus)

		// Payments
		r.Post("/api/payments", h.applyPayment)
		r.Get("/api/payments/{id}", h.getPayment)
		r.Post("/api/payments/{id}/refund", h.refundPayment)
		r.Get("/api/companies/{code}/payments", h.listPayments)
		r.Post("/api/companies/{code}/allocate", h.allocatePayments)

		// Reporting
		r.Get("/api/companies/{code}/balance", h.companyBalance)
		r.Get("/api/reports/platform-summary", h.platformSummary)
		r.Get("/api/reports/outstanding-debts", h.outstandingDebts)
	})

	// Spreadsheet download, no body to limit.
	r.Get("/api/companies/{code}/statement.xlsx", h.downloadStatement)

	h.router = r
	return r
}

// health reports liveness only; readiness is the pool's concern at startup.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// companyCode extracts the {code} URL parameter.
func companyCode(r *http.Request) string {
	return chi.URLParam(r, "code")
}

// decodeJSON decodes the request body into v and returns false after writing
// an error response on failure. HTTP 413 when the body exceeds the limit set
// by RequestBodyLimit; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
