package web

import (
	"net/http"

	"github.com/hodoxnet/kuryemburada-sub001/internal/app"
)

// listCompanies handles GET /api/companies.
func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListActiveCompanies(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Companies)
}

// createCompany handles POST /api/companies.
// Body: { code, name, timezone? }
func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code     string `json:"code"`
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.CreateCompany(r.Context(), app.CreateCompanyRequest{
		Code:     body.Code,
		Name:     body.Name,
		Timezone: body.Timezone,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Company)
}

// getCompany handles GET /api/companies/{code}.
func (h *Handler) getCompany(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetCompany(r.Context(), companyCode(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Company)
}

// setCompanyActive handles PATCH /api/companies/{code}/active.
// Body: { active }
func (h *Handler) setCompanyActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active bool `json:"active"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.SetCompanyActive(r.Context(), companyCode(r), body.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Company)
}
