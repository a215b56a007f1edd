package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hodoxnet/kuryemburada-sub001/internal/app"
	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
)

// quote handles POST /api/quote.
// Body: { distance, package_type?, urgency?, zone? }
func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Distance    json.Number `json:"distance"`
		PackageType string      `json:"package_type"`
		Urgency     string      `json:"urgency"`
		Zone        string      `json:"zone"`
	}
	if !decodeJSON(w, r, &body) {
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

	result, err := h.svc.QuotePrice(r.Context(), app.QuoteRequest{
		Distance:    distance,
		PackageType: body.PackageType,
		Urgency:     body.Urgency,
		Zone:        body.Zone,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Quote)
}

// listRules handles GET /api/rules.
func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListRules(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Rules)
}

type ruleBody struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Parameters json.RawMessage `json:"parameters"`
	Priority   int             `json:"priority"`
}

// createRule handles POST /api/rules.
// Body: { name, type, parameters, priority }
func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var body ruleBody
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.CreateRule(r.Context(), app.RuleRequest{
		Name:       body.Name,
		Type:       core.RuleType(body.Type),
		Parameters: body.Parameters,
		Priority:   body.Priority,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Rule)
}

// getRule handles GET /api/rules/{id}.
func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetRule(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Rule)
}

// updateRule handles PUT /api/rules/{id}.
func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body ruleBody
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.UpdateRule(r.Context(), id, app.RuleRequest{
		Name:       body.Name,
		Parameters: body.Parameters,
		Priority:   body.Priority,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Rule)
}

// setRuleActive handles PATCH /api/rules/{id}/active.
// Body: { active }
func (h *Handler) setRuleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Active bool `json:"active"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.SetRuleActive(r.Context(), id, body.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Rule)
}

// intParam parses a numeric URL parameter, writing a 400 on failure.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeError(w, r, name+" must be numeric", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
