package handlers

import (
	"context"
	"net/http"

	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/services"
)

type ArbitrationHandler struct {
	engine    *services.Engine
	validator *services.ValidationHelper
}

func NewArbitrationHandler(engine *services.Engine) *ArbitrationHandler {
	return &ArbitrationHandler{
		engine:    engine,
		validator: services.NewValidationHelper(),
	}
}

type resolveRequest struct {
	Notes string `json:"notes" validate:"max=2048"`
}

func (h *ArbitrationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	c, err := h.engine.AssignArbiter(r.Context(), account, id)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ResolveForSeller returns the disputed funds to the seller's listing
// @Summary Resolve for seller
// @Tags arbitration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{notes=string} false "Resolution notes"
// @Router /arbitration/{id}/resolve-seller [post]
func (h *ArbitrationHandler) ResolveForSeller(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.engine.ResolveForSeller)
}

// ResolveForBuyer releases the disputed funds to the buyer
// @Summary Resolve for buyer
// @Tags arbitration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{notes=string} false "Resolution notes"
// @Router /arbitration/{id}/resolve-buyer [post]
func (h *ArbitrationHandler) ResolveForBuyer(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.engine.ResolveForBuyer)
}

type resolver func(ctx context.Context, caller string, id uint64, notes string) (*models.ArbitrationCase, error)

func (h *ArbitrationHandler) resolve(w http.ResponseWriter, r *http.Request, fn resolver) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	c, err := fn(r.Context(), account, id, req.Notes)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RecordContact flags that the arbiter reached the buyer or the seller.
func (h *ArbitrationHandler) RecordContact(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Party string `json:"party" validate:"required,oneof=buyer seller"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	c, err := h.engine.RecordContact(r.Context(), account, id, req.Party)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ArbitrationHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := h.engine.Case(id)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListCases filters by ?resolution= and ?arbiter=.
func (h *ArbitrationHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	cases := h.engine.Cases(models.Resolution(qs.Get("resolution")), qs.Get("arbiter"))
	if cases == nil {
		cases = []models.ArbitrationCase{}
	}
	writeJSON(w, http.StatusOK, cases)
}
