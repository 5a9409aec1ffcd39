package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/pricing"
	"github.com/ruralpay/escrow/internal/services"
	"github.com/shopspring/decimal"
)

// AdminHandler serves the operator-only endpoints. Authorization is
// enforced by the engine.
type AdminHandler struct {
	engine    *services.Engine
	validator *services.ValidationHelper
}

func NewAdminHandler(engine *services.Engine) *AdminHandler {
	return &AdminHandler{
		engine:    engine,
		validator: services.NewValidationHelper(),
	}
}

func (h *AdminHandler) AddArbiter(w http.ResponseWriter, r *http.Request) {
	h.setArbiter(w, r, h.engine.AddArbiter)
}

func (h *AdminHandler) RemoveArbiter(w http.ResponseWriter, r *http.Request) {
	h.setArbiter(w, r, h.engine.RemoveArbiter)
}

func (h *AdminHandler) setArbiter(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, caller, account string) error) {
	operator, ok := caller(w, r)
	if !ok {
		return
	}
	account := chi.URLParam(r, "account")
	if err := h.validator.ValidateAccount(account); err != nil {
		SendErrorResponse(w, "Invalid account name", http.StatusBadRequest, err)
		return
	}

	if err := fn(r.Context(), operator, account); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "account": account})
}

type paramRequest struct {
	Type        string          `json:"type" validate:"required,oneof=uint64 int64 float64 string asset"`
	Value       json.RawMessage `json:"value" validate:"required"`
	Description string          `json:"description"`
}

// typed decodes the raw value into the Go type named by Type.
func (p paramRequest) typed() (any, error) {
	var err error
	switch p.Type {
	case "uint64":
		var v uint64
		err = json.Unmarshal(p.Value, &v)
		return v, err
	case "int64":
		var v int64
		err = json.Unmarshal(p.Value, &v)
		return v, err
	case "float64":
		var v float64
		err = json.Unmarshal(p.Value, &v)
		return v, err
	case "string":
		var v string
		err = json.Unmarshal(p.Value, &v)
		return v, err
	case "asset":
		var v models.Asset
		err = json.Unmarshal(p.Value, &v)
		return v, err
	}
	return nil, fmt.Errorf("unknown parameter type %q", p.Type)
}

// SetParam upserts a typed engine parameter
// @Summary Set parameter
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param key path string true "Parameter key, e.g. buyer.cancel.minage"
// @Param request body object{type=string,value=object,description=string} true "Typed value"
// @Router /admin/params/{key} [put]
func (h *AdminHandler) SetParam(w http.ResponseWriter, r *http.Request) {
	operator, ok := caller(w, r)
	if !ok {
		return
	}
	var req paramRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	value, err := req.typed()
	if err != nil {
		SendErrorResponse(w, "Value does not match type "+req.Type, http.StatusBadRequest, nil)
		return
	}

	key := chi.URLParam(r, "key")
	if err := h.engine.SetParam(operator, key, value, req.Description); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value})
}

func (h *AdminHandler) ListParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Params())
}

func (h *AdminHandler) PublishPrice(w http.ResponseWriter, r *http.Request) {
	operator, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		SeedsPerUSD decimal.Decimal `json:"seeds_per_usd"`
		RoundID     uint64          `json:"round_id" validate:"required"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	s := pricing.Snapshot{SeedsPerUSD: req.SeedsPerUSD, RoundID: req.RoundID}
	if err := h.engine.PublishPrice(operator, s); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Reset clears every escrow table. Meant for test networks.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	operator, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.engine.Reset(operator); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
